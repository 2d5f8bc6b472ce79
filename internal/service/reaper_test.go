package service

import (
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository/memory"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReaper_SweepPurgesPastGrace(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	user := createUser(t, storage, "reaper@example.com")

	expiries := map[string]time.Duration{
		"Dead01": -72 * time.Hour,
		"Dead02": -48 * time.Hour,
		"Dead03": -25 * time.Hour,
		"Grace1": -time.Hour,
		"Alive1": time.Hour,
	}
	for code, offset := range expiries {
		require.NoError(t, storage.CreateLink(ctx, &domain.Link{
			UserID: user.ID, OriginalURL: "https://example.com/" + code, ShortCode: code,
			IsActive: true, CreatedAt: testNow.Add(-90 * 24 * time.Hour), ExpiresAt: testNow.Add(offset),
		}, 100))
	}
	dead, err := storage.GetUserLinkByCode(ctx, "Dead01", user.ID)
	require.NoError(t, err)
	require.NoError(t, storage.AppendClick(ctx, &domain.Click{LinkID: dead.ID, ShortCode: "Dead01", ClickedAt: testNow}))

	r := NewReaper(storage, time.Minute, 24*time.Hour, 2, zap.NewNop())
	r.now = func() time.Time { return testNow }

	removed, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	for code := range expiries {
		exists, err := storage.CodeExists(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, code == "Grace1" || code == "Alive1", exists, code)
	}

	got, err := storage.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.URLsCreated)

	removed, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	storage := memory.New()
	user := createUser(t, storage, "run@example.com")
	for i := 0; i < 3; i++ {
		require.NoError(t, storage.CreateLink(context.Background(), &domain.Link{
			UserID: user.ID, OriginalURL: "https://example.com", ShortCode: fmt.Sprintf("RunX0%d", i),
			IsActive: true, CreatedAt: testNow, ExpiresAt: testNow.Add(-48 * time.Hour),
		}, 100))
	}

	r := NewReaper(storage, time.Hour, time.Hour, 10, zap.NewNop())
	r.now = func() time.Time { return testNow }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		n, _ := storage.CountUserLinks(context.Background(), user.ID)
		return n == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
