// Package storagetest holds behaviour checks every repository.Storage
// implementation must pass.
package storagetest

import (
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository"
	"LinkSnap-Backend/pkg/useragent"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty storage for one subtest.
type Factory func(t *testing.T) repository.Storage

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the whole suite against storages produced by newStorage.
func Run(t *testing.T, newStorage Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStorage(t)) })
	t.Run("CreateLinkQuota", func(t *testing.T) { testCreateLinkQuota(t, newStorage(t)) })
	t.Run("CreateLinkDuplicateCode", func(t *testing.T) { testCreateLinkDuplicateCode(t, newStorage(t)) })
	t.Run("Lookups", func(t *testing.T) { testLookups(t, newStorage(t)) })
	t.Run("ListUserLinks", func(t *testing.T) { testListUserLinks(t, newStorage(t)) })
	t.Run("DeleteLinkCascades", func(t *testing.T) { testDeleteLinkCascades(t, newStorage(t)) })
	t.Run("ConcurrentIncrement", func(t *testing.T) { testConcurrentIncrement(t, newStorage(t)) })
	t.Run("Clicks", func(t *testing.T) { testClicks(t, newStorage(t)) })
	t.Run("GroupClicks", func(t *testing.T) { testGroupClicks(t, newStorage(t)) })
	t.Run("ListExpiredLinks", func(t *testing.T) { testListExpiredLinks(t, newStorage(t)) })
}

func mustUser(t *testing.T, s repository.Storage, email string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, Name: "Test", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), user))
	require.NotZero(t, user.ID)
	return user
}

func newLink(userID int64, code string, createdAt time.Time) *domain.Link {
	return &domain.Link{
		ID:          uuid.New(),
		UserID:      userID,
		OriginalURL: "https://example.com/" + code,
		ShortCode:   code,
		ShortURL:    "http://sho.rt/" + code,
		IsActive:    true,
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(30 * 24 * time.Hour),
	}
}

func mustLink(t *testing.T, s repository.Storage, userID int64, code string, createdAt time.Time) *domain.Link {
	t.Helper()
	link := newLink(userID, code, createdAt)
	require.NoError(t, s.CreateLink(context.Background(), link, 100))
	return link
}

func click(link *domain.Link, at time.Time, referrer string, device useragent.DeviceType) *domain.Click {
	return &domain.Click{
		LinkID:     link.ID,
		ShortCode:  link.ShortCode,
		ClickedAt:  at,
		IPAddress:  "203.0.113.7",
		UserAgent:  "test-agent",
		Referrer:   referrer,
		DeviceType: device,
	}
}

func testUsers(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	user := mustUser(t, s, "alice@example.com")

	err := s.CreateUser(ctx, &domain.User{Email: "alice@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, repository.ErrUserExists)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, 0, got.URLsCreated)

	got, err = s.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.GetUserByID(ctx, user.ID+1000)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	require.NoError(t, s.UpdateLastLogin(ctx, user.ID, base))
	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, base.Equal(*got.LastLoginAt))

	assert.ErrorIs(t, s.UpdateLastLogin(ctx, user.ID+1000, base), repository.ErrUserNotFound)
}

func testCreateLinkQuota(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	user := mustUser(t, s, "quota@example.com")

	require.NoError(t, s.CreateLink(ctx, newLink(user.ID, "aaaaaa", base), 2))
	require.NoError(t, s.CreateLink(ctx, newLink(user.ID, "bbbbbb", base), 2))

	err := s.CreateLink(ctx, newLink(user.ID, "cccccc", base), 2)
	assert.ErrorIs(t, err, repository.ErrQuotaExceeded)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.URLsCreated)

	exists, err := s.CodeExists(ctx, "cccccc")
	require.NoError(t, err)
	assert.False(t, exists)

	err = s.CreateLink(ctx, newLink(user.ID+1000, "dddddd", base), 2)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func testCreateLinkDuplicateCode(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")

	mustLink(t, s, alice.ID, "Dup123", base)

	err := s.CreateLink(ctx, newLink(bob.ID, "Dup123", base), 100)
	assert.ErrorIs(t, err, repository.ErrCodeExists)

	got, err := s.GetUserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.URLsCreated, "failed insert must not consume quota")
}

func testLookups(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")
	link := mustLink(t, s, alice.ID, "Look01", base)

	got, err := s.GetActiveLinkByCode(ctx, "Look01")
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)
	assert.Equal(t, link.OriginalURL, got.OriginalURL)
	assert.True(t, got.IsActive)

	_, err = s.GetActiveLinkByCode(ctx, "nope00")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	got, err = s.GetUserLink(ctx, link.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Look01", got.ShortCode)

	_, err = s.GetUserLink(ctx, link.ID, bob.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound, "foreign owner sees not found")

	_, err = s.GetUserLinkByCode(ctx, "Look01", bob.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	got, err = s.GetUserLinkByCode(ctx, "Look01", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)

	require.NoError(t, s.DeactivateLink(ctx, got))
	assert.False(t, got.IsActive)

	_, err = s.GetActiveLinkByCode(ctx, "Look01")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	exists, err := s.CodeExists(ctx, "Look01")
	require.NoError(t, err)
	assert.True(t, exists, "inactive records still reserve their code")

	got, err = s.GetUserLink(ctx, link.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func testListUserLinks(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")

	for i := 0; i < 5; i++ {
		mustLink(t, s, alice.ID, fmt.Sprintf("List0%d", i), base.Add(time.Duration(i)*time.Minute))
	}
	mustLink(t, s, bob.ID, "Bobs00", base)

	n, err := s.CountUserLinks(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	all, err := s.ListUserLinks(ctx, alice.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "List04", all[0].ShortCode, "newest first")
	assert.Equal(t, "List00", all[4].ShortCode)

	page, err := s.ListUserLinks(ctx, alice.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "List02", page[0].ShortCode)
	assert.Equal(t, "List01", page[1].ShortCode)

	page, err = s.ListUserLinks(ctx, alice.ID, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)

	none, err := s.ListUserLinks(ctx, bob.ID+1000, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testDeleteLinkCascades(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")
	doomed := mustLink(t, s, alice.ID, "Gone01", base)
	kept := mustLink(t, s, alice.ID, "Kept01", base)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendClick(ctx, click(doomed, base.Add(time.Duration(i)*time.Second), "", useragent.DeviceDesktop)))
	}
	require.NoError(t, s.AppendClick(ctx, click(kept, base, "", useragent.DeviceDesktop)))

	_, err := s.DeleteLink(ctx, doomed.ID, bob.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	deleted, err := s.DeleteLink(ctx, doomed.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gone01", deleted.ShortCode)

	n, err := s.CountClicks(ctx, repository.ClickFilter{LinkID: doomed.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountClicks(ctx, repository.ClickFilter{LinkID: kept.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	user, err := s.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, user.URLsCreated)

	exists, err := s.CodeExists(ctx, "Gone01")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.DeleteLink(ctx, doomed.ID, alice.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func testConcurrentIncrement(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	user := mustUser(t, s, "hot@example.com")
	link := mustLink(t, s, user.ID, "Hot001", base)

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.IncrementClicks(ctx, link.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetActiveLinkByCode(ctx, "Hot001")
	require.NoError(t, err)
	assert.EqualValues(t, workers, got.Clicks)

	assert.ErrorIs(t, s.IncrementClicks(ctx, uuid.New()), repository.ErrLinkNotFound)
}

func testClicks(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	user := mustUser(t, s, "clicks@example.com")
	a := mustLink(t, s, user.ID, "ClickA", base)
	b := mustLink(t, s, user.ID, "ClickB", base)

	first := click(a, base, "", useragent.DeviceDesktop)
	second := click(a, base, "https://news.ycombinator.com", useragent.DeviceMobile)
	require.NoError(t, s.AppendClick(ctx, first))
	require.NoError(t, s.AppendClick(ctx, second))
	require.NoError(t, s.AppendClick(ctx, click(a, base.Add(-48*time.Hour), "", useragent.DeviceBot)))
	require.NoError(t, s.AppendClick(ctx, click(b, base.Add(time.Hour), "", useragent.DeviceTablet)))
	assert.NotZero(t, first.ID)

	count := func(f repository.ClickFilter) int64 {
		t.Helper()
		n, err := s.CountClicks(ctx, f)
		require.NoError(t, err)
		return n
	}

	assert.EqualValues(t, 3, count(repository.ClickFilter{LinkID: a.ID}))
	assert.EqualValues(t, 2, count(repository.ClickFilter{LinkID: a.ID, Since: base.Add(-24 * time.Hour)}))
	assert.EqualValues(t, 2, count(repository.ClickFilter{LinkID: a.ID, Since: base}), "lower bound is inclusive")
	assert.EqualValues(t, 4, count(repository.ClickFilter{ShortCodes: []string{"ClickA", "ClickB"}}))
	assert.EqualValues(t, 3, count(repository.ClickFilter{ShortCodes: []string{"ClickA", "ClickB"}, Since: base.Add(-time.Hour)}))
	assert.EqualValues(t, 0, count(repository.ClickFilter{ShortCodes: []string{}}), "empty code set matches nothing")

	listed, err := s.ListClicks(ctx, "ClickA", 0, 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, second.ID, listed[0].ID, "equal timestamps: later insertion first")
	assert.Equal(t, first.ID, listed[1].ID)
	assert.Equal(t, useragent.DeviceBot, listed[2].DeviceType)
	assert.Equal(t, "", listed[1].Referrer, "empty referrer is stored empty")
	assert.Equal(t, "Unknown", listed[1].Country)

	page, err := s.ListClicks(ctx, "ClickA", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)

	page, err = s.ListClicks(ctx, "ClickA", 3, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func testGroupClicks(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	user := mustUser(t, s, "groups@example.com")
	link := mustLink(t, s, user.ID, "Group1", base)
	other := mustLink(t, s, user.ID, "Group2", base)

	referrers := map[string]int{
		"https://a.example": 3,
		"https://b.example": 3,
		"https://c.example": 5,
		"https://d.example": 1,
		"https://e.example": 2,
		"https://f.example": 1,
		"":                  10,
	}
	for ref, n := range referrers {
		for i := 0; i < n; i++ {
			require.NoError(t, s.AppendClick(ctx, click(link, base, ref, useragent.DeviceDesktop)))
		}
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, s.AppendClick(ctx, click(link, base, "", useragent.DeviceMobile)))
	}
	require.NoError(t, s.AppendClick(ctx, click(other, base, "https://z.example", useragent.DeviceBot)))

	top, err := s.GroupClicks(ctx, link.ID, repository.GroupByReferrer, 5)
	require.NoError(t, err)
	assert.Equal(t, []repository.GroupCount{
		{Key: "https://c.example", Count: 5},
		{Key: "https://a.example", Count: 3},
		{Key: "https://b.example", Count: 3},
		{Key: "https://e.example", Count: 2},
		{Key: "https://d.example", Count: 1},
	}, top)

	devices, err := s.GroupClicks(ctx, link.ID, repository.GroupByDeviceType, 0)
	require.NoError(t, err)
	assert.Equal(t, []repository.GroupCount{
		{Key: "Desktop", Count: 25},
		{Key: "Mobile", Count: 4},
	}, devices)

	empty, err := s.GroupClicks(ctx, uuid.New(), repository.GroupByDeviceType, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.GroupClicks(ctx, link.ID, "country", 0)
	assert.ErrorIs(t, err, repository.ErrUnknownDimension)
}

func testListExpiredLinks(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	user := mustUser(t, s, "reaper@example.com")

	old := newLink(user.ID, "Old001", base.Add(-60*24*time.Hour))
	older := newLink(user.ID, "Old000", base.Add(-90*24*time.Hour))
	fresh := newLink(user.ID, "Fresh1", base)
	for _, l := range []*domain.Link{old, older, fresh} {
		require.NoError(t, s.CreateLink(ctx, l, 100))
	}

	expired, err := s.ListExpiredLinks(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "Old000", expired[0].ShortCode)
	assert.Equal(t, "Old001", expired[1].ShortCode)

	limited, err := s.ListExpiredLinks(ctx, base, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "Old000", limited[0].ShortCode)
}
