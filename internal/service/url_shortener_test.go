package service

import (
	"LinkSnap-Backend/internal/config"
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository"
	"LinkSnap-Backend/internal/repository/memory"
	"LinkSnap-Backend/pkg/random"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testShortenerConfig() *config.URLShortener {
	return &config.URLShortener{
		CodeLength:            6,
		MaxURLsPerUser:        100,
		LinkTTL:               30 * 24 * time.Hour,
		MaxAllocationAttempts: 10,
	}
}

func newTestShortener(storage repository.Storage, cfg *config.URLShortener) *URLShortenerService {
	s := NewURLShortener(storage, cfg, zap.NewNop())
	s.now = func() time.Time { return testNow }
	return s
}

func createUser(t *testing.T, storage repository.Storage, email string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, Name: "Test User", PasswordHash: "hash"}
	require.NoError(t, storage.CreateUser(context.Background(), user))
	return user
}

// sequenceGenerator hands out codes in order and repeats the last one.
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *sequenceGenerator) Generate(int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i], nil
}

// blindStorage reports every code as free so collisions surface at insert.
type blindStorage struct {
	repository.Storage
}

func (blindStorage) CodeExists(context.Context, string) (bool, error) {
	return false, nil
}

func TestShorten_RoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	user := createUser(t, storage, "alice@example.com")
	svc := newTestShortener(storage, testShortenerConfig())

	link, err := svc.Shorten(ctx, user.ID, "https://example.com/some/long/path?q=1", "http://localhost:8080")
	require.NoError(t, err)

	assert.Len(t, link.ShortCode, 6)
	assert.True(t, random.IsValid(link.ShortCode))
	assert.Equal(t, "http://localhost:8080/"+link.ShortCode, link.ShortURL)
	assert.Equal(t, testNow, link.CreatedAt)
	assert.Equal(t, testNow.Add(30*24*time.Hour), link.ExpiresAt)
	assert.True(t, link.IsActive)
	assert.Zero(t, link.Clicks)

	stored, err := storage.GetActiveLinkByCode(ctx, link.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/some/long/path?q=1", stored.OriginalURL)
	assert.Equal(t, user.ID, stored.UserID)

	got, err := storage.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.URLsCreated)
}

func TestShorten_ConfiguredBaseURL(t *testing.T) {
	storage := memory.New()
	user := createUser(t, storage, "alice@example.com")
	cfg := testShortenerConfig()
	cfg.BaseURL = "https://lnk.sn/"
	svc := newTestShortener(storage, cfg)

	link, err := svc.Shorten(context.Background(), user.ID, "https://example.com", "http://ignored")
	require.NoError(t, err)
	assert.Equal(t, "https://lnk.sn/"+link.ShortCode, link.ShortURL)
}

func TestShorten_InvalidInput(t *testing.T) {
	storage := memory.New()
	user := createUser(t, storage, "alice@example.com")
	svc := newTestShortener(storage, testShortenerConfig())

	tests := []struct {
		input string
		want  error
	}{
		{"", ErrMissingURL},
		{"   ", ErrMissingURL},
		{"example.com", ErrInvalidURL},
		{"ftp://example.com/file", ErrInvalidURL},
		{"javascript:alert(1)", ErrInvalidURL},
		{"http://", ErrInvalidURL},
		{"https://intranet/page", ErrInvalidURL},
		{"not a url", ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := svc.Shorten(context.Background(), user.ID, tt.input, "http://localhost")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got, err := storage.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, got.URLsCreated, "rejected input must not touch the quota")
}

func TestValidateURL_Accepts(t *testing.T) {
	for _, raw := range []string{
		"http://example.com",
		"https://sub.example.co.uk/path?x=1#frag",
		"http://127.0.0.1:8080/health",
		"http://[::1]:9000/",
		"http://localhost:3000",
	} {
		assert.NoError(t, ValidateURL(raw), raw)
	}
}

func TestShorten_QuotaEnforced(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	user := createUser(t, storage, "alice@example.com")
	cfg := testShortenerConfig()
	cfg.MaxURLsPerUser = 2
	svc := newTestShortener(storage, cfg)

	first, err := svc.Shorten(ctx, user.ID, "https://example.com/1", "http://localhost")
	require.NoError(t, err)
	_, err = svc.Shorten(ctx, user.ID, "https://example.com/2", "http://localhost")
	require.NoError(t, err)

	_, err = svc.Shorten(ctx, user.ID, "https://example.com/3", "http://localhost")
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	require.NoError(t, svc.DeleteLink(ctx, user.ID, first.ID))
	_, err = svc.Shorten(ctx, user.ID, "https://example.com/3", "http://localhost")
	assert.NoError(t, err, "deleting a link frees a slot")
}

func TestShorten_UnknownUser(t *testing.T) {
	svc := newTestShortener(memory.New(), testShortenerConfig())
	_, err := svc.Shorten(context.Background(), 42, "https://example.com", "http://localhost")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestShorten_ConcurrentCreatesGetDistinctCodes(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	user := createUser(t, storage, "alice@example.com")
	svc := newTestShortener(storage, testShortenerConfig())

	const n = 50
	var wg sync.WaitGroup
	codes := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			link, err := svc.Shorten(ctx, user.ID, "https://example.com/same", "http://localhost")
			if err != nil {
				errs <- err
				return
			}
			codes <- link.ShortCode
		}()
	}
	wg.Wait()
	close(codes)
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	seen := make(map[string]bool)
	for code := range codes {
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	assert.Len(t, seen, n)

	got, err := storage.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.URLsCreated)
}

func TestShorten_CollisionAtInsert(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	alice := createUser(t, storage, "alice@example.com")
	bob := createUser(t, storage, "bob@example.com")

	require.NoError(t, storage.CreateLink(ctx, &domain.Link{
		UserID: alice.ID, OriginalURL: "https://a.example", ShortCode: "Fixed1",
		IsActive: true, CreatedAt: testNow, ExpiresAt: testNow.Add(time.Hour),
	}, 100))

	svc := newTestShortener(blindStorage{storage}, testShortenerConfig())
	svc.codes = &sequenceGenerator{codes: []string{"Fixed1"}}

	_, err := svc.Shorten(ctx, bob.ID, "https://b.example", "http://localhost")
	assert.ErrorIs(t, err, ErrCodeCollision)

	got, err := storage.GetUserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, got.URLsCreated)
}

func TestAllocateCode_RetriesPastTakenCodes(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	user := createUser(t, storage, "alice@example.com")
	require.NoError(t, storage.CreateLink(ctx, &domain.Link{
		UserID: user.ID, OriginalURL: "https://a.example", ShortCode: "Taken1",
		IsActive: true, CreatedAt: testNow, ExpiresAt: testNow.Add(time.Hour),
	}, 100))

	svc := newTestShortener(storage, testShortenerConfig())
	gen := &sequenceGenerator{codes: []string{"Taken1", "Taken1", "Fresh1"}}
	svc.codes = gen

	code, err := svc.AllocateCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Fresh1", code)
	assert.Equal(t, 3, gen.calls)
}

func TestAllocateCode_Exhausted(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	user := createUser(t, storage, "alice@example.com")
	require.NoError(t, storage.CreateLink(ctx, &domain.Link{
		UserID: user.ID, OriginalURL: "https://a.example", ShortCode: "Taken1",
		IsActive: false, CreatedAt: testNow, ExpiresAt: testNow.Add(-time.Hour),
	}, 100))

	svc := newTestShortener(storage, testShortenerConfig())
	gen := &sequenceGenerator{codes: []string{"Taken1"}}
	svc.codes = gen

	_, err := svc.AllocateCode(ctx)
	assert.ErrorIs(t, err, ErrAllocationExhausted)
	assert.Equal(t, 10, gen.calls)
}

func TestAllocateCode_RejectsOutOfRangeLength(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	user := createUser(t, storage, "alice@example.com")

	for _, length := range []int{0, 3, 5, 9} {
		cfg := testShortenerConfig()
		cfg.CodeLength = length
		svc := newTestShortener(storage, cfg)

		_, err := svc.AllocateCode(ctx)
		assert.ErrorIs(t, err, ErrInvalidCodeLength, "length %d", length)

		_, err = svc.Shorten(ctx, user.ID, "https://example.com", "http://localhost")
		assert.ErrorIs(t, err, ErrInvalidCodeLength, "length %d", length)
	}

	got, err := storage.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, got.URLsCreated)

	for _, length := range []int{6, 7, 8} {
		cfg := testShortenerConfig()
		cfg.CodeLength = length
		code, err := newTestShortener(storage, cfg).AllocateCode(ctx)
		require.NoError(t, err)
		assert.Len(t, code, length)
	}
}

func TestGetLink_OwnershipAndLazyExpiry(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	alice := createUser(t, storage, "alice@example.com")
	bob := createUser(t, storage, "bob@example.com")
	svc := newTestShortener(storage, testShortenerConfig())

	link, err := svc.Shorten(ctx, alice.ID, "https://example.com", "http://localhost")
	require.NoError(t, err)

	_, err = svc.GetLink(ctx, bob.ID, link.ID)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	got, err := svc.GetLink(ctx, alice.ID, link.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	svc.now = func() time.Time { return testNow.Add(31 * 24 * time.Hour) }
	got, err = svc.GetLink(ctx, alice.ID, link.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = storage.GetActiveLinkByCode(ctx, link.ShortCode)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound, "deactivation is persisted")
}

func TestListLinks_Pagination(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	user := createUser(t, storage, "alice@example.com")
	svc := newTestShortener(storage, testShortenerConfig())

	for i := 0; i < 12; i++ {
		created := testNow.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return created }
		_, err := svc.Shorten(ctx, user.ID, "https://example.com/"+strings.Repeat("x", i+1), "http://localhost")
		require.NoError(t, err)
	}

	links, p, err := svc.ListLinks(ctx, user.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, links, 10)
	assert.Equal(t, Pagination{Page: 1, Limit: 10, Total: 12, TotalPages: 2}, p)
	assert.Equal(t, "https://example.com/"+strings.Repeat("x", 12), links[0].OriginalURL, "newest first")

	links, p, err = svc.ListLinks(ctx, user.ID, 2, 10)
	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.True(t, p.HasPrev())
	assert.False(t, p.HasNext())

	links, p, err = svc.ListLinks(ctx, user.ID+99, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.Zero(t, p.TotalPages)
}

func TestDeleteLink_CascadesAndReleasesQuota(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	alice := createUser(t, storage, "alice@example.com")
	bob := createUser(t, storage, "bob@example.com")
	svc := newTestShortener(storage, testShortenerConfig())

	link, err := svc.Shorten(ctx, alice.ID, "https://example.com", "http://localhost")
	require.NoError(t, err)
	require.NoError(t, storage.AppendClick(ctx, &domain.Click{LinkID: link.ID, ShortCode: link.ShortCode, ClickedAt: testNow}))

	assert.ErrorIs(t, svc.DeleteLink(ctx, bob.ID, link.ID), ErrLinkNotFound)
	require.NoError(t, svc.DeleteLink(ctx, alice.ID, link.ID))

	n, err := storage.CountClicks(ctx, repository.ClickFilter{ShortCodes: []string{link.ShortCode}})
	require.NoError(t, err)
	assert.Zero(t, n)

	user, err := storage.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, user.URLsCreated)

	assert.ErrorIs(t, svc.DeleteLink(ctx, alice.ID, uuid.New()), ErrLinkNotFound)
}
