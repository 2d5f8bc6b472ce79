package service

import (
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository"
	"LinkSnap-Backend/internal/repository/memory"
	"LinkSnap-Backend/pkg/useragent"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAnalytics(storage repository.Storage, now time.Time) *AnalyticsService {
	s := NewAnalyticsService(storage, 100, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func appendClick(t *testing.T, storage repository.Storage, link *domain.Link, at time.Time, referrer string, device useragent.DeviceType) {
	t.Helper()
	require.NoError(t, storage.AppendClick(context.Background(), &domain.Click{
		LinkID:     link.ID,
		ShortCode:  link.ShortCode,
		ClickedAt:  at,
		Referrer:   referrer,
		DeviceType: device,
	}))
}

func TestLinkStats(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	link := seedLink(t, storage)
	now := testNow.Add(48 * time.Hour)

	appendClick(t, storage, link, now.Add(-time.Hour), "https://google.com", useragent.DeviceDesktop)
	appendClick(t, storage, link, now.Add(-2*time.Hour), "https://google.com", useragent.DeviceMobile)
	appendClick(t, storage, link, now.Add(-3*time.Hour), "", useragent.DeviceMobile)
	appendClick(t, storage, link, now.Add(-30*time.Hour), "https://bing.com", useragent.DeviceMobile)
	for i := 0; i < 6; i++ {
		appendClick(t, storage, link, now.Add(-40*time.Hour), fmt.Sprintf("https://site%d.example", i), useragent.DeviceBot)
	}

	stats, err := newTestAnalytics(storage, now).LinkStats(ctx, link.UserID, link.ID)
	require.NoError(t, err)

	assert.Equal(t, link.ShortCode, stats.Link.ShortCode)
	assert.EqualValues(t, 3, stats.ClicksLast24Hours)

	require.Len(t, stats.TopReferrers, 5)
	assert.Equal(t, repository.GroupCount{Key: "https://google.com", Count: 2}, stats.TopReferrers[0])
	for _, r := range stats.TopReferrers {
		assert.NotEmpty(t, r.Key, "direct visits are excluded from referrers")
	}

	assert.Equal(t, []repository.GroupCount{
		{Key: "Bot", Count: 6},
		{Key: "Mobile", Count: 3},
		{Key: "Desktop", Count: 1},
	}, stats.DeviceStats)
}

func TestLinkStats_ForeignOwner(t *testing.T) {
	storage := memory.New()
	link := seedLink(t, storage)
	_, err := newTestAnalytics(storage, testNow).LinkStats(context.Background(), link.UserID+1, link.ID)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	_, err = newTestAnalytics(storage, testNow).LinkStats(context.Background(), link.UserID, uuid.New())
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestCodeAnalytics_Paginates(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	link := seedLink(t, storage)
	for i := 0; i < 25; i++ {
		appendClick(t, storage, link, testNow.Add(time.Duration(i)*time.Minute), "", useragent.DeviceDesktop)
	}
	svc := newTestAnalytics(storage, testNow)

	clicks, p, err := svc.CodeAnalytics(ctx, link.UserID, link.ShortCode, 0, 0)
	require.NoError(t, err)
	assert.Len(t, clicks, 20, "default page size")
	assert.Equal(t, 2, p.TotalPages)
	assert.EqualValues(t, 25, p.Total)
	assert.Equal(t, testNow.Add(24*time.Minute), clicks[0].ClickedAt, "newest first")

	clicks, p, err = svc.CodeAnalytics(ctx, link.UserID, link.ShortCode, 3, 10)
	require.NoError(t, err)
	assert.Len(t, clicks, 5)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, testNow, clicks[4].ClickedAt)

	_, _, err = svc.CodeAnalytics(ctx, link.UserID+1, link.ShortCode, 1, 10)
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	user := createUser(t, storage, "dash@example.com")
	shortener := newTestShortener(storage, testShortenerConfig())

	var links []*domain.Link
	for i := 0; i < 7; i++ {
		link, err := shortener.Shorten(ctx, user.ID, fmt.Sprintf("https://example.com/%d", i), "http://localhost")
		require.NoError(t, err)
		links = append(links, link)
	}

	clicksPerLink := []int{3, 0, 9, 1, 9, 4, 2}
	now := testNow.Add(10 * 24 * time.Hour)
	for i, n := range clicksPerLink {
		for j := 0; j < n; j++ {
			require.NoError(t, storage.IncrementClicks(ctx, links[i].ID))
		}
	}
	appendClick(t, storage, links[0], now.Add(-time.Hour), "", useragent.DeviceDesktop)
	appendClick(t, storage, links[2], now.Add(-6*24*time.Hour), "", useragent.DeviceDesktop)
	appendClick(t, storage, links[2], now.Add(-8*24*time.Hour), "", useragent.DeviceDesktop)

	summary, err := newTestAnalytics(storage, now).Dashboard(ctx, user.ID)
	require.NoError(t, err)

	assert.Equal(t, 7, summary.TotalURLs)
	assert.EqualValues(t, 28, summary.TotalClicks, "sum of link counters")
	assert.EqualValues(t, 2, summary.RecentClicks)
	assert.Equal(t, 93, summary.URLsRemaining)

	require.Len(t, summary.TopURLs, 5)
	var got []int64
	for _, l := range summary.TopURLs {
		got = append(got, l.Clicks)
	}
	assert.Equal(t, []int64{9, 9, 4, 3, 2}, got)
}

func TestDashboard_NoLinks(t *testing.T) {
	storage := memory.New()
	user := createUser(t, storage, "empty@example.com")

	summary, err := newTestAnalytics(storage, testNow).Dashboard(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalURLs)
	assert.Zero(t, summary.TotalClicks)
	assert.Zero(t, summary.RecentClicks)
	assert.Equal(t, 100, summary.URLsRemaining)
	assert.Empty(t, summary.TopURLs)
}

func TestScenario_CreateRedirectStats(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	user := createUser(t, storage, "scenario@example.com")

	link, err := newTestShortener(storage, testShortenerConfig()).
		Shorten(ctx, user.ID, "https://example.com", "http://localhost")
	require.NoError(t, err)

	visitAt := testNow.Add(time.Minute)
	dest, err := newTestRedirect(storage, nil, visitAt).
		Resolve(ctx, link.ShortCode, Visit{UserAgent: iphoneUA})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", dest)

	stats, err := newTestAnalytics(storage, visitAt.Add(time.Minute)).LinkStats(ctx, user.ID, link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Link.Clicks)
	assert.EqualValues(t, 1, stats.ClicksLast24Hours)
	assert.Empty(t, stats.TopReferrers)
	assert.Equal(t, []repository.GroupCount{{Key: "Mobile", Count: 1}}, stats.DeviceStats)
}
