package service

import (
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	statsWindow          = 24 * time.Hour
	dashboardWindow      = 7 * 24 * time.Hour
	topReferrersLimit    = 5
	topURLsLimit         = 5
	defaultClicksPerPage = 20
)

// LinkStats is the per-link report shown to the owner.
type LinkStats struct {
	Link              *domain.Link
	ClicksLast24Hours int64
	TopReferrers      []repository.GroupCount
	DeviceStats       []repository.GroupCount
}

// DashboardSummary aggregates all links of one owner.
type DashboardSummary struct {
	TotalURLs     int
	TotalClicks   int64
	RecentClicks  int64
	URLsRemaining int
	TopURLs       []*domain.Link
}

type AnalyticsService struct {
	storage repository.Storage
	quota   int
	log     *zap.Logger
	now     func() time.Time
}

func NewAnalyticsService(storage repository.Storage, quota int, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		storage: storage,
		quota:   quota,
		log:     log.With(zap.String("component", "analytics")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LinkStats reports the last-24h click count, top referrers and device split of a link.
func (s *AnalyticsService) LinkStats(ctx context.Context, userID int64, id uuid.UUID) (*LinkStats, error) {
	link, err := s.storage.GetUserLink(ctx, id, userID)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	recent, err := s.storage.CountClicks(ctx, repository.ClickFilter{
		LinkID: link.ID,
		Since:  s.now().Add(-statsWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count recent clicks: %w", err)
	}

	referrers, err := s.storage.GroupClicks(ctx, link.ID, repository.GroupByReferrer, topReferrersLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate referrers: %w", err)
	}

	devices, err := s.storage.GroupClicks(ctx, link.ID, repository.GroupByDeviceType, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate devices: %w", err)
	}

	return &LinkStats{
		Link:              link,
		ClicksLast24Hours: recent,
		TopReferrers:      referrers,
		DeviceStats:       devices,
	}, nil
}

// CodeAnalytics returns one page of click events for a code the user owns, newest first.
func (s *AnalyticsService) CodeAnalytics(ctx context.Context, userID int64, code string, page, limit int) ([]*domain.Click, Pagination, error) {
	if _, err := s.storage.GetUserLinkByCode(ctx, code, userID); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, Pagination{}, ErrLinkNotFound
		}
		return nil, Pagination{}, fmt.Errorf("failed to get link: %w", err)
	}

	total, err := s.storage.CountClicks(ctx, repository.ClickFilter{ShortCodes: []string{code}})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count clicks: %w", err)
	}

	p := NewPagination(page, limit, defaultClicksPerPage, total)
	clicks, err := s.storage.ListClicks(ctx, code, p.Offset(), p.Limit)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list clicks: %w", err)
	}
	return clicks, p, nil
}

// Dashboard summarizes every link of the user. Total clicks come from the
// link counters; recent clicks from the event log of the last 7 days.
func (s *AnalyticsService) Dashboard(ctx context.Context, userID int64) (*DashboardSummary, error) {
	links, err := s.storage.ListUserLinks(ctx, userID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	summary := &DashboardSummary{TotalURLs: len(links)}
	codes := make([]string, 0, len(links))
	for _, l := range links {
		summary.TotalClicks += l.Clicks
		codes = append(codes, l.ShortCode)
	}

	summary.RecentClicks, err = s.storage.CountClicks(ctx, repository.ClickFilter{
		ShortCodes: codes,
		Since:      s.now().Add(-dashboardWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count recent clicks: %w", err)
	}

	summary.URLsRemaining = s.quota - summary.TotalURLs
	if summary.URLsRemaining < 0 {
		summary.URLsRemaining = 0
	}

	top := make([]*domain.Link, len(links))
	copy(top, links)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Clicks > top[j].Clicks
	})
	if len(top) > topURLsLimit {
		top = top[:topURLsLimit]
	}
	summary.TopURLs = top

	return summary, nil
}
