package service

import (
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/geo"
	"LinkSnap-Backend/internal/repository"
	"LinkSnap-Backend/pkg/useragent"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Visit is what the redirect endpoint captures about a request.
type Visit struct {
	IPAddress string
	UserAgent string
	Referrer  string
}

// ClickSubmitter accepts click events whose synchronous append failed.
type ClickSubmitter interface {
	SubmitClick(click *domain.Click) error
}

type RedirectService struct {
	storage  repository.Storage
	parser   *useragent.Parser
	geo      geo.Locator
	fallback ClickSubmitter
	log      *zap.Logger
	now      func() time.Time
}

// NewRedirectService wires the redirect pipeline. parser, locator and fallback may be nil.
func NewRedirectService(storage repository.Storage, parser *useragent.Parser, locator geo.Locator, fallback ClickSubmitter, log *zap.Logger) *RedirectService {
	if locator == nil {
		locator = geo.Static{}
	}
	return &RedirectService{
		storage:  storage,
		parser:   parser,
		geo:      locator,
		fallback: fallback,
		log:      log.With(zap.String("component", "redirect")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolve counts a visit to code and returns the destination URL.
// Unknown and inactive codes yield ErrLinkNotFound. An active link found past
// its expiry is deactivated and yields ErrLinkExpired.
func (s *RedirectService) Resolve(ctx context.Context, code string, visit Visit) (string, error) {
	link, err := s.storage.GetActiveLinkByCode(ctx, code)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return "", ErrLinkNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up link: %w", err)
	}

	now := s.now()
	if link.IsExpired(now) {
		if err := s.storage.DeactivateLink(ctx, link); err != nil && !errors.Is(err, repository.ErrLinkNotFound) {
			return "", fmt.Errorf("failed to deactivate expired link: %w", err)
		}
		s.log.Info("link expired on access", zap.String("short_code", code))
		return "", ErrLinkExpired
	}

	if err := s.storage.IncrementClicks(ctx, link.ID); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", ErrLinkNotFound
		}
		return "", fmt.Errorf("failed to count click: %w", err)
	}

	click := s.newClick(ctx, link, visit, now)
	if err := s.storage.AppendClick(ctx, click); err != nil {
		s.log.Error("failed to record click event", zap.String("short_code", code), zap.Error(err))
		s.retryLater(click)
	}

	return link.OriginalURL, nil
}

func (s *RedirectService) newClick(ctx context.Context, link *domain.Link, visit Visit, now time.Time) *domain.Click {
	info := s.parser.Parse(visit.UserAgent)
	return &domain.Click{
		LinkID:     link.ID,
		ShortCode:  link.ShortCode,
		ClickedAt:  now,
		IPAddress:  visit.IPAddress,
		UserAgent:  visit.UserAgent,
		Referrer:   visit.Referrer,
		Country:    s.geo.Country(ctx, visit.IPAddress),
		DeviceType: info.DeviceType,
		Browser:    info.Browser,
		OS:         info.OS,
	}
}

func (s *RedirectService) retryLater(click *domain.Click) {
	if s.fallback == nil {
		return
	}
	if err := s.fallback.SubmitClick(click); err != nil {
		s.log.Error("click event dropped", zap.String("short_code", click.ShortCode), zap.Error(err))
	}
}
