package service

import (
	"LinkSnap-Backend/internal/config"
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository"
	"LinkSnap-Backend/pkg/random"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultLinksPerPage = 10

// CodeGenerator produces candidate short codes.
type CodeGenerator interface {
	Generate(length int) (string, error)
}

type URLShortenerService struct {
	storage repository.Storage
	config  *config.URLShortener
	codes   CodeGenerator
	log     *zap.Logger
	now     func() time.Time
}

func NewURLShortener(storage repository.Storage, cfg *config.URLShortener, log *zap.Logger) *URLShortenerService {
	return &URLShortenerService{
		storage: storage,
		config:  cfg,
		codes:   random.NewGenerator(nil),
		log:     log.With(zap.String("component", "url_shortener")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Quota is the maximum number of links a user may hold.
func (s *URLShortenerService) Quota() int {
	return s.config.MaxURLsPerUser
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrMissingURL
	}

	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	host := u.Hostname()
	if host == "" {
		return ErrInvalidURL
	}
	// Single-label hosts such as "http://intranet" are rejected.
	if !strings.Contains(host, ".") && !strings.Contains(host, ":") && host != "localhost" {
		return ErrInvalidURL
	}
	return nil
}

// AllocateCode draws codes until one is not used by any stored link.
// The storage unique constraint stays authoritative: a code can still be taken
// between this check and the insert.
func (s *URLShortenerService) AllocateCode(ctx context.Context) (string, error) {
	if err := s.config.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCodeLength, err)
	}

	attempts := s.config.MaxAllocationAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		code, err := s.codes.Generate(s.config.CodeLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}

		exists, err := s.storage.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check short code existence: %w", err)
		}
		if !exists {
			return code, nil
		}

		s.log.Debug("short code taken, retrying", zap.String("short_code", code), zap.Int("attempt", i+1))
	}

	s.log.Warn("short code allocation exhausted", zap.Int("attempts", attempts))
	return "", ErrAllocationExhausted
}

// Shorten creates a link for the user. requestBase is scheme://host of the
// incoming request and is used when no base URL is configured.
func (s *URLShortenerService) Shorten(ctx context.Context, userID int64, originalURL, requestBase string) (*domain.Link, error) {
	originalURL = strings.TrimSpace(originalURL)
	if err := ValidateURL(originalURL); err != nil {
		return nil, err
	}

	user, err := s.storage.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.URLsCreated >= s.config.MaxURLsPerUser {
		return nil, ErrQuotaExceeded
	}

	code, err := s.AllocateCode(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	link := &domain.Link{
		ID:          uuid.New(),
		UserID:      userID,
		OriginalURL: originalURL,
		ShortCode:   code,
		ShortURL:    s.shortURL(requestBase, code),
		IsActive:    true,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.config.LinkTTL),
	}

	err = s.storage.CreateLink(ctx, link, s.config.MaxURLsPerUser)
	switch {
	case errors.Is(err, repository.ErrQuotaExceeded):
		return nil, ErrQuotaExceeded
	case errors.Is(err, repository.ErrCodeExists):
		s.log.Warn("short code collided at insert", zap.String("short_code", code))
		return nil, ErrCodeCollision
	case errors.Is(err, repository.ErrUserNotFound):
		return nil, ErrUnauthorized
	case err != nil:
		return nil, fmt.Errorf("failed to save link: %w", err)
	}

	s.log.Info("link created",
		zap.String("short_code", link.ShortCode),
		zap.Int64("user_id", userID),
	)
	return link, nil
}

func (s *URLShortenerService) shortURL(requestBase, code string) string {
	base := s.config.BaseURL
	if base == "" {
		base = requestBase
	}
	return strings.TrimRight(base, "/") + "/" + code
}

// GetLink returns a link owned by userID. Links of other users are reported as not found.
func (s *URLShortenerService) GetLink(ctx context.Context, userID int64, id uuid.UUID) (*domain.Link, error) {
	link, err := s.storage.GetUserLink(ctx, id, userID)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return s.ExpireIfPast(ctx, link)
}

// ListLinks returns one page of the user's links, newest first.
func (s *URLShortenerService) ListLinks(ctx context.Context, userID int64, page, limit int) ([]*domain.Link, Pagination, error) {
	total, err := s.storage.CountUserLinks(ctx, userID)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count links: %w", err)
	}

	p := NewPagination(page, limit, defaultLinksPerPage, total)
	links, err := s.storage.ListUserLinks(ctx, userID, p.Offset(), p.Limit)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list links: %w", err)
	}
	return links, p, nil
}

// DeleteLink removes the user's link, its click events and frees one quota slot.
func (s *URLShortenerService) DeleteLink(ctx context.Context, userID int64, id uuid.UUID) error {
	link, err := s.storage.DeleteLink(ctx, id, userID)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return ErrLinkNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	s.log.Info("link deleted", zap.String("short_code", link.ShortCode), zap.Int64("user_id", userID))
	return nil
}

// ExpireIfPast deactivates an active link whose expiry has passed.
func (s *URLShortenerService) ExpireIfPast(ctx context.Context, link *domain.Link) (*domain.Link, error) {
	if !link.IsActive || !link.IsExpired(s.now()) {
		return link, nil
	}
	if err := s.storage.DeactivateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to deactivate link: %w", err)
	}
	s.log.Info("link expired", zap.String("short_code", link.ShortCode))
	return link, nil
}
