package memory

import (
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/repository"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStorage keeps everything in process memory. Returned records are copies.
type MemStorage struct {
	mu          sync.RWMutex
	users       map[int64]*domain.User
	usersByMail map[string]int64
	links       map[uuid.UUID]*domain.Link
	codes       map[string]uuid.UUID
	clicks      []*domain.Click
	userCounter int64
	clickSeq    int64
	now         func() time.Time
}

func New() *MemStorage {
	return &MemStorage{
		users:       make(map[int64]*domain.User),
		usersByMail: make(map[string]int64),
		links:       make(map[uuid.UUID]*domain.Link),
		codes:       make(map[string]uuid.UUID),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemStorage) Ping(_ context.Context) error {
	return nil
}

// --- User Methods ---

func (s *MemStorage) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.usersByMail[email]; exists {
		return repository.ErrUserExists
	}

	s.userCounter++
	now := s.now()
	user.ID = s.userCounter
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	s.users[user.ID] = &stored
	s.usersByMail[email] = user.ID
	return nil
}

func (s *MemStorage) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *MemStorage) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByMail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemStorage) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.LastLoginAt = &at
	user.UpdatedAt = at
	return nil
}

// --- Link Methods ---

func (s *MemStorage) CreateLink(_ context.Context, link *domain.Link, quota int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[link.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if user.URLsCreated >= quota {
		return repository.ErrQuotaExceeded
	}
	if _, exists := s.codes[link.ShortCode]; exists {
		return repository.ErrCodeExists
	}

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.now()
	}

	stored := *link
	s.links[link.ID] = &stored
	s.codes[link.ShortCode] = link.ID
	user.URLsCreated++
	return nil
}

func (s *MemStorage) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codes[code]
	return ok, nil
}

func (s *MemStorage) GetActiveLinkByCode(_ context.Context, code string) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	link := s.links[id]
	if !link.IsActive {
		return nil, repository.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *MemStorage) GetUserLink(_ context.Context, id uuid.UUID, userID int64) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[id]
	if !ok || link.UserID != userID {
		return nil, repository.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *MemStorage) GetUserLinkByCode(_ context.Context, code string, userID int64) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	link := s.links[id]
	if link.UserID != userID {
		return nil, repository.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *MemStorage) ListUserLinks(_ context.Context, userID int64, offset, limit int) ([]*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var userLinks []*domain.Link
	for _, link := range s.links {
		if link.UserID == userID {
			cp := *link
			userLinks = append(userLinks, &cp)
		}
	}
	sort.Slice(userLinks, func(i, j int) bool {
		if userLinks[i].CreatedAt.Equal(userLinks[j].CreatedAt) {
			return userLinks[i].ShortCode < userLinks[j].ShortCode
		}
		return userLinks[i].CreatedAt.After(userLinks[j].CreatedAt)
	})

	return window(userLinks, offset, limit), nil
}

func (s *MemStorage) CountUserLinks(_ context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, link := range s.links {
		if link.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemStorage) DeleteLink(_ context.Context, id uuid.UUID, userID int64) (*domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok || link.UserID != userID {
		return nil, repository.ErrLinkNotFound
	}

	delete(s.links, id)
	delete(s.codes, link.ShortCode)

	kept := s.clicks[:0]
	for _, c := range s.clicks {
		if c.LinkID != id {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(s.clicks); i++ {
		s.clicks[i] = nil
	}
	s.clicks = kept

	if user, ok := s.users[userID]; ok && user.URLsCreated > 0 {
		user.URLsCreated--
	}

	return link, nil
}

func (s *MemStorage) DeactivateLink(_ context.Context, link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.links[link.ID]
	if !ok {
		return repository.ErrLinkNotFound
	}
	stored.IsActive = false
	link.IsActive = false
	return nil
}

func (s *MemStorage) IncrementClicks(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return repository.ErrLinkNotFound
	}
	link.Clicks++
	return nil
}

func (s *MemStorage) ListExpiredLinks(_ context.Context, before time.Time, limit int) ([]*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*domain.Link
	for _, link := range s.links {
		if link.ExpiresAt.Before(before) {
			cp := *link
			expired = append(expired, &cp)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})

	return window(expired, 0, limit), nil
}

// --- Click Methods ---

func (s *MemStorage) AppendClick(_ context.Context, click *domain.Click) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clickSeq++
	click.ID = s.clickSeq
	if click.Country == "" {
		click.Country = "Unknown"
	}
	stored := *click
	s.clicks = append(s.clicks, &stored)
	return nil
}

func (s *MemStorage) CountClicks(_ context.Context, filter repository.ClickFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.ShortCodes != nil && len(filter.ShortCodes) == 0 {
		return 0, nil
	}
	codes := make(map[string]struct{}, len(filter.ShortCodes))
	for _, c := range filter.ShortCodes {
		codes[c] = struct{}{}
	}

	var n int64
	for _, c := range s.clicks {
		if filter.LinkID != uuid.Nil && c.LinkID != filter.LinkID {
			continue
		}
		if len(codes) > 0 {
			if _, ok := codes[c.ShortCode]; !ok {
				continue
			}
		}
		if !filter.Since.IsZero() && c.ClickedAt.Before(filter.Since) {
			continue
		}
		n++
	}
	return n, nil
}

func (s *MemStorage) ListClicks(_ context.Context, code string, offset, limit int) ([]*domain.Click, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Click
	for _, c := range s.clicks {
		if c.ShortCode == code {
			cp := *c
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ClickedAt.Equal(matched[j].ClickedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].ClickedAt.After(matched[j].ClickedAt)
	})

	return window(matched, offset, limit), nil
}

func (s *MemStorage) GroupClicks(_ context.Context, linkID uuid.UUID, dimension string, limit int) ([]repository.GroupCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, c := range s.clicks {
		if c.LinkID != linkID {
			continue
		}
		switch dimension {
		case repository.GroupByReferrer:
			if c.Referrer == "" {
				continue
			}
			counts[c.Referrer]++
		case repository.GroupByDeviceType:
			counts[string(c.DeviceType)]++
		default:
			return nil, repository.ErrUnknownDimension
		}
	}

	groups := make([]repository.GroupCount, 0, len(counts))
	for k, n := range counts {
		groups = append(groups, repository.GroupCount{Key: k, Count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count == groups[j].Count {
			return groups[i].Key < groups[j].Key
		}
		return groups[i].Count > groups[j].Count
	})

	return window(groups, 0, limit), nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
