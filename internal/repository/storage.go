package repository

import (
	"LinkSnap-Backend/internal/domain"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrLinkNotFound  = errors.New("link not found")
	ErrCodeExists    = errors.New("short code already exists")
	ErrQuotaExceeded = errors.New("url quota exceeded")
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")

	ErrUnknownDimension = errors.New("unknown group dimension")
)

// Group dimensions accepted by ClickStore.GroupClicks.
const (
	GroupByReferrer   = "referrer"
	GroupByDeviceType = "device_type"
)

// GroupCount is one row of a grouped click aggregation.
type GroupCount struct {
	Key   string `json:"_id"`
	Count int64  `json:"count"`
}

// ClickFilter selects click events for counting. Zero fields are ignored,
// except that a non-nil empty ShortCodes matches nothing.
type ClickFilter struct {
	LinkID     uuid.UUID
	ShortCodes []string
	Since      time.Time
}

type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

type LinkStore interface {
	// CreateLink inserts the link and bumps the owner's urls_created counter in
	// one step. It fails with ErrQuotaExceeded when the owner already holds
	// quota links and with ErrCodeExists when the short code is taken.
	CreateLink(ctx context.Context, link *domain.Link, quota int) error
	// CodeExists checks every stored record, active or not.
	CodeExists(ctx context.Context, code string) (bool, error)
	GetActiveLinkByCode(ctx context.Context, code string) (*domain.Link, error)
	GetUserLink(ctx context.Context, id uuid.UUID, userID int64) (*domain.Link, error)
	GetUserLinkByCode(ctx context.Context, code string, userID int64) (*domain.Link, error)
	// ListUserLinks returns links newest first. limit <= 0 returns all of them.
	ListUserLinks(ctx context.Context, userID int64, offset, limit int) ([]*domain.Link, error)
	CountUserLinks(ctx context.Context, userID int64) (int64, error)
	// DeleteLink removes the link with its click events and gives the quota slot back.
	DeleteLink(ctx context.Context, id uuid.UUID, userID int64) (*domain.Link, error)
	DeactivateLink(ctx context.Context, link *domain.Link) error
	IncrementClicks(ctx context.Context, id uuid.UUID) error
	ListExpiredLinks(ctx context.Context, before time.Time, limit int) ([]*domain.Link, error)
}

type ClickStore interface {
	AppendClick(ctx context.Context, click *domain.Click) error
	CountClicks(ctx context.Context, filter ClickFilter) (int64, error)
	// ListClicks returns events for code, newest first, ties by insertion order.
	ListClicks(ctx context.Context, code string, offset, limit int) ([]*domain.Click, error)
	// GroupClicks counts events of a link per dimension value, highest count
	// first. limit <= 0 returns every group.
	GroupClicks(ctx context.Context, linkID uuid.UUID, dimension string, limit int) ([]GroupCount, error)
}

type Storage interface {
	UserStore
	LinkStore
	ClickStore

	Ping(ctx context.Context) error
}
