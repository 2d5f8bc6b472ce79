package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Link представляет сокращенную ссылку
type Link struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID      int64     `gorm:"column:user_id;not null;index" json:"userId"`
	OriginalURL string    `gorm:"column:original_url;type:text;not null" json:"originalUrl"`
	ShortCode   string    `gorm:"column:short_code;size:16;not null;uniqueIndex" json:"shortCode"`
	ShortURL    string    `gorm:"column:short_url;type:text;not null" json:"shortUrl"`
	Clicks      int64     `gorm:"column:clicks;not null;default:0" json:"clicks"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index" json:"createdAt"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null;index" json:"expiresAt"`
}

// TableName возвращает название таблицы для GORM
func (Link) TableName() string {
	return "links"
}

// BeforeCreate assigns a UUID when the caller did not.
func (l *Link) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether now is past the link's expiry instant.
func (l *Link) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
