package domain

import "time"

// User представляет пользователя сервиса.
type User struct {
	ID           int64      `gorm:"column:id;primaryKey" json:"id"`
	Email        string     `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	Name         string     `gorm:"column:name;size:100" json:"name"`
	PasswordHash string     `gorm:"column:password_hash;not null" json:"-"` // скрываем пароль в JSON
	URLsCreated  int        `gorm:"column:urls_created;not null;default:0" json:"urlsCreated"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName возвращает название таблицы для GORM
func (User) TableName() string {
	return "users"
}
