package domain

import (
	"time"

	"LinkSnap-Backend/pkg/useragent"

	"github.com/google/uuid"
)

// Click представляет клик по сокращенной ссылке
type Click struct {
	ID         int64                `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LinkID     uuid.UUID            `gorm:"column:link_id;type:uuid;not null;index" json:"linkId"`
	ShortCode  string               `gorm:"column:short_code;size:16;not null;index" json:"shortCode"`
	ClickedAt  time.Time            `gorm:"column:clicked_at;not null;index" json:"timestamp"`
	IPAddress  string               `gorm:"column:ip_address;size:64" json:"ipAddress"`
	UserAgent  string               `gorm:"column:user_agent;type:text" json:"userAgent"`
	Referrer   string               `gorm:"column:referrer;type:text" json:"referrer"`
	Country    string               `gorm:"column:country;size:64;default:Unknown" json:"country"`
	DeviceType useragent.DeviceType `gorm:"column:device_type;size:16;not null" json:"deviceType"`
	Browser    string               `gorm:"column:browser;size:64" json:"browser,omitempty"`
	OS         string               `gorm:"column:os;size:64" json:"os,omitempty"`
}

// TableName возвращает название таблицы для GORM
func (Click) TableName() string {
	return "clicks"
}

// DisplayReferrer returns the referrer as shown in listings; an empty one is a direct visit.
func (c *Click) DisplayReferrer() string {
	if c.Referrer == "" {
		return "Direct"
	}
	return c.Referrer
}
