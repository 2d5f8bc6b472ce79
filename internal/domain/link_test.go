package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLink_IsExpired(t *testing.T) {
	expiry := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	link := &Link{ExpiresAt: expiry}

	assert.False(t, link.IsExpired(expiry.Add(-time.Second)))
	assert.False(t, link.IsExpired(expiry), "link is still live at its expiry instant")
	assert.True(t, link.IsExpired(expiry.Add(time.Hour)))
}

func TestLink_BeforeCreateAssignsID(t *testing.T) {
	link := &Link{}
	assert.NoError(t, link.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, link.ID)

	fixed := uuid.New()
	link = &Link{ID: fixed}
	assert.NoError(t, link.BeforeCreate(nil))
	assert.Equal(t, fixed, link.ID)
}

func TestClick_DisplayReferrer(t *testing.T) {
	assert.Equal(t, "Direct", (&Click{}).DisplayReferrer())
	assert.Equal(t, "https://google.com", (&Click{Referrer: "https://google.com"}).DisplayReferrer())
}
