package models

import (
	"time"
)

// City is a registered location with an optional notification email and the
// last weather snapshot fetched for it. The three Last* fields are written
// together by a single update.
type City struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:128;not null;uniqueIndex" json:"name"`
	Email         *string    `gorm:"size:254" json:"email"`
	LastTemp      *float64   `json:"last_temp"`
	LastDesc      *string    `gorm:"size:255" json:"last_desc"`
	LastFetchedAt *time.Time `json:"last_fetched_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EmailAddress returns the notification address, or "" when none is set
func (c City) EmailAddress() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// Fetched reports whether the city has a stored weather snapshot
func (c City) Fetched() bool {
	return c.LastFetchedAt != nil
}
