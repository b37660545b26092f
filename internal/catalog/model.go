package catalog

import (
	"errors"
	"time"
)

var (
	// ErrServiceNotFound is returned when a service does not exist or
	// belongs to another business.
	ErrServiceNotFound = errors.New("catalog: service not found")

	// ErrBusinessNotFound is returned when a business id is unknown.
	ErrBusinessNotFound = errors.New("catalog: business not found")
)

// Service is a bookable offering with a fixed duration.
type Service struct {
	ID              string    `json:"id"`
	BusinessID      string    `json:"business_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Business is the tenancy root. OwnerEmail and OwnerPhone receive
// booking notifications.
type Business struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OwnerEmail string `json:"owner_email"`
	OwnerPhone string `json:"owner_phone"`
}
