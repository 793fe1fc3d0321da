// Package gate decides whether the promotional window is open at a given instant.
package gate

import (
	"time"

	"github.com/cppla/qrgate/models"
)

// Config is the window definition, fixed at startup.
type Config struct {
	Start     time.Time
	ValidDays int
}

// Expiry is the first instant after the window; it is not part of the window.
func (c Config) Expiry() time.Time {
	return c.Start.AddDate(0, 0, c.ValidDays)
}

// IsActive reports whether Start <= now < Start+ValidDays.
func IsActive(now time.Time, cfg Config) bool {
	if cfg.ValidDays <= 0 {
		return false
	}
	return !now.Before(cfg.Start) && now.Before(cfg.Expiry())
}

// Evaluate returns the status to log for a request seen at now.
func Evaluate(now time.Time, cfg Config) models.Status {
	if IsActive(now, cfg) {
		return models.StatusActive
	}
	return models.StatusInactive
}

// Clock returns the current instant. Handlers read it exactly once per request.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}
