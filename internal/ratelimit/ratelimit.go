// Package ratelimit derives send-quota projections from the
// server-maintained per-user counter. The counter is authoritative;
// callers never decrement the projection locally.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/growthpro/messaging/internal/models"
)

const (
	// DefaultHourlyLimit is the number of messages a user may send per
	// rolling window.
	DefaultHourlyLimit = 10

	// Window is the quota window length.
	Window = time.Hour
)

// Derive computes a RateLimitInfo from a stored send window. A nil
// window, or one whose reset time has passed, counts as a fresh window
// even though the stored counter has not been reset yet. Remaining is
// clamped to [0, limit].
func Derive(w *models.SendWindow, limit int, now time.Time) models.RateLimitInfo {
	if w == nil || now.After(w.ResetAt) {
		return models.RateLimitInfo{
			Limit:     limit,
			Count:     0,
			Remaining: limit,
			ResetAt:   now.Add(Window),
		}
	}

	remaining := limit - w.MessageCount
	if remaining < 0 {
		remaining = 0
	}
	if remaining > limit {
		remaining = limit
	}

	return models.RateLimitInfo{
		Limit:     limit,
		Count:     w.MessageCount,
		Remaining: remaining,
		ResetAt:   w.ResetAt,
	}
}

// WaitHint formats a human-readable wait time until the window resets.
func WaitHint(info models.RateLimitInfo, now time.Time) string {
	wait := info.ResetAt.Sub(now)
	if wait <= 0 {
		return "now"
	}
	if wait < time.Minute {
		return "less than a minute"
	}
	mins := int(wait.Round(time.Minute).Minutes())
	if mins == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", mins)
}
