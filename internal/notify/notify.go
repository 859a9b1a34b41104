// Package notify turns episode transitions into caregiver notifications.
//
// Pipeline: episode transition → dispatch decision (snooze, quiet hours) →
// persist task → background delivery worker drains the queue and invokes the
// push transport. Task creation shares a transaction with the level
// transition that owes it, which is what guarantees at-most-one notification
// per (episode, level).
package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task statuses. A task is immutable once created except for status,
// attempts, and error bookkeeping.
const (
	StatusPending = "pending"
	StatusSending = "sending" // claimed by a delivery worker
	StatusSent    = "sent"
	StatusSkipped = "skipped" // snoozed at delivery time
	StatusFailed  = "failed"  // unaddressable recipient, no retry
	StatusExpired = "expired" // aged out before delivery
)

// Task is a queued notification delivery.
type Task struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	EpisodeID    uuid.UUID       `json:"alert_episode_id"`
	Level        int             `json:"level"`
	Payload      json.RawMessage `json:"payload"` // evidence record
	Status       string          `json:"status"`
	DeliverAfter *time.Time      `json:"deliver_after"` // quiet-hours deferral; nil = immediately eligible
	Attempts     int             `json:"attempts"`
	LastError    string          `json:"last_error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	SentAt       *time.Time      `json:"sent_at"`
}

// Preferences is a user's notification preference row. Read-only to this
// package apart from the per-episode snooze, which lives on the episode.
type Preferences struct {
	Timezone        string
	QuietHoursStart int // local hour, inclusive
	QuietHoursEnd   int // local hour, exclusive
	QuietMinLevel   string // minimum severity delivered during quiet hours
	SnoozedUntil    *time.Time
}

// DrainResult summarizes one delivery batch.
type DrainResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Expired   int `json:"expired"`
}
