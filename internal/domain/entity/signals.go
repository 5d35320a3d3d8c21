package entity

import "time"

// TypingEntry is an ephemeral "remote participant is typing" signal. Entries
// expire if the peer's typing.stopped event never arrives; ExpiresAt is
// refreshed on every typing.started.
type TypingEntry struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Kind        string    `json:"kind"` // "user", "shop"
	ExpiresAt   time.Time `json:"expires_at"`
}

func (t TypingEntry) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// PresenceEntry is an ephemeral online/offline flag for a remote participant.
type PresenceEntry struct {
	UserID   int64     `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}
