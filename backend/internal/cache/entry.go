package cache

import (
	"encoding/json"
	"time"
)

// Tier records which store currently holds an entry. An entry lives in exactly
// one tier; the only transition is TierPersistent → TierMemory on promotion.
type Tier string

const (
	TierMemory     Tier = "memory"
	TierPersistent Tier = "persistent"
)

// Entry is a cached, serialized result
type Entry struct {
	ID           string            `json:"id"`
	Address      string            `json:"address,omitempty"`
	Data         json.RawMessage   `json:"data"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	NodeCount    int               `json:"node_count"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	AccessCount  int64             `json:"access_count"`
	LastAccessed time.Time         `json:"last_accessed"`
	Tier         Tier              `json:"tier"`
}

// Expired reports whether the entry is past its expiry at now
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

func (e *Entry) touch(now time.Time) {
	e.AccessCount++
	e.LastAccessed = now
}
