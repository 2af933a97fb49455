package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Scholarship is the canonical record every provider payload is normalized into.
type Scholarship struct {
	ID          uuid.UUID       `json:"id"`
	Source      string          `json:"source"`
	SourceID    string          `json:"sourceId,omitempty"`
	Name        *string         `json:"name"`
	Provider    string          `json:"provider"`
	Amount      Amount          `json:"amount"`
	Eligibility string          `json:"eligibility"`
	Description string          `json:"description"`
	Deadline    *string         `json:"deadline"` // YYYY-MM-DD
	Link        *string         `json:"link"`
	Region      string          `json:"region"`
	Category    string          `json:"category"`
	NeedsReview bool            `json:"needsReview"`
	LinkBroken  bool            `json:"linkBroken"`
	LastChecked *time.Time      `json:"lastChecked"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Expired     bool            `json:"expired"`
	RawPayload  json.RawMessage `json:"rawPayload,omitempty"`
	Embedding   []float32       `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// DisplayName returns the record name or an empty string.
func (s Scholarship) DisplayName() string {
	if s.Name == nil {
		return ""
	}
	return *s.Name
}

// LinkURL returns the application link or an empty string.
func (s Scholarship) LinkURL() string {
	if s.Link == nil {
		return ""
	}
	return *s.Link
}

// Text is the free text used for keyword inference.
func (s Scholarship) Text() string {
	return s.DisplayName() + " " + s.Eligibility
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
