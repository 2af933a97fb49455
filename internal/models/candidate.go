package models

import (
	"time"

	"github.com/google/uuid"
)

type Provenance string

const (
	ProvenanceStored      Provenance = "stored"
	ProvenanceOracle      Provenance = "oracle"
	ProvenancePlaceholder Provenance = "placeholder"
)

// MatchCandidate is a scored, response-scoped projection of a scholarship.
type MatchCandidate struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Source      string     `json:"source"`
	Name        string     `json:"name"`
	Provider    string     `json:"provider"`
	Amount      Amount     `json:"amount"`
	Eligibility string     `json:"eligibility"`
	Description string     `json:"description,omitempty"`
	Deadline    *string    `json:"deadline"`
	Link        *string    `json:"link"`
	Region      string     `json:"region,omitempty"`
	Category    string     `json:"category,omitempty"`
	LinkBroken  bool       `json:"linkBroken,omitempty"`
	MatchScore  int        `json:"matchScore"`
	Provenance  Provenance `json:"provenance"`
}

// CandidateFromScholarship projects a stored record.
func CandidateFromScholarship(s Scholarship, score int) MatchCandidate {
	id := s.ID
	return MatchCandidate{
		ID:          &id,
		Source:      s.Source,
		Name:        s.DisplayName(),
		Provider:    s.Provider,
		Amount:      s.Amount,
		Eligibility: s.Eligibility,
		Description: s.Description,
		Deadline:    s.Deadline,
		Link:        s.Link,
		Region:      s.Region,
		Category:    s.Category,
		LinkBroken:  s.LinkBroken,
		MatchScore:  score,
		Provenance:  ProvenanceStored,
	}
}

// IngestionReport is one append-only row per (source, run).
type IngestionReport struct {
	ID             int64     `json:"id,omitempty"`
	RunID          uuid.UUID `json:"runId"`
	Source         string    `json:"source"`
	Status         string    `json:"status"` // success, error
	Message        string    `json:"message"`
	ItemsProcessed int       `json:"itemsProcessed"`
	ItemsAdded     int       `json:"itemsAdded"`
	ItemsUpdated   int       `json:"itemsUpdated"`
	ItemsFlagged   int       `json:"itemsFlagged"`
	Error          string    `json:"error,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

const (
	ReportSuccess = "success"
	ReportError   = "error"
)
