package db

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/david/scholarship-finder/internal/dates"
	"github.com/david/scholarship-finder/internal/models"
)

// MemoryStore is an in-process Store used by tests, dry runs and the CLI when
// no database is configured. Lookups follow the same matching rules as the
// SQL queries.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.Scholarship
	reports []models.IngestionReport
	now     func() time.Time
}

func NewMemoryStore(seed ...models.Scholarship) *MemoryStore {
	m := &MemoryStore{now: time.Now}
	for _, rec := range seed {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = m.now().UTC()
		}
		m.records = append(m.records, rec)
	}
	return m
}

// SetClock overrides the clock used for expiry filtering.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Records returns a copy of every stored record in insertion order.
func (m *MemoryStore) Records() []models.Scholarship {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Scholarship(nil), m.records...)
}

func (m *MemoryStore) Reports() []models.IngestionReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.IngestionReport(nil), m.reports...)
}

func (m *MemoryStore) first(match func(models.Scholarship) bool) *models.Scholarship {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if match(rec) {
			found := rec
			return &found
		}
	}
	return nil
}

func (m *MemoryStore) FindBySourceKey(_ context.Context, source, sourceID string) (*models.Scholarship, error) {
	return m.first(func(r models.Scholarship) bool {
		return r.Source == source && r.SourceID != "" && r.SourceID == sourceID
	}), nil
}

func (m *MemoryStore) FindByLinkPrefix(_ context.Context, prefix string) (*models.Scholarship, error) {
	return m.first(func(r models.Scholarship) bool {
		return r.Link != nil && strings.Contains(*r.Link, prefix)
	}), nil
}

func (m *MemoryStore) FindByNameFragment(_ context.Context, fragment string) (*models.Scholarship, error) {
	fragment = strings.ToLower(fragment)
	return m.first(func(r models.Scholarship) bool {
		return r.Name != nil && strings.Contains(strings.ToLower(*r.Name), fragment)
	}), nil
}

func (m *MemoryStore) GetScholarship(_ context.Context, id uuid.UUID) (*models.Scholarship, error) {
	rec := m.first(func(r models.Scholarship) bool { return r.ID == id })
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Insert(_ context.Context, rec *models.Scholarship) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = m.now().UTC()
	m.records = append(m.records, *rec)
	return rec.ID, nil
}

func (m *MemoryStore) Update(_ context.Context, id uuid.UUID, rec *models.Scholarship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.records {
		if existing.ID != id {
			continue
		}
		updated := *rec
		updated.ID = id
		updated.Source = existing.Source
		updated.SourceID = existing.SourceID
		updated.CreatedAt = existing.CreatedAt
		if updated.LastChecked == nil {
			updated.LastChecked = existing.LastChecked
		}
		if len(updated.Embedding) == 0 {
			updated.Embedding = existing.Embedding
		}
		m.records[i] = updated
		rec.ID = id
		return nil
	}
	return ErrNotFound
}

func (m *MemoryStore) current() []models.Scholarship {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	out := make([]models.Scholarship, 0, len(m.records))
	for _, rec := range m.records {
		if !dates.Before(rec.Deadline, now) {
			out = append(out, rec)
		}
	}
	return out
}

func (m *MemoryStore) ListTopByAmount(_ context.Context, limit int) ([]models.Scholarship, error) {
	recs := m.current()
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Amount.Value > recs[j].Amount.Value
	})
	return truncate(recs, limit), nil
}

func (m *MemoryStore) NearestByEmbedding(_ context.Context, vec []float32, limit int) ([]models.Scholarship, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	var recs []models.Scholarship
	for _, rec := range m.current() {
		if len(rec.Embedding) == len(vec) {
			recs = append(recs, rec)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return cosineDistance(recs[i].Embedding, vec) < cosineDistance(recs[j].Embedding, vec)
	})
	return truncate(recs, limit), nil
}

func (m *MemoryStore) ListStaleLinks(_ context.Context, checkedBefore time.Time, limit int) ([]models.Scholarship, error) {
	m.mu.RLock()
	var recs []models.Scholarship
	for _, rec := range m.records {
		if rec.Link != nil && (rec.LastChecked == nil || rec.LastChecked.Before(checkedBefore)) {
			recs = append(recs, rec)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i].LastChecked, recs[j].LastChecked
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	return truncate(recs, limit), nil
}

func (m *MemoryStore) UpdateLinkStatus(_ context.Context, id uuid.UUID, broken bool, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].LinkBroken = broken
			at := checkedAt
			m.records[i].LastChecked = &at
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ListScholarships(_ context.Context, params ListParams) (*ListResult, error) {
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	var src []models.Scholarship
	if params.IncludeExpired {
		src = m.Records()
	} else {
		src = m.current()
	}

	q := strings.ToLower(strings.TrimSpace(params.Query))
	matched := make([]models.Scholarship, 0, len(src))
	for _, rec := range src {
		if q != "" && !strings.Contains(strings.ToLower(rec.DisplayName()+" "+rec.Eligibility+" "+rec.Provider), q) {
			continue
		}
		if params.Source != "" && rec.Source != params.Source {
			continue
		}
		if params.NeedsReview != nil && rec.NeedsReview != *params.NeedsReview {
			continue
		}
		matched = append(matched, rec)
	}

	total := len(matched)
	if params.Offset >= total {
		matched = nil
	} else {
		matched = truncate(matched[params.Offset:], params.Limit)
	}
	if matched == nil {
		matched = []models.Scholarship{}
	}
	return &ListResult{Scholarships: matched, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

func (m *MemoryStore) WriteReport(_ context.Context, r models.IngestionReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.reports) + 1)
	if r.OccurredAt.IsZero() {
		r.OccurredAt = m.now().UTC()
	}
	m.reports = append(m.reports, r)
	return nil
}

func (m *MemoryStore) ListReports(_ context.Context, source string, limit int) ([]models.IngestionReport, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.IngestionReport
	for i := len(m.reports) - 1; i >= 0 && len(out) < limit; i-- {
		if source == "" || m.reports[i].Source == source {
			out = append(out, m.reports[i])
		}
	}
	return out, nil
}

func truncate(recs []models.Scholarship, limit int) []models.Scholarship {
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
