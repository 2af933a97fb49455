package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/david/scholarship-finder/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Query          string
	Source         string
	IncludeExpired bool
	NeedsReview    *bool
	Limit          int
	Offset         int
}

type ListResult struct {
	Scholarships []models.Scholarship `json:"scholarships"`
	Total        int                  `json:"total"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

// selectCols is the column list shared by every read. The deadline is
// rendered as text so it round-trips as YYYY-MM-DD.
const selectCols = `id, source, source_id, name, provider, amount, amount_varies,
	eligibility, description, to_char(deadline, 'YYYY-MM-DD'), link, region, category,
	needs_review, link_broken, last_checked, last_updated, expired, raw_payload, created_at`

func scanScholarship(scan func(dest ...interface{}) error) (models.Scholarship, error) {
	var s models.Scholarship
	var sourceID *string
	var amount *float64
	var rawPayload []byte

	err := scan(
		&s.ID, &s.Source, &sourceID, &s.Name, &s.Provider, &amount, &s.Amount.Varies,
		&s.Eligibility, &s.Description, &s.Deadline, &s.Link, &s.Region, &s.Category,
		&s.NeedsReview, &s.LinkBroken, &s.LastChecked, &s.LastUpdated, &s.Expired, &rawPayload, &s.CreatedAt,
	)
	if err != nil {
		return s, err
	}

	if sourceID != nil {
		s.SourceID = *sourceID
	}
	if amount != nil {
		s.Amount.Value = *amount
	}
	if len(rawPayload) > 0 {
		s.RawPayload = rawPayload
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// findOne returns (nil, nil) when the query yields no row.
func (s *Store) findOne(ctx context.Context, where string, args ...interface{}) (*models.Scholarship, error) {
	sql := fmt.Sprintf("SELECT %s FROM scholarships WHERE %s ORDER BY created_at ASC LIMIT 1", selectCols, where)
	rec, err := scanScholarship(s.pool.QueryRow(ctx, sql, args...).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &rec, nil
}

func (s *Store) FindBySourceKey(ctx context.Context, source, sourceID string) (*models.Scholarship, error) {
	return s.findOne(ctx, "source = $1 AND source_id = $2", source, sourceID)
}

// FindByLinkPrefix matches any stored link that contains prefix.
func (s *Store) FindByLinkPrefix(ctx context.Context, prefix string) (*models.Scholarship, error) {
	return s.findOne(ctx, "link IS NOT NULL AND strpos(link, $1) > 0", prefix)
}

// FindByNameFragment matches case-insensitively anywhere in the stored name.
func (s *Store) FindByNameFragment(ctx context.Context, fragment string) (*models.Scholarship, error) {
	return s.findOne(ctx, "name IS NOT NULL AND strpos(lower(name), lower($1)) > 0", fragment)
}

func (s *Store) GetScholarship(ctx context.Context, id uuid.UUID) (*models.Scholarship, error) {
	rec, err := s.findOne(ctx, "id = $1", id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

func nullableVector(v []float32) *pgvector.Vector {
	if len(v) == 0 {
		return nil
	}
	vec := pgvector.NewVector(v)
	return &vec
}

func nullableAmount(a models.Amount) *float64 {
	if a.Value <= 0 {
		return nil
	}
	v := a.Value
	return &v
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Insert stores rec under a new id and writes the id back into rec.
func (s *Store) Insert(ctx context.Context, rec *models.Scholarship) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now().UTC()
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO scholarships (
			id, source, source_id, name, provider, amount, amount_varies,
			eligibility, description, deadline, link, region, category,
			needs_review, link_broken, last_checked, last_updated, expired, raw_payload, embedding
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10::text::date, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20
		)
		RETURNING created_at
	`,
		rec.ID, rec.Source, nullableText(rec.SourceID), rec.Name, rec.Provider, nullableAmount(rec.Amount), rec.Amount.Varies,
		rec.Eligibility, rec.Description, rec.Deadline, rec.Link, rec.Region, rec.Category,
		rec.NeedsReview, rec.LinkBroken, rec.LastChecked, rec.LastUpdated, rec.Expired, []byte(rec.RawPayload), nullableVector(rec.Embedding),
	).Scan(&rec.CreatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert failed: %w", err)
	}
	return rec.ID, nil
}

// Update refreshes every normalized field and the liveness metadata of an
// existing record. Identity columns (source, source_id) are left alone; an
// absent embedding keeps the stored one.
func (s *Store) Update(ctx context.Context, id uuid.UUID, rec *models.Scholarship) error {
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE scholarships SET
			name = $2,
			provider = $3,
			amount = $4,
			amount_varies = $5,
			eligibility = $6,
			description = $7,
			deadline = $8::text::date,
			link = $9,
			region = $10,
			category = $11,
			needs_review = $12,
			link_broken = $13,
			last_checked = COALESCE($14, last_checked),
			last_updated = $15,
			expired = $16,
			raw_payload = $17,
			embedding = COALESCE($18, embedding)
		WHERE id = $1
	`,
		id, rec.Name, rec.Provider, nullableAmount(rec.Amount), rec.Amount.Varies,
		rec.Eligibility, rec.Description, rec.Deadline, rec.Link, rec.Region, rec.Category,
		rec.NeedsReview, rec.LinkBroken, rec.LastChecked, rec.LastUpdated, rec.Expired,
		[]byte(rec.RawPayload), nullableVector(rec.Embedding),
	)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	rec.ID = id
	return nil
}

func (s *Store) queryScholarships(ctx context.Context, sql string, args ...interface{}) ([]models.Scholarship, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []models.Scholarship
	for rows.Next() {
		rec, err := scanScholarship(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}

// ListTopByAmount returns unexpired records with the largest awards first.
func (s *Store) ListTopByAmount(ctx context.Context, limit int) ([]models.Scholarship, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM scholarships
		WHERE deadline IS NULL OR deadline >= CURRENT_DATE
		ORDER BY amount DESC NULLS LAST, created_at ASC
		LIMIT $1
	`, selectCols)
	return s.queryScholarships(ctx, sql, limit)
}

// NearestByEmbedding orders records by cosine distance to vec.
func (s *Store) NearestByEmbedding(ctx context.Context, vec []float32, limit int) ([]models.Scholarship, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	sql := fmt.Sprintf(`
		SELECT %s FROM scholarships
		WHERE embedding IS NOT NULL AND (deadline IS NULL OR deadline >= CURRENT_DATE)
		ORDER BY embedding <=> $1
		LIMIT $2
	`, selectCols)
	return s.queryScholarships(ctx, sql, pgvector.NewVector(vec), limit)
}

// ListStaleLinks returns records with a link that was never checked or was
// last checked before checkedBefore, oldest first.
func (s *Store) ListStaleLinks(ctx context.Context, checkedBefore time.Time, limit int) ([]models.Scholarship, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM scholarships
		WHERE link IS NOT NULL AND (last_checked IS NULL OR last_checked < $1)
		ORDER BY last_checked ASC NULLS FIRST
		LIMIT $2
	`, selectCols)
	return s.queryScholarships(ctx, sql, checkedBefore, limit)
}

func (s *Store) UpdateLinkStatus(ctx context.Context, id uuid.UUID, broken bool, checkedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE scholarships SET link_broken = $2, last_checked = $3 WHERE id = $1",
		id, broken, checkedAt)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// buildListWhere renders the filter clause for ListScholarships.
func buildListWhere(params ListParams) (string, []interface{}) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if q := strings.TrimSpace(params.Query); q != "" {
		where += fmt.Sprintf(" AND (name ILIKE '%%' || $%d || '%%' OR eligibility ILIKE '%%' || $%d || '%%' OR provider ILIKE '%%' || $%d || '%%')", argIdx, argIdx, argIdx)
		args = append(args, q)
		argIdx++
	}
	if params.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", argIdx)
		args = append(args, params.Source)
		argIdx++
	}
	if params.NeedsReview != nil {
		where += fmt.Sprintf(" AND needs_review = $%d", argIdx)
		args = append(args, *params.NeedsReview)
	}
	if !params.IncludeExpired {
		where += " AND (deadline IS NULL OR deadline >= CURRENT_DATE)"
	}
	return where, args
}

func (s *Store) ListScholarships(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	where, args := buildListWhere(params)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM scholarships "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	n := len(args)
	sql := fmt.Sprintf("SELECT %s FROM scholarships %s ORDER BY deadline ASC NULLS LAST, amount DESC NULLS LAST LIMIT $%d OFFSET $%d",
		selectCols, where, n+1, n+2)
	recs, err := s.queryScholarships(ctx, sql, append(args, params.Limit, params.Offset)...)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []models.Scholarship{}
	}

	return &ListResult{
		Scholarships: recs,
		Total:        total,
		Limit:        params.Limit,
		Offset:       params.Offset,
	}, nil
}
