package match

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/ai"
	"github.com/david/scholarship-finder/internal/apperr"
	"github.com/david/scholarship-finder/internal/cache"
	"github.com/david/scholarship-finder/internal/ingest"
	"github.com/david/scholarship-finder/internal/logger"
	"github.com/david/scholarship-finder/internal/models"
)

// CandidateSource produces scored candidates for a profile.
type CandidateSource interface {
	Name() string
	Fetch(ctx context.Context, profile models.ApplicantProfile) ([]models.MatchCandidate, error)
}

// StoredLister is the read side of the record store used for matching.
type StoredLister interface {
	ListTopByAmount(ctx context.Context, limit int) ([]models.Scholarship, error)
}

// ContextLister also finds records near a profile embedding.
type ContextLister interface {
	StoredLister
	NearestByEmbedding(ctx context.Context, vec []float32, limit int) ([]models.Scholarship, error)
}

const DefaultStoredLimit = 200

// StoredSource evaluates the top stored records by amount.
type StoredSource struct {
	Store StoredLister
	Limit int
}

func (s *StoredSource) Name() string { return string(models.ProvenanceStored) }

func (s *StoredSource) Fetch(ctx context.Context, profile models.ApplicantProfile) ([]models.MatchCandidate, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultStoredLimit
	}
	recs, err := s.Store.ListTopByAmount(ctx, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "list top by amount", err)
	}

	out := make([]models.MatchCandidate, 0, len(recs))
	for _, rec := range recs {
		e := Evaluate(rec, profile)
		if !e.Passes {
			continue
		}
		out = append(out, models.CandidateFromScholarship(rec, e.Score))
	}
	return out, nil
}

// OracleSource asks a language model for scholarships matching the profile.
// A sample of stored records is included in the prompt as context.
type OracleSource struct {
	Completer ai.Completer
	Context   ContextLister
	Embedder  ai.Embedder
	Cache     cache.Cache
	CacheTTL  time.Duration
	Timeout   time.Duration
	Sample    int
	Logger    *zap.Logger
}

func (o *OracleSource) Name() string { return string(models.ProvenanceOracle) }

func (o *OracleSource) Fetch(ctx context.Context, profile models.ApplicantProfile) ([]models.MatchCandidate, error) {
	if o.Completer == nil {
		return nil, nil
	}
	log := logger.OrNop(o.Logger)

	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	sample := o.contextSample(ctx, profile, log)
	prompt := BuildPrompt(profile, sample)
	key := cacheKey(prompt)

	if o.Cache != nil {
		var cached []models.MatchCandidate
		hit, err := o.Cache.GetJSON(ctx, key, &cached)
		if err != nil {
			log.Warn("oracle cache read failed", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	resp, err := o.Completer.Complete(ctx, prompt)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOracle, "complete", err)
	}
	candidates, err := ParseOracleResponse(resp)
	if err != nil {
		log.Debug("oracle response unusable", zap.String("response", logger.Truncate(resp, 500)))
		return nil, apperr.Wrap(apperr.KindOracle, "parse response", err)
	}

	if o.Cache != nil && len(candidates) > 0 {
		if err := o.Cache.SetJSON(ctx, key, candidates, o.CacheTTL); err != nil {
			log.Warn("oracle cache write failed", zap.Error(err))
		}
	}
	return candidates, nil
}

// contextSample prefers records nearest to the profile embedding and falls
// back to the top records by amount. Failures only shrink the prompt.
func (o *OracleSource) contextSample(ctx context.Context, profile models.ApplicantProfile, log *zap.Logger) []models.Scholarship {
	if o.Context == nil || o.Sample <= 0 {
		return nil
	}
	if o.Embedder != nil {
		vec, err := o.Embedder.GenerateEmbedding(ctx, profile.Summary())
		if err == nil {
			recs, err := o.Context.NearestByEmbedding(ctx, vec, o.Sample)
			if err == nil && len(recs) > 0 {
				return recs
			}
			if err != nil {
				log.Debug("nearest records unavailable", zap.Error(err))
			}
		} else {
			log.Debug("profile embedding failed", zap.Error(err))
		}
	}
	recs, err := o.Context.ListTopByAmount(ctx, o.Sample)
	if err != nil {
		log.Debug("context sample unavailable", zap.Error(err))
		return nil
	}
	return recs
}

// BuildPrompt renders the profile and context sample for the oracle.
func BuildPrompt(profile models.ApplicantProfile, sample []models.Scholarship) string {
	var b strings.Builder
	b.WriteString("You are a college scholarship advisor. Recommend currently open scholarships this student is eligible for.\n\n")
	b.WriteString("Student profile:\n")
	b.WriteString(profile.Summary())

	if len(sample) > 0 {
		b.WriteString("\nScholarships already known to us (you may include or improve on these):\n")
		for _, rec := range sample {
			fmt.Fprintf(&b, "- %s", rec.DisplayName())
			if rec.Provider != "" {
				fmt.Fprintf(&b, " (%s)", rec.Provider)
			}
			if rec.Deadline != nil {
				fmt.Fprintf(&b, ", deadline %s", *rec.Deadline)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString(`
Respond ONLY with JSON of the form:
{"scholarships": [{"name": "string", "provider": "string", "amount": number or "varies",
  "deadline": "YYYY-MM-DD or null", "link": "https://... or null", "eligibility": "string",
  "description": "string", "match": integer 0-100}]}
Only include scholarships with real, verifiable application pages.`)
	return b.String()
}

var errNoCandidates = errors.New("no JSON array or scholarships object in response")

// ParseOracleResponse accepts a bare JSON array or an object with a
// "scholarships" array, possibly wrapped in prose or code fences.
func ParseOracleResponse(resp string) ([]models.MatchCandidate, error) {
	raw, ok := ai.ExtractJSON(resp)
	if !ok {
		return nil, errNoCandidates
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			Scholarships []map[string]any `json:"scholarships"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Scholarships == nil {
			return nil, errNoCandidates
		}
		items = wrapped.Scholarships
	}

	out := make([]models.MatchCandidate, 0, len(items))
	for _, item := range items {
		rec := ingest.Normalize(ingest.RawItem(item), string(models.ProvenanceOracle), nil)
		if rec.Name == nil {
			continue
		}
		c := models.CandidateFromScholarship(rec, oracleScore(item))
		c.ID = nil
		c.Provenance = models.ProvenanceOracle
		out = append(out, c)
	}
	return out, nil
}

func oracleScore(item map[string]any) int {
	for _, key := range []string{"match", "matchScore", "match_score", "score"} {
		var f float64
		switch v := item[key].(type) {
		case float64:
			f = v
		case json.Number:
			f, _ = v.Float64()
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
			if err != nil {
				continue
			}
			f = parsed
		default:
			continue
		}
		switch {
		case f < 0:
			return 0
		case f > 100:
			return 100
		}
		return int(f)
	}
	return 0
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "oracle:" + hex.EncodeToString(sum[:])
}
