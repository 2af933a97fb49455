package match

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/scholarship-finder/internal/apperr"
	"github.com/david/scholarship-finder/internal/cache"
	"github.com/david/scholarship-finder/internal/db"
	"github.com/david/scholarship-finder/internal/models"
)

type stubCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

type stubEmbedder struct{ vec []float32 }

func (s stubEmbedder) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return s.vec, nil
}

func TestParseOracleResponse(t *testing.T) {
	tests := []struct {
		name      string
		resp      string
		wantNames []string
		wantErr   bool
	}{
		{
			name:      "bare array",
			resp:      `[{"name":"Alpha Award","match":82},{"name":"Beta Grant","match":"71%"}]`,
			wantNames: []string{"Alpha Award", "Beta Grant"},
		},
		{
			name: "wrapped object in prose and fences",
			resp: "Here are some options:\n```json\n{\"scholarships\": [{\"title\": \"Gamma Fund\", \"score\": 64, \"deadline\": \"March 3, 2027\"}]}\n```\nGood luck!",
			wantNames: []string{"Gamma Fund"},
		},
		{
			name:      "nameless entries skipped",
			resp:      `{"scholarships":[{"provider":"Nobody"},{"name":"Delta","match":90}]}`,
			wantNames: []string{"Delta"},
		},
		{name: "object without scholarships", resp: `{"answer": "none"}`, wantErr: true},
		{name: "no json", resp: "I could not find any scholarships.", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOracleResponse(tt.resp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var names []string
			for _, c := range got {
				names = append(names, c.Name)
				assert.Equal(t, models.ProvenanceOracle, c.Provenance)
				assert.Nil(t, c.ID)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestParseOracleResponseFields(t *testing.T) {
	got, err := ParseOracleResponse(`[{"name":"Alpha","match":140,"amount":"$2,500","deadline":"2027-01-15","link":"https://alpha.example.org/apply"}]`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].MatchScore)
	assert.Equal(t, float64(2500), got[0].Amount.Value)
	require.NotNil(t, got[0].Deadline)
	assert.Equal(t, "2027-01-15", *got[0].Deadline)
	require.NotNil(t, got[0].Link)
}

func TestStoredSource(t *testing.T) {
	store := db.NewMemoryStore(
		models.Scholarship{Name: models.StringPtr("CS Diversity Grant"), Amount: models.Amount{Value: 5000},
			Eligibility: "first generation computer science students in California", Deadline: models.StringPtr("2099-01-01")},
		models.Scholarship{Name: models.StringPtr("Unknown Amount Award"), Eligibility: "computer science"},
	)
	src := &StoredSource{Store: store}

	got, err := src.Fetch(context.Background(), exampleProfile())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CS Diversity Grant", got[0].Name)
	assert.Equal(t, 95, got[0].MatchScore)
	assert.Equal(t, models.ProvenanceStored, got[0].Provenance)
	assert.NotNil(t, got[0].ID)
}

type brokenLister struct{}

func (brokenLister) ListTopByAmount(context.Context, int) ([]models.Scholarship, error) {
	return nil, errors.New("connection refused")
}

func TestStoredSourceErrorIsClassified(t *testing.T) {
	_, err := (&StoredSource{Store: brokenLister{}}).Fetch(context.Background(), models.ApplicantProfile{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindStore))
}

func TestOracleSourceUsesCache(t *testing.T) {
	completer := &stubCompleter{reply: `{"scholarships":[{"name":"Oracle Award","match":77}]}`}
	src := &OracleSource{Completer: completer, Cache: cache.NewMemory()}

	first, err := src.Fetch(context.Background(), exampleProfile())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := src.Fetch(context.Background(), exampleProfile())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, completer.prompts, 1)
}

func TestOracleSourceFailures(t *testing.T) {
	_, err := (&OracleSource{Completer: &stubCompleter{err: errors.New("503")}}).Fetch(context.Background(), models.ApplicantProfile{})
	assert.True(t, apperr.IsKind(err, apperr.KindOracle))

	_, err = (&OracleSource{Completer: &stubCompleter{reply: "sorry"}}).Fetch(context.Background(), models.ApplicantProfile{})
	assert.True(t, apperr.IsKind(err, apperr.KindOracle))

	got, err := (&OracleSource{}).Fetch(context.Background(), models.ApplicantProfile{})
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestOracleSourceContextSample(t *testing.T) {
	store := db.NewMemoryStore(
		models.Scholarship{Name: models.StringPtr("Big Money Award"), Amount: models.Amount{Value: 50000}, Embedding: []float32{0, 1}},
		models.Scholarship{Name: models.StringPtr("Close Match Award"), Amount: models.Amount{Value: 100}, Embedding: []float32{1, 0}},
	)
	completer := &stubCompleter{reply: `[]`}

	src := &OracleSource{Completer: completer, Context: store, Embedder: stubEmbedder{vec: []float32{1, 0.1}}, Sample: 1}
	_, err := src.Fetch(context.Background(), exampleProfile())
	require.NoError(t, err)
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "Close Match Award")
	assert.NotContains(t, completer.prompts[0], "Big Money Award")

	src = &OracleSource{Completer: completer, Context: store, Sample: 1}
	_, err = src.Fetch(context.Background(), exampleProfile())
	require.NoError(t, err)
	assert.Contains(t, completer.prompts[1], "Big Money Award")
}

func TestBuildPromptIncludesProfile(t *testing.T) {
	prompt := BuildPrompt(exampleProfile(), nil)
	assert.Contains(t, prompt, "Computer Science")
	assert.Contains(t, prompt, "First-generation")
	assert.True(t, strings.Contains(prompt, `"scholarships"`))
}
