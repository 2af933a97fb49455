package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/scholarship-finder/internal/apperr"
	"github.com/david/scholarship-finder/internal/db"
	"github.com/david/scholarship-finder/internal/models"
)

func TestLinkPrefix(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://example.org/awards/2026?id=4", "https://example.org/awards", true},
		{"https://example.org/awards", "https://example.org/awards", true},
		{"http://example.org/", "http://example.org", true},
		{"https://example.org", "https://example.org", true},
		{"  https://sub.example.org:8443/a/b/c  ", "https://sub.example.org:8443/a", true},
		{"", "", false},
		{"example.org/awards", "", false},
		{"::not a url", "", false},
	}
	for _, tt := range tests {
		got, ok := LinkPrefix(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("LinkPrefix(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNameFragment(t *testing.T) {
	assert.Equal(t, "Short", NameFragment("  Short  ", 40))
	assert.Equal(t, "abcde", NameFragment("abcdefgh", 5))
	assert.Equal(t, "Beca de Excelencia Académ", NameFragment("Beca de Excelencia Académica", 25))
	assert.Equal(t, "", NameFragment("", 40))
}

// countingLookup records which rules were consulted.
type countingLookup struct {
	bySourceKey, byLink, byName *models.Scholarship
	err                         error
	calls                       []string
}

func (c *countingLookup) FindBySourceKey(_ context.Context, _, _ string) (*models.Scholarship, error) {
	c.calls = append(c.calls, "source")
	return c.bySourceKey, c.err
}

func (c *countingLookup) FindByLinkPrefix(_ context.Context, _ string) (*models.Scholarship, error) {
	c.calls = append(c.calls, "link")
	return c.byLink, nil
}

func (c *countingLookup) FindByNameFragment(_ context.Context, _ string) (*models.Scholarship, error) {
	c.calls = append(c.calls, "name")
	return c.byName, nil
}

func TestResolverFirstHitWins(t *testing.T) {
	a := &models.Scholarship{Source: "a"}
	a.ID[0] = 1
	b := &models.Scholarship{Source: "b"}
	b.ID[0] = 2

	rec := &models.Scholarship{
		Source:   "feed",
		SourceID: "99",
		Name:     models.StringPtr("Some Award"),
		Link:     models.StringPtr("https://example.org/awards/some"),
	}

	lookup := &countingLookup{bySourceKey: a, byLink: b, byName: b}
	id, strategy, err := NewResolver(lookup, 0).ResolveWithStrategy(context.Background(), rec)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, a.ID, *id)
	assert.Equal(t, MatchSourceKey, strategy)
	assert.Equal(t, []string{"source"}, lookup.calls)

	lookup = &countingLookup{byLink: b, byName: a}
	id, strategy, err = NewResolver(lookup, 0).ResolveWithStrategy(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, b.ID, *id)
	assert.Equal(t, MatchLinkPrefix, strategy)
	assert.Equal(t, []string{"source", "link"}, lookup.calls)

	lookup = &countingLookup{}
	id, strategy, err = NewResolver(lookup, 0).ResolveWithStrategy(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.Equal(t, MatchNone, strategy)
	assert.Equal(t, []string{"source", "link", "name"}, lookup.calls)
}

func TestResolverSkipsRulesWithoutInput(t *testing.T) {
	lookup := &countingLookup{}
	_, err := NewResolver(lookup, 0).Resolve(context.Background(), &models.Scholarship{Source: "feed"})
	require.NoError(t, err)
	assert.Empty(t, lookup.calls)
}

func TestResolverLookupErrorIsClassified(t *testing.T) {
	lookup := &countingLookup{err: errors.New("connection reset")}
	rec := &models.Scholarship{Source: "feed", SourceID: "1"}
	_, err := NewResolver(lookup, 0).Resolve(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindLookup))
}

func TestResolverAgainstMemoryStore(t *testing.T) {
	ctx := context.Background()
	longName := "The Very Long Named Foundation Scholarship For Future Leaders In Public Service"
	store := db.NewMemoryStore(
		models.Scholarship{Source: "csv", SourceID: "7", Name: models.StringPtr("Exact Match Award")},
		models.Scholarship{Source: "api", Name: models.StringPtr("Linked"), Link: models.StringPtr("https://grants.example.edu/scholarships/linked-award?ref=feed")},
		models.Scholarship{Source: "rss", Name: models.StringPtr(strings.ToUpper(longName) + " 2026")},
	)
	records := store.Records()
	resolver := NewResolver(store, 40)

	tests := []struct {
		name string
		rec  models.Scholarship
		want int // index into records, -1 for none
	}{
		{"same source key", models.Scholarship{Source: "csv", SourceID: "7"}, 0},
		{"same key other source", models.Scholarship{Source: "rss", SourceID: "7"}, -1},
		{"link prefix substring", models.Scholarship{Source: "html", Link: models.StringPtr("https://grants.example.edu/scholarships/another")}, 1},
		{"different first segment", models.Scholarship{Source: "html", Link: models.StringPtr("https://grants.example.edu/news/x")}, -1},
		{"long name prefix, case insensitive", models.Scholarship{Source: "csv", Name: models.StringPtr(longName + " (renewed)")}, 2},
		{"unrelated", models.Scholarship{Source: "csv", Name: models.StringPtr("Nothing Similar")}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			id, err := resolver.Resolve(ctx, &rec)
			require.NoError(t, err)
			if tt.want < 0 {
				assert.Nil(t, id)
				return
			}
			require.NotNil(t, id)
			assert.Equal(t, records[tt.want].ID, *id)
		})
	}
}
