package ingest

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/david/scholarship-finder/internal/apperr"
	"github.com/david/scholarship-finder/internal/models"
)

// DefaultNameFragmentLength is how many leading runes of a name are used for
// the last-resort substring match.
const DefaultNameFragmentLength = 40

// MatchStrategy names the rule that identified an existing record.
type MatchStrategy string

const (
	MatchNone       MatchStrategy = ""
	MatchSourceKey  MatchStrategy = "source_key"
	MatchLinkPrefix MatchStrategy = "link_prefix"
	MatchName       MatchStrategy = "name_fragment"
)

// Resolver decides whether a normalized record already exists. Rules are
// applied in order and the first hit wins.
type Resolver struct {
	lookup             RecordLookup
	nameFragmentLength int
}

func NewResolver(lookup RecordLookup, nameFragmentLength int) *Resolver {
	if nameFragmentLength <= 0 {
		nameFragmentLength = DefaultNameFragmentLength
	}
	return &Resolver{lookup: lookup, nameFragmentLength: nameFragmentLength}
}

// Resolve returns the existing record id, or nil when rec is new.
func (r *Resolver) Resolve(ctx context.Context, rec *models.Scholarship) (*uuid.UUID, error) {
	id, _, err := r.ResolveWithStrategy(ctx, rec)
	return id, err
}

func (r *Resolver) ResolveWithStrategy(ctx context.Context, rec *models.Scholarship) (*uuid.UUID, MatchStrategy, error) {
	if rec.Source != "" && rec.SourceID != "" {
		existing, err := r.lookup.FindBySourceKey(ctx, rec.Source, rec.SourceID)
		if err != nil {
			return nil, MatchNone, apperr.Wrap(apperr.KindLookup, "source key", err)
		}
		if existing != nil {
			return &existing.ID, MatchSourceKey, nil
		}
	}

	if prefix, ok := LinkPrefix(rec.LinkURL()); ok {
		existing, err := r.lookup.FindByLinkPrefix(ctx, prefix)
		if err != nil {
			return nil, MatchNone, apperr.Wrap(apperr.KindLookup, "link prefix", err)
		}
		if existing != nil {
			return &existing.ID, MatchLinkPrefix, nil
		}
	}

	if fragment := NameFragment(rec.DisplayName(), r.nameFragmentLength); fragment != "" {
		existing, err := r.lookup.FindByNameFragment(ctx, fragment)
		if err != nil {
			return nil, MatchNone, apperr.Wrap(apperr.KindLookup, "name fragment", err)
		}
		if existing != nil {
			return &existing.ID, MatchName, nil
		}
	}

	return nil, MatchNone, nil
}

// LinkPrefix reduces a URL to scheme, host and first path segment, e.g.
// https://example.org/awards/2026?id=4 becomes https://example.org/awards.
func LinkPrefix(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", false
	}
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	prefix := u.Scheme + "://" + u.Host
	if segment, _, _ := strings.Cut(strings.TrimPrefix(u.EscapedPath(), "/"), "/"); segment != "" {
		prefix += "/" + segment
	}
	return prefix, true
}

// NameFragment returns the first n runes of the trimmed name.
func NameFragment(name string, n int) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}
