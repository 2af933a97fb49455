package ingest

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/david/scholarship-finder/internal/dates"
	"github.com/david/scholarship-finder/internal/models"
)

const (
	maxNameLen       = 300
	maxTextLen       = 8000
	defaultProvider  = "Various"
	fieldName        = "name"
	fieldProvider    = "provider"
	fieldAmount      = "amount"
	fieldEligibility = "eligibility"
	fieldDescription = "description"
	fieldDeadline    = "deadline"
	fieldLink        = "link"
	fieldSourceID    = "sourceId"
	fieldRegion      = "region"
	fieldCategory    = "category"
)

// fallbackKeys is the ordered accessor list per canonical field.
var fallbackKeys = FieldMap{
	fieldName:        {"name", "title", "scholarship_name", "scholarshipName", "award_name", "awardName"},
	fieldProvider:    {"provider", "organization", "organisation", "sponsor", "funder", "author", "org"},
	fieldAmount:      {"amount", "award_amount", "awardAmount", "max_amount", "value", "award", "prize"},
	fieldEligibility: {"eligibility", "requirements", "criteria", "who_can_apply", "description", "summary"},
	fieldDescription: {"description", "summary", "content", "details", "body"},
	fieldDeadline:    {"deadline", "due_date", "dueDate", "close_date", "closeDate", "deadline_date", "application_deadline", "applicationDeadline"},
	fieldLink:        {"link", "url", "application_url", "applicationUrl", "apply_url", "applyUrl", "website", "href", "guid"},
	fieldSourceID:    {"id", "source_id", "sourceId", "guid", "external_id", "externalId"},
	fieldRegion:      {"region", "location", "state", "country"},
	fieldCategory:    {"category", "categories", "type", "field", "tags"},
}

var ugcPolicy = bluemonday.UGCPolicy()

// keysFor returns the built-in keys followed by the provider-specific ones.
func keysFor(field string, extra FieldMap) []string {
	keys := append([]string(nil), fallbackKeys[field]...)
	return append(keys, extra[field]...)
}

// Normalize maps a raw provider item into the canonical record shape. It does
// not fail: missing or unusable values become nil or defaults. The caller
// decides whether a nil name or link needs review.
func Normalize(raw RawItem, source string, extra FieldMap) models.Scholarship {
	rec := models.Scholarship{
		Source:   source,
		Provider: defaultProvider,
	}

	if name, ok := firstText(raw, keysFor(fieldName, extra)...); ok {
		if name = TruncateText(HTMLToText(name), maxNameLen); name != "" {
			rec.Name = &name
		}
	}
	if provider, ok := firstText(raw, keysFor(fieldProvider, extra)...); ok {
		if provider = HTMLToText(provider); provider != "" {
			rec.Provider = provider
		}
	}
	if v, ok := firstValue(raw, keysFor(fieldAmount, extra)...); ok {
		rec.Amount = parseAmount(v)
	}
	if eligibility, ok := firstText(raw, keysFor(fieldEligibility, extra)...); ok {
		rec.Eligibility = TruncateText(HTMLToText(eligibility), maxTextLen)
	}
	if description, ok := firstText(raw, keysFor(fieldDescription, extra)...); ok {
		rec.Description = TruncateText(sanitizeHTML(description), maxTextLen)
	}
	if deadline, ok := firstText(raw, keysFor(fieldDeadline, extra)...); ok {
		rec.Deadline = dates.Normalize(HTMLToText(deadline))
	}
	rec.Link = firstLink(raw, keysFor(fieldLink, extra))
	if id, ok := firstText(raw, keysFor(fieldSourceID, extra)...); ok {
		rec.SourceID = sanitizeUTF8(id)
	}
	if region, ok := firstText(raw, keysFor(fieldRegion, extra)...); ok {
		rec.Region = normalizeSpace(region)
	}
	if category, ok := firstText(raw, keysFor(fieldCategory, extra)...); ok {
		rec.Category = normalizeSpace(category)
	}

	if payload, err := json.Marshal(raw); err == nil {
		rec.RawPayload = payload
	}
	return rec
}

// firstLink returns the first absolute http(s) URL among keys.
func firstLink(raw RawItem, keys []string) *string {
	for _, k := range keys {
		v, ok := valueAt(raw, k)
		if !ok {
			continue
		}
		s, ok := textOf(v)
		if !ok {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(s))
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		link := u.String()
		return &link
	}
	return nil
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return sanitizeUTF8(normalizeSpace(html))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return sanitizeUTF8(normalizeSpace(html))
	}
	doc.Find("script, style").Remove()
	return sanitizeUTF8(normalizeSpace(doc.Text()))
}

// sanitizeHTML keeps safe markup in descriptions.
func sanitizeHTML(html string) string {
	return strings.TrimSpace(sanitizeUTF8(ugcPolicy.Sanitize(html)))
}
