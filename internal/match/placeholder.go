package match

import "github.com/david/scholarship-finder/internal/models"

// Placeholders is the illustrative fallback shown when nothing matched.
// Entries are tagged so clients can tell them apart from real matches.
func Placeholders() []models.MatchCandidate {
	entries := []struct {
		name, provider, eligibility, link string
		amount                            models.Amount
	}{
		{
			name:        "Federal Pell Grant",
			provider:    "U.S. Department of Education",
			eligibility: "Undergraduates with exceptional financial need. Apply through the FAFSA.",
			link:        "https://studentaid.gov/understand-aid/types/grants/pell",
			amount:      models.Amount{Value: 7395},
		},
		{
			name:        "State Need-Based Grant",
			provider:    "Your state higher education agency",
			eligibility: "Residents attending an in-state college; most states use the FAFSA.",
			link:        "https://studentaid.gov/understand-aid/types/grants",
			amount:      models.Varying,
		},
		{
			name:        "Institutional Merit Scholarship",
			provider:    "Your college financial aid office",
			eligibility: "Admitted students; criteria vary by school.",
			amount:      models.Varying,
		},
	}

	out := make([]models.MatchCandidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.MatchCandidate{
			Source:      string(models.ProvenancePlaceholder),
			Name:        e.name,
			Provider:    e.provider,
			Amount:      e.amount,
			Eligibility: e.eligibility,
			Link:        models.StringPtr(e.link),
			Provenance:  models.ProvenancePlaceholder,
		})
	}
	return out
}
