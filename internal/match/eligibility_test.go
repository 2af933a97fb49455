package match

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/david/scholarship-finder/internal/models"
)

func gpa(v float64) *float64 { return &v }

func record(name, eligibility string, amount float64) models.Scholarship {
	return models.Scholarship{
		Name:        models.StringPtr(name),
		Eligibility: eligibility,
		Amount:      models.Amount{Value: amount},
	}
}

func exampleProfile() models.ApplicantProfile {
	return models.ApplicantProfile{
		GPA:             gpa(3.8),
		Major:           "Computer Science",
		Ethnicity:       "Asian",
		Gender:          "female",
		State:           "CA",
		FirstGeneration: true,
	}
}

func TestEvaluateExampleScenario(t *testing.T) {
	rec := record("CS Diversity Grant", "first generation computer science students in California", 5000)
	rec.Deadline = models.StringPtr("2099-01-01")

	got := Evaluate(rec, exampleProfile())
	assert.True(t, got.Passes)
	assert.Equal(t, 95, got.Score)
}

func TestEvaluateHardExclusions(t *testing.T) {
	male := models.ApplicantProfile{Gender: "male", Major: "Biology"}
	tests := []struct {
		name    string
		rec     models.Scholarship
		profile models.ApplicantProfile
		reason  string
	}{
		{"aggregator listing", record("Fastweb Monthly Giveaway", "", 1000), male, ReasonAggregator},
		{"international without interest", record("DAAD Study Scholarship", "Graduate study in Germany", 9000), male, ReasonInternational},
		{"military without signal", record("Army ROTC Award", "For cadets in the ROTC program", 5000), male, ReasonMilitary},
		{"zero amount", record("Nice Award", "biology students", 0), male, ReasonNoAmount},
		{"women only for male applicant", record("Women in Biology", "Open to women pursuing biology", 2000), male, ReasonGender},
		{"men only for female applicant", record("Brothers Fund", "Open to male students", 2000), exampleProfile(), ReasonGender},
		{"ethnicity mismatch", record("Hispanic Scholars Fund", "Hispanic or Latino students only", 2500), exampleProfile(), ReasonEthnicity},
		{"ethnicity unstated", record("Black Student Award", "Black or African American students", 2500), male, ReasonEthnicity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.rec, tt.profile)
			assert.Equal(t, Eligibility{Score: 0, Passes: false, Reason: tt.reason}, got)
		})
	}
}

func TestEvaluateExclusionEscapes(t *testing.T) {
	p := models.ApplicantProfile{Gender: "female"}

	abroad := p
	abroad.StudyAbroad = true
	assert.True(t, Evaluate(record("Japan Exchange Award", "Study in Japan", 3000), abroad).Passes)

	assert.True(t, Evaluate(record("Military Family Award", "For dependents of military members", 3000), p).Passes)

	veteran := p
	veteran.Military = true
	assert.True(t, Evaluate(record("Veterans Award", "For veterans", 3000), veteran).Passes)

	assert.False(t, Evaluate(record("Varies Award", "any student", 0), p).Passes)
	varies := record("Varies Award", "any student", 0)
	varies.Amount = models.Varying
	assert.True(t, Evaluate(varies, p).Passes, "varying amount is not missing")

	assert.True(t, Evaluate(record("Women in STEM", "female engineering students", 3000), p).Passes)
	assert.True(t, Evaluate(record("Open Award", "men and women alike", 3000), models.ApplicantProfile{Gender: "male"}).Passes)

	latina := models.ApplicantProfile{Ethnicity: "Latina"}
	assert.True(t, Evaluate(record("Hispanic Scholars Fund", "Hispanic students", 2500), latina).Passes)
}

// Hard exclusions dominate every soft boost.
func TestEvaluateZeroAmountDominates(t *testing.T) {
	rec := record("Computer Science First Generation California Award",
		"first generation computer science students in California with a 3.0 GPA", 0)
	got := Evaluate(rec, exampleProfile())
	assert.Equal(t, 0, got.Score)
	assert.False(t, got.Passes)
}

func TestEvaluateScoreCapped(t *testing.T) {
	rec := record("Asian American Computer Science Award",
		"first-generation asian computer science students in California, minimum 3.5 GPA", 10000)
	got := Evaluate(rec, exampleProfile())
	assert.True(t, got.Passes)
	assert.Equal(t, 95, got.Score)
}

func TestEvaluateSoftBoosts(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		profile models.ApplicantProfile
		want    int
	}{
		{"base only", "any enrolled student", models.ApplicantProfile{Major: "History"}, 50},
		{"major", "students majoring in history", models.ApplicantProfile{Major: "History"}, 75},
		{"major token", "nursing students", models.ApplicantProfile{Major: "Nursing Science"}, 75},
		{"stem to stem", "engineering students", models.ApplicantProfile{Major: "Mathematics"}, 70},
		{"first gen ignored when not first gen", "first generation students", models.ApplicantProfile{}, 50},
		{"first gen", "first-gen students", models.ApplicantProfile{FirstGeneration: true}, 75},
		{"ethnicity", "black students", models.ApplicantProfile{Ethnicity: "African American"}, 70},
		{"state name", "residents of texas", models.ApplicantProfile{State: "TX"}, 65},
		{"state full name in profile", "Ohio residents", models.ApplicantProfile{State: "Ohio"}, 65},
		{"state code is case sensitive", "students in college", models.ApplicantProfile{State: "IN"}, 50},
		{"state code", "IN residents", models.ApplicantProfile{State: "in"}, 65},
		{"gpa met", "minimum 3.0 GPA", models.ApplicantProfile{GPA: gpa(3.2)}, 60},
		{"gpa of", "GPA of 3.5 or higher", models.ApplicantProfile{GPA: gpa(3.5)}, 60},
		{"gpa not met", "3.5 GPA required", models.ApplicantProfile{GPA: gpa(3.1)}, 50},
		{"gpa unknown", "3.5 GPA required", models.ApplicantProfile{}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(record("Award", tt.text, 1000), tt.profile)
			assert.True(t, got.Passes)
			assert.Equal(t, tt.want, got.Score)
		})
	}
}

func TestEvaluateNeverPanics(t *testing.T) {
	recs := []models.Scholarship{
		{},
		{Name: models.StringPtr("")},
		{Name: models.StringPtr("(((["), Eligibility: "gpa gpa gpa 9.99 \\b"},
	}
	for _, rec := range recs {
		assert.NotPanics(t, func() {
			Evaluate(rec, models.ApplicantProfile{State: "(", Major: "[", Ethnicity: "*"})
		})
	}
}

func TestContainsWordMatchesRegexpBoundaries(t *testing.T) {
	cases := []string{"nursing", "art", "ca", "CA", "new york", "a", "x"}
	texts := []string{
		"open to nursing students",
		"nursing-bound applicants",
		"smart artists",
		"art_history majors",
		"residents of CA only",
		"CAlifornia",
		"new york, new jersey",
		"a",
		"",
		"x9x",
	}
	for _, word := range cases {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
		for _, text := range texts {
			assert.Equal(t, re.MatchString(text), containsWord(text, word), "%q in %q", word, text)
		}
	}
}

func TestStateMatchesCodeAndName(t *testing.T) {
	text := "Open to residents of TX and New Mexico"
	lower := strings.ToLower(text)
	assert.True(t, stateMatches(text, lower, "tx"))
	assert.True(t, stateMatches(text, lower, "NM"))
	assert.True(t, stateMatches(text, lower, "new mexico"))
	assert.False(t, stateMatches(text, lower, "CA"))
	assert.False(t, stateMatches("contexts", "contexts", "TX"))
}
