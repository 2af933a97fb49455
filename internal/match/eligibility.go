// Package match ranks scholarships for an applicant profile: a rule based
// eligibility filter over stored records, an AI oracle, and the aggregator
// that merges both into one ranked list.
package match

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/david/scholarship-finder/internal/models"
)

const (
	baseScore = 50
	maxScore  = 95

	boostMajor     = 25
	boostSTEM      = 20
	boostFirstGen  = 25
	boostEthnicity = 20
	boostState     = 15
	boostGPA       = 10
)

// Exclusion reasons reported by Evaluate.
const (
	ReasonAggregator    = "aggregator listing"
	ReasonInternational = "international study"
	ReasonMilitary      = "military affiliation required"
	ReasonNoAmount      = "no award amount"
	ReasonGender        = "gender restricted"
	ReasonEthnicity     = "ethnicity restricted"
)

// Eligibility is the outcome of evaluating one record against one profile.
type Eligibility struct {
	Score  int
	Passes bool
	Reason string
}

var (
	aggregatorRe = wordList(
		"fastweb", "scholarships.com", "niche", "bold.org", "going merry", "unigo",
		"cappex", "scholarshipowl", "scholarship owl", "scholly", "raiseme", "chegg",
	)
	internationalRe = wordList(
		"japan", "japanese", "germany", "german", "europe", "european", "study abroad",
		"fulbright", "daad", "erasmus", "mext", "chevening", "gilman", "boren",
	)
	militaryRe = wordList(
		"military", "rotc", "veteran", "veterans", "armed forces", "army", "navy",
		"air force", "marine corps", "coast guard", "national guard",
	)
	dependentRe = regexp.MustCompile(`(?i)\bdependents?\b`)

	femaleRe = wordList("women", "woman", "female", "females", "girl", "girls")
	maleRe   = wordList("men", "man", "male", "males", "boy", "boys")

	stemRe = wordList(
		"stem", "science", "sciences", "technology", "engineering", "engineer", "math",
		"mathematics", "computer", "computing", "software", "physics", "chemistry",
		"biology", "data",
	)
	firstGenRe = regexp.MustCompile(`(?i)\bfirst[- ]?gen(eration)?\b`)
	gpaRe      = regexp.MustCompile(`(?i)(?:gpa|grade point average)\D{0,20}?([0-4](?:\.\d{1,2})?)|([0-4]\.\d{1,2})\s*(?:\+|or (?:higher|above|better))?\s*(?:cumulative\s+|unweighted\s+|weighted\s+)?(?:gpa|grade point)`)
)

type ethnicity struct {
	key string
	re  *regexp.Regexp
}

var ethnicities = []ethnicity{
	{"hispanic", wordList("hispanic", "latino", "latina", "latinx", "latine")},
	{"black", wordList("black", "african american", "african-american")},
	{"asian", wordList("asian", "asian american", "asian-american", "pacific islander", "aapi")},
	{"native", wordList("native american", "american indian", "alaska native", "indigenous", "tribal")},
}

var majorStopwords = map[string]bool{
	"science": true, "sciences": true, "studies": true, "arts": true, "and": true,
	"of": true, "the": true, "general": true, "major": true, "undecided": true,
}

// Evaluate applies the hard exclusions in order, then the additive boosts.
// It never panics; records with little text score the base value.
func Evaluate(rec models.Scholarship, profile models.ApplicantProfile) Eligibility {
	text := strings.ToLower(rec.Text())
	original := rec.Text()

	if reason := hardExclusion(rec, text, profile); reason != "" {
		return Eligibility{Score: 0, Passes: false, Reason: reason}
	}

	score := baseScore
	if majorMatches(text, profile.Major) {
		score += boostMajor
	}
	if stemRe.MatchString(profile.Major) && stemRe.MatchString(text) {
		score += boostSTEM
	}
	if profile.FirstGeneration && firstGenRe.MatchString(text) {
		score += boostFirstGen
	}
	if ethnicityMatches(text, profile.Ethnicity) {
		score += boostEthnicity
	}
	if stateMatches(original, text, profile.State) {
		score += boostState
	}
	if gpaMet(text, profile.GPA) {
		score += boostGPA
	}
	if score > maxScore {
		score = maxScore
	}
	return Eligibility{Score: score, Passes: true}
}

func hardExclusion(rec models.Scholarship, text string, p models.ApplicantProfile) string {
	if aggregatorRe.MatchString(rec.DisplayName()) {
		return ReasonAggregator
	}
	if internationalRe.MatchString(text) && !p.StudyAbroad {
		return ReasonInternational
	}
	if militaryRe.MatchString(text) && !dependentRe.MatchString(text) && !militarySignal(p) {
		return ReasonMilitary
	}
	if rec.Amount.Missing() {
		return ReasonNoAmount
	}
	if genderConflict(text, p.Gender) {
		return ReasonGender
	}
	if ethnicityConflict(text, p.Ethnicity) {
		return ReasonEthnicity
	}
	return ""
}

func militarySignal(p models.ApplicantProfile) bool {
	return p.Military || militaryRe.MatchString(p.Activities+" "+p.Interests)
}

func normalizeGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "female", "f", "woman", "girl":
		return "female"
	case "male", "m", "man", "boy":
		return "male"
	}
	return ""
}

// genderConflict fires only when the text names one gender and not the other.
func genderConflict(text, gender string) bool {
	female, male := femaleRe.MatchString(text), maleRe.MatchString(text)
	switch normalizeGender(gender) {
	case "male":
		return female && !male
	case "female":
		return male && !female
	}
	return false
}

func ethnicityKeys(s string) map[string]bool {
	keys := map[string]bool{}
	for _, e := range ethnicities {
		if e.re.MatchString(s) {
			keys[e.key] = true
		}
	}
	return keys
}

func ethnicityConflict(text, applicant string) bool {
	restricted := ethnicityKeys(text)
	if len(restricted) == 0 {
		return false
	}
	for key := range ethnicityKeys(applicant) {
		if restricted[key] {
			return false
		}
	}
	return true
}

func ethnicityMatches(text, applicant string) bool {
	if strings.TrimSpace(applicant) == "" {
		return false
	}
	restricted := ethnicityKeys(text)
	for key := range ethnicityKeys(applicant) {
		if restricted[key] {
			return true
		}
	}
	return false
}

func majorMatches(text, major string) bool {
	major = strings.ToLower(strings.TrimSpace(major))
	if major == "" {
		return false
	}
	if strings.Contains(text, major) {
		return true
	}
	for _, token := range strings.FieldsFunc(major, func(r rune) bool {
		return r == ' ' || r == '/' || r == ',' || r == '&' || r == '-'
	}) {
		if len(token) < 4 || majorStopwords[token] {
			continue
		}
		if containsWord(text, token) {
			return true
		}
	}
	return false
}

// stateMatches accepts either a two letter code or a full state name in the
// profile. Codes are matched case sensitively so "IN" does not match "in".
func stateMatches(original, lower, state string) bool {
	state = strings.TrimSpace(state)
	if state == "" {
		return false
	}
	code := strings.ToUpper(state)
	name, ok := usStates[code]
	if !ok {
		name = strings.ToLower(state)
		code = ""
		for c, n := range usStates {
			if n == name {
				code = c
				break
			}
		}
	}
	if containsWord(lower, name) {
		return true
	}
	return code != "" && containsWord(original, code)
}

func gpaMet(text string, gpa *float64) bool {
	if gpa == nil {
		return false
	}
	m := gpaRe.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil || threshold <= 0 {
		return false
	}
	return *gpa >= threshold
}

// containsWord reports whether word occurs in text between word boundaries,
// with the same ASCII boundary rules as regexp's \b.
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for from := 0; from <= len(text)-len(word); {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)
		if atBoundary(text, start) && atBoundary(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func atBoundary(text string, i int) bool {
	before := i > 0 && isWordByte(text[i-1])
	after := i < len(text) && isWordByte(text[i])
	return before != after
}

func isWordByte(b byte) bool {
	return b == '_' || '0' <= b && b <= '9' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

func wordList(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

var usStates = map[string]string{
	"AL": "alabama", "AK": "alaska", "AZ": "arizona", "AR": "arkansas", "CA": "california",
	"CO": "colorado", "CT": "connecticut", "DE": "delaware", "FL": "florida", "GA": "georgia",
	"HI": "hawaii", "ID": "idaho", "IL": "illinois", "IN": "indiana", "IA": "iowa",
	"KS": "kansas", "KY": "kentucky", "LA": "louisiana", "ME": "maine", "MD": "maryland",
	"MA": "massachusetts", "MI": "michigan", "MN": "minnesota", "MS": "mississippi", "MO": "missouri",
	"MT": "montana", "NE": "nebraska", "NV": "nevada", "NH": "new hampshire", "NJ": "new jersey",
	"NM": "new mexico", "NY": "new york", "NC": "north carolina", "ND": "north dakota", "OH": "ohio",
	"OK": "oklahoma", "OR": "oregon", "PA": "pennsylvania", "RI": "rhode island", "SC": "south carolina",
	"SD": "south dakota", "TN": "tennessee", "TX": "texas", "UT": "utah", "VT": "vermont",
	"VA": "virginia", "WA": "washington", "WV": "west virginia", "WI": "wisconsin", "WY": "wyoming",
	"DC": "district of columbia",
}
