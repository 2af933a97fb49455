package ingest

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/david/scholarship-finder/internal/models"
)

var (
	amountNumber = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?\s*[kK]?`)
	variesWords  = []string{"varies", "various", "variable", "vary", "up to full tuition", "full tuition", "full ride", "tbd"}
)

// parseAmount reads an award from a raw value. Ranges resolve to their upper
// bound; words like "varies" produce models.Varying; anything else is unknown.
func parseAmount(v any) models.Amount {
	switch val := v.(type) {
	case float64:
		return positive(val)
	case int:
		return positive(float64(val))
	case int64:
		return positive(float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return models.Amount{}
		}
		return positive(f)
	case string:
		return parseAmountText(val)
	}
	return models.Amount{}
}

func parseAmountText(text string) models.Amount {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return models.Amount{}
	}

	var best, marked, plain float64
	for _, loc := range amountNumber.FindAllStringIndex(lower, -1) {
		m := strings.TrimSpace(lower[loc[0]:loc[1]])
		mult := 1.0
		if strings.HasSuffix(m, "k") {
			mult = 1000
			m = strings.TrimSpace(strings.TrimSuffix(m, "k"))
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			continue
		}
		f *= mult
		switch {
		case currencyMarked(lower, loc[0], loc[1]):
			marked = max(marked, f)
		case !yearLike(m, mult):
			plain = max(plain, f)
		default:
			best = max(best, f)
		}
	}
	// Currency figures beat bare numbers, and bare numbers beat years.
	switch {
	case marked > 0:
		best = marked
	case plain > 0:
		best = plain
	}
	if best > 0 {
		return models.Amount{Value: best}
	}

	for _, w := range variesWords {
		if strings.Contains(lower, w) {
			return models.Varying
		}
	}
	return models.Amount{}
}

func currencyMarked(text string, start, end int) bool {
	before := strings.TrimRight(text[:start], " ")
	after := strings.TrimLeft(text[end:], " ")
	return strings.HasSuffix(before, "$") || strings.HasSuffix(before, "usd") ||
		strings.HasPrefix(after, "usd") || strings.HasPrefix(after, "dollars")
}

// yearLike reports a bare four digit number between 1900 and 2100.
func yearLike(m string, mult float64) bool {
	if mult != 1 || len(m) != 4 {
		return false
	}
	y, err := strconv.Atoi(m)
	return err == nil && y >= 1900 && y <= 2100
}

func positive(f float64) models.Amount {
	if f <= 0 {
		return models.Amount{}
	}
	return models.Amount{Value: f}
}
