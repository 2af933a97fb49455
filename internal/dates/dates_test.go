package dates

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"iso", "2026-03-15", "2026-03-15"},
		{"rfc3339", "2026-03-15T23:59:00Z", "2026-03-15"},
		{"rss pubDate", "Mon, 02 Mar 2026 10:00:00 +0000", "2026-03-02"},
		{"us slashes", "3/15/2026", "2026-03-15"},
		{"long month", "March 15, 2026", "2026-03-15"},
		{"prefixed", "Deadline: Jan 5, 2027", "2027-01-05"},
		{"embedded in prose", "Applications close on the 1st of the month, final date November 30th, 2026.", "2026-11-30"},
		{"day first", "15 March 2026", "2026-03-15"},
		{"ordinal day first", "applications due 1st Sept 2026", "2026-09-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got == nil {
				t.Fatalf("Normalize(%q) = nil, want %s", tt.in, tt.want)
			}
			if *got != tt.want {
				t.Errorf("Normalize(%q) = %s, want %s", tt.in, *got, tt.want)
			}
		})
	}
}

func TestNormalizeUnparseable(t *testing.T) {
	for _, in := range []string{"", "   ", "rolling", "varies by program", "soon"} {
		if got := Normalize(in); got != nil {
			t.Errorf("Normalize(%q) = %s, want nil", in, *got)
		}
	}
}

func TestBefore(t *testing.T) {
	now := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)
	past := "2020-01-01"
	today := "2026-10-16"
	future := "2099-01-01"
	junk := "whenever"

	if !Before(&past, now) {
		t.Error("expected 2020-01-01 to be before now")
	}
	if Before(&today, now) {
		t.Error("a deadline of today has not passed yet")
	}
	if Before(&future, now) {
		t.Error("future deadline reported as passed")
	}
	if Before(nil, now) || Before(&junk, now) {
		t.Error("absent or unparseable deadline must never be before now")
	}
}
