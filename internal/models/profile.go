package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ApplicantProfile is request scoped and never persisted.
type ApplicantProfile struct {
	GPA             *float64 `json:"gpa" validate:"omitempty,gte=0,lte=5"`
	SAT             *float64 `json:"sat" validate:"omitempty,gte=400,lte=1600"`
	ACT             *float64 `json:"act" validate:"omitempty,gte=1,lte=36"`
	Major           string   `json:"major" validate:"max=200"`
	Ethnicity       string   `json:"ethnicity" validate:"max=200"`
	Gender          string   `json:"gender" validate:"max=50"`
	FirstGeneration bool     `json:"firstGeneration"`
	State           string   `json:"state" validate:"max=50"`
	IncomeBand      string   `json:"incomeBand" validate:"max=50"`
	Activities      string   `json:"activities" validate:"max=4000"`
	Interests       string   `json:"interests" validate:"max=4000"`
	StudyAbroad     bool     `json:"studyAbroad"`
	Military        bool     `json:"military"`
}

// UnmarshalJSON accepts academic metrics as numbers or numeric strings.
func (p *ApplicantProfile) UnmarshalJSON(data []byte) error {
	type plain ApplicantProfile
	aux := struct {
		*plain
		GPA             json.RawMessage `json:"gpa"`
		SAT             json.RawMessage `json:"sat"`
		ACT             json.RawMessage `json:"act"`
		FirstGeneration json.RawMessage `json:"firstGeneration"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if p.GPA, err = looseNumber(aux.GPA); err != nil {
		return fmt.Errorf("gpa: %w", err)
	}
	if p.SAT, err = looseNumber(aux.SAT); err != nil {
		return fmt.Errorf("sat: %w", err)
	}
	if p.ACT, err = looseNumber(aux.ACT); err != nil {
		return fmt.Errorf("act: %w", err)
	}
	p.FirstGeneration = looseBool(aux.FirstGeneration)
	return nil
}

// Summary renders the profile as prose for the oracle prompt.
func (p ApplicantProfile) Summary() string {
	var b strings.Builder
	line := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, strings.TrimSpace(value))
		}
	}
	num := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	line("GPA", num(p.GPA))
	line("SAT", num(p.SAT))
	line("ACT", num(p.ACT))
	line("Intended major", p.Major)
	line("Ethnicity", p.Ethnicity)
	line("Gender", p.Gender)
	if p.FirstGeneration {
		line("First-generation college student", "yes")
	}
	line("State", p.State)
	line("Household income", p.IncomeBand)
	line("Activities", p.Activities)
	line("Interests", p.Interests)
	if p.StudyAbroad {
		line("Interested in studying abroad", "yes")
	}
	if p.Military {
		line("Military affiliation", "yes")
	}
	return b.String()
}

func looseNumber(raw json.RawMessage) (*float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("expected number or numeric string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return &f, nil
}

func looseBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "1", "y":
			return true
		}
	}
	return false
}
