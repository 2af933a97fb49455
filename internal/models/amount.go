package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Amount is a monetary award. The zero value means the amount is unknown.
type Amount struct {
	Value  float64
	Varies bool
}

// Varying is the sentinel for awards whose value differs per recipient.
var Varying = Amount{Varies: true}

// Missing reports whether the award is absent or zero.
func (a Amount) Missing() bool {
	return !a.Varies && a.Value <= 0
}

func (a Amount) MarshalJSON() ([]byte, error) {
	switch {
	case a.Varies:
		return []byte(`"varies"`), nil
	case a.Value <= 0:
		return []byte("null"), nil
	default:
		return json.Marshal(a.Value)
	}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if strings.EqualFold(strings.TrimSpace(s), "varies") {
			*a = Varying
			return nil
		}
		*a = Amount{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Amount{Value: v}
	return nil
}
