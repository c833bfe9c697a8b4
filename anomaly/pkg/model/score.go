package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	// MinScore and MaxScore bound a valid score, inclusive.
	MinScore = 0.0
	MaxScore = 1.0
)

// Score is the score field of a create request. It decodes from a JSON
// number or a numeric string and remembers inputs that are blank or not
// numbers so validation can report them.
type Score struct {
	raw     string
	value   float64
	numeric bool
}

// NewScore returns a numeric Score.
func NewScore(v float64) *Score {
	return &Score{raw: strconv.FormatFloat(v, 'f', -1, 64), value: v, numeric: true}
}

// UnmarshalJSON never fails on a well-formed JSON value; non-numeric input is
// kept and reported by Numeric.
func (s *Score) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}

	*s = Score{}
	switch t := v.(type) {
	case json.Number:
		s.raw = t.String()
	case string:
		s.raw = t
	case nil:
		return nil
	default:
		s.raw = string(data)
		return nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s.raw), 64)
	if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		s.value = f
		s.numeric = true
	}
	return nil
}

// MarshalJSON renders a numeric score as a number and anything else as the
// original string.
func (s Score) MarshalJSON() ([]byte, error) {
	if s.numeric {
		return json.Marshal(s.value)
	}
	return json.Marshal(s.raw)
}

// Blank reports whether the score is missing or whitespace only.
func (s *Score) Blank() bool {
	return s == nil || strings.TrimSpace(s.raw) == ""
}

// Numeric reports whether the score parsed as a finite number.
func (s *Score) Numeric() bool {
	return s != nil && s.numeric
}

// Value returns the parsed score. It is zero unless Numeric is true.
func (s *Score) Value() float64 {
	if s == nil {
		return 0
	}
	return s.value
}

// InRange reports whether a numeric score lies in [MinScore, MaxScore].
func (s *Score) InRange() bool {
	return s.Numeric() && s.value >= MinScore && s.value <= MaxScore
}
