// Package model holds the anomaly data types shared by the service, its
// tooling and the external queue worker.
package model

import "fmt"

// Severity classifies how critical an anomaly is. The set is fixed and
// ordered: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Severities returns the valid severities in ascending order.
func Severities() []Severity {
	out := make([]Severity, len(severities))
	copy(out, severities)
	return out
}

// Rank returns the position of s in the ordered set, or -1 if s is not a
// member. Matching is exact: "Critical" is not a severity.
func (s Severity) Rank() int {
	for i, v := range severities {
		if v == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the fixed severities.
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// Less orders severities by rank.
func (s Severity) Less(other Severity) bool {
	return s.Rank() < other.Rank()
}

// ParseSeverity returns s as a Severity if it is valid.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}
