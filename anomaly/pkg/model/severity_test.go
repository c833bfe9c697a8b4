package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Rank(t *testing.T) {
	tests := []struct {
		sev  Severity
		rank int
	}{
		{SeverityLow, 0},
		{SeverityMedium, 1},
		{SeverityHigh, 2},
		{SeverityCritical, 3},
		{"extreme", -1},
		{"Critical", -1},
		{"", -1},
	}

	for _, tt := range tests {
		t.Run(string(tt.sev), func(t *testing.T) {
			assert.Equal(t, tt.rank, tt.sev.Rank())
			assert.Equal(t, tt.rank >= 0, tt.sev.Valid())
		})
	}
}

func TestSeverity_Ordering(t *testing.T) {
	all := Severities()
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].Less(all[i]), "%s < %s", all[i-1], all[i])
	}
}

func TestSeverities_ReturnsCopy(t *testing.T) {
	all := Severities()
	all[0] = "mutated"
	assert.Equal(t, SeverityLow, Severities()[0])
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("high")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, sev)

	_, err = ParseSeverity("extreme")
	assert.Error(t, err)
}
