package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		blank   bool
		numeric bool
		value   float64
		inRange bool
	}{
		{name: "number", input: `0.93`, numeric: true, value: 0.93, inRange: true},
		{name: "zero boundary", input: `0`, numeric: true, value: 0, inRange: true},
		{name: "one boundary", input: `1.0`, numeric: true, value: 1, inRange: true},
		{name: "above range", input: `1.0000001`, numeric: true, value: 1.0000001},
		{name: "below range", input: `-0.01`, numeric: true, value: -0.01},
		{name: "numeric string", input: `"0.5"`, numeric: true, value: 0.5, inRange: true},
		{name: "padded numeric string", input: `" 0.25 "`, numeric: true, value: 0.25, inRange: true},
		{name: "word", input: `"high"`},
		{name: "empty string", input: `""`, blank: true},
		{name: "whitespace", input: `"  "`, blank: true},
		{name: "NaN string", input: `"NaN"`},
		{name: "infinity string", input: `"Inf"`},
		{name: "boolean", input: `true`},
		{name: "object", input: `{"v":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Score
			require.NoError(t, json.Unmarshal([]byte(tt.input), &s))
			assert.Equal(t, tt.blank, s.Blank())
			assert.Equal(t, tt.numeric, s.Numeric())
			assert.Equal(t, tt.inRange, s.InRange())
			if tt.numeric {
				assert.InDelta(t, tt.value, s.Value(), 1e-12)
			}
		})
	}
}

func TestScore_Missing(t *testing.T) {
	var req CreateAnomalyRequest
	require.NoError(t, json.Unmarshal([]byte(`{"source_ip":"10.0.0.5"}`), &req))
	assert.Nil(t, req.Score)
	assert.True(t, req.Score.Blank())
	assert.False(t, req.Score.Numeric())
	assert.Zero(t, req.Score.Value())

	require.NoError(t, json.Unmarshal([]byte(`{"score":null}`), &req))
	assert.True(t, req.Score.Blank())
}

func TestScore_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(NewScore(0.93))
	require.NoError(t, err)
	assert.Equal(t, `0.93`, string(b))

	var s Score
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &s))
	b, err = json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(b))
}
