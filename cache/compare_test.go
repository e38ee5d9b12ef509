package cache

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparer_Equal(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		want     bool
		diff     string
	}{
		{name: "identical", expected: `{"a":[1,2]}`, actual: `{"a":[1,2]}`, want: true},
		{name: "int vs float", expected: `{"count":1}`, actual: `{"count":1.0}`, want: true},
		{name: "rounded precision", expected: `[1.5]`, actual: `[1.498]`, want: true},
		{name: "same precision differs", expected: `[1.5]`, actual: `[1.6]`, want: false, diff: "$[0]: 1.5 != 1.6"},
		{name: "missing key", expected: `{"a":1,"b":2}`, actual: `{"a":1}`, want: false, diff: "$: key mismatch missing=[b] extra=[]"},
		{name: "list length", expected: `{"data":[1,2]}`, actual: `{"data":[1]}`, want: false, diff: "$.data: list length 2 != 1"},
		{name: "nested value", expected: `{"p":{"has_more":false}}`, actual: `{"p":{"has_more":true}}`, want: false, diff: "$.p.has_more: false != true"},
		{name: "type change", expected: `{"n":"1"}`, actual: `{"n":1}`, want: false},
		{name: "trailing zero precision", expected: `{"v":2.10}`, actual: `{"v":2.14}`, want: true},
		{name: "trailing zero still differs", expected: `{"v":2.10}`, actual: `{"v":2.16}`, want: false, diff: "$.v: 2.10 != 2.16"},
		{name: "float keeps one place", expected: `[3.000]`, actual: `[3.4]`, want: false},
		{name: "nulls", expected: `[null]`, actual: `[null]`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diff, err := Comparer{}.Equal(json.RawMessage(tt.expected), json.RawMessage(tt.actual))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.diff != "" {
				assert.Equal(t, tt.diff, diff)
			}
		})
	}
}

func TestComparer_NormalizeString(t *testing.T) {
	c := Comparer{NormalizeString: PrefixNormalizer("https://genomics.lbl.gov/enigma-data", "enigma-data-repository")}

	same, _, err := c.Equal(
		json.RawMessage(`{"link":"https://genomics.lbl.gov/enigma-data/reads/x_R1.fastq.gz"}`),
		json.RawMessage(`{"link":"enigma-data-repository/reads/x_R1.fastq.gz"}`),
	)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestComparer_InvalidJSON(t *testing.T) {
	_, _, err := Comparer{}.Equal(json.RawMessage(`{`), json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestDecimalPlaces(t *testing.T) {
	assert.Equal(t, 0, decimalPlaces("12"))
	assert.Equal(t, 2, decimalPlaces("1.25"))
	assert.Equal(t, 3, decimalPlaces("1.5e-2"))
	assert.Equal(t, 1, decimalPlaces("1.5e3"))
	assert.Equal(t, 1, decimalPlaces("2.10"))
	assert.Equal(t, 1, decimalPlaces("3.000"))
	assert.Equal(t, 3, decimalPlaces("1.50e-2"))
}
