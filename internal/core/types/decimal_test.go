package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioPercent(t *testing.T) {
	tests := []struct {
		name  string
		part  string
		whole string
		want  string
	}{
		{"thirty percent", "9000", "30000", "30"},
		{"over one hundred", "150", "100", "150"},
		{"zero part", "0", "500", "0"},
		{"zero whole is defined as zero", "9000", "0", "0"},
		{"negative part", "-400", "2000", "-20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RatioPercent(MustMoney(tt.part), MustMoney(tt.whole))
			assert.True(t, got.Equal(MustMoney(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestQuantityDecimal(t *testing.T) {
	q := NewQuantityFromFloat64(2.5)
	cost := MustMoney("8.40")
	assert.True(t, q.Decimal().Mul(cost).Equal(MustMoney("21.00")))
}

func TestQuantityString(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0000"},
		{1, "1.0000"},
		{2.5, "2.5000"},
		{0.0001, "0.0001"},
		{-3.25, "-3.2500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewQuantityFromFloat64(tt.in).String())
	}
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	q := NewQuantityFromFloat64(12.3456)

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Equal(t, "12.3456", string(data), "quantity marshals as a JSON number")

	var back Quantity
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, q, back)
}

func TestQuantityUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Quantity
	}{
		{"integer", "3", NewQuantityFromFloat64(3)},
		{"decimal", "2.75", NewQuantityFromFloat64(2.75)},
		{"quoted string", `"1.5"`, NewQuantityFromFloat64(1.5)},
		{"negative", "-0.25", NewQuantityFromFloat64(-0.25)},
		{"extra digits truncated", "1.23456789", NewQuantityFromInt64Scaled(12345)},
		{"null", "null", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			require.NoError(t, json.Unmarshal([]byte(tt.in), &q))
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestQuantityValue(t *testing.T) {
	// NUMERIC columns store natural units: three portions sold must travel
	// as "3.0000", never as the scaled integer 30000.
	v, err := NewQuantityFromFloat64(3).Value()
	require.NoError(t, err)
	assert.Equal(t, "3.0000", v)

	v, err = NewQuantityFromFloat64(-2.5).Value()
	require.NoError(t, err)
	assert.Equal(t, "-2.5000", v)
}

func TestQuantityScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want Quantity
	}{
		{"numeric text", "2.5", NewQuantityFromFloat64(2.5)},
		{"numeric bytes", []byte("0.1250"), NewQuantityFromInt64Scaled(1250)},
		{"integral", int64(2), NewQuantityFromFloat64(2)},
		{"float", 1.5, NewQuantityFromFloat64(1.5)},
		{"null", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			require.NoError(t, q.Scan(tt.src))
			assert.Equal(t, tt.want, q)
		})
	}

	t.Run("unsupported source", func(t *testing.T) {
		var q Quantity
		assert.Error(t, q.Scan(true))
	})
}

func TestQuantityRoundTripThroughDriver(t *testing.T) {
	orig := NewQuantityFromFloat64(2.5)

	v, err := orig.Value()
	require.NoError(t, err)

	var got Quantity
	require.NoError(t, got.Scan(v))
	assert.Equal(t, orig, got)
}
