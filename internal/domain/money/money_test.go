package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound_HalfToEven(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		scale int32
		want  string
	}{
		{name: "half rounds to even below", in: "2.125", scale: 2, want: "2.12"},
		{name: "half rounds to even above", in: "2.135", scale: 2, want: "2.14"},
		{name: "above half rounds up", in: "2.1251", scale: 2, want: "2.13"},
		{name: "below half rounds down", in: "2.1249", scale: 2, want: "2.12"},
		{name: "negative half to even", in: "-2.125", scale: 2, want: "-2.12"},
		{name: "fraction scale", in: "0.10005", scale: 4, want: "0.1000"},
		{name: "fraction scale half up to even", in: "0.10015", scale: 4, want: "0.1002"},
		{name: "already exact", in: "219.00", scale: 2, want: "219.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Round(decimal.RequireFromString(tt.in), tt.scale)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got),
				"Round(%s, %d) = %s, want %s", tt.in, tt.scale, got, tt.want)
		})
	}
}

func TestRound_Idempotent(t *testing.T) {
	inputs := []string{
		"2.125", "2.135", "0.005", "-0.005", "219.004999",
		"100", "0.0001", "99999999.999999",
	}

	for _, in := range inputs {
		d := decimal.RequireFromString(in)
		once := Round(d, CurrencyScale)
		twice := Round(once, CurrencyScale)
		assert.True(t, once.Equal(twice), "Round(Round(%s)) = %s, want %s", in, twice, once)
	}
}

func TestCurrencyAndFraction(t *testing.T) {
	d := decimal.RequireFromString("0.123456")
	assert.True(t, decimal.RequireFromString("0.12").Equal(Currency(d)))
	assert.True(t, decimal.RequireFromString("0.1235").Equal(Fraction(d)))
}
