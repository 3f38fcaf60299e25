package units

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.String())

	v, err = ParseUnits("0.000001", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int64())

	_, err = ParseUnits("0.0000001", 6)
	assert.Error(t, err)
	_, err = ParseUnits("-1", 18)
	assert.Error(t, err)
	_, err = ParseUnits("abc", 18)
	assert.Error(t, err)
}

func TestFormatBalance(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1"},
		{"1.0", "1"},
		{"0.1", "0.1"},
		{"0.1234567", "0.1235"},
		{"0.00005", "< 0.0001"},
		{"12.30000", "12.3"},
	}
	for _, c := range cases {
		got := FormatBalance(decimal.RequireFromString(c.in), 4)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestFormatAmount(t *testing.T) {
	wei, _ := new(big.Int).SetString("18000000000000000000", 10)
	assert.Equal(t, "18", FormatAmount(wei, 18))
	assert.Equal(t, "< 0.0001", FormatAmount(big.NewInt(1), 18))
	assert.Equal(t, "0", FormatAmount(nil, 18))
}

func TestFormatSwapAmount(t *testing.T) {
	assert.Equal(t, "0", FormatSwapAmount(decimal.Zero))
	assert.Equal(t, "< 0.000001", FormatSwapAmount(decimal.RequireFromString("0.0000001")))
	assert.Equal(t, "1.123456", FormatSwapAmount(decimal.RequireFromString("1.1234569")))
	assert.Equal(t, "2", FormatSwapAmount(decimal.RequireFromString("2.0000001")))
}

func TestFormatAPY(t *testing.T) {
	assert.Equal(t, "14", FormatAPY(decimal.NewFromInt(14)))
	assert.Equal(t, "7.13", FormatAPY(decimal.RequireFromString("7.125")))
}

func TestOdds(t *testing.T) {
	o, err := ParseOdds("2.505")
	require.NoError(t, err)
	assert.Equal(t, uint64(250), o)
	assert.True(t, OddsMultiplier(180).Equal(decimal.RequireFromString("1.8")))

	_, err = ParseOdds("1")
	assert.Error(t, err)
}
