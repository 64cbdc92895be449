package coin

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c, err := Parse("1000000uatom")
	require.NoError(t, err)
	assert.Equal(t, "uatom", c.Denom)
	assert.True(t, c.Amount.Equal(math.NewInt(1000000)))

	c, err = Parse("25ibc/ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, "ibc/ABCDEF", c.Denom)

	for _, bad := range []string{"", "uatom", "10", "-5uatom", "1.5uatom"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestStringRoundTrip(t *testing.T) {
	c := NewInt64("uosmo", 42)
	parsed, err := Parse(c.String())
	require.NoError(t, err)
	assert.True(t, c.Equal(parsed))
}

func TestSubFloor(t *testing.T) {
	c := NewInt64("uatom", 100)
	assert.Equal(t, "40uatom", c.SubFloor(math.NewInt(60)).String())
	assert.Equal(t, "0uatom", c.SubFloor(math.NewInt(160)).String())
}

func TestSubChecked(t *testing.T) {
	c := NewInt64("uatom", 100)
	got, err := c.Sub(math.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, "0uatom", got.String())

	_, err = c.Sub(math.NewInt(101))
	assert.EqualError(t, err, "cannot subtract 101 from 100uatom")
}

func TestMulDecTruncates(t *testing.T) {
	third := math.LegacyMustNewDecFromStr("0.333333333333333333")
	assert.Equal(t, "33", MulDec(math.NewInt(100), third).String())
	assert.Equal(t, "0", MulDec(math.NewInt(2), third).String())
}

func TestQuoDec(t *testing.T) {
	assert.Equal(t, "500", QuoDec(math.NewInt(1000), math.LegacyNewDec(2)).String())
	assert.Equal(t, "0", QuoDec(math.NewInt(1000), math.LegacyZeroDec()).String())
}

func TestZeroValueCoinIsSafe(t *testing.T) {
	var c Coin
	assert.True(t, c.IsZero())
	assert.Equal(t, "5", c.Add(math.NewInt(5)).Amount.String())
}
