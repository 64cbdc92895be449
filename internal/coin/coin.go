package coin

import (
	"fmt"
	"regexp"
	"strings"

	"cosmossdk.io/math"
)

// Coin is an amount of a single denom.
type Coin struct {
	Denom  string   `json:"denom"`
	Amount math.Int `json:"amount"`
}

var coinPattern = regexp.MustCompile(`^([0-9]+)([a-zA-Z][a-zA-Z0-9/:._-]{1,127})$`)

// New returns a coin of the given denom and amount.
func New(denom string, amount math.Int) Coin {
	if amount.IsNil() {
		amount = math.ZeroInt()
	}
	return Coin{Denom: denom, Amount: amount}
}

// NewInt64 is a convenience constructor for literal amounts.
func NewInt64(denom string, amount int64) Coin {
	return Coin{Denom: denom, Amount: math.NewInt(amount)}
}

// Zero returns an empty coin of the given denom.
func Zero(denom string) Coin {
	return Coin{Denom: denom, Amount: math.ZeroInt()}
}

// Parse reads a coin in the "1000uatom" form.
func Parse(s string) (Coin, error) {
	m := coinPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Coin{}, fmt.Errorf("invalid coin %q", s)
	}
	amount, ok := math.NewIntFromString(m[1])
	if !ok {
		return Coin{}, fmt.Errorf("invalid coin amount %q", m[1])
	}
	return Coin{Denom: m[2], Amount: amount}, nil
}

// String renders the coin as amount followed by denom.
func (c Coin) String() string {
	return c.amount().String() + c.Denom
}

// IsZero reports whether the amount is zero.
func (c Coin) IsZero() bool {
	return c.amount().IsZero()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (c Coin) IsPositive() bool {
	return c.amount().IsPositive()
}

// Add returns c plus amount.
func (c Coin) Add(amount math.Int) Coin {
	return Coin{Denom: c.Denom, Amount: c.amount().Add(amount)}
}

// SubFloor returns c minus amount, clamped at zero.
func (c Coin) SubFloor(amount math.Int) Coin {
	return Coin{Denom: c.Denom, Amount: SubFloor(c.amount(), amount)}
}

// Sub returns c minus amount, failing when amount exceeds c.
func (c Coin) Sub(amount math.Int) (Coin, error) {
	if amount.GT(c.amount()) {
		return Coin{}, fmt.Errorf("cannot subtract %s from %s", amount, c)
	}
	return Coin{Denom: c.Denom, Amount: c.amount().Sub(amount)}, nil
}

// Equal reports whether both coins have the same denom and amount.
func (c Coin) Equal(o Coin) bool {
	return c.Denom == o.Denom && c.amount().Equal(o.amount())
}

func (c Coin) amount() math.Int {
	if c.Amount.IsNil() {
		return math.ZeroInt()
	}
	return c.Amount
}

// SubFloor returns a-b, or zero when b exceeds a.
func SubFloor(a, b math.Int) math.Int {
	if b.GTE(a) {
		return math.ZeroInt()
	}
	return a.Sub(b)
}

// MulDec multiplies an amount by a fraction and truncates.
func MulDec(amount math.Int, d math.LegacyDec) math.Int {
	return amount.ToLegacyDec().Mul(d).TruncateInt()
}

// QuoDec divides an amount by a price and truncates. Returns zero when the
// price is zero or negative.
func QuoDec(amount math.Int, price math.LegacyDec) math.Int {
	if price.IsNil() || !price.IsPositive() {
		return math.ZeroInt()
	}
	return amount.ToLegacyDec().Quo(price).TruncateInt()
}

// Ratio returns a/b as a decimal. Returns zero when b is zero.
func Ratio(a, b math.Int) math.LegacyDec {
	if b.IsZero() {
		return math.LegacyZeroDec()
	}
	return a.ToLegacyDec().Quo(b.ToLegacyDec())
}

// MinInt returns the smaller of a and b.
func MinInt(a, b math.Int) math.Int {
	if a.LT(b) {
		return a
	}
	return b
}
