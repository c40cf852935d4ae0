// README: Common money value objects used across modules.
package types

import "github.com/shopspring/decimal"

func init() {
	// Amounts go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Money is an amount in minor units (cents). Payments use it; engines work in Decimal.
type Money struct {
	Amount   int64
	Currency string
}

// DefaultCurrency is used when a hub or payment row does not carry one.
const DefaultCurrency = "usd"

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FloorZero clamps negative amounts to zero.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// ToCents converts a 2-decimal amount into minor units.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents converts minor units back into a 2-decimal amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func NewMoney(d decimal.Decimal, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: ToCents(d), Currency: currency}
}
