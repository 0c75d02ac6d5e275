package folio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits carried by an Amount.
const Decimals = 18

// newDecimal is a convenient factory for decimal.Decimal
func newDecimal[T int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return v
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	case uint:
		return decimal.NewFromUint64(uint64(v))
	case uint32:
		return decimal.NewFromUint64(uint64(v))
	case uint64:
		return decimal.NewFromUint64(v)
	default:
		panic("unsupported type")
	}
}

// Amount is an 18-decimal fixed point quantity (base currency, asset balance,
// shares, weights and fee rate all use it).
//
// It stores the integral number of 1e-18 units so that every product followed
// by a division can be floored exactly like integer arithmetic.
type Amount struct {
	value decimal.Decimal // in 1e-18 units, always integral
}

// U returns the Amount made of 'units' raw 1e-18 units.
func U[T int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal](units T) Amount {
	return Amount{value: newDecimal(units).Truncate(0)}
}

// W returns the Amount worth 'whole' units, i.e. whole * 1e18 raw units.
func W[T int | int32 | int64 | uint | uint32 | uint64](whole T) Amount {
	return Amount{value: newDecimal(whole).Shift(Decimals)}
}

// ParseAmount parses a decimal string expressed in whole units ("1.5") into an Amount.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, ErrInvalidAmount)
	}
	d = d.Shift(Decimals)
	if !d.IsInteger() {
		return Amount{}, fmt.Errorf("invalid amount %q: more than %d decimals", s, Decimals)
	}
	return Amount{value: d}, nil
}

// MustParseAmount is like ParseAmount but panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseUnits parses a raw integer count of 1e-18 units.
func ParseUnits(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid units %q: %w", s, err)
	}
	if d.IsNegative() || !d.IsInteger() {
		return Amount{}, fmt.Errorf("invalid units %q: %w", s, ErrInvalidAmount)
	}
	return Amount{value: d}, nil
}

func (a Amount) Add(b Amount) Amount       { return Amount{value: a.value.Add(b.value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{value: a.value.Sub(b.value)} }
func (a Amount) Equal(b Amount) bool       { return a.value.Equal(b.value) }
func (a Amount) LessThan(b Amount) bool    { return a.value.LessThan(b.value) }
func (a Amount) GreaterThan(b Amount) bool { return a.value.GreaterThan(b.value) }
func (a Amount) IsZero() bool              { return a.value.IsZero() }
func (a Amount) IsPositive() bool          { return a.value.IsPositive() }
func (a Amount) IsNegative() bool          { return a.value.IsNegative() }

// Units returns the raw integer count of 1e-18 units.
func (a Amount) Units() string { return a.value.String() }

// Decimal returns the value in whole units.
func (a Amount) Decimal() decimal.Decimal { return a.value.Shift(-Decimals) }

// String returns the value in whole units, e.g. "1.5".
func (a Amount) String() string { return a.Decimal().String() }

// SubFloor subtracts b from a and floors the result at zero.
func (a Amount) SubFloor(b Amount) Amount {
	if a.value.LessThanOrEqual(b.value) {
		return Amount{}
	}
	return Amount{value: a.value.Sub(b.value)}
}

// Min returns the smallest of a and b.
func (a Amount) Min(b Amount) Amount {
	if b.value.LessThan(a.value) {
		return b
	}
	return a
}

// MulDiv returns floor(a * num / den). It panics if den is zero.
func (a Amount) MulDiv(num, den Amount) Amount {
	if den.IsZero() {
		panic("folio: MulDiv by zero")
	}
	q, _ := a.value.Mul(num.value).QuoRem(den.value, 0)
	return Amount{value: q}
}

// MarshalJSON writes the amount in whole units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return a.Decimal().MarshalJSON()
}

// UnmarshalJSON reads an amount written in whole units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	d = d.Shift(Decimals)
	if !d.IsInteger() {
		return fmt.Errorf("invalid amount %s: more than %d decimals", data, Decimals)
	}
	a.value = d
	return nil
}
