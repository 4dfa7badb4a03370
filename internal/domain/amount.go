package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountDecimals is the number of fractional digits of the stable-value unit.
const AmountDecimals = 6

// MaxAmount bounds any single balance or running total so it fits a signed
// 64-bit storage column.
const MaxAmount Amount = math.MaxInt64

// Amount is a fixed-point quantity in micro-units (1.000000 == 1_000_000).
type Amount uint64

// ParseAmount reads a decimal string such as "12.5" into micro-units.
func ParseAmount(raw string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if d.Sign() <= 0 {
		return 0, ErrZeroAmount
	}
	if !d.Equal(d.Truncate(AmountDecimals)) {
		return 0, fmt.Errorf("%w: more than %d decimals in %q", ErrInvalidAmount, AmountDecimals, raw)
	}
	micro := d.Shift(AmountDecimals)
	if micro.GreaterThan(decimal.NewFromInt(int64(MaxAmount))) {
		return 0, ErrAmountOverflow
	}
	return Amount(micro.IntPart()), nil
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -AmountDecimals)
}

func (a Amount) String() string {
	return a.Decimal().String()
}

// Add returns a+b, failing when the result would exceed MaxAmount.
func (a Amount) Add(b Amount) (Amount, error) {
	if b > MaxAmount || a > MaxAmount-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*a = 0
		return nil
	}
	if d, err := decimal.NewFromString(raw); err == nil && d.IsZero() {
		*a = 0
		return nil
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
