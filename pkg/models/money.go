package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
)

// Amount represents a monetary amount as an integer count of minor
// currency units (cents for USD). Amounts are never stored as floats;
// decimal strings exist only at the system boundary.
type Amount struct {
	MinorUnits int64  `json:"minorUnits"`
	Currency   string `json:"currency"`
}

func (a Amount) ToMoney() *money.Money {
	return money.New(a.MinorUnits, a.Currency)
}

// Display formats the amount for humans, e.g. "$54.00".
func (a Amount) Display() string {
	return a.ToMoney().Display()
}

// ToMinorUnits converts a decimal string like "25.99" into minor units,
// honoring the currency's fraction digits. Extra fraction digits are
// truncated, missing ones are zero-padded.
func ToMinorUnits(value, currency string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	switch {
	case strings.HasPrefix(value, "-"):
		neg = true
		value = value[1:]
	case strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")"):
		// accounting-style negatives
		neg = true
		value = value[1 : len(value)-1]
	}
	value = strings.TrimPrefix(value, "$")
	value = strings.ReplaceAll(value, ",", "")

	cur := money.GetCurrency(currency)
	if cur == nil {
		return 0, fmt.Errorf("unknown currency %q", currency)
	}

	split := strings.Split(value, ".")
	if len(split) > 2 {
		return 0, fmt.Errorf("malformed amount %q", value)
	}
	if len(split) == 1 {
		split = append(split, "")
	}
	frac := split[1]
	if len(frac) < cur.Fraction {
		frac += strings.Repeat("0", cur.Fraction-len(frac))
	} else if len(frac) > cur.Fraction {
		frac = frac[:cur.Fraction]
	}
	if split[0] == "" {
		split[0] = "0"
	}

	v, err := strconv.ParseInt(split[0]+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse amount %q: %w", value, err)
	}
	if neg {
		v = -v
	}
	return v, nil
}

// ToDecimal renders minor units as a plain decimal string ("5400" -> "54.00"
// for a two-fraction currency). Boundary use only.
func ToDecimal(minorUnits int64, currency string) string {
	cur := money.GetCurrency(currency)
	fraction := 2
	if cur != nil {
		fraction = cur.Fraction
	}
	if fraction == 0 {
		return strconv.FormatInt(minorUnits, 10)
	}

	neg := minorUnits < 0
	if neg {
		minorUnits = -minorUnits
	}
	div := int64(1)
	for i := 0; i < fraction; i++ {
		div *= 10
	}
	s := fmt.Sprintf("%d.%0*d", minorUnits/div, fraction, minorUnits%div)
	if neg {
		s = "-" + s
	}
	return s
}

func AddMoney(a, b int64) int64 { return a + b }

func SubMoney(a, b int64) int64 { return a - b }

func MulMoney(a, factor int64) int64 { return a * factor }

// DivMoney divides a by b rounding half away from zero to the nearest
// minor unit. Division by zero returns 0; callers treat a zero rate as
// "no conversion" rather than an error.
func DivMoney(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	q := a / b
	r := a % b
	if r == 0 {
		return q
	}
	if 2*abs(r) >= abs(b) {
		if (a < 0) != (b < 0) {
			return q - 1
		}
		return q + 1
	}
	return q
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
