package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// minorUnitScale is the number of decimal places between a major amount and
// the provider's integer amount for code (2 for inr, 0 for jpy).
func minorUnitScale(code string) (int32, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return 0, fmt.Errorf("currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale), nil
}

func toMinorUnits(amount decimal.Decimal, scale int32) int64 {
	return amount.Shift(scale).Round(0).IntPart()
}

func fromMinorUnits(amount int64, scale int32) decimal.Decimal {
	return decimal.NewFromInt(amount).Shift(-scale)
}
