// Package money converts between Spurs, the integer unit every balance and
// price is stored in, and Cogs, the display currency.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SpursPerCog is the fixed exchange rate between the two units.
const SpursPerCog = 64

var spursPerCog = decimal.NewFromInt(SpursPerCog)

// ToCogs returns spurs expressed in Cogs, exact to six decimal places.
func ToCogs(spurs int64) decimal.Decimal {
	return decimal.NewFromInt(spurs).DivRound(spursPerCog, 6)
}

// Format renders spurs the way the bot displays prices, e.g. "5 Cogs 32 Spurs".
func Format(spurs int64) string {
	sign := ""
	if spurs < 0 {
		sign = "-"
		spurs = -spurs
	}
	cogs := spurs / SpursPerCog
	rem := spurs % SpursPerCog

	cogWord := "Cogs"
	if cogs == 1 {
		cogWord = "Cog"
	}
	spurWord := "Spurs"
	if rem == 1 {
		spurWord = "Spur"
	}
	return fmt.Sprintf("%s%d %s %d %s", sign, cogs, cogWord, rem, spurWord)
}

// PercentChange returns (to-from)/from as a percentage rounded to two places.
// A zero base yields zero.
func PercentChange(from, to int64) decimal.Decimal {
	if from == 0 {
		return decimal.Zero
	}
	diff := decimal.NewFromInt(to - from)
	return diff.Div(decimal.NewFromInt(from)).Mul(decimal.NewFromInt(100)).Round(2)
}
