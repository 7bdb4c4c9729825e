package helper

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	TokenKey = "projectx:token"
)

func DedupKey(symbol string, accountID int64) string {
	return fmt.Sprintf("dupe:%s_%d", symbol, accountID)
}

// AlignToTick rounds px to the nearest multiple of tick (half away from zero),
// trimmed to 6 decimals. A non-positive tick leaves px unchanged.
func AlignToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	t := decimal.NewFromFloat(tick)
	steps := decimal.NewFromFloat(px).Div(t).Round(0)
	return steps.Mul(t).Round(6).InexactFloat64()
}

// TargetPrice is entry moved by rr percent in the direction of sign, rounded to cents.
func TargetPrice(entry, sign, rr float64) float64 {
	e := decimal.NewFromFloat(entry)
	offset := e.Mul(decimal.NewFromFloat(rr)).Mul(decimal.New(1, -2))
	if sign < 0 {
		offset = offset.Neg()
	}
	return e.Add(offset).Round(2).InexactFloat64()
}

// FloorQty is floor(qty*mult) without binary float drift (0.1*30 stays 3).
func FloorQty(qty, mult float64) int {
	return int(decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(mult)).Floor().IntPart())
}

// Third is the size of one take-profit slice: max(1, round(size/3)).
func Third(size int) int {
	t := int(math.Round(float64(size) / 3))
	if t < 1 {
		return 1
	}
	return t
}

// ProfitPoints is the realized profit of closing size at last for a trade opened at entry.
func ProfitPoints(entry, last, sign float64, size int) float64 {
	d := decimal.NewFromFloat(last).Sub(decimal.NewFromFloat(entry)).
		Mul(decimal.NewFromFloat(sign)).
		Mul(decimal.NewFromInt(int64(size)))
	return d.Round(2).InexactFloat64()
}
