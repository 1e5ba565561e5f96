// Package pricing implements the price adjustment evaluator and the
// rule filter/matcher used by offer composition and the simulate endpoints.
package pricing

import (
	"math"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

// Context selects the direction a rule's adjustment is applied in. The
// direction belongs to the calling endpoint, not to the rule: the same
// PERCENT 10 rule subtracts in a discount context and adds in a fare one.
type Context int

const (
	// Discount context: PERCENT and AMOUNT reduce the price, floored at 0.
	Discount Context = iota
	// Fare context (markups, fare simulation): PERCENT and AMOUNT add.
	Fare
)

// Result is the outcome of one evaluator call. Adjusted and Delta are
// rounded to 2 decimal places; intermediate math is not rounded.
type Result struct {
	Adjusted float64
	Delta    float64
}

// Evaluate applies an adjustment to a price. FREE zeroes the price in any
// context and reports the full price as the delta.
func Evaluate(price float64, adjType model.AdjustmentType, value float64, ctx Context) Result {
	var adjusted, delta float64
	switch adjType {
	case model.AdjustFree:
		adjusted = 0
		delta = price
	case model.AdjustPercent:
		delta = price * value / 100
		if ctx == Discount {
			adjusted = price - delta
		} else {
			adjusted = price + delta
		}
	case model.AdjustAmount:
		delta = value
		if ctx == Discount {
			adjusted = price - value
		} else {
			adjusted = price + value
		}
	default:
		adjusted = price
	}
	if adjusted < 0 {
		adjusted = 0
	}
	return Result{Adjusted: Round2(adjusted), Delta: Round2(delta)}
}

// Round2 rounds half away from zero to 2 decimal places. All monetary
// outputs pass through this at evaluator-call boundaries.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
