package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

func TestEvaluate_PercentDiscount(t *testing.T) {
	res := Evaluate(1000, model.AdjustPercent, 10, Discount)
	assert.Equal(t, 900.0, res.Adjusted)
	assert.Equal(t, 100.0, res.Delta)
}

func TestEvaluate_PercentFareContextIsAdditive(t *testing.T) {
	// The same rule that discounts in a discount context marks up in a
	// fare context: 1000 * 1.10 = 1100.
	res := Evaluate(1000, model.AdjustPercent, 10, Fare)
	assert.Equal(t, 1100.0, res.Adjusted)
	assert.Equal(t, 100.0, res.Delta)
}

func TestEvaluate_AmountDiscountFloorsAtZero(t *testing.T) {
	res := Evaluate(50, model.AdjustAmount, 80, Discount)
	assert.Equal(t, 0.0, res.Adjusted)
	assert.Equal(t, 80.0, res.Delta)
}

func TestEvaluate_AmountFareContext(t *testing.T) {
	res := Evaluate(2000, model.AdjustAmount, 250, Fare)
	assert.Equal(t, 2250.0, res.Adjusted)
	assert.Equal(t, 250.0, res.Delta)
}

func TestEvaluate_Free(t *testing.T) {
	res := Evaluate(2000, model.AdjustFree, 0, Discount)
	assert.Equal(t, 0.0, res.Adjusted)
	assert.Equal(t, 2000.0, res.Delta)
}

func TestEvaluate_PercentDiscountNeverNegative(t *testing.T) {
	res := Evaluate(100, model.AdjustPercent, 100, Discount)
	assert.Equal(t, 0.0, res.Adjusted)
}

func TestEvaluate_RoundsToTwoDecimals(t *testing.T) {
	// 333.33 * 7.5% = 24.99975 → delta 25.00, adjusted 308.33.
	res := Evaluate(333.33, model.AdjustPercent, 7.5, Discount)
	assert.Equal(t, 25.0, res.Delta)
	assert.Equal(t, 308.33, res.Adjusted)
}

func TestEvaluate_UnknownTypeLeavesPriceAlone(t *testing.T) {
	res := Evaluate(500, model.AdjustmentType("MYSTERY"), 10, Discount)
	assert.Equal(t, 500.0, res.Adjusted)
	assert.Equal(t, 0.0, res.Delta)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.2349))
	assert.Equal(t, 1.24, Round2(1.2351))
	assert.Equal(t, -1.24, Round2(-1.2351))
	assert.Equal(t, 0.0, Round2(0))
}
