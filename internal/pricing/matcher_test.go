package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

func discountRule(code string, priority int, mutate func(*model.DynamicDiscountRule)) model.DynamicDiscountRule {
	r := model.DynamicDiscountRule{
		RuleCode:        code,
		AdjustmentType:  model.AdjustPercent,
		AdjustmentValue: 10,
		Priority:        priority,
		Status:          model.StatusActive,
	}
	if mutate != nil {
		mutate(&r)
	}
	return r
}

func TestMatchDiscountRules_ExactScopeEquality(t *testing.T) {
	rules := []model.DynamicDiscountRule{
		discountRule("DEL-BOM", 1, func(r *model.DynamicDiscountRule) {
			r.Origin, r.Destination = "DEL", "BOM"
		}),
		discountRule("DEL-MAA", 1, func(r *model.DynamicDiscountRule) {
			r.Origin, r.Destination = "DEL", "MAA"
		}),
		discountRule("GLOBAL", 2, nil),
	}

	got := MatchDiscountRules(rules, MatchContext{Origin: "DEL", Destination: "BOM"})

	require.Len(t, got, 2)
	assert.Equal(t, "DEL-BOM", got[0].RuleCode)
	assert.Equal(t, "GLOBAL", got[1].RuleCode)
}

func TestMatchDiscountRules_MissingContextDimensionIsWildcard(t *testing.T) {
	rules := []model.DynamicDiscountRule{
		discountRule("CABIN", 1, func(r *model.DynamicDiscountRule) { r.CabinClass = "BUSINESS" }),
	}

	// No cabin in the context: the stored cabin scope does not filter.
	got := MatchDiscountRules(rules, MatchContext{Origin: "DEL"})
	assert.Len(t, got, 1)

	// A conflicting cabin does.
	got = MatchDiscountRules(rules, MatchContext{CabinClass: "ECONOMY"})
	assert.Empty(t, got)
}

func TestMatchDiscountRules_TierTargeting(t *testing.T) {
	rules := []model.DynamicDiscountRule{
		discountRule("PLAT-ONLY", 1, func(r *model.DynamicDiscountRule) {
			r.AgentTiers = []model.TierCode{model.TierPlatinum}
		}),
		discountRule("ANY-TIER", 2, nil),
	}

	got := MatchDiscountRules(rules, MatchContext{AgentTier: model.TierBronze})
	require.Len(t, got, 1)
	assert.Equal(t, "ANY-TIER", got[0].RuleCode)

	got = MatchDiscountRules(rules, MatchContext{AgentTier: model.TierPlatinum})
	assert.Len(t, got, 2)
}

func TestMatchDiscountRules_SkipsInactive(t *testing.T) {
	rules := []model.DynamicDiscountRule{
		discountRule("OFF", 1, func(r *model.DynamicDiscountRule) { r.Status = model.StatusInactive }),
	}
	assert.Empty(t, MatchDiscountRules(rules, MatchContext{}))
}

func TestMatchDiscountRules_OrderedByPriorityAscending(t *testing.T) {
	rules := []model.DynamicDiscountRule{
		discountRule("P30", 30, nil),
		discountRule("P10", 10, nil),
		discountRule("P20", 20, nil),
	}

	got := MatchDiscountRules(rules, MatchContext{})

	require.Len(t, got, 3)
	assert.Equal(t, []string{got[0].RuleCode, got[1].RuleCode, got[2].RuleCode},
		[]string{"P10", "P20", "P30"})
}

func TestMatchDiscountRules_POSTargeting(t *testing.T) {
	rules := []model.DynamicDiscountRule{
		discountRule("IN-ONLY", 1, func(r *model.DynamicDiscountRule) { r.POS = []string{"IN"} }),
	}

	assert.Len(t, MatchDiscountRules(rules, MatchContext{POS: "IN"}), 1)
	assert.Empty(t, MatchDiscountRules(rules, MatchContext{POS: "AE"}))
	// No POS resolved: targeting does not filter.
	assert.Len(t, MatchDiscountRules(rules, MatchContext{}), 1)
}

func TestMatchAncillaryRules(t *testing.T) {
	rules := []model.AirAncillaryRule{
		{RuleCode: "BAG-GOLD", AncillaryCode: "BAG", Priority: 2, Status: model.StatusActive,
			AgentTiers: []model.TierCode{model.TierGold}},
		{RuleCode: "MEAL-ALL", AncillaryCode: "MEAL", Priority: 1, Status: model.StatusActive},
		{RuleCode: "SEAT-OFF", AncillaryCode: "SEAT", Priority: 3, Status: model.StatusInactive},
	}

	got := MatchAncillaryRules(rules, MatchContext{AgentTier: model.TierGold})

	require.Len(t, got, 2)
	assert.Equal(t, "MEAL-ALL", got[0].RuleCode)
	assert.Equal(t, "BAG-GOLD", got[1].RuleCode)
}

func TestFirstBundlePricingRule(t *testing.T) {
	rules := []model.BundlePricingRule{
		{RuleCode: "B1-LOW", BundleCode: "B1", Priority: 5, Status: model.StatusActive},
		{RuleCode: "B1-TOP", BundleCode: "B1", Priority: 1, Status: model.StatusActive},
		{RuleCode: "B1-OFF", BundleCode: "B1", Priority: 0, Status: model.StatusInactive},
		{RuleCode: "B2", BundleCode: "B2", Priority: 0, Status: model.StatusActive},
	}

	got, ok := FirstBundlePricingRule(rules, "B1")
	require.True(t, ok)
	assert.Equal(t, "B1-TOP", got.RuleCode)

	_, ok = FirstBundlePricingRule(rules, "B9")
	assert.False(t, ok)
}

func TestMatchBundles(t *testing.T) {
	bundles := []model.Bundle{
		{BundleCode: "FLEX", Status: model.StatusActive, Channel: model.ChannelPortal},
		{BundleCode: "SAVER", Status: model.StatusActive},
		{BundleCode: "GONE", Status: model.StatusInactive},
	}

	got := MatchBundles(bundles, MatchContext{Channel: model.ChannelAPI})
	require.Len(t, got, 1)
	assert.Equal(t, "SAVER", got[0].BundleCode)
}
