package pricing

import (
	"sort"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

// MatchContext is the resolved request context rules are matched against.
// Empty fields are wildcards: a dimension missing from the context does not
// filter. Matching is exact equality per field, never fuzzy, and validity
// windows are deliberately not consulted at serve time.
type MatchContext struct {
	Origin      string
	Destination string
	CabinClass  string
	TripType    model.TripType
	Channel     model.Channel
	FareSource  model.FareSource
	AgentTier   model.TierCode
	POS         string
}

// scopeMatch reports whether a stored scope field matches a context value.
// A rule with an empty scope field applies everywhere; a context without the
// dimension filters nothing.
func scopeMatch(ruleField, ctxField string) bool {
	return ruleField == "" || ctxField == "" || ruleField == ctxField
}

// tierMatch reports whether a targeting array admits the resolved tier.
// An empty array targets every tier.
func tierMatch(targets []model.TierCode, tier model.TierCode) bool {
	if len(targets) == 0 || tier == "" {
		return true
	}
	for _, t := range targets {
		if t == tier {
			return true
		}
	}
	return false
}

// posMatch reports whether a POS targeting array admits the caller's POS.
func posMatch(targets []string, pos string) bool {
	if len(targets) == 0 || pos == "" {
		return true
	}
	for _, p := range targets {
		if p == pos {
			return true
		}
	}
	return false
}

// MatchDiscountRules returns the ACTIVE discount rules applicable to the
// context, ordered by ascending priority. Every returned rule is applied
// cumulatively by the composer; ordering decides sequence, not selection.
func MatchDiscountRules(rules []model.DynamicDiscountRule, ctx MatchContext) []model.DynamicDiscountRule {
	var out []model.DynamicDiscountRule
	for _, r := range rules {
		if r.Status != model.StatusActive {
			continue
		}
		if !scopeMatch(r.Origin, ctx.Origin) ||
			!scopeMatch(r.Destination, ctx.Destination) ||
			!scopeMatch(r.CabinClass, ctx.CabinClass) ||
			!scopeMatch(string(r.TripType), string(ctx.TripType)) ||
			!scopeMatch(string(r.Channel), string(ctx.Channel)) ||
			!scopeMatch(string(r.FareSource), string(ctx.FareSource)) {
			continue
		}
		if !tierMatch(r.AgentTiers, ctx.AgentTier) || !posMatch(r.POS, ctx.POS) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// MatchAncillaryRules returns the ACTIVE ancillary rules targeting the
// resolved tier and POS, ordered by ascending priority.
func MatchAncillaryRules(rules []model.AirAncillaryRule, ctx MatchContext) []model.AirAncillaryRule {
	var out []model.AirAncillaryRule
	for _, r := range rules {
		if r.Status != model.StatusActive {
			continue
		}
		if !tierMatch(r.AgentTiers, ctx.AgentTier) || !posMatch(r.POS, ctx.POS) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// MatchBundles returns the ACTIVE bundles admitting the tier, POS and
// channel of the context.
func MatchBundles(bundles []model.Bundle, ctx MatchContext) []model.Bundle {
	var out []model.Bundle
	for _, b := range bundles {
		if b.Status != model.StatusActive {
			continue
		}
		if !tierMatch(b.AgentTiers, ctx.AgentTier) || !posMatch(b.POS, ctx.POS) {
			continue
		}
		if !scopeMatch(string(b.Channel), string(ctx.Channel)) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// FirstBundlePricingRule returns the ACTIVE pricing rule with the lowest
// priority value for a bundle, or false when none match. Bundle pricing is
// first-match-wins, unlike dynamic discounts which stack.
func FirstBundlePricingRule(rules []model.BundlePricingRule, bundleCode string) (model.BundlePricingRule, bool) {
	var best model.BundlePricingRule
	found := false
	for _, r := range rules {
		if r.Status != model.StatusActive || r.BundleCode != bundleCode {
			continue
		}
		if !found || r.Priority < best.Priority {
			best = r
			found = true
		}
	}
	return best, found
}
