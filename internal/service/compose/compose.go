// Package compose implements the offer-composition pipeline: fare
// resolution, discount application, ancillary pricing, bundle pricing and
// finalization, with an immutable trace written for every run.
package compose

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/google/uuid"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/cache"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/pricing"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/provider"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
)

// CommissionRate is the flat agent commission applied to the final offer
// price during finalization.
const CommissionRate = 0.03

// Store is the storage surface the composer reads rules from and writes
// traces to.
type Store interface {
	GetAgentByCode(ctx context.Context, code string) (model.Agent, error)
	GetActiveAssignment(ctx context.Context, agentID uuid.UUID) (model.AgentTierAssignment, error)
	FindFareForRoute(ctx context.Context, origin, destination, cabinClass string) (model.NegotiatedFare, error)
	ListActiveDiscountRules(ctx context.Context) ([]model.DynamicDiscountRule, error)
	ListActiveAncillaryRules(ctx context.Context) ([]model.AirAncillaryRule, error)
	ListActiveBundles(ctx context.Context) ([]model.Bundle, error)
	ListActiveBundlePricingRules(ctx context.Context) ([]model.BundlePricingRule, error)
	ListActiveCohorts(ctx context.Context) ([]model.Cohort, error)
	InsertOfferTrace(ctx context.Context, t model.OfferTrace) (model.OfferTrace, error)
}

// Composer runs the offer-composition pipeline.
type Composer struct {
	store       Store
	fares       provider.FareSource
	ancillaries provider.AncillaryPriceSource
	bundles     provider.BundlePriceSource
	cache       *cache.Cache
	logger      *slog.Logger
}

// New creates a Composer. cache may be nil to disable rule caching.
func New(store Store, fares provider.FareSource, ancillaries provider.AncillaryPriceSource, bundles provider.BundlePriceSource, c *cache.Cache, logger *slog.Logger) *Composer {
	return &Composer{
		store:       store,
		fares:       fares,
		ancillaries: ancillaries,
		bundles:     bundles,
		cache:       c,
		logger:      logger,
	}
}

// Cache keys for the hot rule sets.
const (
	CacheKeyDiscounts     = "compose:discounts"
	CacheKeyAncillaries   = "compose:ancillaries"
	CacheKeyBundles       = "compose:bundles"
	CacheKeyBundlePricing = "compose:bundlepricing"
)

// Compose runs the full pipeline for one request and persists the trace.
func (c *Composer) Compose(ctx context.Context, req model.ComposeRequest) (model.OfferTrace, error) {
	tier := c.resolveTier(ctx, req.AgentID)
	cohorts := c.resolveCohorts(ctx, req)

	matchCtx := pricing.MatchContext{
		Origin:      req.Origin,
		Destination: req.Destination,
		CabinClass:  req.CabinClass,
		TripType:    req.TripType,
		Channel:     req.Channel,
		AgentTier:   tier,
		POS:         req.POS,
	}

	// FARE_RESOLUTION
	basePrice, fareSource, err := c.resolveFare(ctx, req)
	if err != nil {
		return model.OfferTrace{}, err
	}
	matchCtx.FareSource = fareSource

	// DISCOUNT_APPLICATION
	price := basePrice
	adjustments := []model.AppliedAdjustment{}
	discounts, err := c.activeDiscountRules(ctx)
	if err != nil {
		return model.OfferTrace{}, err
	}
	for _, rule := range pricing.MatchDiscountRules(discounts, matchCtx) {
		res := pricing.Evaluate(price, rule.AdjustmentType, rule.AdjustmentValue, pricing.Discount)
		adjustments = append(adjustments, model.AppliedAdjustment{
			RuleCode:       rule.RuleCode,
			AdjustmentType: rule.AdjustmentType,
			Value:          rule.AdjustmentValue,
			Before:         price,
			After:          res.Adjusted,
			Priority:       rule.Priority,
		})
		price = res.Adjusted
	}

	// ANCILLARY_PRICING
	ancillaryLines, err := c.priceAncillaries(ctx, matchCtx)
	if err != nil {
		return model.OfferTrace{}, err
	}

	// BUNDLE_PRICING
	bundleLines, err := c.priceBundles(ctx, matchCtx)
	if err != nil {
		return model.OfferTrace{}, err
	}

	// FINALIZATION: the offer total is the discounted seat price plus every
	// ancillary and bundle sell price, and commission derives from that total.
	total := price
	for _, line := range ancillaryLines {
		total += line.SellPrice
	}
	for _, line := range bundleLines {
		total += line.SellPrice
	}
	final := pricing.Round2(total)
	trace := model.OfferTrace{
		TraceID:      newTraceID("TRC"),
		AuditTraceID: newTraceID("AUD"),
		AgentID:      req.AgentID,
		AgentTier:    tier,
		Cohorts:      cohorts,
		Origin:       req.Origin,
		Destination:  req.Destination,
		TripType:     req.TripType,
		CabinClass:   req.CabinClass,
		Channel:      req.Channel,
		POS:          req.POS,
		FareSource:   fareSource,
		BasePrice:    basePrice,
		Adjustments:  adjustments,
		Ancillaries:  ancillaryLines,
		Bundles:      bundleLines,
		FinalPrice:   final,
		Commission:   pricing.Round2(final * CommissionRate),
	}

	stored, err := c.store.InsertOfferTrace(ctx, trace)
	if err != nil {
		return model.OfferTrace{}, fmt.Errorf("compose: persist trace: %w", err)
	}

	c.logger.Info("offer composed",
		"trace_id", stored.TraceID,
		"agent_id", stored.AgentID,
		"fare_source", stored.FareSource,
		"final_price", stored.FinalPrice,
	)
	return stored, nil
}

// resolveTier maps an agent ID to its ACTIVE tier. Unknown agents and agents
// without an assignment default to BRONZE rather than failing the compose.
func (c *Composer) resolveTier(ctx context.Context, agentCode string) model.TierCode {
	agent, err := c.store.GetAgentByCode(ctx, agentCode)
	if err != nil {
		if err != storage.ErrNotFound {
			c.logger.Warn("compose: agent lookup failed", "agent_id", agentCode, "error", err)
		}
		return model.TierBronze
	}
	assignment, err := c.store.GetActiveAssignment(ctx, agent.ID)
	if err != nil {
		if err != storage.ErrNotFound {
			c.logger.Warn("compose: assignment lookup failed", "agent_id", agentCode, "error", err)
		}
		return model.TierBronze
	}
	return assignment.TierCode
}

// resolveCohorts returns the codes of ACTIVE cohorts whose structured fields
// and optional JSON-logic criteria all admit the request.
func (c *Composer) resolveCohorts(ctx context.Context, req model.ComposeRequest) []string {
	cohorts, err := c.store.ListActiveCohorts(ctx)
	if err != nil {
		c.logger.Warn("compose: cohort lookup failed", "error", err)
		return []string{}
	}

	data := map[string]any{
		"agentId":     req.AgentID,
		"origin":      req.Origin,
		"destination": req.Destination,
		"tripType":    string(req.TripType),
		"cabinClass":  req.CabinClass,
		"channel":     string(req.Channel),
		"pos":         req.POS,
		"pax":         req.Pax,
	}

	matched := []string{}
	for _, cohort := range cohorts {
		if !cohortStructuredMatch(cohort, req) {
			continue
		}
		if len(cohort.CriteriaExpr) > 0 && !c.evalCriteria(cohort, data) {
			continue
		}
		matched = append(matched, cohort.CohortCode)
	}
	return matched
}

func cohortStructuredMatch(cohort model.Cohort, req model.ComposeRequest) bool {
	if len(cohort.POS) > 0 && req.POS != "" {
		found := false
		for _, p := range cohort.POS {
			if p == req.POS {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(cohort.Channels) > 0 && req.Channel != "" {
		found := false
		for _, ch := range cohort.Channels {
			if ch == req.Channel {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// evalCriteria applies a cohort's JSON-logic expression to the request
// context. Evaluation errors exclude the cohort rather than failing compose.
func (c *Composer) evalCriteria(cohort model.Cohort, data map[string]any) bool {
	ruleJSON, err := json.Marshal(cohort.CriteriaExpr)
	if err != nil {
		return false
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return false
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(ruleJSON), bytes.NewReader(dataJSON), &out); err != nil {
		c.logger.Warn("compose: cohort criteria evaluation failed",
			"cohort", cohort.CohortCode, "error", err)
		return false
	}
	return strings.TrimSpace(out.String()) == "true"
}

func (c *Composer) resolveFare(ctx context.Context, req model.ComposeRequest) (float64, model.FareSource, error) {
	fare, err := c.store.FindFareForRoute(ctx, req.Origin, req.Destination, req.CabinClass)
	switch err {
	case nil:
		return fare.BaseNetFare, model.FareSourceNegotiated, nil
	case storage.ErrNotFound:
		base, perr := c.fares.BaseFare(ctx, req.Origin, req.Destination, req.CabinClass)
		if perr != nil {
			return 0, "", fmt.Errorf("compose: fare provider: %w", perr)
		}
		return base, model.FareSourceAPI, nil
	default:
		return 0, "", fmt.Errorf("compose: fare resolution: %w", err)
	}
}

func (c *Composer) priceAncillaries(ctx context.Context, matchCtx pricing.MatchContext) ([]model.AncillaryLine, error) {
	var rules []model.AirAncillaryRule
	hit, err := c.cache.GetJSON(ctx, CacheKeyAncillaries, &rules)
	if err != nil {
		c.logger.Warn("compose: ancillary cache read failed", "error", err)
	}
	if !hit {
		rules, err = c.store.ListActiveAncillaryRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("compose: load ancillary rules: %w", err)
		}
		if err := c.cache.SetJSON(ctx, CacheKeyAncillaries, rules); err != nil {
			c.logger.Warn("compose: ancillary cache write failed", "error", err)
		}
	}

	lines := []model.AncillaryLine{}
	for _, rule := range pricing.MatchAncillaryRules(rules, matchCtx) {
		base, err := c.ancillaries.BasePrice(ctx, rule.AncillaryCode)
		if err != nil {
			return nil, fmt.Errorf("compose: ancillary provider: %w", err)
		}
		res := pricing.Evaluate(base, rule.AdjustmentType, rule.AdjustmentValue, pricing.Discount)
		lines = append(lines, model.AncillaryLine{
			AncillaryCode:  rule.AncillaryCode,
			RuleCode:       rule.RuleCode,
			AdjustmentType: rule.AdjustmentType,
			BasePrice:      base,
			SellPrice:      res.Adjusted,
		})
	}
	return lines, nil
}

func (c *Composer) priceBundles(ctx context.Context, matchCtx pricing.MatchContext) ([]model.BundleLine, error) {
	var bundles []model.Bundle
	hit, err := c.cache.GetJSON(ctx, CacheKeyBundles, &bundles)
	if err != nil {
		c.logger.Warn("compose: bundle cache read failed", "error", err)
	}
	if !hit {
		bundles, err = c.store.ListActiveBundles(ctx)
		if err != nil {
			return nil, fmt.Errorf("compose: load bundles: %w", err)
		}
		if err := c.cache.SetJSON(ctx, CacheKeyBundles, bundles); err != nil {
			c.logger.Warn("compose: bundle cache write failed", "error", err)
		}
	}

	var pricingRules []model.BundlePricingRule
	hit, err = c.cache.GetJSON(ctx, CacheKeyBundlePricing, &pricingRules)
	if err != nil {
		c.logger.Warn("compose: bundle pricing cache read failed", "error", err)
	}
	if !hit {
		pricingRules, err = c.store.ListActiveBundlePricingRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("compose: load bundle pricing rules: %w", err)
		}
		if err := c.cache.SetJSON(ctx, CacheKeyBundlePricing, pricingRules); err != nil {
			c.logger.Warn("compose: bundle pricing cache write failed", "error", err)
		}
	}

	lines := []model.BundleLine{}
	for _, bundle := range pricing.MatchBundles(bundles, matchCtx) {
		base, err := c.bundles.BasePrice(ctx, bundle.BundleCode)
		if err != nil {
			return nil, fmt.Errorf("compose: bundle provider: %w", err)
		}
		line := model.BundleLine{
			BundleCode: bundle.BundleCode,
			BasePrice:  base,
			SellPrice:  pricing.Round2(base),
		}
		if rule, ok := pricing.FirstBundlePricingRule(pricingRules, bundle.BundleCode); ok {
			res := pricing.Evaluate(base, rule.DiscountType, rule.DiscountValue, pricing.Discount)
			line.RuleCode = rule.RuleCode
			line.SellPrice = res.Adjusted
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// activeDiscountRules loads the ACTIVE discount rules through the cache.
func (c *Composer) activeDiscountRules(ctx context.Context) ([]model.DynamicDiscountRule, error) {
	var rules []model.DynamicDiscountRule
	hit, err := c.cache.GetJSON(ctx, CacheKeyDiscounts, &rules)
	if err != nil {
		c.logger.Warn("compose: discount cache read failed", "error", err)
	}
	if hit {
		return rules, nil
	}
	rules, err = c.store.ListActiveDiscountRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("compose: load discount rules: %w", err)
	}
	if err := c.cache.SetJSON(ctx, CacheKeyDiscounts, rules); err != nil {
		c.logger.Warn("compose: discount cache write failed", "error", err)
	}
	return rules, nil
}

const traceAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newTraceID builds an ID like TRC-k3f9a from a prefix and 5 random base36
// characters.
func newTraceID(prefix string) string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a UUID fragment; rand.Read failing means the
		// system entropy pool is broken anyway.
		return prefix + "-" + uuid.NewString()[:5]
	}
	for i, b := range buf {
		buf[i] = traceAlphabet[int(b)%len(traceAlphabet)]
	}
	return prefix + "-" + string(buf)
}
