package compose

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/provider"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
)

type fakeStore struct {
	agents       map[string]model.Agent
	assignments  map[uuid.UUID]model.AgentTierAssignment
	fare         *model.NegotiatedFare
	discounts    []model.DynamicDiscountRule
	ancillaries  []model.AirAncillaryRule
	bundles      []model.Bundle
	bundleRules  []model.BundlePricingRule
	cohorts      []model.Cohort
	savedTraces  []model.OfferTrace
	fareErr      error
	discountsErr error
}

func (f *fakeStore) GetAgentByCode(_ context.Context, code string) (model.Agent, error) {
	a, ok := f.agents[code]
	if !ok {
		return model.Agent{}, storage.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) GetActiveAssignment(_ context.Context, agentID uuid.UUID) (model.AgentTierAssignment, error) {
	a, ok := f.assignments[agentID]
	if !ok {
		return model.AgentTierAssignment{}, storage.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) FindFareForRoute(_ context.Context, _, _, _ string) (model.NegotiatedFare, error) {
	if f.fareErr != nil {
		return model.NegotiatedFare{}, f.fareErr
	}
	if f.fare == nil {
		return model.NegotiatedFare{}, storage.ErrNotFound
	}
	return *f.fare, nil
}

func (f *fakeStore) ListActiveDiscountRules(_ context.Context) ([]model.DynamicDiscountRule, error) {
	if f.discountsErr != nil {
		return nil, f.discountsErr
	}
	return f.discounts, nil
}

func (f *fakeStore) ListActiveAncillaryRules(_ context.Context) ([]model.AirAncillaryRule, error) {
	return f.ancillaries, nil
}

func (f *fakeStore) ListActiveBundles(_ context.Context) ([]model.Bundle, error) {
	return f.bundles, nil
}

func (f *fakeStore) ListActiveBundlePricingRules(_ context.Context) ([]model.BundlePricingRule, error) {
	return f.bundleRules, nil
}

func (f *fakeStore) ListActiveCohorts(_ context.Context) ([]model.Cohort, error) {
	return f.cohorts, nil
}

func (f *fakeStore) InsertOfferTrace(_ context.Context, t model.OfferTrace) (model.OfferTrace, error) {
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()
	f.savedTraces = append(f.savedTraces, t)
	return t, nil
}

func testComposer(store *fakeStore) *Composer {
	fares, ancillaries, bundles := provider.Defaults()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, fares, ancillaries, bundles, nil, logger)
}

func baseRequest() model.ComposeRequest {
	return model.ComposeRequest{
		Origin:      "JFK",
		Destination: "LHR",
		TripType:    model.TripOneWay,
		Pax:         1,
		CabinClass:  "ECONOMY",
		Channel:     model.ChannelPortal,
		POS:         "US",
		AgentID:     "AGT-001",
	}
}

func TestComposeFallsBackToProviderFare(t *testing.T) {
	store := &fakeStore{}
	c := testComposer(store)

	trace, err := c.Compose(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, model.FareSourceAPI, trace.FareSource)
	assert.Equal(t, float64(provider.DefaultBaseFare), trace.BasePrice)
	assert.Equal(t, float64(provider.DefaultBaseFare), trace.FinalPrice)
	assert.True(t, strings.HasPrefix(trace.TraceID, "TRC-"))
	assert.True(t, strings.HasPrefix(trace.AuditTraceID, "AUD-"))
	require.Len(t, store.savedTraces, 1)
	assert.Equal(t, trace.TraceID, store.savedTraces[0].TraceID)
}

func TestComposeUsesNegotiatedFare(t *testing.T) {
	store := &fakeStore{
		fare: &model.NegotiatedFare{
			FareCode:    "NF-TEST",
			BaseNetFare: 1000,
		},
	}
	c := testComposer(store)

	trace, err := c.Compose(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, model.FareSourceNegotiated, trace.FareSource)
	assert.Equal(t, 1000.0, trace.BasePrice)
	assert.Equal(t, 1000.0, trace.FinalPrice)
}

func TestComposeStacksDiscountsByPriority(t *testing.T) {
	store := &fakeStore{
		fare: &model.NegotiatedFare{FareCode: "NF-TEST", BaseNetFare: 1000},
		discounts: []model.DynamicDiscountRule{
			{
				RuleCode:        "FLAT-50",
				AdjustmentType:  model.AdjustAmount,
				AdjustmentValue: 50,
				Priority:        20,
				Status:          model.StatusActive,
			},
			{
				RuleCode:        "PCT-10",
				AdjustmentType:  model.AdjustPercent,
				AdjustmentValue: 10,
				Priority:        10,
				Status:          model.StatusActive,
			},
		},
	}
	c := testComposer(store)

	trace, err := c.Compose(context.Background(), baseRequest())
	require.NoError(t, err)

	// PCT-10 runs first (priority 10): 1000 -> 900. FLAT-50 next: 900 -> 850.
	require.Len(t, trace.Adjustments, 2)
	assert.Equal(t, "PCT-10", trace.Adjustments[0].RuleCode)
	assert.Equal(t, 1000.0, trace.Adjustments[0].Before)
	assert.Equal(t, 900.0, trace.Adjustments[0].After)
	assert.Equal(t, "FLAT-50", trace.Adjustments[1].RuleCode)
	assert.Equal(t, 900.0, trace.Adjustments[1].Before)
	assert.Equal(t, 850.0, trace.Adjustments[1].After)
	assert.Equal(t, 850.0, trace.FinalPrice)
}

func TestComposeCommissionIsThreePercent(t *testing.T) {
	store := &fakeStore{
		fare: &model.NegotiatedFare{FareCode: "NF-TEST", BaseNetFare: 1000},
	}
	c := testComposer(store)

	trace, err := c.Compose(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, 30.0, trace.Commission)
}

func TestComposeUnknownAgentDefaultsToBronze(t *testing.T) {
	store := &fakeStore{}
	c := testComposer(store)

	req := baseRequest()
	req.AgentID = "AGT-UNKNOWN"
	trace, err := c.Compose(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.TierBronze, trace.AgentTier)
}

func TestComposeResolvesAssignedTier(t *testing.T) {
	agentID := uuid.New()
	store := &fakeStore{
		agents: map[string]model.Agent{
			"AGT-001": {ID: agentID, AgentCode: "AGT-001", Status: model.StatusActive},
		},
		assignments: map[uuid.UUID]model.AgentTierAssignment{
			agentID: {AgentID: agentID, TierCode: model.TierGold, Status: model.StatusActive},
		},
	}
	c := testComposer(store)

	trace, err := c.Compose(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, model.TierGold, trace.AgentTier)
}

func TestComposeTierRestrictedDiscount(t *testing.T) {
	store := &fakeStore{
		fare: &model.NegotiatedFare{FareCode: "NF-TEST", BaseNetFare: 1000},
		discounts: []model.DynamicDiscountRule{
			{
				RuleCode:        "GOLD-ONLY",
				AdjustmentType:  model.AdjustPercent,
				AdjustmentValue: 10,
				AgentTiers:      []model.TierCode{model.TierGold},
				Status:          model.StatusActive,
			},
		},
	}
	c := testComposer(store)

	// Unknown agent resolves to BRONZE, so the GOLD-only rule must not apply.
	trace, err := c.Compose(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Empty(t, trace.Adjustments)
	assert.Equal(t, 1000.0, trace.FinalPrice)
}

func TestComposeCohortCriteria(t *testing.T) {
	store := &fakeStore{
		cohorts: []model.Cohort{
			{
				CohortCode: "US-PORTAL",
				Type:       model.CohortGeographic,
				POS:        []string{"US"},
				Channels:   []model.Channel{model.ChannelPortal},
				Status:     model.StatusActive,
			},
			{
				CohortCode: "BIG-GROUPS",
				Type:       model.CohortBehavioral,
				CriteriaExpr: map[string]any{
					">=": []any{map[string]any{"var": "pax"}, 5},
				},
				Status: model.StatusActive,
			},
		},
	}
	c := testComposer(store)

	trace, err := c.Compose(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"US-PORTAL"}, trace.Cohorts)

	req := baseRequest()
	req.Pax = 6
	trace, err = c.Compose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"US-PORTAL", "BIG-GROUPS"}, trace.Cohorts)
}

func TestComposeAncillaryAndBundlePricing(t *testing.T) {
	store := &fakeStore{
		fare: &model.NegotiatedFare{FareCode: "NF-TEST", BaseNetFare: 1000},
		ancillaries: []model.AirAncillaryRule{
			{
				RuleCode:        "BAG-PCT",
				AncillaryCode:   "BAGGAGE",
				AdjustmentType:  model.AdjustPercent,
				AdjustmentValue: 25,
				Status:          model.StatusActive,
			},
			{
				RuleCode:       "SEAT-FREE",
				AncillaryCode:  "SEAT",
				AdjustmentType: model.AdjustFree,
				Status:         model.StatusActive,
			},
		},
		bundles: []model.Bundle{
			{
				BundleCode: "COMFORT",
				BundleType: model.BundleAirNonAir,
				Status:     model.StatusActive,
			},
		},
		bundleRules: []model.BundlePricingRule{
			{
				RuleCode:      "COMFORT-LOW",
				BundleCode:    "COMFORT",
				DiscountType:  model.AdjustPercent,
				DiscountValue: 10,
				Priority:      1,
				Status:        model.StatusActive,
			},
			{
				RuleCode:      "COMFORT-HIGH",
				BundleCode:    "COMFORT",
				DiscountType:  model.AdjustPercent,
				DiscountValue: 50,
				Priority:      2,
				Status:        model.StatusActive,
			},
		},
	}
	c := testComposer(store)

	trace, err := c.Compose(context.Background(), baseRequest())
	require.NoError(t, err)

	require.Len(t, trace.Ancillaries, 2)
	assert.Equal(t, float64(provider.DefaultAncillaryPrice), trace.Ancillaries[0].BasePrice)
	assert.Equal(t, 1500.0, trace.Ancillaries[0].SellPrice)
	assert.Equal(t, 0.0, trace.Ancillaries[1].SellPrice)

	// Only the lowest-priority bundle pricing rule applies.
	require.Len(t, trace.Bundles, 1)
	assert.Equal(t, "COMFORT-LOW", trace.Bundles[0].RuleCode)
	assert.Equal(t, float64(provider.DefaultBundlePrice), trace.Bundles[0].BasePrice)
	assert.Equal(t, 2700.0, trace.Bundles[0].SellPrice)

	// 1000 seat + 1500 baggage + 0 free seat + 2700 bundle.
	assert.Equal(t, 5200.0, trace.FinalPrice)
	assert.Equal(t, 156.0, trace.Commission)
}

func TestComposeFinalPriceSumsAllLines(t *testing.T) {
	store := &fakeStore{
		fare: &model.NegotiatedFare{FareCode: "NF-TEST", BaseNetFare: 1000},
		discounts: []model.DynamicDiscountRule{
			{
				RuleCode:        "PCT-10",
				AdjustmentType:  model.AdjustPercent,
				AdjustmentValue: 10,
				Status:          model.StatusActive,
			},
		},
		ancillaries: []model.AirAncillaryRule{
			{
				RuleCode:        "BAG-PCT",
				AncillaryCode:   "BAGGAGE",
				AdjustmentType:  model.AdjustPercent,
				AdjustmentValue: 25,
				Status:          model.StatusActive,
			},
		},
	}
	c := testComposer(store)

	trace, err := c.Compose(context.Background(), baseRequest())
	require.NoError(t, err)

	// Discounts shape the seat price only; the final price adds the
	// ancillary sell price on top: (1000 - 10%) + 1500.
	require.Len(t, trace.Adjustments, 1)
	assert.Equal(t, 900.0, trace.Adjustments[0].After)
	assert.Equal(t, 2400.0, trace.FinalPrice)
	assert.Equal(t, 72.0, trace.Commission)
}
