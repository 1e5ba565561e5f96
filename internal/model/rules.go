package model

import (
	"time"

	"github.com/google/uuid"
)

// DynamicDiscountRule adjusts the base fare during offer composition. Rules
// are scope-matched exactly, ordered by ascending priority, and every match
// is applied cumulatively (layered promotions stack).
type DynamicDiscountRule struct {
	ID              uuid.UUID      `json:"id"`
	RuleCode        string         `json:"ruleCode"`
	Origin          string         `json:"origin,omitempty"`
	Destination     string         `json:"destination,omitempty"`
	CabinClass      string         `json:"cabinClass,omitempty"`
	TripType        TripType       `json:"tripType,omitempty"`
	Channel         Channel        `json:"channel,omitempty"`
	FareSource      FareSource     `json:"fareSource,omitempty"`
	AdjustmentType  AdjustmentType `json:"adjustmentType"`
	AdjustmentValue float64        `json:"adjustmentValue"`
	AgentTiers      []TierCode     `json:"agentTiers"`
	POS             []string       `json:"pos"`
	Priority        int            `json:"priority"`
	ValidFrom       time.Time      `json:"validFrom"`
	ValidTo         time.Time      `json:"validTo"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (r DynamicDiscountRule) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "ruleCode", r.RuleCode)
	errs = appendAdjustment(errs, r.AdjustmentType, r.AdjustmentValue, false)
	errs = appendWindow(errs, "validFrom", "validTo", r.ValidFrom, r.ValidTo)
	errs = appendPOS(errs, "pos", r.POS)
	for _, t := range r.AgentTiers {
		if !validTier(t) {
			errs = append(errs, FieldError{Field: "agentTiers", Message: "unknown tier " + string(t)})
		}
	}
	return errs
}

// AirAncillaryRule prices a non-fare air product (bag, seat, meal, lounge).
// FREE is allowed: the ancillary is given away and the full base price is
// recorded as the discount.
type AirAncillaryRule struct {
	ID              uuid.UUID      `json:"id"`
	RuleCode        string         `json:"ruleCode"`
	AncillaryCode   string         `json:"ancillaryCode"`
	AdjustmentType  AdjustmentType `json:"adjustmentType"`
	AdjustmentValue float64        `json:"adjustmentValue"`
	AgentTiers      []TierCode     `json:"agentTiers"`
	POS             []string       `json:"pos"`
	Priority        int            `json:"priority"`
	ValidFrom       time.Time      `json:"validFrom"`
	ValidTo         time.Time      `json:"validTo"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (r AirAncillaryRule) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "ruleCode", r.RuleCode)
	errs = appendRequired(errs, "ancillaryCode", r.AncillaryCode)
	errs = appendAdjustment(errs, r.AdjustmentType, r.AdjustmentValue, true)
	errs = appendWindow(errs, "validFrom", "validTo", r.ValidFrom, r.ValidTo)
	errs = appendPOS(errs, "pos", r.POS)
	return errs
}

// NonAirRate is the base selling rate of a non-air product (hotel night,
// insurance policy, transfer, activity).
type NonAirRate struct {
	ID          uuid.UUID `json:"id"`
	ProductCode string    `json:"productCode"`
	ProductName string    `json:"productName"`
	Category    string    `json:"category"`
	BaseRate    float64   `json:"baseRate"`
	Currency    string    `json:"currency"`
	Supplier    string    `json:"supplier,omitempty"`
	POS         []string  `json:"pos"`
	ValidFrom   time.Time `json:"validFrom"`
	ValidTo     time.Time `json:"validTo"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (r NonAirRate) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "productCode", r.ProductCode)
	errs = appendRequired(errs, "productName", r.ProductName)
	errs = appendRequired(errs, "category", r.Category)
	errs = appendCurrency(errs, "currency", r.Currency)
	if r.BaseRate <= 0 {
		errs = append(errs, FieldError{Field: "baseRate", Message: "must be greater than zero"})
	}
	errs = appendWindow(errs, "validFrom", "validTo", r.ValidFrom, r.ValidTo)
	errs = appendPOS(errs, "pos", r.POS)
	return errs
}

// NonAirMarkupRule applies an agency markup on top of a non-air base rate.
// Markup context: PERCENT and AMOUNT are additive.
type NonAirMarkupRule struct {
	ID              uuid.UUID      `json:"id"`
	RuleCode        string         `json:"ruleCode"`
	ProductCode     string         `json:"productCode"`
	AdjustmentType  AdjustmentType `json:"adjustmentType"`
	AdjustmentValue float64        `json:"adjustmentValue"`
	AgentTiers      []TierCode     `json:"agentTiers"`
	POS             []string       `json:"pos"`
	Priority        int            `json:"priority"`
	ValidFrom       time.Time      `json:"validFrom"`
	ValidTo         time.Time      `json:"validTo"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (r NonAirMarkupRule) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "ruleCode", r.RuleCode)
	errs = appendRequired(errs, "productCode", r.ProductCode)
	errs = appendAdjustment(errs, r.AdjustmentType, r.AdjustmentValue, false)
	errs = appendWindow(errs, "validFrom", "validTo", r.ValidFrom, r.ValidTo)
	errs = appendPOS(errs, "pos", r.POS)
	return errs
}

// OfferRuleType distinguishes visibility rules from pricing rules.
type OfferRuleType string

const (
	OfferRuleVisibility OfferRuleType = "VISIBILITY"
	OfferRulePricing    OfferRuleType = "PRICING"
)

// OfferRule is a composite offer-level rule: either a visibility gate
// (SHOW/HIDE an offer for a scope) or an offer-level price adjustment.
type OfferRule struct {
	ID              uuid.UUID      `json:"id"`
	RuleCode        string         `json:"ruleCode"`
	RuleType        OfferRuleType  `json:"ruleType"`
	Origin          string         `json:"origin,omitempty"`
	Destination     string         `json:"destination,omitempty"`
	CabinClass      string         `json:"cabinClass,omitempty"`
	Channel         Channel        `json:"channel,omitempty"`
	Action          string         `json:"action,omitempty"`
	AdjustmentType  AdjustmentType `json:"adjustmentType,omitempty"`
	AdjustmentValue float64        `json:"adjustmentValue,omitempty"`
	AgentTiers      []TierCode     `json:"agentTiers"`
	POS             []string       `json:"pos"`
	Priority        int            `json:"priority"`
	ValidFrom       time.Time      `json:"validFrom"`
	ValidTo         time.Time      `json:"validTo"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (r OfferRule) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "ruleCode", r.RuleCode)
	switch r.RuleType {
	case OfferRuleVisibility:
		if r.Action != "SHOW" && r.Action != "HIDE" {
			errs = append(errs, FieldError{Field: "action", Message: "must be SHOW or HIDE for VISIBILITY rules"})
		}
	case OfferRulePricing:
		errs = appendAdjustment(errs, r.AdjustmentType, r.AdjustmentValue, false)
	default:
		errs = append(errs, FieldError{Field: "ruleType", Message: "must be VISIBILITY or PRICING"})
	}
	errs = appendWindow(errs, "validFrom", "validTo", r.ValidFrom, r.ValidTo)
	errs = appendPOS(errs, "pos", r.POS)
	return errs
}

// ChannelOverride adjusts pricing for a specific distribution channel,
// optionally narrowed to a route. Markup context: adjustments are additive.
type ChannelOverride struct {
	ID              uuid.UUID      `json:"id"`
	OverrideCode    string         `json:"overrideCode"`
	Channel         Channel        `json:"channel"`
	Origin          string         `json:"origin,omitempty"`
	Destination     string         `json:"destination,omitempty"`
	AdjustmentType  AdjustmentType `json:"adjustmentType"`
	AdjustmentValue float64        `json:"adjustmentValue"`
	Priority        int            `json:"priority"`
	ValidFrom       time.Time      `json:"validFrom"`
	ValidTo         time.Time      `json:"validTo"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (r ChannelOverride) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "overrideCode", r.OverrideCode)
	switch r.Channel {
	case ChannelAPI, ChannelPortal, ChannelMobile:
	default:
		errs = append(errs, FieldError{Field: "channel", Message: "must be API, PORTAL or MOBILE"})
	}
	errs = appendAdjustment(errs, r.AdjustmentType, r.AdjustmentValue, false)
	errs = appendWindow(errs, "validFrom", "validTo", r.ValidFrom, r.ValidTo)
	return errs
}
