package model

import (
	"time"

	"github.com/google/uuid"
)

// ComposeRequest is the body for POST /api/offer/compose.
type ComposeRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	TripType    TripType `json:"tripType,omitempty"`
	Pax         int      `json:"pax,omitempty"`
	CabinClass  string   `json:"cabinClass,omitempty"`
	Dates       []string `json:"dates,omitempty"`
	Channel     Channel  `json:"channel,omitempty"`
	POS         string   `json:"pos,omitempty"`
	AgentID     string   `json:"agentId"`
}

func (r ComposeRequest) Validate() []FieldError {
	var errs []FieldError
	errs = appendAirport(errs, "origin", r.Origin)
	errs = appendAirport(errs, "destination", r.Destination)
	errs = appendRequired(errs, "agentId", r.AgentID)
	return errs
}

// AppliedAdjustment records one discount-rule application inside a compose
// run: the rule, the direction of the change, and the price before and after.
type AppliedAdjustment struct {
	RuleCode       string         `json:"ruleCode"`
	AdjustmentType AdjustmentType `json:"adjustmentType"`
	Value          float64        `json:"value"`
	Before         float64        `json:"before"`
	After          float64        `json:"after"`
	Priority       int            `json:"priority"`
}

// AncillaryLine is one priced ancillary in a composed offer.
type AncillaryLine struct {
	AncillaryCode  string         `json:"ancillaryCode"`
	RuleCode       string         `json:"ruleCode"`
	AdjustmentType AdjustmentType `json:"adjustmentType"`
	BasePrice      float64        `json:"basePrice"`
	SellPrice      float64        `json:"sellPrice"`
}

// BundleLine is one priced bundle in a composed offer.
type BundleLine struct {
	BundleCode string  `json:"bundleCode"`
	RuleCode   string  `json:"ruleCode,omitempty"`
	BasePrice  float64 `json:"basePrice"`
	SellPrice  float64 `json:"sellPrice"`
}

// OfferTrace is the immutable record of one offer-composition run. It is
// written exactly once, after FINALIZATION, and never updated.
type OfferTrace struct {
	ID           uuid.UUID           `json:"-"`
	TraceID      string              `json:"traceId"`
	AuditTraceID string              `json:"auditTraceId"`
	AgentID      string              `json:"agentId"`
	AgentTier    TierCode            `json:"agentTier"`
	Cohorts      []string            `json:"cohorts"`
	Origin       string              `json:"origin"`
	Destination  string              `json:"destination"`
	TripType     TripType            `json:"tripType,omitempty"`
	CabinClass   string              `json:"cabinClass,omitempty"`
	Channel      Channel             `json:"channel,omitempty"`
	POS          string              `json:"pos,omitempty"`
	FareSource   FareSource          `json:"fareSource"`
	BasePrice    float64             `json:"basePrice"`
	Adjustments  []AppliedAdjustment `json:"adjustments"`
	Ancillaries  []AncillaryLine     `json:"ancillaries"`
	Bundles      []BundleLine        `json:"bundles"`
	FinalPrice   float64             `json:"finalOfferPrice"`
	Commission   float64             `json:"commission"`
	CreatedAt    time.Time           `json:"createdAt"`
}
