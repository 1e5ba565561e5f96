package offersense

import (
	"time"

	"github.com/google/uuid"
)

// ComposeRequest describes the booking context for one offer-composition run.
type ComposeRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	TripType    string   `json:"tripType,omitempty"`
	Pax         int      `json:"pax,omitempty"`
	CabinClass  string   `json:"cabinClass,omitempty"`
	Dates       []string `json:"dates,omitempty"`
	Channel     string   `json:"channel,omitempty"`
	POS         string   `json:"pos,omitempty"`
	AgentID     string   `json:"agentId"`
}

// AppliedAdjustment records one discount application inside a compose run.
type AppliedAdjustment struct {
	RuleCode       string  `json:"ruleCode"`
	AdjustmentType string  `json:"adjustmentType"`
	Value          float64 `json:"value"`
	Before         float64 `json:"before"`
	After          float64 `json:"after"`
	Priority       int     `json:"priority"`
}

// AncillaryLine is one priced ancillary in a composed offer.
type AncillaryLine struct {
	AncillaryCode  string  `json:"ancillaryCode"`
	RuleCode       string  `json:"ruleCode"`
	AdjustmentType string  `json:"adjustmentType"`
	BasePrice      float64 `json:"basePrice"`
	SellPrice      float64 `json:"sellPrice"`
}

// BundleLine is one priced bundle in a composed offer.
type BundleLine struct {
	BundleCode string  `json:"bundleCode"`
	RuleCode   string  `json:"ruleCode,omitempty"`
	BasePrice  float64 `json:"basePrice"`
	SellPrice  float64 `json:"sellPrice"`
}

// OfferTrace is the record of one offer-composition run.
type OfferTrace struct {
	TraceID      string              `json:"traceId"`
	AuditTraceID string              `json:"auditTraceId"`
	AgentID      string              `json:"agentId"`
	AgentTier    string              `json:"agentTier"`
	Cohorts      []string            `json:"cohorts"`
	Origin       string              `json:"origin"`
	Destination  string              `json:"destination"`
	TripType     string              `json:"tripType,omitempty"`
	CabinClass   string              `json:"cabinClass,omitempty"`
	Channel      string              `json:"channel,omitempty"`
	POS          string              `json:"pos,omitempty"`
	FareSource   string              `json:"fareSource"`
	BasePrice    float64             `json:"basePrice"`
	Adjustments  []AppliedAdjustment `json:"adjustments"`
	Ancillaries  []AncillaryLine     `json:"ancillaries"`
	Bundles      []BundleLine        `json:"bundles"`
	FinalPrice   float64             `json:"finalOfferPrice"`
	Commission   float64             `json:"commission"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// NegotiatedFare mirrors the server's fare schema.
type NegotiatedFare struct {
	ID              uuid.UUID `json:"id,omitempty"`
	Airline         string    `json:"airline"`
	FareCode        string    `json:"fareCode"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	TripType        string    `json:"tripType"`
	CabinClass      string    `json:"cabinClass"`
	BaseNetFare     float64   `json:"baseNetFare"`
	Currency        string    `json:"currency"`
	BookingStart    time.Time `json:"bookingStartDate"`
	BookingEnd      time.Time `json:"bookingEndDate"`
	TravelStart     time.Time `json:"travelStartDate"`
	TravelEnd       time.Time `json:"travelEndDate"`
	POS             []string  `json:"pos"`
	SeatAllotment   int       `json:"seatAllotment"`
	BlackoutDates   []string  `json:"blackoutDates,omitempty"`
	EligibleTiers   []string  `json:"eligibleAgentTiers,omitempty"`
	EligibleCohorts []string  `json:"eligibleCohorts,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt,omitempty"`
}

// FareFilters narrows ListFares.
type FareFilters struct {
	Airline     string
	Origin      string
	Destination string
	CabinClass  string
	Status      string
	Limit       int
	Offset      int
}

// TierEvaluation is the response of EvaluateTier.
type TierEvaluation struct {
	KPIs struct {
		AgentID      uuid.UUID `json:"agentId"`
		Window       string    `json:"window"`
		From         time.Time `json:"from"`
		To           time.Time `json:"to"`
		BookingCount int       `json:"bookingCount"`
		BookingValue float64   `json:"bookingValue"`
	} `json:"kpis"`
	CurrentTier     string `json:"currentTier"`
	RecommendedTier string `json:"recommendedTier"`
	ChangeRequired  bool   `json:"changeRequired"`
}

// Health is the response of the health endpoint.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type listEnvelope[T any] struct {
	Data   []T `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Page is one page of a list response.
type Page[T any] struct {
	Items  []T
	Total  int
	Limit  int
	Offset int
}
