package model

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a travel agent (or agency user) who receives tiered pricing.
type Agent struct {
	ID         uuid.UUID `json:"id"`
	AgentCode  string    `json:"agentCode"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	AgencyName string    `json:"agencyName,omitempty"`
	POS        string    `json:"pos,omitempty"`
	Channel    Channel   `json:"channel,omitempty"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (a Agent) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "agentCode", a.AgentCode)
	errs = appendRequired(errs, "name", a.Name)
	if a.POS != "" && !posRe.MatchString(a.POS) {
		errs = append(errs, FieldError{Field: "pos", Message: "must be a 2-letter ISO country code"})
	}
	return errs
}

// KPIThresholds are the minimums an agent must reach over the evaluation
// window to qualify for a tier.
type KPIThresholds struct {
	MinBookings int     `json:"minBookings"`
	MinRevenue  float64 `json:"minRevenue"`
}

// AgentTier defines one rank in the agent hierarchy together with the KPI
// thresholds that earn it.
type AgentTier struct {
	ID          uuid.UUID     `json:"id"`
	TierCode    TierCode      `json:"tierCode"`
	DisplayName string        `json:"displayName"`
	Thresholds  KPIThresholds `json:"kpiThresholds"`
	Rank        int           `json:"rank"` // 1 = highest (PLATINUM)
	Benefits    string        `json:"benefits,omitempty"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (t AgentTier) Validate() []FieldError {
	var errs []FieldError
	if !validTier(t.TierCode) {
		errs = append(errs, FieldError{Field: "tierCode", Message: "must be PLATINUM, GOLD, SILVER or BRONZE"})
	}
	errs = appendRequired(errs, "displayName", t.DisplayName)
	if t.Rank < 1 {
		errs = append(errs, FieldError{Field: "rank", Message: "must be at least 1"})
	}
	if t.Thresholds.MinBookings < 0 {
		errs = append(errs, FieldError{Field: "kpiThresholds.minBookings", Message: "must not be negative"})
	}
	if t.Thresholds.MinRevenue < 0 {
		errs = append(errs, FieldError{Field: "kpiThresholds.minRevenue", Message: "must not be negative"})
	}
	return errs
}

// AgentTierAssignment binds an agent to a tier from an effective date.
// At most one assignment per agent is ACTIVE at any instant: inserting a new
// assignment supersedes the previously ACTIVE row in the same transaction.
type AgentTierAssignment struct {
	ID             uuid.UUID      `json:"id"`
	AgentID        uuid.UUID      `json:"agentId"`
	TierCode       TierCode       `json:"tierCode"`
	AssignmentType AssignmentType `json:"assignmentType"`
	Status         Status         `json:"status"`
	EffectiveFrom  time.Time      `json:"effectiveFrom"`
	SupersededAt   *time.Time     `json:"supersededAt,omitempty"`
	Justification  string         `json:"justification,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// AgentKPIs are the aggregates the tier evaluator computes for one agent
// over an evaluation window.
type AgentKPIs struct {
	AgentID      uuid.UUID `json:"agentId"`
	Window       string    `json:"window"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	BookingCount int       `json:"bookingCount"`
	BookingValue float64   `json:"bookingValue"`
}

// TierEvaluateRequest is the body for POST /api/tiers/evaluate.
type TierEvaluateRequest struct {
	AgentID string `json:"agentId"`
	Window  string `json:"window,omitempty"` // MONTHLY, QUARTERLY, YEARLY
}

// TierEvaluateResponse carries the computed KPIs and recommendation.
type TierEvaluateResponse struct {
	KPIs            AgentKPIs `json:"kpis"`
	CurrentTier     TierCode  `json:"currentTier"`
	RecommendedTier TierCode  `json:"recommendedTier"`
	ChangeRequired  bool      `json:"changeRequired"`
}

// TierAutoAssignRequest is the body for POST /api/tiers/auto-assign.
type TierAutoAssignRequest struct {
	AgentIDs []string `json:"agentIds"`
	Window   string   `json:"window,omitempty"`
}

// TierAutoAssignResult reports the outcome for one agent of a batch run.
type TierAutoAssignResult struct {
	AgentID         string   `json:"agentId"`
	PreviousTier    TierCode `json:"previousTier"`
	RecommendedTier TierCode `json:"recommendedTier"`
	Changed         bool     `json:"changed"`
	Error           string   `json:"error,omitempty"`
}

// ManualAssignRequest is the body for POST /api/tiers/assignments.
type ManualAssignRequest struct {
	AgentID       string   `json:"agentId"`
	TierCode      TierCode `json:"tierCode"`
	Justification string   `json:"justification"`
	EffectiveFrom string   `json:"effectiveFrom,omitempty"` // RFC 3339; defaults to now
}
