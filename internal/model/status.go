package model

// Status is the lifecycle state of a stored entity.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusInactive   Status = "INACTIVE"
	StatusConflicted Status = "CONFLICTED"

	// Campaign-only states.
	StatusDraft     Status = "DRAFT"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"

	// Assignment-only states.
	StatusSuperseded Status = "SUPERSEDED"
)

// AdjustmentType describes how a rule modifies a price.
type AdjustmentType string

const (
	AdjustPercent AdjustmentType = "PERCENT"
	AdjustAmount  AdjustmentType = "AMOUNT"
	AdjustFree    AdjustmentType = "FREE"
)

// TripType enumerates supported journey shapes.
type TripType string

const (
	TripOneWay    TripType = "ONE_WAY"
	TripRoundTrip TripType = "ROUND_TRIP"
)

// Channel enumerates distribution channels.
type Channel string

const (
	ChannelAPI    Channel = "API"
	ChannelPortal Channel = "PORTAL"
	ChannelMobile Channel = "MOBILE"
)

// FareSource indicates where a base price came from during composition.
type FareSource string

const (
	FareSourceNegotiated FareSource = "NEGOTIATED"
	FareSourceAPI        FareSource = "API"
)

// AuditAction enumerates audit log action keywords.
type AuditAction string

const (
	ActionCreated        AuditAction = "CREATED"
	ActionUpdated        AuditAction = "UPDATED"
	ActionStatusChanged  AuditAction = "STATUS_CHANGED"
	ActionDeleted        AuditAction = "DELETED"
	ActionRollback       AuditAction = "ROLLBACK"
	ActionManualOverride AuditAction = "MANUAL_OVERRIDE"
	ActionAutoAssigned   AuditAction = "AUTO_ASSIGNED"
)

// statusSets maps a module to the statuses its PATCH /{id}/status endpoint accepts.
var statusSets = map[string]map[Status]bool{
	ModuleNegotiatedFare:    {StatusActive: true, StatusInactive: true, StatusConflicted: true},
	ModuleDiscountRule:      {StatusActive: true, StatusInactive: true},
	ModuleAncillaryRule:     {StatusActive: true, StatusInactive: true},
	ModuleNonAirRate:        {StatusActive: true, StatusInactive: true},
	ModuleNonAirMarkupRule:  {StatusActive: true, StatusInactive: true},
	ModuleBundle:            {StatusActive: true, StatusInactive: true},
	ModuleBundlePricingRule: {StatusActive: true, StatusInactive: true},
	ModuleOfferRule:         {StatusActive: true, StatusInactive: true},
	ModuleAgent:             {StatusActive: true, StatusInactive: true},
	ModuleChannelOverride:   {StatusActive: true, StatusInactive: true},
	ModuleCohort:            {StatusActive: true, StatusInactive: true},
	ModuleAgentTier:         {StatusActive: true, StatusInactive: true},
	ModuleCampaign:          {StatusDraft: true, StatusActive: true, StatusPaused: true, StatusCompleted: true},
}

// Module name constants used in audit rows and status validation.
const (
	ModuleNegotiatedFare    = "NegotiatedFare"
	ModuleDiscountRule      = "DynamicDiscountRule"
	ModuleAncillaryRule     = "AirAncillaryRule"
	ModuleNonAirRate        = "NonAirRate"
	ModuleNonAirMarkupRule  = "NonAirMarkupRule"
	ModuleBundle            = "Bundle"
	ModuleBundlePricingRule = "BundlePricingRule"
	ModuleOfferRule         = "OfferRule"
	ModuleAgent             = "Agent"
	ModuleChannelOverride   = "ChannelOverride"
	ModuleCohort            = "Cohort"
	ModuleAgentTier         = "AgentTier"
	ModuleTierAssignment    = "AgentTierAssignment"
	ModuleCampaign          = "Campaign"
	ModuleOfferTrace        = "OfferTrace"
)

// ValidStatus reports whether the given status is allowed for a module's
// status-transition endpoint.
func ValidStatus(module string, s Status) bool {
	set, ok := statusSets[module]
	return ok && set[s]
}

// AllowedStatuses returns the enumerated status set for a module, for use in
// validation error messages. Order is not guaranteed.
func AllowedStatuses(module string) []Status {
	set := statusSets[module]
	out := make([]Status, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// TierCode is an agent tier rank.
type TierCode string

const (
	TierPlatinum TierCode = "PLATINUM"
	TierGold     TierCode = "GOLD"
	TierSilver   TierCode = "SILVER"
	TierBronze   TierCode = "BRONZE"
)

// AssignmentType distinguishes manual tier overrides from KPI-driven ones.
type AssignmentType string

const (
	AssignManualOverride AssignmentType = "MANUAL_OVERRIDE"
	AssignAuto           AssignmentType = "AUTO"
)
