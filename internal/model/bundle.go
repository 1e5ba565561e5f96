package model

import (
	"time"

	"github.com/google/uuid"
)

// BundleType categorizes the component mix of a bundle.
type BundleType string

const (
	BundleAirAir       BundleType = "AIR_AIR"
	BundleAirNonAir    BundleType = "AIR_NONAIR"
	BundleNonAirNonAir BundleType = "NONAIR_NONAIR"
)

// BundleComponent is one element of a bundle: an air ancillary or a non-air
// product, referenced by its code.
type BundleComponent struct {
	ComponentType string `json:"componentType"` // AIR or NONAIR
	Code          string `json:"code"`
}

// Bundle is a fixed grouping of components sold and priced as a single unit.
type Bundle struct {
	ID           uuid.UUID         `json:"id"`
	BundleCode   string            `json:"bundleCode"`
	Name         string            `json:"name"`
	Components   []BundleComponent `json:"components"`
	BundleType   BundleType        `json:"bundleType"`
	POS          []string          `json:"pos"`
	AgentTiers   []TierCode        `json:"agentTiers"`
	CohortCodes  []string          `json:"cohortCodes"`
	Channel      Channel           `json:"channel,omitempty"`
	ValidFrom    time.Time         `json:"validFrom"`
	ValidTo      time.Time         `json:"validTo"`
	InventoryCap *int              `json:"inventoryCap,omitempty"`
	Status       Status            `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (b Bundle) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "bundleCode", b.BundleCode)
	errs = appendRequired(errs, "name", b.Name)
	switch b.BundleType {
	case BundleAirAir, BundleAirNonAir, BundleNonAirNonAir:
	default:
		errs = append(errs, FieldError{Field: "bundleType", Message: "must be AIR_AIR, AIR_NONAIR or NONAIR_NONAIR"})
	}
	if len(b.Components) < 2 {
		errs = append(errs, FieldError{Field: "components", Message: "a bundle needs at least two components"})
	}
	for _, c := range b.Components {
		if c.ComponentType != "AIR" && c.ComponentType != "NONAIR" {
			errs = append(errs, FieldError{Field: "components", Message: "componentType must be AIR or NONAIR"})
			break
		}
	}
	errs = appendWindow(errs, "validFrom", "validTo", b.ValidFrom, b.ValidTo)
	errs = appendPOS(errs, "pos", b.POS)
	if b.InventoryCap != nil && *b.InventoryCap < 0 {
		errs = append(errs, FieldError{Field: "inventoryCap", Message: "must not be negative"})
	}
	return errs
}

// BundlePricingRule discounts a bundle's base price. During composition only
// the first matching rule (lowest priority value) is applied, unlike dynamic
// discounts which stack.
type BundlePricingRule struct {
	ID            uuid.UUID      `json:"id"`
	RuleCode      string         `json:"ruleCode"`
	BundleCode    string         `json:"bundleCode"`
	DiscountType  AdjustmentType `json:"discountType"`
	DiscountValue float64        `json:"discountValue"`
	Priority      int            `json:"priority"`
	ValidFrom     time.Time      `json:"validFrom"`
	ValidTo       time.Time      `json:"validTo"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (r BundlePricingRule) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "ruleCode", r.RuleCode)
	errs = appendRequired(errs, "bundleCode", r.BundleCode)
	errs = appendAdjustment(errs, r.DiscountType, r.DiscountValue, false)
	errs = appendWindow(errs, "validFrom", "validTo", r.ValidFrom, r.ValidTo)
	return errs
}
