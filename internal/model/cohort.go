package model

import (
	"time"

	"github.com/google/uuid"
)

// CohortType categorizes how a cohort segments customers.
type CohortType string

const (
	CohortBehavioral CohortType = "BEHAVIORAL"
	CohortGeographic CohortType = "GEOGRAPHIC"
	CohortChannel    CohortType = "CHANNEL"
)

// Cohort is a named customer segment. Structured fields (POS, channels,
// device, booking window) are matched exactly; CriteriaExpr optionally holds
// a JSON-logic expression evaluated against the composition context for
// behavioral thresholds that the structured fields cannot express.
type Cohort struct {
	ID                uuid.UUID      `json:"id"`
	CohortCode        string         `json:"cohortCode"`
	Name              string         `json:"name"`
	Type              CohortType     `json:"type"`
	POS               []string       `json:"pos"`
	Channels          []Channel      `json:"channels"`
	Device            string         `json:"device,omitempty"`
	BookingWindowDays *int           `json:"bookingWindowDays,omitempty"`
	CriteriaExpr      map[string]any `json:"criteriaExpr,omitempty"`
	Status            Status         `json:"status"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

func (c Cohort) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "cohortCode", c.CohortCode)
	errs = appendRequired(errs, "name", c.Name)
	switch c.Type {
	case CohortBehavioral, CohortGeographic, CohortChannel:
	default:
		errs = append(errs, FieldError{Field: "type", Message: "must be BEHAVIORAL, GEOGRAPHIC or CHANNEL"})
	}
	errs = appendPOS(errs, "pos", c.POS)
	if c.BookingWindowDays != nil && *c.BookingWindowDays < 0 {
		errs = append(errs, FieldError{Field: "bookingWindowDays", Message: "must not be negative"})
	}
	return errs
}
