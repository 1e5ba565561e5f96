package model

import (
	"time"

	"github.com/google/uuid"
)

// Campaign is a marketing push targeting cohorts over one or more channels.
type Campaign struct {
	ID          uuid.UUID `json:"id"`
	CampaignCode string   `json:"campaignCode"`
	Name        string    `json:"name"`
	Objective   string    `json:"objective,omitempty"`
	Channels    []Channel `json:"channels"`
	CohortCodes []string  `json:"cohortCodes"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Budget      float64   `json:"budget"`
	OfferRef    string    `json:"offerRef,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c Campaign) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "campaignCode", c.CampaignCode)
	errs = appendRequired(errs, "name", c.Name)
	errs = appendWindow(errs, "startDate", "endDate", c.StartDate, c.EndDate)
	if c.Budget < 0 {
		errs = append(errs, FieldError{Field: "budget", Message: "must not be negative"})
	}
	return errs
}

// DeliveryStatus is the send state of one campaign delivery.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

// CampaignDelivery is a per-recipient delivery record with engagement
// event timestamps.
type CampaignDelivery struct {
	ID          uuid.UUID      `json:"id"`
	CampaignID  uuid.UUID      `json:"campaignId"`
	Recipient   string         `json:"recipient"`
	Channel     Channel        `json:"channel"`
	Status      DeliveryStatus `json:"status"`
	SentAt      *time.Time     `json:"sentAt,omitempty"`
	OpenedAt    *time.Time     `json:"openedAt,omitempty"`
	ClickedAt   *time.Time     `json:"clickedAt,omitempty"`
	PurchasedAt *time.Time     `json:"purchasedAt,omitempty"`
	Revenue     float64        `json:"revenue"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// DeliveryEvent enumerates recipient engagement events.
type DeliveryEvent string

const (
	EventOpened    DeliveryEvent = "OPENED"
	EventClicked   DeliveryEvent = "CLICKED"
	EventPurchased DeliveryEvent = "PURCHASED"
)

// DeliveryEventRequest is the body for recording an engagement event.
type DeliveryEventRequest struct {
	Event   DeliveryEvent `json:"event"`
	Revenue float64       `json:"revenue,omitempty"` // PURCHASED only
}

// CampaignMetrics is one day's aggregated engagement for a campaign,
// recomputed from delivery records by the rollup endpoint.
type CampaignMetrics struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaignId"`
	MetricDate string    `json:"metricDate"` // YYYY-MM-DD
	Sent       int       `json:"sent"`
	Opened     int       `json:"opened"`
	Clicked    int       `json:"clicked"`
	Purchased  int       `json:"purchased"`
	Revenue    float64   `json:"revenue"`
	CreatedAt  time.Time `json:"createdAt"`
}
