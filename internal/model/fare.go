package model

import (
	"time"

	"github.com/google/uuid"
)

// NegotiatedFare is a privately contracted airline fare with its own validity
// windows and distribution restrictions.
//
// Invariant: no two ACTIVE fares for the same airline+origin+destination+cabin
// may have overlapping booking windows and overlapping travel windows at the
// same time. The conflict checker enforces this on every write.
type NegotiatedFare struct {
	ID             uuid.UUID  `json:"id"`
	Airline        string     `json:"airline"`
	FareCode       string     `json:"fareCode"`
	Origin         string     `json:"origin"`
	Destination    string     `json:"destination"`
	TripType       TripType   `json:"tripType"`
	CabinClass     string     `json:"cabinClass"`
	BaseNetFare    float64    `json:"baseNetFare"`
	Currency       string     `json:"currency"`
	BookingStart   time.Time  `json:"bookingStartDate"`
	BookingEnd     time.Time  `json:"bookingEndDate"`
	TravelStart    time.Time  `json:"travelStartDate"`
	TravelEnd      time.Time  `json:"travelEndDate"`
	POS            []string   `json:"pos"`
	SeatAllotment  int        `json:"seatAllotment"`
	MinStay        *int       `json:"minStay,omitempty"`
	MaxStay        *int       `json:"maxStay,omitempty"`
	BlackoutDates  []string   `json:"blackoutDates"`
	EligibleTiers  []TierCode `json:"eligibleAgentTiers"`
	EligibleCohorts []string  `json:"eligibleCohorts"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Validate checks required fields and value ranges, returning one FieldError
// per problem.
func (f NegotiatedFare) Validate() []FieldError {
	var errs []FieldError
	errs = appendRequired(errs, "airline", f.Airline)
	errs = appendRequired(errs, "fareCode", f.FareCode)
	errs = appendAirport(errs, "origin", f.Origin)
	errs = appendAirport(errs, "destination", f.Destination)
	errs = appendRequired(errs, "cabinClass", f.CabinClass)
	errs = appendCurrency(errs, "currency", f.Currency)
	if f.TripType != "" && f.TripType != TripOneWay && f.TripType != TripRoundTrip {
		errs = append(errs, FieldError{Field: "tripType", Message: "must be ONE_WAY or ROUND_TRIP"})
	}
	if f.BaseNetFare <= 0 {
		errs = append(errs, FieldError{Field: "baseNetFare", Message: "must be greater than zero"})
	}
	if f.SeatAllotment < 0 {
		errs = append(errs, FieldError{Field: "seatAllotment", Message: "must not be negative"})
	}
	errs = appendWindow(errs, "bookingStartDate", "bookingEndDate", f.BookingStart, f.BookingEnd)
	errs = appendWindow(errs, "travelStartDate", "travelEndDate", f.TravelStart, f.TravelEnd)
	if f.MinStay != nil && f.MaxStay != nil && *f.MinStay > *f.MaxStay {
		errs = append(errs, FieldError{Field: "minStay", Message: "must not exceed maxStay"})
	}
	for _, tier := range f.EligibleTiers {
		if !validTier(tier) {
			errs = append(errs, FieldError{Field: "eligibleAgentTiers", Message: "unknown tier " + string(tier)})
		}
	}
	return errs
}

// ScopeKey returns the conflict-scope identity for the fare: two fares can
// only ever conflict when these four dimensions are all equal.
func (f NegotiatedFare) ScopeKey() (airline, origin, destination, cabin string) {
	return f.Airline, f.Origin, f.Destination, f.CabinClass
}

func validTier(t TierCode) bool {
	switch t {
	case TierPlatinum, TierGold, TierSilver, TierBronze:
		return true
	}
	return false
}
