// Package conflicts implements the overlap and uniqueness checks that gate
// every rule and fare write. Conflicts always block: callers surface the
// conflicting records with HTTP 409 and never auto-resolve.
package conflicts

import (
	"time"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

// Window is an inclusive date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two inclusive windows intersect:
// startA <= endB AND endA >= startB.
func (w Window) Overlaps(other Window) bool {
	return !w.Start.After(other.End) && !w.End.Before(other.Start)
}

// FareConflicts returns the subset of candidates that conflict with the
// given fare. Candidates must already share the fare's scope key
// (airline+origin+destination+cabin) and be ACTIVE; a candidate conflicts
// when both its booking window and its travel window overlap the fare's.
func FareConflicts(fare model.NegotiatedFare, candidates []model.NegotiatedFare) []model.NegotiatedFare {
	booking := Window{Start: fare.BookingStart, End: fare.BookingEnd}
	travel := Window{Start: fare.TravelStart, End: fare.TravelEnd}

	var out []model.NegotiatedFare
	for _, c := range candidates {
		if c.ID == fare.ID {
			continue // updating a fare never conflicts with itself
		}
		if booking.Overlaps(Window{Start: c.BookingStart, End: c.BookingEnd}) &&
			travel.Overlaps(Window{Start: c.TravelStart, End: c.TravelEnd}) {
			out = append(out, c)
		}
	}
	return out
}

// Conflict is one blocking record returned to the caller in the 409 body.
type Conflict struct {
	Module   string `json:"module"`
	EntityID string `json:"entityId"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
}
