package conflicts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWindowOverlaps(t *testing.T) {
	a := Window{Start: day("2026-01-01"), End: day("2026-01-31")}

	tests := []struct {
		name string
		b    Window
		want bool
	}{
		{"fully inside", Window{day("2026-01-10"), day("2026-01-20")}, true},
		{"partial left", Window{day("2025-12-20"), day("2026-01-05")}, true},
		{"partial right", Window{day("2026-01-25"), day("2026-02-10")}, true},
		{"touching end is inclusive", Window{day("2026-01-31"), day("2026-02-15")}, true},
		{"touching start is inclusive", Window{day("2025-12-01"), day("2026-01-01")}, true},
		{"disjoint after", Window{day("2026-02-01"), day("2026-02-28")}, false},
		{"disjoint before", Window{day("2025-11-01"), day("2025-12-31")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(a), "overlap must be symmetric")
		})
	}
}

func fare(booking, travel [2]string) model.NegotiatedFare {
	return model.NegotiatedFare{
		ID:           uuid.New(),
		Airline:      "6E",
		Origin:       "DEL",
		Destination:  "BOM",
		CabinClass:   "ECONOMY",
		BookingStart: day(booking[0]),
		BookingEnd:   day(booking[1]),
		TravelStart:  day(travel[0]),
		TravelEnd:    day(travel[1]),
		Status:       model.StatusActive,
	}
}

func TestFareConflicts_BothWindowsMustOverlap(t *testing.T) {
	candidate := fare([2]string{"2026-01-01", "2026-03-31"}, [2]string{"2026-02-01", "2026-06-30"})

	// Booking overlaps, travel disjoint: no conflict.
	existing := fare([2]string{"2026-02-01", "2026-04-30"}, [2]string{"2026-08-01", "2026-09-30"})
	assert.Empty(t, FareConflicts(candidate, []model.NegotiatedFare{existing}))

	// Travel overlaps, booking disjoint: no conflict.
	existing = fare([2]string{"2026-05-01", "2026-06-30"}, [2]string{"2026-03-01", "2026-04-30"})
	assert.Empty(t, FareConflicts(candidate, []model.NegotiatedFare{existing}))

	// Both overlap: conflict.
	existing = fare([2]string{"2026-03-01", "2026-05-31"}, [2]string{"2026-05-01", "2026-07-31"})
	got := FareConflicts(candidate, []model.NegotiatedFare{existing})
	require.Len(t, got, 1)
	assert.Equal(t, existing.ID, got[0].ID)
}

func TestFareConflicts_IgnoresSelf(t *testing.T) {
	f := fare([2]string{"2026-01-01", "2026-03-31"}, [2]string{"2026-02-01", "2026-06-30"})
	assert.Empty(t, FareConflicts(f, []model.NegotiatedFare{f}))
}
