package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/conflicts"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

const fareColumns = `id, airline, fare_code, origin, destination, trip_type, cabin_class,
	 base_net_fare, currency, booking_start, booking_end, travel_start, travel_end,
	 pos, seat_allotment, min_stay, max_stay, blackout_dates,
	 eligible_tiers, eligible_cohorts, status, created_at, updated_at`

// CreateFareWithAudit inserts a negotiated fare after checking it against
// every ACTIVE fare in the same scope. The scope rows are locked FOR UPDATE
// so the check and the insert are atomic with respect to concurrent writers.
// When conflicts exist, nothing is written and the conflicting records are
// returned.
func (db *DB) CreateFareWithAudit(ctx context.Context, f model.NegotiatedFare, audit model.AuditLog) (model.NegotiatedFare, []conflicts.Conflict, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.NegotiatedFare{}, nil, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := lockFareScope(ctx, tx, f)
	if err != nil {
		return model.NegotiatedFare{}, nil, err
	}
	if blocked := conflicts.FareConflicts(f, existing); len(blocked) > 0 {
		return model.NegotiatedFare{}, fareConflictRecords(blocked), nil
	}

	f = normalizeFare(f)
	if err := insertFareTx(ctx, tx, f); err != nil {
		return model.NegotiatedFare{}, nil, err
	}

	audit.EntityID = f.ID.String()
	audit.AfterData = entitySnapshot(f)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.NegotiatedFare{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.NegotiatedFare{}, nil, fmt.Errorf("storage: commit fare: %w", err)
	}
	return f, nil, nil
}

// BulkInsertFaresWithAudit inserts a batch of already-validated fares in one
// transaction. Rows that conflict with the database or with an earlier row in
// the same batch are skipped and reported; the remaining rows commit together.
func (db *DB) BulkInsertFaresWithAudit(ctx context.Context, fares []model.NegotiatedFare, audit model.AuditLog) ([]model.NegotiatedFare, []conflicts.Conflict, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted []model.NegotiatedFare
	var skipped []conflicts.Conflict

	for _, f := range fares {
		existing, err := lockFareScope(ctx, tx, f)
		if err != nil {
			return nil, nil, err
		}
		// Earlier rows of this batch count against later ones.
		for _, prev := range inserted {
			existing = append(existing, prev)
		}
		if blocked := conflicts.FareConflicts(f, existing); len(blocked) > 0 {
			skipped = append(skipped, fareConflictRecords(blocked)...)
			continue
		}

		f = normalizeFare(f)
		if err := insertFareTx(ctx, tx, f); err != nil {
			return nil, nil, err
		}

		rowAudit := audit
		rowAudit.EntityID = f.ID.String()
		rowAudit.AfterData = entitySnapshot(f)
		if err := insertAuditTx(ctx, tx, rowAudit); err != nil {
			return nil, nil, err
		}
		inserted = append(inserted, f)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("storage: commit fare batch: %w", err)
	}
	return inserted, skipped, nil
}

// GetFare retrieves a negotiated fare by ID.
func (db *DB) GetFare(ctx context.Context, id uuid.UUID) (model.NegotiatedFare, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+fareColumns+` FROM negotiated_fares WHERE id = $1`, id)
	f, err := scanFare(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.NegotiatedFare{}, ErrNotFound
		}
		return model.NegotiatedFare{}, fmt.Errorf("storage: get fare: %w", err)
	}
	return f, nil
}

// FareFilters narrows fare listings.
type FareFilters struct {
	Airline     string
	Origin      string
	Destination string
	CabinClass  string
	Status      string
}

// ListFares returns fares matching the filters, newest first, with the total
// match count.
func (db *DB) ListFares(ctx context.Context, f FareFilters, limit, offset int) ([]model.NegotiatedFare, int, error) {
	var conditions []string
	var args []any
	idx := 1
	add := func(col, val string) {
		if val == "" {
			return
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}
	add("airline", f.Airline)
	add("origin", f.Origin)
	add("destination", f.Destination)
	add("cabin_class", f.CabinClass)
	add("status", f.Status)

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM negotiated_fares"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count fares: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+fareColumns+` FROM negotiated_fares%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list fares: %w", err)
	}
	defer rows.Close()

	var fares []model.NegotiatedFare
	for rows.Next() {
		f, err := scanFare(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan fare: %w", err)
		}
		fares = append(fares, f)
	}
	return fares, total, rows.Err()
}

// UpdateFareWithAudit replaces a fare's mutable fields after re-running the
// conflict check against the rest of its scope.
func (db *DB) UpdateFareWithAudit(ctx context.Context, f model.NegotiatedFare, audit model.AuditLog) (model.NegotiatedFare, []conflicts.Conflict, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.NegotiatedFare{}, nil, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getFareTx(ctx, tx, f.ID)
	if err != nil {
		return model.NegotiatedFare{}, nil, err
	}

	existing, err := lockFareScope(ctx, tx, f)
	if err != nil {
		return model.NegotiatedFare{}, nil, err
	}
	if blocked := conflicts.FareConflicts(f, existing); len(blocked) > 0 {
		return model.NegotiatedFare{}, fareConflictRecords(blocked), nil
	}

	f.CreatedAt = before.CreatedAt
	f.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE negotiated_fares SET
		     airline = $2, fare_code = $3, origin = $4, destination = $5,
		     trip_type = $6, cabin_class = $7, base_net_fare = $8, currency = $9,
		     booking_start = $10, booking_end = $11, travel_start = $12, travel_end = $13,
		     pos = $14, seat_allotment = $15, min_stay = $16, max_stay = $17,
		     blackout_dates = $18, eligible_tiers = $19, eligible_cohorts = $20,
		     status = $21, updated_at = $22
		 WHERE id = $1`,
		f.ID, f.Airline, f.FareCode, f.Origin, f.Destination,
		f.TripType, f.CabinClass, f.BaseNetFare, f.Currency,
		f.BookingStart, f.BookingEnd, f.TravelStart, f.TravelEnd,
		f.POS, f.SeatAllotment, f.MinStay, f.MaxStay,
		f.BlackoutDates, f.EligibleTiers, f.EligibleCohorts,
		f.Status, f.UpdatedAt,
	)
	if err != nil {
		return model.NegotiatedFare{}, nil, fmt.Errorf("storage: update fare: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NegotiatedFare{}, nil, ErrNotFound
	}

	audit.EntityID = f.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(f)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.NegotiatedFare{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.NegotiatedFare{}, nil, fmt.Errorf("storage: commit fare update: %w", err)
	}
	return f, nil, nil
}

// UpdateFareStatusWithAudit transitions a fare's status.
func (db *DB) UpdateFareStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.NegotiatedFare, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.NegotiatedFare{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getFareTx(ctx, tx, id)
	if err != nil {
		return model.NegotiatedFare{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE negotiated_fares SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		return model.NegotiatedFare{}, fmt.Errorf("storage: update fare status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.NegotiatedFare{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.NegotiatedFare{}, fmt.Errorf("storage: commit fare status: %w", err)
	}
	return after, nil
}

// DeleteFareWithAudit removes a fare and records the deleted snapshot.
func (db *DB) DeleteFareWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getFareTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM negotiated_fares WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete fare: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit fare delete: %w", err)
	}
	return nil
}

// FindFareForRoute returns the cheapest ACTIVE negotiated fare for the given
// route and cabin, or ErrNotFound when no negotiated fare covers it.
func (db *DB) FindFareForRoute(ctx context.Context, origin, destination, cabinClass string) (model.NegotiatedFare, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+fareColumns+`
		 FROM negotiated_fares
		 WHERE status = 'ACTIVE' AND origin = $1 AND destination = $2
		   AND ($3 = '' OR cabin_class = $3)
		 ORDER BY base_net_fare ASC
		 LIMIT 1`,
		origin, destination, cabinClass,
	)
	f, err := scanFare(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.NegotiatedFare{}, ErrNotFound
		}
		return model.NegotiatedFare{}, fmt.Errorf("storage: find fare for route: %w", err)
	}
	return f, nil
}

func lockFareScope(ctx context.Context, tx pgx.Tx, f model.NegotiatedFare) ([]model.NegotiatedFare, error) {
	airline, origin, destination, cabin := f.ScopeKey()
	rows, err := tx.Query(ctx,
		`SELECT `+fareColumns+`
		 FROM negotiated_fares
		 WHERE status = 'ACTIVE'
		   AND airline = $1 AND origin = $2 AND destination = $3 AND cabin_class = $4
		 FOR UPDATE`,
		airline, origin, destination, cabin,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: lock fare scope: %w", err)
	}
	defer rows.Close()

	var fares []model.NegotiatedFare
	for rows.Next() {
		existing, err := scanFare(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan scoped fare: %w", err)
		}
		fares = append(fares, existing)
	}
	return fares, rows.Err()
}

func insertFareTx(ctx context.Context, tx pgx.Tx, f model.NegotiatedFare) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO negotiated_fares (`+fareColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		         $16, $17, $18, $19, $20, $21, $22, $23)`,
		f.ID, f.Airline, f.FareCode, f.Origin, f.Destination, f.TripType, f.CabinClass,
		f.BaseNetFare, f.Currency, f.BookingStart, f.BookingEnd, f.TravelStart, f.TravelEnd,
		f.POS, f.SeatAllotment, f.MinStay, f.MaxStay, f.BlackoutDates,
		f.EligibleTiers, f.EligibleCohorts, f.Status, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert fare: %w", err)
	}
	return nil
}

func getFareTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.NegotiatedFare, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+fareColumns+` FROM negotiated_fares WHERE id = $1 FOR UPDATE`, id)
	f, err := scanFare(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.NegotiatedFare{}, ErrNotFound
		}
		return model.NegotiatedFare{}, fmt.Errorf("storage: get fare: %w", err)
	}
	return f, nil
}

func scanFare(row pgx.Row) (model.NegotiatedFare, error) {
	var f model.NegotiatedFare
	err := row.Scan(
		&f.ID, &f.Airline, &f.FareCode, &f.Origin, &f.Destination, &f.TripType, &f.CabinClass,
		&f.BaseNetFare, &f.Currency, &f.BookingStart, &f.BookingEnd, &f.TravelStart, &f.TravelEnd,
		&f.POS, &f.SeatAllotment, &f.MinStay, &f.MaxStay, &f.BlackoutDates,
		&f.EligibleTiers, &f.EligibleCohorts, &f.Status, &f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

func normalizeFare(f model.NegotiatedFare) model.NegotiatedFare {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	if f.Status == "" {
		f.Status = model.StatusActive
	}
	if f.TripType == "" {
		f.TripType = model.TripOneWay
	}
	if f.POS == nil {
		f.POS = []string{}
	}
	if f.BlackoutDates == nil {
		f.BlackoutDates = []string{}
	}
	if f.EligibleTiers == nil {
		f.EligibleTiers = []model.TierCode{}
	}
	if f.EligibleCohorts == nil {
		f.EligibleCohorts = []string{}
	}
	return f
}

func fareConflictRecords(blocked []model.NegotiatedFare) []conflicts.Conflict {
	out := make([]conflicts.Conflict, 0, len(blocked))
	for _, b := range blocked {
		out = append(out, conflicts.Conflict{
			Module:   model.ModuleNegotiatedFare,
			EntityID: b.ID.String(),
			Code:     b.FareCode,
			Reason:   "overlapping booking and travel windows in the same scope",
		})
	}
	return out
}
