package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

const traceColumns = `id, trace_id, audit_trace_id, agent_id, agent_tier, cohorts,
	 origin, destination, trip_type, cabin_class, channel, pos, fare_source,
	 base_price, adjustments, ancillaries, bundles, final_price, commission, created_at`

// InsertOfferTrace records a completed composition run. Traces are
// append-only.
func (db *DB) InsertOfferTrace(ctx context.Context, t model.OfferTrace) (model.OfferTrace, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Cohorts == nil {
		t.Cohorts = []string{}
	}
	if t.Adjustments == nil {
		t.Adjustments = []model.AppliedAdjustment{}
	}
	if t.Ancillaries == nil {
		t.Ancillaries = []model.AncillaryLine{}
	}
	if t.Bundles == nil {
		t.Bundles = []model.BundleLine{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO offer_traces (`+traceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		         $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		t.ID, t.TraceID, t.AuditTraceID, t.AgentID, t.AgentTier, t.Cohorts,
		t.Origin, t.Destination, t.TripType, t.CabinClass, t.Channel, t.POS, t.FareSource,
		t.BasePrice, t.Adjustments, t.Ancillaries, t.Bundles, t.FinalPrice, t.Commission, t.CreatedAt,
	)
	if err != nil {
		return model.OfferTrace{}, fmt.Errorf("storage: insert offer trace: %w", err)
	}
	return t, nil
}

// GetOfferTrace retrieves a trace by its public trace ID.
func (db *DB) GetOfferTrace(ctx context.Context, traceID string) (model.OfferTrace, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+traceColumns+` FROM offer_traces WHERE trace_id = $1`, traceID)
	t, err := scanOfferTrace(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.OfferTrace{}, ErrNotFound
		}
		return model.OfferTrace{}, fmt.Errorf("storage: get offer trace: %w", err)
	}
	return t, nil
}

// ListOfferTraces returns traces, optionally filtered by agent, newest first.
func (db *DB) ListOfferTraces(ctx context.Context, agentID string, limit, offset int) ([]model.OfferTrace, int, error) {
	where := ""
	var args []any
	if agentID != "" {
		where = " WHERE agent_id = $1"
		args = append(args, agentID)
	}

	var total int
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM offer_traces"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count offer traces: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+traceColumns+` FROM offer_traces%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list offer traces: %w", err)
	}
	defer rows.Close()

	var traces []model.OfferTrace
	for rows.Next() {
		t, err := scanOfferTrace(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan offer trace: %w", err)
		}
		traces = append(traces, t)
	}
	return traces, total, rows.Err()
}

// AgentKPIsSince aggregates an agent's composed-offer activity from a cutoff:
// the booking count and the summed final offer value. Offer traces stand in
// for bookings in tier evaluation.
func (db *DB) AgentKPIsSince(ctx context.Context, agentID string, from time.Time) (int, float64, error) {
	var count int
	var value float64
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(final_price), 0)
		 FROM offer_traces WHERE agent_id = $1 AND created_at >= $2`,
		agentID, from,
	).Scan(&count, &value)
	if err != nil {
		return 0, 0, fmt.Errorf("storage: agent KPIs: %w", err)
	}
	return count, value, nil
}

func scanOfferTrace(row pgx.Row) (model.OfferTrace, error) {
	var t model.OfferTrace
	err := row.Scan(
		&t.ID, &t.TraceID, &t.AuditTraceID, &t.AgentID, &t.AgentTier, &t.Cohorts,
		&t.Origin, &t.Destination, &t.TripType, &t.CabinClass, &t.Channel, &t.POS, &t.FareSource,
		&t.BasePrice, &t.Adjustments, &t.Ancillaries, &t.Bundles, &t.FinalPrice, &t.Commission, &t.CreatedAt,
	)
	return t, err
}
