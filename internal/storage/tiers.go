package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

const tierColumns = `id, tier_code, display_name, min_bookings, min_revenue, rank, benefits, status, created_at, updated_at`

const assignmentColumns = `id, agent_id, tier_code, assignment_type, status, effective_from, superseded_at, justification, created_at`

// CreateTierWithAudit inserts a tier definition.
func (db *DB) CreateTierWithAudit(ctx context.Context, t model.AgentTier, audit model.AuditLog) (model.AgentTier, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.AgentTier{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = model.StatusActive
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO agent_tiers (`+tierColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.TierCode, t.DisplayName, t.Thresholds.MinBookings, t.Thresholds.MinRevenue,
		t.Rank, t.Benefits, t.Status, t.CreatedAt, t.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.AgentTier{}, ErrDuplicateCode
		}
		return model.AgentTier{}, fmt.Errorf("storage: insert tier: %w", err)
	}

	audit.EntityID = t.ID.String()
	audit.AfterData = entitySnapshot(t)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.AgentTier{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.AgentTier{}, fmt.Errorf("storage: commit tier: %w", err)
	}
	return t, nil
}

// GetTier retrieves a tier by ID.
func (db *DB) GetTier(ctx context.Context, id uuid.UUID) (model.AgentTier, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+tierColumns+` FROM agent_tiers WHERE id = $1`, id)
	t, err := scanTier(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.AgentTier{}, ErrNotFound
		}
		return model.AgentTier{}, fmt.Errorf("storage: get tier: %w", err)
	}
	return t, nil
}

// ListActiveTiers returns ACTIVE tier definitions ordered best rank first.
// The tier evaluator walks this list top down and recommends the first tier
// whose thresholds the agent meets.
func (db *DB) ListActiveTiers(ctx context.Context) ([]model.AgentTier, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+tierColumns+` FROM agent_tiers WHERE status = 'ACTIVE' ORDER BY rank ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list active tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.AgentTier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// ListTiers returns tier definitions ordered by rank, optionally filtered by
// status.
func (db *DB) ListTiers(ctx context.Context, status string, limit, offset int) ([]model.AgentTier, int, error) {
	where := ""
	args := []any{}
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM agent_tiers`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count tiers: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	rows, err := db.pool.Query(ctx, fmt.Sprintf(
		`SELECT `+tierColumns+` FROM agent_tiers`+where+` ORDER BY rank ASC LIMIT %d OFFSET %d`,
		limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.AgentTier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, total, rows.Err()
}

// UpdateTierWithAudit replaces a tier's mutable fields.
func (db *DB) UpdateTierWithAudit(ctx context.Context, t model.AgentTier, audit model.AuditLog) (model.AgentTier, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.AgentTier{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getTierTx(ctx, tx, t.ID)
	if err != nil {
		return model.AgentTier{}, err
	}

	t.CreatedAt = before.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE agent_tiers SET
		     tier_code = $2, display_name = $3, min_bookings = $4, min_revenue = $5,
		     rank = $6, benefits = $7, status = $8, updated_at = $9
		 WHERE id = $1`,
		t.ID, t.TierCode, t.DisplayName, t.Thresholds.MinBookings, t.Thresholds.MinRevenue,
		t.Rank, t.Benefits, t.Status, t.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.AgentTier{}, ErrDuplicateCode
		}
		return model.AgentTier{}, fmt.Errorf("storage: update tier: %w", err)
	}

	audit.EntityID = t.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(t)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.AgentTier{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.AgentTier{}, fmt.Errorf("storage: commit tier update: %w", err)
	}
	return t, nil
}

// UpdateTierStatusWithAudit transitions a tier definition's status.
func (db *DB) UpdateTierStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.AgentTier, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.AgentTier{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getTierTx(ctx, tx, id)
	if err != nil {
		return model.AgentTier{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE agent_tiers SET status = $2, updated_at = $3 WHERE id = $1`,
		id, after.Status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.AgentTier{}, ErrDuplicateCode
		}
		return model.AgentTier{}, fmt.Errorf("storage: update tier status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.AgentTier{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.AgentTier{}, fmt.Errorf("storage: commit tier status: %w", err)
	}
	return after, nil
}

// DeleteTierWithAudit removes a tier definition. The before snapshot survives
// in the audit log.
func (db *DB) DeleteTierWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getTierTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM agent_tiers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete tier: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit tier delete: %w", err)
	}
	return nil
}

// AssignTierWithAudit supersedes the agent's currently ACTIVE assignment (if
// any) and inserts the new one, all in one transaction. The partial unique
// index on (agent_id) WHERE status='ACTIVE' backstops the supersede against
// concurrent assigners.
func (db *DB) AssignTierWithAudit(ctx context.Context, a model.AgentTierAssignment, audit model.AuditLog) (model.AgentTierAssignment, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.AgentTierAssignment{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	if a.EffectiveFrom.IsZero() {
		a.EffectiveFrom = now
	}

	// The old assignment stays on record until the new one takes effect.
	var before *model.AgentTierAssignment
	prev, err := getActiveAssignmentTx(ctx, tx, a.AgentID)
	switch err {
	case nil:
		before = &prev
		if _, err := tx.Exec(ctx,
			`UPDATE agent_tier_assignments SET status = 'SUPERSEDED', superseded_at = $2 WHERE id = $1`,
			prev.ID, a.EffectiveFrom,
		); err != nil {
			return model.AgentTierAssignment{}, fmt.Errorf("storage: supersede assignment: %w", err)
		}
	case ErrNotFound:
	default:
		return model.AgentTierAssignment{}, err
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = model.StatusActive
	a.CreatedAt = now
	a.SupersededAt = nil

	if _, err := tx.Exec(ctx,
		`INSERT INTO agent_tier_assignments (`+assignmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.AgentID, a.TierCode, a.AssignmentType, a.Status,
		a.EffectiveFrom, a.SupersededAt, a.Justification, a.CreatedAt,
	); err != nil {
		return model.AgentTierAssignment{}, fmt.Errorf("storage: insert assignment: %w", err)
	}

	audit.EntityID = a.ID.String()
	if before != nil {
		audit.BeforeData = entitySnapshot(*before)
	}
	audit.AfterData = entitySnapshot(a)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.AgentTierAssignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.AgentTierAssignment{}, fmt.Errorf("storage: commit assignment: %w", err)
	}
	return a, nil
}

// GetActiveAssignment returns the agent's current ACTIVE tier assignment.
func (db *DB) GetActiveAssignment(ctx context.Context, agentID uuid.UUID) (model.AgentTierAssignment, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM agent_tier_assignments
		 WHERE agent_id = $1 AND status = 'ACTIVE'`, agentID)
	a, err := scanAssignment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.AgentTierAssignment{}, ErrNotFound
		}
		return model.AgentTierAssignment{}, fmt.Errorf("storage: get active assignment: %w", err)
	}
	return a, nil
}

// ListAssignments returns an agent's assignment history, newest first.
func (db *DB) ListAssignments(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]model.AgentTierAssignment, int, error) {
	var total int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM agent_tier_assignments WHERE agent_id = $1`, agentID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count assignments: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	rows, err := db.pool.Query(ctx, fmt.Sprintf(
		`SELECT `+assignmentColumns+` FROM agent_tier_assignments
		 WHERE agent_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset),
		agentID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.AgentTierAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, total, rows.Err()
}

func getActiveAssignmentTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) (model.AgentTierAssignment, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM agent_tier_assignments
		 WHERE agent_id = $1 AND status = 'ACTIVE' FOR UPDATE`, agentID)
	a, err := scanAssignment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.AgentTierAssignment{}, ErrNotFound
		}
		return model.AgentTierAssignment{}, fmt.Errorf("storage: get active assignment: %w", err)
	}
	return a, nil
}

func getTierTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.AgentTier, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+tierColumns+` FROM agent_tiers WHERE id = $1 FOR UPDATE`, id)
	t, err := scanTier(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.AgentTier{}, ErrNotFound
		}
		return model.AgentTier{}, fmt.Errorf("storage: get tier: %w", err)
	}
	return t, nil
}

func scanTier(row pgx.Row) (model.AgentTier, error) {
	var t model.AgentTier
	err := row.Scan(
		&t.ID, &t.TierCode, &t.DisplayName, &t.Thresholds.MinBookings, &t.Thresholds.MinRevenue,
		&t.Rank, &t.Benefits, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func scanAssignment(row pgx.Row) (model.AgentTierAssignment, error) {
	var a model.AgentTierAssignment
	err := row.Scan(
		&a.ID, &a.AgentID, &a.TierCode, &a.AssignmentType, &a.Status,
		&a.EffectiveFrom, &a.SupersededAt, &a.Justification, &a.CreatedAt,
	)
	return a, err
}
