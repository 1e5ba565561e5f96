package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

const ancillaryColumns = `id, rule_code, ancillary_code, adjustment_type, adjustment_value,
	 agent_tiers, pos, priority, valid_from, valid_to, status, created_at, updated_at`

// CreateAncillaryRuleWithAudit inserts an air ancillary rule.
func (db *DB) CreateAncillaryRuleWithAudit(ctx context.Context, r model.AirAncillaryRule, audit model.AuditLog) (model.AirAncillaryRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.AirAncillaryRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r = normalizeAncillaryRule(r)
	if _, err := tx.Exec(ctx,
		`INSERT INTO air_ancillary_rules (`+ancillaryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.RuleCode, r.AncillaryCode, r.AdjustmentType, r.AdjustmentValue,
		r.AgentTiers, r.POS, r.Priority, r.ValidFrom, r.ValidTo, r.Status, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.AirAncillaryRule{}, ErrDuplicateCode
		}
		return model.AirAncillaryRule{}, fmt.Errorf("storage: insert ancillary rule: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.AirAncillaryRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.AirAncillaryRule{}, fmt.Errorf("storage: commit ancillary rule: %w", err)
	}
	return r, nil
}

// GetAncillaryRule retrieves an ancillary rule by ID.
func (db *DB) GetAncillaryRule(ctx context.Context, id uuid.UUID) (model.AirAncillaryRule, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+ancillaryColumns+` FROM air_ancillary_rules WHERE id = $1`, id)
	r, err := scanAncillaryRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.AirAncillaryRule{}, ErrNotFound
		}
		return model.AirAncillaryRule{}, fmt.Errorf("storage: get ancillary rule: %w", err)
	}
	return r, nil
}

// ListAncillaryRules returns ancillary rules, optionally filtered by
// ancillary code and status.
func (db *DB) ListAncillaryRules(ctx context.Context, ancillaryCode, status string, limit, offset int) ([]model.AirAncillaryRule, int, error) {
	var conditions []string
	var args []any
	idx := 1
	if ancillaryCode != "" {
		conditions = append(conditions, fmt.Sprintf("ancillary_code = $%d", idx))
		args = append(args, ancillaryCode)
		idx++
	}
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", idx))
		args = append(args, status)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM air_ancillary_rules"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count ancillary rules: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+ancillaryColumns+` FROM air_ancillary_rules%s
		 ORDER BY priority ASC, created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list ancillary rules: %w", err)
	}
	defer rows.Close()

	var rules []model.AirAncillaryRule
	for rows.Next() {
		r, err := scanAncillaryRule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan ancillary rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, total, rows.Err()
}

// ListActiveAncillaryRules returns every ACTIVE ancillary rule ordered by
// priority for the composition matcher.
func (db *DB) ListActiveAncillaryRules(ctx context.Context) ([]model.AirAncillaryRule, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+ancillaryColumns+` FROM air_ancillary_rules
		 WHERE status = 'ACTIVE' ORDER BY priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list active ancillary rules: %w", err)
	}
	defer rows.Close()

	var rules []model.AirAncillaryRule
	for rows.Next() {
		r, err := scanAncillaryRule(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan ancillary rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpdateAncillaryRuleWithAudit replaces an ancillary rule's mutable fields.
func (db *DB) UpdateAncillaryRuleWithAudit(ctx context.Context, r model.AirAncillaryRule, audit model.AuditLog) (model.AirAncillaryRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.AirAncillaryRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getAncillaryRuleTx(ctx, tx, r.ID)
	if err != nil {
		return model.AirAncillaryRule{}, err
	}

	r.CreatedAt = before.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE air_ancillary_rules SET
		     rule_code = $2, ancillary_code = $3, adjustment_type = $4, adjustment_value = $5,
		     agent_tiers = $6, pos = $7, priority = $8, valid_from = $9, valid_to = $10,
		     status = $11, updated_at = $12
		 WHERE id = $1`,
		r.ID, r.RuleCode, r.AncillaryCode, r.AdjustmentType, r.AdjustmentValue,
		r.AgentTiers, r.POS, r.Priority, r.ValidFrom, r.ValidTo,
		r.Status, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.AirAncillaryRule{}, ErrDuplicateCode
		}
		return model.AirAncillaryRule{}, fmt.Errorf("storage: update ancillary rule: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.AirAncillaryRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.AirAncillaryRule{}, fmt.Errorf("storage: commit ancillary rule update: %w", err)
	}
	return r, nil
}

// UpdateAncillaryRuleStatusWithAudit transitions an ancillary rule's status.
func (db *DB) UpdateAncillaryRuleStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.AirAncillaryRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.AirAncillaryRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getAncillaryRuleTx(ctx, tx, id)
	if err != nil {
		return model.AirAncillaryRule{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE air_ancillary_rules SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.AirAncillaryRule{}, ErrDuplicateCode
		}
		return model.AirAncillaryRule{}, fmt.Errorf("storage: update ancillary rule status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.AirAncillaryRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.AirAncillaryRule{}, fmt.Errorf("storage: commit ancillary rule status: %w", err)
	}
	return after, nil
}

// DeleteAncillaryRuleWithAudit removes an ancillary rule.
func (db *DB) DeleteAncillaryRuleWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getAncillaryRuleTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM air_ancillary_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete ancillary rule: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit ancillary rule delete: %w", err)
	}
	return nil
}

func getAncillaryRuleTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.AirAncillaryRule, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+ancillaryColumns+` FROM air_ancillary_rules WHERE id = $1 FOR UPDATE`, id)
	r, err := scanAncillaryRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.AirAncillaryRule{}, ErrNotFound
		}
		return model.AirAncillaryRule{}, fmt.Errorf("storage: get ancillary rule: %w", err)
	}
	return r, nil
}

func scanAncillaryRule(row pgx.Row) (model.AirAncillaryRule, error) {
	var r model.AirAncillaryRule
	err := row.Scan(
		&r.ID, &r.RuleCode, &r.AncillaryCode, &r.AdjustmentType, &r.AdjustmentValue,
		&r.AgentTiers, &r.POS, &r.Priority, &r.ValidFrom, &r.ValidTo, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func normalizeAncillaryRule(r model.AirAncillaryRule) model.AirAncillaryRule {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = model.StatusActive
	}
	if r.Priority == 0 {
		r.Priority = 100
	}
	if r.AgentTiers == nil {
		r.AgentTiers = []model.TierCode{}
	}
	if r.POS == nil {
		r.POS = []string{}
	}
	return r
}
