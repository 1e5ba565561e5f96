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

const discountColumns = `id, rule_code, origin, destination, cabin_class, trip_type, channel,
	 fare_source, adjustment_type, adjustment_value, agent_tiers, pos, priority,
	 valid_from, valid_to, status, created_at, updated_at`

// CreateDiscountRuleWithAudit inserts a discount rule. Duplicate ACTIVE rule
// codes are rejected by the partial unique index, surfacing as
// ErrDuplicateCode without a separate pre-check.
func (db *DB) CreateDiscountRuleWithAudit(ctx context.Context, r model.DynamicDiscountRule, audit model.AuditLog) (model.DynamicDiscountRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r = normalizeDiscountRule(r)
	if _, err := tx.Exec(ctx,
		`INSERT INTO dynamic_discount_rules (`+discountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		r.ID, r.RuleCode, r.Origin, r.Destination, r.CabinClass, r.TripType, r.Channel,
		r.FareSource, r.AdjustmentType, r.AdjustmentValue, r.AgentTiers, r.POS, r.Priority,
		r.ValidFrom, r.ValidTo, r.Status, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.DynamicDiscountRule{}, ErrDuplicateCode
		}
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: insert discount rule: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.DynamicDiscountRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: commit discount rule: %w", err)
	}
	return r, nil
}

// BulkInsertDiscountRulesWithAudit inserts validated rules in one transaction.
// Rows whose code collides with an ACTIVE rule (in the table or earlier in the
// batch) are skipped and reported by rule code.
func (db *DB) BulkInsertDiscountRulesWithAudit(ctx context.Context, rules []model.DynamicDiscountRule, audit model.AuditLog) ([]model.DynamicDiscountRule, []string, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted []model.DynamicDiscountRule
	var duplicates []string

	for _, r := range rules {
		r = normalizeDiscountRule(r)

		// Savepoint per row so a unique violation doesn't poison the batch.
		if _, err := tx.Exec(ctx, `SAVEPOINT batch_row`); err != nil {
			return nil, nil, fmt.Errorf("storage: savepoint: %w", err)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO dynamic_discount_rules (`+discountColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			r.ID, r.RuleCode, r.Origin, r.Destination, r.CabinClass, r.TripType, r.Channel,
			r.FareSource, r.AdjustmentType, r.AdjustmentValue, r.AgentTiers, r.POS, r.Priority,
			r.ValidFrom, r.ValidTo, r.Status, r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT batch_row`); rbErr != nil {
					return nil, nil, fmt.Errorf("storage: rollback savepoint: %w", rbErr)
				}
				duplicates = append(duplicates, r.RuleCode)
				continue
			}
			return nil, nil, fmt.Errorf("storage: insert discount rule: %w", err)
		}

		rowAudit := audit
		rowAudit.EntityID = r.ID.String()
		rowAudit.AfterData = entitySnapshot(r)
		if err := insertAuditTx(ctx, tx, rowAudit); err != nil {
			return nil, nil, err
		}
		inserted = append(inserted, r)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("storage: commit discount rule batch: %w", err)
	}
	return inserted, duplicates, nil
}

// GetDiscountRule retrieves a discount rule by ID.
func (db *DB) GetDiscountRule(ctx context.Context, id uuid.UUID) (model.DynamicDiscountRule, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+discountColumns+` FROM dynamic_discount_rules WHERE id = $1`, id)
	r, err := scanDiscountRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.DynamicDiscountRule{}, ErrNotFound
		}
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: get discount rule: %w", err)
	}
	return r, nil
}

// RuleFilters narrows rule listings shared by the rule-shaped entities.
type RuleFilters struct {
	Origin      string
	Destination string
	Channel     string
	Status      string
}

// ListDiscountRules returns discount rules matching the filters with totals.
func (db *DB) ListDiscountRules(ctx context.Context, f RuleFilters, limit, offset int) ([]model.DynamicDiscountRule, int, error) {
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
	add("origin", f.Origin)
	add("destination", f.Destination)
	add("channel", f.Channel)
	add("status", f.Status)

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM dynamic_discount_rules"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count discount rules: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+discountColumns+` FROM dynamic_discount_rules%s
		 ORDER BY priority ASC, created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list discount rules: %w", err)
	}
	defer rows.Close()

	var rules []model.DynamicDiscountRule
	for rows.Next() {
		r, err := scanDiscountRule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan discount rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, total, rows.Err()
}

// ListActiveDiscountRules returns every ACTIVE discount rule ordered by
// priority for the composition matcher.
func (db *DB) ListActiveDiscountRules(ctx context.Context) ([]model.DynamicDiscountRule, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+discountColumns+` FROM dynamic_discount_rules
		 WHERE status = 'ACTIVE' ORDER BY priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list active discount rules: %w", err)
	}
	defer rows.Close()

	var rules []model.DynamicDiscountRule
	for rows.Next() {
		r, err := scanDiscountRule(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan discount rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpdateDiscountRuleWithAudit replaces a discount rule's mutable fields.
func (db *DB) UpdateDiscountRuleWithAudit(ctx context.Context, r model.DynamicDiscountRule, audit model.AuditLog) (model.DynamicDiscountRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getDiscountRuleTx(ctx, tx, r.ID)
	if err != nil {
		return model.DynamicDiscountRule{}, err
	}

	r.CreatedAt = before.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE dynamic_discount_rules SET
		     rule_code = $2, origin = $3, destination = $4, cabin_class = $5,
		     trip_type = $6, channel = $7, fare_source = $8,
		     adjustment_type = $9, adjustment_value = $10, agent_tiers = $11,
		     pos = $12, priority = $13, valid_from = $14, valid_to = $15,
		     status = $16, updated_at = $17
		 WHERE id = $1`,
		r.ID, r.RuleCode, r.Origin, r.Destination, r.CabinClass,
		r.TripType, r.Channel, r.FareSource,
		r.AdjustmentType, r.AdjustmentValue, r.AgentTiers,
		r.POS, r.Priority, r.ValidFrom, r.ValidTo,
		r.Status, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.DynamicDiscountRule{}, ErrDuplicateCode
		}
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: update discount rule: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.DynamicDiscountRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: commit discount rule update: %w", err)
	}
	return r, nil
}

// UpdateDiscountRuleStatusWithAudit transitions a discount rule's status.
func (db *DB) UpdateDiscountRuleStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.DynamicDiscountRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getDiscountRuleTx(ctx, tx, id)
	if err != nil {
		return model.DynamicDiscountRule{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE dynamic_discount_rules SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.DynamicDiscountRule{}, ErrDuplicateCode
		}
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: update discount rule status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.DynamicDiscountRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: commit discount rule status: %w", err)
	}
	return after, nil
}

// DeleteDiscountRuleWithAudit removes a rule and records the deleted snapshot.
func (db *DB) DeleteDiscountRuleWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getDiscountRuleTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM dynamic_discount_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete discount rule: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit discount rule delete: %w", err)
	}
	return nil
}

func getDiscountRuleTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.DynamicDiscountRule, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+discountColumns+` FROM dynamic_discount_rules WHERE id = $1 FOR UPDATE`, id)
	r, err := scanDiscountRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.DynamicDiscountRule{}, ErrNotFound
		}
		return model.DynamicDiscountRule{}, fmt.Errorf("storage: get discount rule: %w", err)
	}
	return r, nil
}

func scanDiscountRule(row pgx.Row) (model.DynamicDiscountRule, error) {
	var r model.DynamicDiscountRule
	err := row.Scan(
		&r.ID, &r.RuleCode, &r.Origin, &r.Destination, &r.CabinClass, &r.TripType, &r.Channel,
		&r.FareSource, &r.AdjustmentType, &r.AdjustmentValue, &r.AgentTiers, &r.POS, &r.Priority,
		&r.ValidFrom, &r.ValidTo, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func normalizeDiscountRule(r model.DynamicDiscountRule) model.DynamicDiscountRule {
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
