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

const nonAirRateColumns = `id, product_code, product_name, category, base_rate, currency,
	 supplier, pos, valid_from, valid_to, status, created_at, updated_at`

const nonAirMarkupColumns = `id, rule_code, product_code, adjustment_type, adjustment_value,
	 agent_tiers, pos, priority, valid_from, valid_to, status, created_at, updated_at`

// CreateNonAirRateWithAudit inserts a non-air base rate.
func (db *DB) CreateNonAirRateWithAudit(ctx context.Context, r model.NonAirRate, audit model.AuditLog) (model.NonAirRate, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.NonAirRate{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r = normalizeNonAirRate(r)
	if _, err := tx.Exec(ctx,
		`INSERT INTO nonair_rates (`+nonAirRateColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.ProductCode, r.ProductName, r.Category, r.BaseRate, r.Currency,
		r.Supplier, r.POS, r.ValidFrom, r.ValidTo, r.Status, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.NonAirRate{}, ErrDuplicateCode
		}
		return model.NonAirRate{}, fmt.Errorf("storage: insert nonair rate: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.NonAirRate{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.NonAirRate{}, fmt.Errorf("storage: commit nonair rate: %w", err)
	}
	return r, nil
}

// BulkInsertNonAirRatesWithAudit inserts validated rates in one transaction.
// Rows whose product code collides with an ACTIVE rate (in the table or
// earlier in the batch) are skipped and reported by product code.
func (db *DB) BulkInsertNonAirRatesWithAudit(ctx context.Context, rates []model.NonAirRate, audit model.AuditLog) ([]model.NonAirRate, []string, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted []model.NonAirRate
	var duplicates []string

	for _, r := range rates {
		r = normalizeNonAirRate(r)

		// Savepoint per row so a unique violation doesn't poison the batch.
		if _, err := tx.Exec(ctx, `SAVEPOINT batch_row`); err != nil {
			return nil, nil, fmt.Errorf("storage: savepoint: %w", err)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO nonair_rates (`+nonAirRateColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			r.ID, r.ProductCode, r.ProductName, r.Category, r.BaseRate, r.Currency,
			r.Supplier, r.POS, r.ValidFrom, r.ValidTo, r.Status, r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT batch_row`); rbErr != nil {
					return nil, nil, fmt.Errorf("storage: rollback savepoint: %w", rbErr)
				}
				duplicates = append(duplicates, r.ProductCode)
				continue
			}
			return nil, nil, fmt.Errorf("storage: insert nonair rate: %w", err)
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
		return nil, nil, fmt.Errorf("storage: commit nonair rate batch: %w", err)
	}
	return inserted, duplicates, nil
}

// GetNonAirRate retrieves a non-air rate by ID.
func (db *DB) GetNonAirRate(ctx context.Context, id uuid.UUID) (model.NonAirRate, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+nonAirRateColumns+` FROM nonair_rates WHERE id = $1`, id)
	r, err := scanNonAirRate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.NonAirRate{}, ErrNotFound
		}
		return model.NonAirRate{}, fmt.Errorf("storage: get nonair rate: %w", err)
	}
	return r, nil
}

// ListNonAirRates returns non-air rates, optionally filtered by category and
// status.
func (db *DB) ListNonAirRates(ctx context.Context, category, status string, limit, offset int) ([]model.NonAirRate, int, error) {
	var conditions []string
	var args []any
	idx := 1
	if category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", idx))
		args = append(args, category)
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
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM nonair_rates"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count nonair rates: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+nonAirRateColumns+` FROM nonair_rates%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list nonair rates: %w", err)
	}
	defer rows.Close()

	var rates []model.NonAirRate
	for rows.Next() {
		r, err := scanNonAirRate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan nonair rate: %w", err)
		}
		rates = append(rates, r)
	}
	return rates, total, rows.Err()
}

// GetActiveNonAirRateByCode returns the ACTIVE rate for a product code.
func (db *DB) GetActiveNonAirRateByCode(ctx context.Context, productCode string) (model.NonAirRate, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+nonAirRateColumns+` FROM nonair_rates
		 WHERE product_code = $1 AND status = 'ACTIVE'`, productCode)
	r, err := scanNonAirRate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.NonAirRate{}, ErrNotFound
		}
		return model.NonAirRate{}, fmt.Errorf("storage: get nonair rate by code: %w", err)
	}
	return r, nil
}

// UpdateNonAirRateWithAudit replaces a rate's mutable fields.
func (db *DB) UpdateNonAirRateWithAudit(ctx context.Context, r model.NonAirRate, audit model.AuditLog) (model.NonAirRate, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.NonAirRate{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getNonAirRateTx(ctx, tx, r.ID)
	if err != nil {
		return model.NonAirRate{}, err
	}

	r.CreatedAt = before.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE nonair_rates SET
		     product_code = $2, product_name = $3, category = $4, base_rate = $5,
		     currency = $6, supplier = $7, pos = $8, valid_from = $9, valid_to = $10,
		     status = $11, updated_at = $12
		 WHERE id = $1`,
		r.ID, r.ProductCode, r.ProductName, r.Category, r.BaseRate,
		r.Currency, r.Supplier, r.POS, r.ValidFrom, r.ValidTo,
		r.Status, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.NonAirRate{}, ErrDuplicateCode
		}
		return model.NonAirRate{}, fmt.Errorf("storage: update nonair rate: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.NonAirRate{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.NonAirRate{}, fmt.Errorf("storage: commit nonair rate update: %w", err)
	}
	return r, nil
}

// UpdateNonAirRateStatusWithAudit transitions a rate's status.
func (db *DB) UpdateNonAirRateStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.NonAirRate, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.NonAirRate{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getNonAirRateTx(ctx, tx, id)
	if err != nil {
		return model.NonAirRate{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE nonair_rates SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.NonAirRate{}, ErrDuplicateCode
		}
		return model.NonAirRate{}, fmt.Errorf("storage: update nonair rate status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.NonAirRate{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.NonAirRate{}, fmt.Errorf("storage: commit nonair rate status: %w", err)
	}
	return after, nil
}

// DeleteNonAirRateWithAudit removes a rate.
func (db *DB) DeleteNonAirRateWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getNonAirRateTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM nonair_rates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete nonair rate: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit nonair rate delete: %w", err)
	}
	return nil
}

// CreateNonAirMarkupRuleWithAudit inserts a markup rule.
func (db *DB) CreateNonAirMarkupRuleWithAudit(ctx context.Context, r model.NonAirMarkupRule, audit model.AuditLog) (model.NonAirMarkupRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r = normalizeNonAirMarkupRule(r)
	if _, err := tx.Exec(ctx,
		`INSERT INTO nonair_markup_rules (`+nonAirMarkupColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.RuleCode, r.ProductCode, r.AdjustmentType, r.AdjustmentValue,
		r.AgentTiers, r.POS, r.Priority, r.ValidFrom, r.ValidTo, r.Status, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.NonAirMarkupRule{}, ErrDuplicateCode
		}
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: insert nonair markup rule: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.NonAirMarkupRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: commit nonair markup rule: %w", err)
	}
	return r, nil
}

// GetNonAirMarkupRule retrieves a markup rule by ID.
func (db *DB) GetNonAirMarkupRule(ctx context.Context, id uuid.UUID) (model.NonAirMarkupRule, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+nonAirMarkupColumns+` FROM nonair_markup_rules WHERE id = $1`, id)
	r, err := scanNonAirMarkupRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.NonAirMarkupRule{}, ErrNotFound
		}
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: get nonair markup rule: %w", err)
	}
	return r, nil
}

// ListNonAirMarkupRules returns markup rules, optionally filtered by product
// code and status.
func (db *DB) ListNonAirMarkupRules(ctx context.Context, productCode, status string, limit, offset int) ([]model.NonAirMarkupRule, int, error) {
	var conditions []string
	var args []any
	idx := 1
	if productCode != "" {
		conditions = append(conditions, fmt.Sprintf("product_code = $%d", idx))
		args = append(args, productCode)
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
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM nonair_markup_rules"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count nonair markup rules: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+nonAirMarkupColumns+` FROM nonair_markup_rules%s
		 ORDER BY priority ASC, created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list nonair markup rules: %w", err)
	}
	defer rows.Close()

	var rules []model.NonAirMarkupRule
	for rows.Next() {
		r, err := scanNonAirMarkupRule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan nonair markup rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, total, rows.Err()
}

// ListActiveNonAirMarkupRules returns every ACTIVE markup rule ordered by
// priority.
func (db *DB) ListActiveNonAirMarkupRules(ctx context.Context) ([]model.NonAirMarkupRule, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+nonAirMarkupColumns+` FROM nonair_markup_rules
		 WHERE status = 'ACTIVE' ORDER BY priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list active nonair markup rules: %w", err)
	}
	defer rows.Close()

	var rules []model.NonAirMarkupRule
	for rows.Next() {
		r, err := scanNonAirMarkupRule(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan nonair markup rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpdateNonAirMarkupRuleWithAudit replaces a markup rule's mutable fields.
func (db *DB) UpdateNonAirMarkupRuleWithAudit(ctx context.Context, r model.NonAirMarkupRule, audit model.AuditLog) (model.NonAirMarkupRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getNonAirMarkupRuleTx(ctx, tx, r.ID)
	if err != nil {
		return model.NonAirMarkupRule{}, err
	}

	r.CreatedAt = before.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE nonair_markup_rules SET
		     rule_code = $2, product_code = $3, adjustment_type = $4, adjustment_value = $5,
		     agent_tiers = $6, pos = $7, priority = $8, valid_from = $9, valid_to = $10,
		     status = $11, updated_at = $12
		 WHERE id = $1`,
		r.ID, r.RuleCode, r.ProductCode, r.AdjustmentType, r.AdjustmentValue,
		r.AgentTiers, r.POS, r.Priority, r.ValidFrom, r.ValidTo,
		r.Status, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.NonAirMarkupRule{}, ErrDuplicateCode
		}
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: update nonair markup rule: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.NonAirMarkupRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: commit nonair markup rule update: %w", err)
	}
	return r, nil
}

// UpdateNonAirMarkupRuleStatusWithAudit transitions a markup rule's status.
func (db *DB) UpdateNonAirMarkupRuleStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.NonAirMarkupRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getNonAirMarkupRuleTx(ctx, tx, id)
	if err != nil {
		return model.NonAirMarkupRule{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE nonair_markup_rules SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.NonAirMarkupRule{}, ErrDuplicateCode
		}
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: update nonair markup rule status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.NonAirMarkupRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: commit nonair markup rule status: %w", err)
	}
	return after, nil
}

// DeleteNonAirMarkupRuleWithAudit removes a markup rule.
func (db *DB) DeleteNonAirMarkupRuleWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getNonAirMarkupRuleTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM nonair_markup_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete nonair markup rule: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit nonair markup rule delete: %w", err)
	}
	return nil
}

func getNonAirRateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.NonAirRate, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+nonAirRateColumns+` FROM nonair_rates WHERE id = $1 FOR UPDATE`, id)
	r, err := scanNonAirRate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.NonAirRate{}, ErrNotFound
		}
		return model.NonAirRate{}, fmt.Errorf("storage: get nonair rate: %w", err)
	}
	return r, nil
}

func getNonAirMarkupRuleTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.NonAirMarkupRule, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+nonAirMarkupColumns+` FROM nonair_markup_rules WHERE id = $1 FOR UPDATE`, id)
	r, err := scanNonAirMarkupRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.NonAirMarkupRule{}, ErrNotFound
		}
		return model.NonAirMarkupRule{}, fmt.Errorf("storage: get nonair markup rule: %w", err)
	}
	return r, nil
}

func scanNonAirRate(row pgx.Row) (model.NonAirRate, error) {
	var r model.NonAirRate
	err := row.Scan(
		&r.ID, &r.ProductCode, &r.ProductName, &r.Category, &r.BaseRate, &r.Currency,
		&r.Supplier, &r.POS, &r.ValidFrom, &r.ValidTo, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func scanNonAirMarkupRule(row pgx.Row) (model.NonAirMarkupRule, error) {
	var r model.NonAirMarkupRule
	err := row.Scan(
		&r.ID, &r.RuleCode, &r.ProductCode, &r.AdjustmentType, &r.AdjustmentValue,
		&r.AgentTiers, &r.POS, &r.Priority, &r.ValidFrom, &r.ValidTo, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func normalizeNonAirRate(r model.NonAirRate) model.NonAirRate {
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
	if r.POS == nil {
		r.POS = []string{}
	}
	return r
}

func normalizeNonAirMarkupRule(r model.NonAirMarkupRule) model.NonAirMarkupRule {
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
