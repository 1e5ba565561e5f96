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

const bundleColumns = `id, bundle_code, name, components, bundle_type, pos, agent_tiers,
	 cohort_codes, channel, valid_from, valid_to, inventory_cap, status, created_at, updated_at`

const bundlePricingColumns = `id, rule_code, bundle_code, discount_type, discount_value,
	 priority, valid_from, valid_to, status, created_at, updated_at`

// CreateBundleWithAudit inserts a bundle.
func (db *DB) CreateBundleWithAudit(ctx context.Context, b model.Bundle, audit model.AuditLog) (model.Bundle, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Bundle{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b = normalizeBundle(b)
	if _, err := tx.Exec(ctx,
		`INSERT INTO bundles (`+bundleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		b.ID, b.BundleCode, b.Name, b.Components, b.BundleType, b.POS, b.AgentTiers,
		b.CohortCodes, b.Channel, b.ValidFrom, b.ValidTo, b.InventoryCap, b.Status, b.CreatedAt, b.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Bundle{}, ErrDuplicateCode
		}
		return model.Bundle{}, fmt.Errorf("storage: insert bundle: %w", err)
	}

	audit.EntityID = b.ID.String()
	audit.AfterData = entitySnapshot(b)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Bundle{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Bundle{}, fmt.Errorf("storage: commit bundle: %w", err)
	}
	return b, nil
}

// GetBundle retrieves a bundle by ID.
func (db *DB) GetBundle(ctx context.Context, id uuid.UUID) (model.Bundle, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+bundleColumns+` FROM bundles WHERE id = $1`, id)
	b, err := scanBundle(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Bundle{}, ErrNotFound
		}
		return model.Bundle{}, fmt.Errorf("storage: get bundle: %w", err)
	}
	return b, nil
}

// ListBundles returns bundles, optionally filtered by bundle type and status.
func (db *DB) ListBundles(ctx context.Context, bundleType, status string, limit, offset int) ([]model.Bundle, int, error) {
	var conditions []string
	var args []any
	idx := 1
	if bundleType != "" {
		conditions = append(conditions, fmt.Sprintf("bundle_type = $%d", idx))
		args = append(args, bundleType)
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
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM bundles"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count bundles: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+bundleColumns+` FROM bundles%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list bundles: %w", err)
	}
	defer rows.Close()

	var bundles []model.Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan bundle: %w", err)
		}
		bundles = append(bundles, b)
	}
	return bundles, total, rows.Err()
}

// ListActiveBundles returns every ACTIVE bundle for the composition matcher.
func (db *DB) ListActiveBundles(ctx context.Context) ([]model.Bundle, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+bundleColumns+` FROM bundles WHERE status = 'ACTIVE' ORDER BY bundle_code`)
	if err != nil {
		return nil, fmt.Errorf("storage: list active bundles: %w", err)
	}
	defer rows.Close()

	var bundles []model.Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan bundle: %w", err)
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// UpdateBundleWithAudit replaces a bundle's mutable fields.
func (db *DB) UpdateBundleWithAudit(ctx context.Context, b model.Bundle, audit model.AuditLog) (model.Bundle, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Bundle{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getBundleTx(ctx, tx, b.ID)
	if err != nil {
		return model.Bundle{}, err
	}

	b.CreatedAt = before.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE bundles SET
		     bundle_code = $2, name = $3, components = $4, bundle_type = $5,
		     pos = $6, agent_tiers = $7, cohort_codes = $8, channel = $9,
		     valid_from = $10, valid_to = $11, inventory_cap = $12,
		     status = $13, updated_at = $14
		 WHERE id = $1`,
		b.ID, b.BundleCode, b.Name, b.Components, b.BundleType,
		b.POS, b.AgentTiers, b.CohortCodes, b.Channel,
		b.ValidFrom, b.ValidTo, b.InventoryCap,
		b.Status, b.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Bundle{}, ErrDuplicateCode
		}
		return model.Bundle{}, fmt.Errorf("storage: update bundle: %w", err)
	}

	audit.EntityID = b.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(b)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Bundle{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Bundle{}, fmt.Errorf("storage: commit bundle update: %w", err)
	}
	return b, nil
}

// UpdateBundleStatusWithAudit transitions a bundle's status.
func (db *DB) UpdateBundleStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.Bundle, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Bundle{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getBundleTx(ctx, tx, id)
	if err != nil {
		return model.Bundle{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE bundles SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Bundle{}, ErrDuplicateCode
		}
		return model.Bundle{}, fmt.Errorf("storage: update bundle status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Bundle{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Bundle{}, fmt.Errorf("storage: commit bundle status: %w", err)
	}
	return after, nil
}

// DeleteBundleWithAudit removes a bundle.
func (db *DB) DeleteBundleWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getBundleTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bundles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete bundle: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit bundle delete: %w", err)
	}
	return nil
}

// CreateBundlePricingRuleWithAudit inserts a bundle pricing rule.
func (db *DB) CreateBundlePricingRuleWithAudit(ctx context.Context, r model.BundlePricingRule, audit model.AuditLog) (model.BundlePricingRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.BundlePricingRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r = normalizeBundlePricingRule(r)
	if _, err := tx.Exec(ctx,
		`INSERT INTO bundle_pricing_rules (`+bundlePricingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.RuleCode, r.BundleCode, r.DiscountType, r.DiscountValue,
		r.Priority, r.ValidFrom, r.ValidTo, r.Status, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.BundlePricingRule{}, ErrDuplicateCode
		}
		return model.BundlePricingRule{}, fmt.Errorf("storage: insert bundle pricing rule: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.BundlePricingRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.BundlePricingRule{}, fmt.Errorf("storage: commit bundle pricing rule: %w", err)
	}
	return r, nil
}

// GetBundlePricingRule retrieves a bundle pricing rule by ID.
func (db *DB) GetBundlePricingRule(ctx context.Context, id uuid.UUID) (model.BundlePricingRule, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+bundlePricingColumns+` FROM bundle_pricing_rules WHERE id = $1`, id)
	r, err := scanBundlePricingRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.BundlePricingRule{}, ErrNotFound
		}
		return model.BundlePricingRule{}, fmt.Errorf("storage: get bundle pricing rule: %w", err)
	}
	return r, nil
}

// ListBundlePricingRules returns pricing rules, optionally filtered by bundle
// code and status.
func (db *DB) ListBundlePricingRules(ctx context.Context, bundleCode, status string, limit, offset int) ([]model.BundlePricingRule, int, error) {
	var conditions []string
	var args []any
	idx := 1
	if bundleCode != "" {
		conditions = append(conditions, fmt.Sprintf("bundle_code = $%d", idx))
		args = append(args, bundleCode)
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
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM bundle_pricing_rules"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count bundle pricing rules: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+bundlePricingColumns+` FROM bundle_pricing_rules%s
		 ORDER BY priority ASC, created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list bundle pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []model.BundlePricingRule
	for rows.Next() {
		r, err := scanBundlePricingRule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan bundle pricing rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, total, rows.Err()
}

// ListActiveBundlePricingRules returns every ACTIVE pricing rule ordered by
// priority for first-match selection during composition.
func (db *DB) ListActiveBundlePricingRules(ctx context.Context) ([]model.BundlePricingRule, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+bundlePricingColumns+` FROM bundle_pricing_rules
		 WHERE status = 'ACTIVE' ORDER BY priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list active bundle pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []model.BundlePricingRule
	for rows.Next() {
		r, err := scanBundlePricingRule(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan bundle pricing rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpdateBundlePricingRuleWithAudit replaces a pricing rule's mutable fields.
func (db *DB) UpdateBundlePricingRuleWithAudit(ctx context.Context, r model.BundlePricingRule, audit model.AuditLog) (model.BundlePricingRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.BundlePricingRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getBundlePricingRuleTx(ctx, tx, r.ID)
	if err != nil {
		return model.BundlePricingRule{}, err
	}

	r.CreatedAt = before.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE bundle_pricing_rules SET
		     rule_code = $2, bundle_code = $3, discount_type = $4, discount_value = $5,
		     priority = $6, valid_from = $7, valid_to = $8, status = $9, updated_at = $10
		 WHERE id = $1`,
		r.ID, r.RuleCode, r.BundleCode, r.DiscountType, r.DiscountValue,
		r.Priority, r.ValidFrom, r.ValidTo, r.Status, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.BundlePricingRule{}, ErrDuplicateCode
		}
		return model.BundlePricingRule{}, fmt.Errorf("storage: update bundle pricing rule: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.BundlePricingRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.BundlePricingRule{}, fmt.Errorf("storage: commit bundle pricing rule update: %w", err)
	}
	return r, nil
}

// UpdateBundlePricingRuleStatusWithAudit transitions a pricing rule's status.
func (db *DB) UpdateBundlePricingRuleStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.BundlePricingRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.BundlePricingRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getBundlePricingRuleTx(ctx, tx, id)
	if err != nil {
		return model.BundlePricingRule{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE bundle_pricing_rules SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.BundlePricingRule{}, ErrDuplicateCode
		}
		return model.BundlePricingRule{}, fmt.Errorf("storage: update bundle pricing rule status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.BundlePricingRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.BundlePricingRule{}, fmt.Errorf("storage: commit bundle pricing rule status: %w", err)
	}
	return after, nil
}

// DeleteBundlePricingRuleWithAudit removes a pricing rule.
func (db *DB) DeleteBundlePricingRuleWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getBundlePricingRuleTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bundle_pricing_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete bundle pricing rule: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit bundle pricing rule delete: %w", err)
	}
	return nil
}

func getBundleTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Bundle, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+bundleColumns+` FROM bundles WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBundle(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Bundle{}, ErrNotFound
		}
		return model.Bundle{}, fmt.Errorf("storage: get bundle: %w", err)
	}
	return b, nil
}

func getBundlePricingRuleTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.BundlePricingRule, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+bundlePricingColumns+` FROM bundle_pricing_rules WHERE id = $1 FOR UPDATE`, id)
	r, err := scanBundlePricingRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.BundlePricingRule{}, ErrNotFound
		}
		return model.BundlePricingRule{}, fmt.Errorf("storage: get bundle pricing rule: %w", err)
	}
	return r, nil
}

func scanBundle(row pgx.Row) (model.Bundle, error) {
	var b model.Bundle
	err := row.Scan(
		&b.ID, &b.BundleCode, &b.Name, &b.Components, &b.BundleType, &b.POS, &b.AgentTiers,
		&b.CohortCodes, &b.Channel, &b.ValidFrom, &b.ValidTo, &b.InventoryCap, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func scanBundlePricingRule(row pgx.Row) (model.BundlePricingRule, error) {
	var r model.BundlePricingRule
	err := row.Scan(
		&r.ID, &r.RuleCode, &r.BundleCode, &r.DiscountType, &r.DiscountValue,
		&r.Priority, &r.ValidFrom, &r.ValidTo, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func normalizeBundle(b model.Bundle) model.Bundle {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = model.StatusActive
	}
	if b.Components == nil {
		b.Components = []model.BundleComponent{}
	}
	if b.POS == nil {
		b.POS = []string{}
	}
	if b.AgentTiers == nil {
		b.AgentTiers = []model.TierCode{}
	}
	if b.CohortCodes == nil {
		b.CohortCodes = []string{}
	}
	return b
}

func normalizeBundlePricingRule(r model.BundlePricingRule) model.BundlePricingRule {
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
	return r
}
