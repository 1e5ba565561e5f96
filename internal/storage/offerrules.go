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

const offerRuleColumns = `id, rule_code, rule_type, origin, destination, cabin_class, channel,
	 action, adjustment_type, adjustment_value, agent_tiers, pos, priority,
	 valid_from, valid_to, status, created_at, updated_at`

const channelOverrideColumns = `id, override_code, channel, origin, destination,
	 adjustment_type, adjustment_value, priority, valid_from, valid_to, status, created_at, updated_at`

// CreateOfferRuleWithAudit inserts a composite offer rule.
func (db *DB) CreateOfferRuleWithAudit(ctx context.Context, r model.OfferRule, audit model.AuditLog) (model.OfferRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.OfferRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r = normalizeOfferRule(r)
	if _, err := tx.Exec(ctx,
		`INSERT INTO offer_rules (`+offerRuleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		r.ID, r.RuleCode, r.RuleType, r.Origin, r.Destination, r.CabinClass, r.Channel,
		r.Action, r.AdjustmentType, r.AdjustmentValue, r.AgentTiers, r.POS, r.Priority,
		r.ValidFrom, r.ValidTo, r.Status, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.OfferRule{}, ErrDuplicateCode
		}
		return model.OfferRule{}, fmt.Errorf("storage: insert offer rule: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.OfferRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.OfferRule{}, fmt.Errorf("storage: commit offer rule: %w", err)
	}
	return r, nil
}

// GetOfferRule retrieves an offer rule by ID.
func (db *DB) GetOfferRule(ctx context.Context, id uuid.UUID) (model.OfferRule, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+offerRuleColumns+` FROM offer_rules WHERE id = $1`, id)
	r, err := scanOfferRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.OfferRule{}, ErrNotFound
		}
		return model.OfferRule{}, fmt.Errorf("storage: get offer rule: %w", err)
	}
	return r, nil
}

// ListOfferRules returns offer rules, optionally filtered by rule type and
// status.
func (db *DB) ListOfferRules(ctx context.Context, ruleType, status string, limit, offset int) ([]model.OfferRule, int, error) {
	var conditions []string
	var args []any
	idx := 1
	if ruleType != "" {
		conditions = append(conditions, fmt.Sprintf("rule_type = $%d", idx))
		args = append(args, ruleType)
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
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM offer_rules"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count offer rules: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+offerRuleColumns+` FROM offer_rules%s
		 ORDER BY priority ASC, created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list offer rules: %w", err)
	}
	defer rows.Close()

	var rules []model.OfferRule
	for rows.Next() {
		r, err := scanOfferRule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan offer rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, total, rows.Err()
}

// UpdateOfferRuleWithAudit replaces an offer rule's mutable fields.
func (db *DB) UpdateOfferRuleWithAudit(ctx context.Context, r model.OfferRule, audit model.AuditLog) (model.OfferRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.OfferRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getOfferRuleTx(ctx, tx, r.ID)
	if err != nil {
		return model.OfferRule{}, err
	}

	r.CreatedAt = before.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE offer_rules SET
		     rule_code = $2, rule_type = $3, origin = $4, destination = $5,
		     cabin_class = $6, channel = $7, action = $8,
		     adjustment_type = $9, adjustment_value = $10, agent_tiers = $11,
		     pos = $12, priority = $13, valid_from = $14, valid_to = $15,
		     status = $16, updated_at = $17
		 WHERE id = $1`,
		r.ID, r.RuleCode, r.RuleType, r.Origin, r.Destination,
		r.CabinClass, r.Channel, r.Action,
		r.AdjustmentType, r.AdjustmentValue, r.AgentTiers,
		r.POS, r.Priority, r.ValidFrom, r.ValidTo,
		r.Status, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.OfferRule{}, ErrDuplicateCode
		}
		return model.OfferRule{}, fmt.Errorf("storage: update offer rule: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.OfferRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.OfferRule{}, fmt.Errorf("storage: commit offer rule update: %w", err)
	}
	return r, nil
}

// UpdateOfferRuleStatusWithAudit transitions an offer rule's status.
func (db *DB) UpdateOfferRuleStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.OfferRule, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.OfferRule{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getOfferRuleTx(ctx, tx, id)
	if err != nil {
		return model.OfferRule{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE offer_rules SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.OfferRule{}, ErrDuplicateCode
		}
		return model.OfferRule{}, fmt.Errorf("storage: update offer rule status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.OfferRule{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.OfferRule{}, fmt.Errorf("storage: commit offer rule status: %w", err)
	}
	return after, nil
}

// DeleteOfferRuleWithAudit removes an offer rule.
func (db *DB) DeleteOfferRuleWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getOfferRuleTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM offer_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete offer rule: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit offer rule delete: %w", err)
	}
	return nil
}

// CreateChannelOverrideWithAudit inserts a channel pricing override.
func (db *DB) CreateChannelOverrideWithAudit(ctx context.Context, r model.ChannelOverride, audit model.AuditLog) (model.ChannelOverride, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.ChannelOverride{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r = normalizeChannelOverride(r)
	if _, err := tx.Exec(ctx,
		`INSERT INTO channel_overrides (`+channelOverrideColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.OverrideCode, r.Channel, r.Origin, r.Destination,
		r.AdjustmentType, r.AdjustmentValue, r.Priority, r.ValidFrom, r.ValidTo, r.Status, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.ChannelOverride{}, ErrDuplicateCode
		}
		return model.ChannelOverride{}, fmt.Errorf("storage: insert channel override: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.ChannelOverride{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.ChannelOverride{}, fmt.Errorf("storage: commit channel override: %w", err)
	}
	return r, nil
}

// GetChannelOverride retrieves a channel override by ID.
func (db *DB) GetChannelOverride(ctx context.Context, id uuid.UUID) (model.ChannelOverride, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+channelOverrideColumns+` FROM channel_overrides WHERE id = $1`, id)
	r, err := scanChannelOverride(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.ChannelOverride{}, ErrNotFound
		}
		return model.ChannelOverride{}, fmt.Errorf("storage: get channel override: %w", err)
	}
	return r, nil
}

// ListChannelOverrides returns overrides, optionally filtered by channel and
// status.
func (db *DB) ListChannelOverrides(ctx context.Context, channel, status string, limit, offset int) ([]model.ChannelOverride, int, error) {
	var conditions []string
	var args []any
	idx := 1
	if channel != "" {
		conditions = append(conditions, fmt.Sprintf("channel = $%d", idx))
		args = append(args, channel)
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
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM channel_overrides"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count channel overrides: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+channelOverrideColumns+` FROM channel_overrides%s
		 ORDER BY priority ASC, created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list channel overrides: %w", err)
	}
	defer rows.Close()

	var overrides []model.ChannelOverride
	for rows.Next() {
		r, err := scanChannelOverride(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan channel override: %w", err)
		}
		overrides = append(overrides, r)
	}
	return overrides, total, rows.Err()
}

// UpdateChannelOverrideWithAudit replaces an override's mutable fields.
func (db *DB) UpdateChannelOverrideWithAudit(ctx context.Context, r model.ChannelOverride, audit model.AuditLog) (model.ChannelOverride, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.ChannelOverride{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getChannelOverrideTx(ctx, tx, r.ID)
	if err != nil {
		return model.ChannelOverride{}, err
	}

	r.CreatedAt = before.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE channel_overrides SET
		     override_code = $2, channel = $3, origin = $4, destination = $5,
		     adjustment_type = $6, adjustment_value = $7, priority = $8,
		     valid_from = $9, valid_to = $10, status = $11, updated_at = $12
		 WHERE id = $1`,
		r.ID, r.OverrideCode, r.Channel, r.Origin, r.Destination,
		r.AdjustmentType, r.AdjustmentValue, r.Priority,
		r.ValidFrom, r.ValidTo, r.Status, r.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.ChannelOverride{}, ErrDuplicateCode
		}
		return model.ChannelOverride{}, fmt.Errorf("storage: update channel override: %w", err)
	}

	audit.EntityID = r.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(r)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.ChannelOverride{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.ChannelOverride{}, fmt.Errorf("storage: commit channel override update: %w", err)
	}
	return r, nil
}

// UpdateChannelOverrideStatusWithAudit transitions an override's status.
func (db *DB) UpdateChannelOverrideStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.ChannelOverride, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.ChannelOverride{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getChannelOverrideTx(ctx, tx, id)
	if err != nil {
		return model.ChannelOverride{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE channel_overrides SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.ChannelOverride{}, ErrDuplicateCode
		}
		return model.ChannelOverride{}, fmt.Errorf("storage: update channel override status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.ChannelOverride{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.ChannelOverride{}, fmt.Errorf("storage: commit channel override status: %w", err)
	}
	return after, nil
}

// DeleteChannelOverrideWithAudit removes an override.
func (db *DB) DeleteChannelOverrideWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getChannelOverrideTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM channel_overrides WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete channel override: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit channel override delete: %w", err)
	}
	return nil
}

func getOfferRuleTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.OfferRule, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+offerRuleColumns+` FROM offer_rules WHERE id = $1 FOR UPDATE`, id)
	r, err := scanOfferRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.OfferRule{}, ErrNotFound
		}
		return model.OfferRule{}, fmt.Errorf("storage: get offer rule: %w", err)
	}
	return r, nil
}

func getChannelOverrideTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.ChannelOverride, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+channelOverrideColumns+` FROM channel_overrides WHERE id = $1 FOR UPDATE`, id)
	r, err := scanChannelOverride(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.ChannelOverride{}, ErrNotFound
		}
		return model.ChannelOverride{}, fmt.Errorf("storage: get channel override: %w", err)
	}
	return r, nil
}

func scanOfferRule(row pgx.Row) (model.OfferRule, error) {
	var r model.OfferRule
	err := row.Scan(
		&r.ID, &r.RuleCode, &r.RuleType, &r.Origin, &r.Destination, &r.CabinClass, &r.Channel,
		&r.Action, &r.AdjustmentType, &r.AdjustmentValue, &r.AgentTiers, &r.POS, &r.Priority,
		&r.ValidFrom, &r.ValidTo, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func scanChannelOverride(row pgx.Row) (model.ChannelOverride, error) {
	var r model.ChannelOverride
	err := row.Scan(
		&r.ID, &r.OverrideCode, &r.Channel, &r.Origin, &r.Destination,
		&r.AdjustmentType, &r.AdjustmentValue, &r.Priority, &r.ValidFrom, &r.ValidTo, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func normalizeOfferRule(r model.OfferRule) model.OfferRule {
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

func normalizeChannelOverride(r model.ChannelOverride) model.ChannelOverride {
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
