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

const campaignColumns = `id, campaign_code, name, objective, channels, cohort_codes,
	 start_date, end_date, budget, offer_ref, status, created_at, updated_at`

const deliveryColumns = `id, campaign_id, recipient, channel, status,
	 sent_at, opened_at, clicked_at, purchased_at, revenue, created_at`

// CreateCampaignWithAudit inserts a campaign in DRAFT unless a status is set.
func (db *DB) CreateCampaignWithAudit(ctx context.Context, c model.Campaign, audit model.AuditLog) (model.Campaign, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Campaign{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c = normalizeCampaign(c)
	if _, err := tx.Exec(ctx,
		`INSERT INTO campaigns (`+campaignColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.CampaignCode, c.Name, c.Objective, c.Channels, c.CohortCodes,
		c.StartDate, c.EndDate, c.Budget, c.OfferRef, c.Status, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Campaign{}, ErrDuplicateCode
		}
		return model.Campaign{}, fmt.Errorf("storage: insert campaign: %w", err)
	}

	audit.EntityID = c.ID.String()
	audit.AfterData = entitySnapshot(c)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Campaign{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Campaign{}, fmt.Errorf("storage: commit campaign: %w", err)
	}
	return c, nil
}

// GetCampaign retrieves a campaign by ID.
func (db *DB) GetCampaign(ctx context.Context, id uuid.UUID) (model.Campaign, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Campaign{}, ErrNotFound
		}
		return model.Campaign{}, fmt.Errorf("storage: get campaign: %w", err)
	}
	return c, nil
}

// ListCampaigns returns campaigns, optionally filtered by status.
func (db *DB) ListCampaigns(ctx context.Context, status string, limit, offset int) ([]model.Campaign, int, error) {
	var conditions []string
	var args []any
	if status != "" {
		conditions = append(conditions, "status = $1")
		args = append(args, status)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM campaigns"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count campaigns: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+campaignColumns+` FROM campaigns%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

// UpdateCampaignWithAudit replaces a campaign's mutable fields.
func (db *DB) UpdateCampaignWithAudit(ctx context.Context, c model.Campaign, audit model.AuditLog) (model.Campaign, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Campaign{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getCampaignTx(ctx, tx, c.ID)
	if err != nil {
		return model.Campaign{}, err
	}

	c.CreatedAt = before.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE campaigns SET
		     campaign_code = $2, name = $3, objective = $4, channels = $5,
		     cohort_codes = $6, start_date = $7, end_date = $8, budget = $9,
		     offer_ref = $10, status = $11, updated_at = $12
		 WHERE id = $1`,
		c.ID, c.CampaignCode, c.Name, c.Objective, c.Channels,
		c.CohortCodes, c.StartDate, c.EndDate, c.Budget,
		c.OfferRef, c.Status, c.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Campaign{}, ErrDuplicateCode
		}
		return model.Campaign{}, fmt.Errorf("storage: update campaign: %w", err)
	}

	audit.EntityID = c.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(c)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Campaign{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Campaign{}, fmt.Errorf("storage: commit campaign update: %w", err)
	}
	return c, nil
}

// UpdateCampaignStatusWithAudit transitions a campaign's lifecycle status.
func (db *DB) UpdateCampaignStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.Campaign, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Campaign{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getCampaignTx(ctx, tx, id)
	if err != nil {
		return model.Campaign{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE campaigns SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Campaign{}, ErrDuplicateCode
		}
		return model.Campaign{}, fmt.Errorf("storage: update campaign status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Campaign{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Campaign{}, fmt.Errorf("storage: commit campaign status: %w", err)
	}
	return after, nil
}

// DeleteCampaignWithAudit removes a campaign and its deliveries.
func (db *DB) DeleteCampaignWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getCampaignTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete campaign: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit campaign delete: %w", err)
	}
	return nil
}

// InsertDeliveries records a batch of deliveries for a campaign.
func (db *DB) InsertDeliveries(ctx context.Context, deliveries []model.CampaignDelivery) ([]model.CampaignDelivery, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	out := make([]model.CampaignDelivery, 0, len(deliveries))
	for _, d := range deliveries {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		if d.Status == "" {
			d.Status = model.DeliveryPending
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO campaign_deliveries (`+deliveryColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			d.ID, d.CampaignID, d.Recipient, d.Channel, d.Status,
			d.SentAt, d.OpenedAt, d.ClickedAt, d.PurchasedAt, d.Revenue, d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: insert delivery: %w", err)
		}
		out = append(out, d)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("storage: commit deliveries: %w", err)
	}
	return out, nil
}

// ListDeliveries returns a campaign's deliveries, newest first.
func (db *DB) ListDeliveries(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]model.CampaignDelivery, int, error) {
	var total int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM campaign_deliveries WHERE campaign_id = $1`, campaignID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count deliveries: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	rows, err := db.pool.Query(ctx, fmt.Sprintf(
		`SELECT `+deliveryColumns+` FROM campaign_deliveries
		 WHERE campaign_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset),
		campaignID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []model.CampaignDelivery
	for rows.Next() {
		var d model.CampaignDelivery
		if err := rows.Scan(
			&d.ID, &d.CampaignID, &d.Recipient, &d.Channel, &d.Status,
			&d.SentAt, &d.OpenedAt, &d.ClickedAt, &d.PurchasedAt, &d.Revenue, &d.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("storage: scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, total, rows.Err()
}

// MarkDeliverySent stamps a delivery as SENT.
func (db *DB) MarkDeliverySent(ctx context.Context, deliveryID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE campaign_deliveries SET status = 'SENT', sent_at = $2 WHERE id = $1`,
		deliveryID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: mark delivery sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordDeliveryEvent stamps the engagement timestamp for an event. Repeat
// events keep the first timestamp.
func (db *DB) RecordDeliveryEvent(ctx context.Context, deliveryID uuid.UUID, event model.DeliveryEvent, revenue float64) error {
	now := time.Now().UTC()

	var query string
	args := []any{deliveryID, now}
	switch event {
	case model.EventOpened:
		query = `UPDATE campaign_deliveries SET opened_at = COALESCE(opened_at, $2) WHERE id = $1`
	case model.EventClicked:
		query = `UPDATE campaign_deliveries SET clicked_at = COALESCE(clicked_at, $2) WHERE id = $1`
	case model.EventPurchased:
		query = `UPDATE campaign_deliveries
		         SET purchased_at = COALESCE(purchased_at, $2), revenue = revenue + $3
		         WHERE id = $1`
		args = append(args, revenue)
	default:
		return fmt.Errorf("storage: unknown delivery event %q", event)
	}

	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("storage: record delivery event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RollupCampaignMetrics recomputes per-day engagement aggregates from the
// delivery records and upserts them into campaign_metrics.
func (db *DB) RollupCampaignMetrics(ctx context.Context, campaignID uuid.UUID) ([]model.CampaignMetrics, error) {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO campaign_metrics (id, campaign_id, metric_date, sent, opened, clicked, purchased, revenue)
		 SELECT gen_random_uuid(), campaign_id, sent_at::date,
		        COUNT(*) FILTER (WHERE status = 'SENT'),
		        COUNT(opened_at),
		        COUNT(clicked_at),
		        COUNT(purchased_at),
		        COALESCE(SUM(revenue), 0)
		 FROM campaign_deliveries
		 WHERE campaign_id = $1 AND sent_at IS NOT NULL
		 GROUP BY campaign_id, sent_at::date
		 ON CONFLICT (campaign_id, metric_date) DO UPDATE SET
		     sent = EXCLUDED.sent,
		     opened = EXCLUDED.opened,
		     clicked = EXCLUDED.clicked,
		     purchased = EXCLUDED.purchased,
		     revenue = EXCLUDED.revenue`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: rollup campaign metrics: %w", err)
	}
	return db.ListCampaignMetrics(ctx, campaignID)
}

// ListCampaignMetrics returns a campaign's daily aggregates, oldest first.
func (db *DB) ListCampaignMetrics(ctx context.Context, campaignID uuid.UUID) ([]model.CampaignMetrics, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, campaign_id, to_char(metric_date, 'YYYY-MM-DD'), sent, opened, clicked, purchased, revenue, created_at
		 FROM campaign_metrics WHERE campaign_id = $1 ORDER BY metric_date ASC`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list campaign metrics: %w", err)
	}
	defer rows.Close()

	var metrics []model.CampaignMetrics
	for rows.Next() {
		var m model.CampaignMetrics
		if err := rows.Scan(
			&m.ID, &m.CampaignID, &m.MetricDate, &m.Sent, &m.Opened, &m.Clicked, &m.Purchased, &m.Revenue, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan campaign metrics: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func getCampaignTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Campaign, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, id)
	c, err := scanCampaign(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Campaign{}, ErrNotFound
		}
		return model.Campaign{}, fmt.Errorf("storage: get campaign: %w", err)
	}
	return c, nil
}

func scanCampaign(row pgx.Row) (model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.CampaignCode, &c.Name, &c.Objective, &c.Channels, &c.CohortCodes,
		&c.StartDate, &c.EndDate, &c.Budget, &c.OfferRef, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func normalizeCampaign(c model.Campaign) model.Campaign {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	if c.Channels == nil {
		c.Channels = []model.Channel{}
	}
	if c.CohortCodes == nil {
		c.CohortCodes = []string{}
	}
	return c
}
