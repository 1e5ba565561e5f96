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

const cohortColumns = `id, cohort_code, name, cohort_type, pos, channels, device,
	 booking_window_days, criteria_expr, status, created_at, updated_at`

// CreateCohortWithAudit inserts a cohort.
func (db *DB) CreateCohortWithAudit(ctx context.Context, c model.Cohort, audit model.AuditLog) (model.Cohort, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Cohort{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c = normalizeCohort(c)
	if _, err := tx.Exec(ctx,
		`INSERT INTO cohorts (`+cohortColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.CohortCode, c.Name, c.Type, c.POS, c.Channels, c.Device,
		c.BookingWindowDays, c.CriteriaExpr, c.Status, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Cohort{}, ErrDuplicateCode
		}
		return model.Cohort{}, fmt.Errorf("storage: insert cohort: %w", err)
	}

	audit.EntityID = c.ID.String()
	audit.AfterData = entitySnapshot(c)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Cohort{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Cohort{}, fmt.Errorf("storage: commit cohort: %w", err)
	}
	return c, nil
}

// GetCohort retrieves a cohort by ID.
func (db *DB) GetCohort(ctx context.Context, id uuid.UUID) (model.Cohort, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+cohortColumns+` FROM cohorts WHERE id = $1`, id)
	c, err := scanCohort(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Cohort{}, ErrNotFound
		}
		return model.Cohort{}, fmt.Errorf("storage: get cohort: %w", err)
	}
	return c, nil
}

// ListCohorts returns cohorts, optionally filtered by type and status.
func (db *DB) ListCohorts(ctx context.Context, cohortType, status string, limit, offset int) ([]model.Cohort, int, error) {
	var conditions []string
	var args []any
	idx := 1
	if cohortType != "" {
		conditions = append(conditions, fmt.Sprintf("cohort_type = $%d", idx))
		args = append(args, cohortType)
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
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM cohorts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count cohorts: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+cohortColumns+` FROM cohorts%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list cohorts: %w", err)
	}
	defer rows.Close()

	var cohorts []model.Cohort
	for rows.Next() {
		c, err := scanCohort(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan cohort: %w", err)
		}
		cohorts = append(cohorts, c)
	}
	return cohorts, total, rows.Err()
}

// ListActiveCohorts returns every ACTIVE cohort for composition-time
// membership resolution.
func (db *DB) ListActiveCohorts(ctx context.Context) ([]model.Cohort, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+cohortColumns+` FROM cohorts WHERE status = 'ACTIVE' ORDER BY cohort_code`)
	if err != nil {
		return nil, fmt.Errorf("storage: list active cohorts: %w", err)
	}
	defer rows.Close()

	var cohorts []model.Cohort
	for rows.Next() {
		c, err := scanCohort(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan cohort: %w", err)
		}
		cohorts = append(cohorts, c)
	}
	return cohorts, rows.Err()
}

// UpdateCohortWithAudit replaces a cohort's mutable fields.
func (db *DB) UpdateCohortWithAudit(ctx context.Context, c model.Cohort, audit model.AuditLog) (model.Cohort, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Cohort{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getCohortTx(ctx, tx, c.ID)
	if err != nil {
		return model.Cohort{}, err
	}

	c.CreatedAt = before.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE cohorts SET
		     cohort_code = $2, name = $3, cohort_type = $4, pos = $5, channels = $6,
		     device = $7, booking_window_days = $8, criteria_expr = $9,
		     status = $10, updated_at = $11
		 WHERE id = $1`,
		c.ID, c.CohortCode, c.Name, c.Type, c.POS, c.Channels,
		c.Device, c.BookingWindowDays, c.CriteriaExpr,
		c.Status, c.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Cohort{}, ErrDuplicateCode
		}
		return model.Cohort{}, fmt.Errorf("storage: update cohort: %w", err)
	}

	audit.EntityID = c.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(c)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Cohort{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Cohort{}, fmt.Errorf("storage: commit cohort update: %w", err)
	}
	return c, nil
}

// UpdateCohortStatusWithAudit transitions a cohort's status.
func (db *DB) UpdateCohortStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.Cohort, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Cohort{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getCohortTx(ctx, tx, id)
	if err != nil {
		return model.Cohort{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE cohorts SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Cohort{}, ErrDuplicateCode
		}
		return model.Cohort{}, fmt.Errorf("storage: update cohort status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Cohort{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Cohort{}, fmt.Errorf("storage: commit cohort status: %w", err)
	}
	return after, nil
}

// DeleteCohortWithAudit removes a cohort.
func (db *DB) DeleteCohortWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getCohortTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cohorts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete cohort: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit cohort delete: %w", err)
	}
	return nil
}

func getCohortTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Cohort, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+cohortColumns+` FROM cohorts WHERE id = $1 FOR UPDATE`, id)
	c, err := scanCohort(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Cohort{}, ErrNotFound
		}
		return model.Cohort{}, fmt.Errorf("storage: get cohort: %w", err)
	}
	return c, nil
}

func scanCohort(row pgx.Row) (model.Cohort, error) {
	var c model.Cohort
	err := row.Scan(
		&c.ID, &c.CohortCode, &c.Name, &c.Type, &c.POS, &c.Channels, &c.Device,
		&c.BookingWindowDays, &c.CriteriaExpr, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func normalizeCohort(c model.Cohort) model.Cohort {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.StatusActive
	}
	if c.POS == nil {
		c.POS = []string{}
	}
	if c.Channels == nil {
		c.Channels = []model.Channel{}
	}
	return c
}
