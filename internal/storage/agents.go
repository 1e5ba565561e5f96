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

const agentColumns = `id, agent_code, name, email, agency_name, pos, channel, status, created_at, updated_at`

// CreateAgentWithAudit inserts an agent.
func (db *DB) CreateAgentWithAudit(ctx context.Context, a model.Agent, audit model.AuditLog) (model.Agent, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a = normalizeAgent(a)
	if _, err := tx.Exec(ctx,
		`INSERT INTO agents (`+agentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.AgentCode, a.Name, a.Email, a.AgencyName, a.POS, a.Channel, a.Status, a.CreatedAt, a.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Agent{}, ErrDuplicateCode
		}
		return model.Agent{}, fmt.Errorf("storage: insert agent: %w", err)
	}

	audit.EntityID = a.ID.String()
	audit.AfterData = entitySnapshot(a)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Agent{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Agent{}, fmt.Errorf("storage: commit agent: %w", err)
	}
	return a, nil
}

// GetAgent retrieves an agent by ID.
func (db *DB) GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Agent{}, ErrNotFound
		}
		return model.Agent{}, fmt.Errorf("storage: get agent: %w", err)
	}
	return a, nil
}

// GetAgentByCode retrieves an ACTIVE agent by its business code.
func (db *DB) GetAgentByCode(ctx context.Context, code string) (model.Agent, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE agent_code = $1 AND status = 'ACTIVE'`, code)
	a, err := scanAgent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Agent{}, ErrNotFound
		}
		return model.Agent{}, fmt.Errorf("storage: get agent by code: %w", err)
	}
	return a, nil
}

// ListAgents returns agents, optionally filtered by status and POS.
func (db *DB) ListAgents(ctx context.Context, status, pos string, limit, offset int) ([]model.Agent, int, error) {
	var conditions []string
	var args []any
	idx := 1
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", idx))
		args = append(args, status)
		idx++
	}
	if pos != "" {
		conditions = append(conditions, fmt.Sprintf("pos = $%d", idx))
		args = append(args, pos)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM agents"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count agents: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf(
		`SELECT `+agentColumns+` FROM agents%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list agents: %w", err)
	}
	defer rows.Close()

	var agents []model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, total, rows.Err()
}

// UpdateAgentWithAudit replaces an agent's mutable fields.
func (db *DB) UpdateAgentWithAudit(ctx context.Context, a model.Agent, audit model.AuditLog) (model.Agent, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getAgentTx(ctx, tx, a.ID)
	if err != nil {
		return model.Agent{}, err
	}

	a.CreatedAt = before.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE agents SET
		     agent_code = $2, name = $3, email = $4, agency_name = $5,
		     pos = $6, channel = $7, status = $8, updated_at = $9
		 WHERE id = $1`,
		a.ID, a.AgentCode, a.Name, a.Email, a.AgencyName,
		a.POS, a.Channel, a.Status, a.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Agent{}, ErrDuplicateCode
		}
		return model.Agent{}, fmt.Errorf("storage: update agent: %w", err)
	}

	audit.EntityID = a.ID.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(a)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Agent{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Agent{}, fmt.Errorf("storage: commit agent update: %w", err)
	}
	return a, nil
}

// UpdateAgentStatusWithAudit transitions an agent's status.
func (db *DB) UpdateAgentStatusWithAudit(ctx context.Context, id uuid.UUID, status model.Status, audit model.AuditLog) (model.Agent, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getAgentTx(ctx, tx, id)
	if err != nil {
		return model.Agent{}, err
	}

	after := before
	after.Status = status
	after.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE agents SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, after.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return model.Agent{}, ErrDuplicateCode
		}
		return model.Agent{}, fmt.Errorf("storage: update agent status: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	audit.AfterData = entitySnapshot(after)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return model.Agent{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Agent{}, fmt.Errorf("storage: commit agent status: %w", err)
	}
	return after, nil
}

// DeleteAgentWithAudit removes an agent.
func (db *DB) DeleteAgentWithAudit(ctx context.Context, id uuid.UUID, audit model.AuditLog) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := getAgentTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("storage: delete agent: %w", err)
	}

	audit.EntityID = id.String()
	audit.BeforeData = entitySnapshot(before)
	if err := insertAuditTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit agent delete: %w", err)
	}
	return nil
}

func getAgentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Agent, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAgent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Agent{}, ErrNotFound
		}
		return model.Agent{}, fmt.Errorf("storage: get agent: %w", err)
	}
	return a, nil
}

func scanAgent(row pgx.Row) (model.Agent, error) {
	var a model.Agent
	err := row.Scan(
		&a.ID, &a.AgentCode, &a.Name, &a.Email, &a.AgencyName, &a.POS, &a.Channel, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func normalizeAgent(a model.Agent) model.Agent {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = model.StatusActive
	}
	return a
}
