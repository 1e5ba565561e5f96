package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

// insertAuditTx appends an audit row inside the caller's transaction so the
// mutation and its audit record commit or roll back together.
func insertAuditTx(ctx context.Context, tx pgx.Tx, e model.AuditLog) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var (
		beforeJSON []byte
		afterJSON  []byte
		err        error
	)
	if e.BeforeData != nil {
		beforeJSON, err = json.Marshal(e.BeforeData)
		if err != nil {
			return fmt.Errorf("storage: marshal audit before_data: %w", err)
		}
	}
	if e.AfterData != nil {
		afterJSON, err = json.Marshal(e.AfterData)
		if err != nil {
			return fmt.Errorf("storage: marshal audit after_data: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO audit_logs (
		     id, actor, module, entity_id, action,
		     before_data, after_data, justification,
		     ip, user_agent, session_id, request_id, created_at
		 )
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.Actor, e.Module, e.EntityID, e.Action,
		beforeJSON, afterJSON, e.Justification,
		e.Meta.IP, e.Meta.UserAgent, e.Meta.SessionID, e.Meta.RequestID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: insert audit: %w", err)
	}
	return nil
}

// GetAuditLog retrieves a single audit row by ID.
func (db *DB) GetAuditLog(ctx context.Context, id uuid.UUID) (model.AuditLog, error) {
	var e model.AuditLog
	err := db.pool.QueryRow(ctx,
		`SELECT id, actor, module, entity_id, action, before_data, after_data,
		 justification, ip, user_agent, session_id, request_id, created_at
		 FROM audit_logs WHERE id = $1`, id,
	).Scan(
		&e.ID, &e.Actor, &e.Module, &e.EntityID, &e.Action, &e.BeforeData, &e.AfterData,
		&e.Justification, &e.Meta.IP, &e.Meta.UserAgent, &e.Meta.SessionID, &e.Meta.RequestID, &e.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.AuditLog{}, ErrNotFound
		}
		return model.AuditLog{}, fmt.Errorf("storage: get audit log: %w", err)
	}
	return e, nil
}

// ListAuditLogs returns audit rows matching the filters, newest first,
// along with the total match count for pagination.
func (db *DB) ListAuditLogs(ctx context.Context, f model.AuditFilters, limit, offset int) ([]model.AuditLog, int, error) {
	where, args := buildAuditWhereClause(f)

	var total int
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count audit logs: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(
		`SELECT id, actor, module, entity_id, action, before_data, after_data,
		 justification, ip, user_agent, session_id, request_id, created_at
		 FROM audit_logs%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		where, limit, offset,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLog
	for rows.Next() {
		var e model.AuditLog
		if err := rows.Scan(
			&e.ID, &e.Actor, &e.Module, &e.EntityID, &e.Action, &e.BeforeData, &e.AfterData,
			&e.Justification, &e.Meta.IP, &e.Meta.UserAgent, &e.Meta.SessionID, &e.Meta.RequestID, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("storage: scan audit log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func buildAuditWhereClause(f model.AuditFilters) (string, []any) {
	var conditions []string
	var args []any
	idx := 1

	add := func(cond string, val any) {
		conditions = append(conditions, fmt.Sprintf(cond, idx))
		args = append(args, val)
		idx++
	}

	if f.Module != "" {
		add("module = $%d", f.Module)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.Actor != "" {
		add("actor = $%d", f.Actor)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
