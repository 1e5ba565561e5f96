package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestMeta is the caller context captured alongside every audit row.
type RequestMeta struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// AuditLog is one append-only record of a mutation: who changed what, the
// entity snapshots before and after, and why. Rows are written in the same
// transaction as the mutation they describe and are never updated.
type AuditLog struct {
	ID            uuid.UUID      `json:"id"`
	Actor         string         `json:"actor"`
	Module        string         `json:"module"`
	EntityID      string         `json:"entityId"`
	Action        AuditAction    `json:"action"`
	BeforeData    map[string]any `json:"beforeData,omitempty"`
	AfterData     map[string]any `json:"afterData,omitempty"`
	Justification string         `json:"justification,omitempty"`
	Meta          RequestMeta    `json:"requestMeta"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// AuditFilters narrows audit-log listings and exports.
type AuditFilters struct {
	Module   string
	EntityID string
	Actor    string
	Action   string
	From     *time.Time
	To       *time.Time
}

// RollbackRequest is the body for POST /api/audit-logs/{id}/rollback.
type RollbackRequest struct {
	Justification string `json:"justification"`
}

// rollbackModules is the set of modules whose audit rows can be rolled back
// by reapplying the before snapshot.
var rollbackModules = map[string]bool{
	ModuleNegotiatedFare: true,
	ModuleDiscountRule:   true,
}

// RollbackSupported reports whether rollback is available for a module.
func RollbackSupported(module string) bool {
	return rollbackModules[module]
}
