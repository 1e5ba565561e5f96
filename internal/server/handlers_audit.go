package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

func auditFiltersFromQuery(r *http.Request) (model.AuditFilters, []model.FieldError) {
	q := r.URL.Query()
	f := model.AuditFilters{
		Module:   q.Get("module"),
		EntityID: q.Get("entityId"),
		Actor:    q.Get("actor"),
		Action:   q.Get("action"),
	}
	var errs []model.FieldError
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "from", Message: "must be an RFC 3339 timestamp"})
		} else {
			f.From = &t
		}
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "to", Message: "must be an RFC 3339 timestamp"})
		} else {
			f.To = &t
		}
	}
	return f, errs
}

func (h *Handlers) HandleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	filters, errs := auditFiltersFromQuery(r)
	if len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}
	limit, offset := listParams(r)
	logs, total, err := h.db.ListAuditLogs(r.Context(), filters, limit, offset)
	if err != nil {
		h.storageError(w, r, err, "audit log")
		return
	}
	writeList(w, r, logs, total, limit, offset)
}

// HandleExportAuditLogs streams the filtered audit trail as CSV. The changes
// column carries the before/after snapshots as a single JSON object.
func (h *Handlers) HandleExportAuditLogs(w http.ResponseWriter, r *http.Request) {
	filters, errs := auditFiltersFromQuery(r)
	if len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	const exportPageSize = 1000
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="audit-log-%s.csv"`, time.Now().UTC().Format("2006-01-02")))

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "user", "module", "entityId", "action", "justification", "changes"}); err != nil {
		h.logger.ErrorContext(r.Context(), "audit export write failed", slog.Any("error", err))
		return
	}
	for offset := 0; ; offset += exportPageSize {
		logs, _, err := h.db.ListAuditLogs(r.Context(), filters, exportPageSize, offset)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "audit export query failed", slog.Any("error", err))
			return
		}
		for _, entry := range logs {
			changes, _ := json.Marshal(map[string]any{
				"before": entry.BeforeData,
				"after":  entry.AfterData,
			})
			record := []string{
				entry.CreatedAt.UTC().Format(time.RFC3339),
				entry.Actor,
				entry.Module,
				entry.EntityID,
				string(entry.Action),
				entry.Justification,
				string(changes),
			}
			if err := cw.Write(record); err != nil {
				h.logger.ErrorContext(r.Context(), "audit export write failed", slog.Any("error", err))
				return
			}
		}
		if len(logs) < exportPageSize {
			break
		}
	}
	cw.Flush()
}

// HandleRollbackAuditLog reapplies the before snapshot of an audit entry.
// Only fares and discount rules support rollback; everything else returns 400.
func (h *Handlers) HandleRollbackAuditLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var req model.RollbackRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if req.Justification == "" {
		validationFailed(w, r, []model.FieldError{{Field: "justification", Message: "is required for rollbacks"}})
		return
	}

	entry, err := h.db.GetAuditLog(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "audit log")
		return
	}
	if !model.RollbackSupported(entry.Module) {
		validationFailed(w, r, []model.FieldError{{Field: "module",
			Message: fmt.Sprintf("rollback is not supported for %s", entry.Module)}})
		return
	}
	if len(entry.BeforeData) == 0 {
		validationFailed(w, r, []model.FieldError{{Field: "beforeData",
			Message: "entry has no before snapshot to restore"}})
		return
	}

	snapshot, err := json.Marshal(entry.BeforeData)
	if err != nil {
		h.storageError(w, r, err, "audit log")
		return
	}
	audit := auditEntry(r, entry.Module, model.ActionRollback)
	audit.Justification = req.Justification

	switch entry.Module {
	case model.ModuleNegotiatedFare:
		var fare model.NegotiatedFare
		if err := json.Unmarshal(snapshot, &fare); err != nil {
			h.storageError(w, r, err, "audit log")
			return
		}
		restored, conflicts, err := h.db.UpdateFareWithAudit(r.Context(), fare, audit)
		if err != nil {
			h.storageError(w, r, err, "fare")
			return
		}
		if len(conflicts) > 0 {
			writeErrorDetails(w, r, http.StatusConflict, model.ErrCodeConflict,
				"restoring this fare would overlap an ACTIVE fare",
				map[string]any{"conflicts": conflicts})
			return
		}
		writeJSON(w, r, http.StatusOK, restored)
	case model.ModuleDiscountRule:
		var rule model.DynamicDiscountRule
		if err := json.Unmarshal(snapshot, &rule); err != nil {
			h.storageError(w, r, err, "audit log")
			return
		}
		restored, err := h.db.UpdateDiscountRuleWithAudit(r.Context(), rule, audit)
		if err != nil {
			h.storageError(w, r, err, "discount rule")
			return
		}
		h.invalidateRuleCaches(r)
		writeJSON(w, r, http.StatusOK, restored)
	default:
		validationFailed(w, r, []model.FieldError{{Field: "module",
			Message: fmt.Sprintf("rollback is not supported for %s", entry.Module)}})
	}
}
