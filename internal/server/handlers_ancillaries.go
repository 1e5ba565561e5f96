package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/pricing"
)

// HandleCreateAncillaryRule inserts an air ancillary rule.
func (h *Handlers) HandleCreateAncillaryRule(w http.ResponseWriter, r *http.Request) {
	var rule model.AirAncillaryRule
	if err := decodeJSON(r, &rule); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := rule.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateAncillaryRuleWithAudit(r.Context(), rule,
		auditEntry(r, model.ModuleAncillaryRule, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "ancillary rule")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusCreated, created)
}

// HandleListAncillaryRules lists ancillary rules.
func (h *Handlers) HandleListAncillaryRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := listParams(r)
	rules, total, err := h.db.ListAncillaryRules(r.Context(), q.Get("ancillaryCode"), q.Get("status"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "ancillary rule")
		return
	}
	writeList(w, r, rules, total, limit, offset)
}

// HandleGetAncillaryRule retrieves one ancillary rule by ID.
func (h *Handlers) HandleGetAncillaryRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	rule, err := h.db.GetAncillaryRule(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "ancillary rule")
		return
	}
	writeJSON(w, r, http.StatusOK, rule)
}

// HandleUpdateAncillaryRule replaces an ancillary rule.
func (h *Handlers) HandleUpdateAncillaryRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var rule model.AirAncillaryRule
	if err := decodeJSON(r, &rule); err != nil {
		badBody(w, r, err)
		return
	}
	rule.ID = id
	if errs := rule.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateAncillaryRuleWithAudit(r.Context(), rule,
		auditEntry(r, model.ModuleAncillaryRule, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "ancillary rule")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleAncillaryRuleStatus transitions an ancillary rule's status.
func (h *Handlers) HandleAncillaryRuleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var req model.StatusChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if !model.ValidStatus(model.ModuleAncillaryRule, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for ancillary rules"}})
		return
	}

	audit := auditEntry(r, model.ModuleAncillaryRule, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateAncillaryRuleStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "ancillary rule")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteAncillaryRule removes an ancillary rule.
func (h *Handlers) HandleDeleteAncillaryRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteAncillaryRuleWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleAncillaryRule, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "ancillary rule")
		return
	}
	h.invalidateRuleCaches(r)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSimulateAncillaryRule previews an ancillary rule against a base
// price. Discount context: PERCENT and AMOUNT subtract, FREE zeroes the
// price.
func (h *Handlers) HandleSimulateAncillaryRule(w http.ResponseWriter, r *http.Request) {
	h.simulate(w, r, pricing.Discount, func(id uuid.UUID) (string, model.AdjustmentType, float64, error) {
		rule, err := h.db.GetAncillaryRule(r.Context(), id)
		if err != nil {
			return "", "", 0, err
		}
		return rule.RuleCode, rule.AdjustmentType, rule.AdjustmentValue, nil
	})
}
