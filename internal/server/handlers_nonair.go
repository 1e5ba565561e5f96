package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/pricing"
)

// Non-air base rates.

func (h *Handlers) HandleCreateNonAirRate(w http.ResponseWriter, r *http.Request) {
	var rate model.NonAirRate
	if err := decodeJSON(r, &rate); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := rate.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateNonAirRateWithAudit(r.Context(), rate,
		auditEntry(r, model.ModuleNonAirRate, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "non-air rate")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) HandleListNonAirRates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := listParams(r)
	rates, total, err := h.db.ListNonAirRates(r.Context(), q.Get("category"), q.Get("status"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "non-air rate")
		return
	}
	writeList(w, r, rates, total, limit, offset)
}

func (h *Handlers) HandleGetNonAirRate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	rate, err := h.db.GetNonAirRate(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "non-air rate")
		return
	}
	writeJSON(w, r, http.StatusOK, rate)
}

func (h *Handlers) HandleUpdateNonAirRate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var rate model.NonAirRate
	if err := decodeJSON(r, &rate); err != nil {
		badBody(w, r, err)
		return
	}
	rate.ID = id
	if errs := rate.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateNonAirRateWithAudit(r.Context(), rate,
		auditEntry(r, model.ModuleNonAirRate, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "non-air rate")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleNonAirRateStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleNonAirRate, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for non-air rates"}})
		return
	}

	audit := auditEntry(r, model.ModuleNonAirRate, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateNonAirRateStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "non-air rate")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteNonAirRate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteNonAirRateWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleNonAirRate, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "non-air rate")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Non-air markup rules.

func (h *Handlers) HandleCreateNonAirMarkupRule(w http.ResponseWriter, r *http.Request) {
	var rule model.NonAirMarkupRule
	if err := decodeJSON(r, &rule); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := rule.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateNonAirMarkupRuleWithAudit(r.Context(), rule,
		auditEntry(r, model.ModuleNonAirMarkupRule, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "markup rule")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) HandleListNonAirMarkupRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := listParams(r)
	rules, total, err := h.db.ListNonAirMarkupRules(r.Context(), q.Get("productCode"), q.Get("status"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "markup rule")
		return
	}
	writeList(w, r, rules, total, limit, offset)
}

func (h *Handlers) HandleGetNonAirMarkupRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	rule, err := h.db.GetNonAirMarkupRule(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "markup rule")
		return
	}
	writeJSON(w, r, http.StatusOK, rule)
}

func (h *Handlers) HandleUpdateNonAirMarkupRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var rule model.NonAirMarkupRule
	if err := decodeJSON(r, &rule); err != nil {
		badBody(w, r, err)
		return
	}
	rule.ID = id
	if errs := rule.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateNonAirMarkupRuleWithAudit(r.Context(), rule,
		auditEntry(r, model.ModuleNonAirMarkupRule, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "markup rule")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleNonAirMarkupRuleStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleNonAirMarkupRule, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for markup rules"}})
		return
	}

	audit := auditEntry(r, model.ModuleNonAirMarkupRule, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateNonAirMarkupRuleStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "markup rule")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteNonAirMarkupRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteNonAirMarkupRuleWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleNonAirMarkupRule, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "markup rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSimulateNonAirMarkupRule previews a markup rule against a base rate.
// Markup context: PERCENT and AMOUNT are additive.
func (h *Handlers) HandleSimulateNonAirMarkupRule(w http.ResponseWriter, r *http.Request) {
	h.simulate(w, r, pricing.Fare, func(id uuid.UUID) (string, model.AdjustmentType, float64, error) {
		rule, err := h.db.GetNonAirMarkupRule(r.Context(), id)
		if err != nil {
			return "", "", 0, err
		}
		return rule.RuleCode, rule.AdjustmentType, rule.AdjustmentValue, nil
	})
}
