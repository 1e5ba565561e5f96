package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/pricing"
)

// Offer rules.

func (h *Handlers) HandleCreateOfferRule(w http.ResponseWriter, r *http.Request) {
	var rule model.OfferRule
	if err := decodeJSON(r, &rule); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := rule.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateOfferRuleWithAudit(r.Context(), rule,
		auditEntry(r, model.ModuleOfferRule, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "offer rule")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) HandleListOfferRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := listParams(r)
	rules, total, err := h.db.ListOfferRules(r.Context(), q.Get("ruleType"), q.Get("status"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "offer rule")
		return
	}
	writeList(w, r, rules, total, limit, offset)
}

func (h *Handlers) HandleGetOfferRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	rule, err := h.db.GetOfferRule(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "offer rule")
		return
	}
	writeJSON(w, r, http.StatusOK, rule)
}

func (h *Handlers) HandleUpdateOfferRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var rule model.OfferRule
	if err := decodeJSON(r, &rule); err != nil {
		badBody(w, r, err)
		return
	}
	rule.ID = id
	if errs := rule.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateOfferRuleWithAudit(r.Context(), rule,
		auditEntry(r, model.ModuleOfferRule, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "offer rule")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleOfferRuleStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleOfferRule, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for offer rules"}})
		return
	}

	audit := auditEntry(r, model.ModuleOfferRule, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateOfferRuleStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "offer rule")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteOfferRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteOfferRuleWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleOfferRule, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "offer rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Channel overrides.

func (h *Handlers) HandleCreateChannelOverride(w http.ResponseWriter, r *http.Request) {
	var override model.ChannelOverride
	if err := decodeJSON(r, &override); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := override.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateChannelOverrideWithAudit(r.Context(), override,
		auditEntry(r, model.ModuleChannelOverride, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "channel override")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) HandleListChannelOverrides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := listParams(r)
	overrides, total, err := h.db.ListChannelOverrides(r.Context(), q.Get("channel"), q.Get("status"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "channel override")
		return
	}
	writeList(w, r, overrides, total, limit, offset)
}

func (h *Handlers) HandleGetChannelOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	override, err := h.db.GetChannelOverride(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "channel override")
		return
	}
	writeJSON(w, r, http.StatusOK, override)
}

func (h *Handlers) HandleUpdateChannelOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var override model.ChannelOverride
	if err := decodeJSON(r, &override); err != nil {
		badBody(w, r, err)
		return
	}
	override.ID = id
	if errs := override.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateChannelOverrideWithAudit(r.Context(), override,
		auditEntry(r, model.ModuleChannelOverride, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "channel override")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleChannelOverrideStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleChannelOverride, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for channel overrides"}})
		return
	}

	audit := auditEntry(r, model.ModuleChannelOverride, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateChannelOverrideStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "channel override")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteChannelOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteChannelOverrideWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleChannelOverride, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "channel override")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSimulateChannelOverride previews a channel override against a base
// fare. Markup context: adjustments are additive.
func (h *Handlers) HandleSimulateChannelOverride(w http.ResponseWriter, r *http.Request) {
	h.simulate(w, r, pricing.Fare, func(id uuid.UUID) (string, model.AdjustmentType, float64, error) {
		override, err := h.db.GetChannelOverride(r.Context(), id)
		if err != nil {
			return "", "", 0, err
		}
		return override.OverrideCode, override.AdjustmentType, override.AdjustmentValue, nil
	})
}
