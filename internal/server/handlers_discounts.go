package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/pricing"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
)

// HandleCreateDiscountRule inserts a dynamic discount rule. Duplicate ACTIVE
// rule codes surface as 409 straight from the partial unique index.
func (h *Handlers) HandleCreateDiscountRule(w http.ResponseWriter, r *http.Request) {
	var rule model.DynamicDiscountRule
	if err := decodeJSON(r, &rule); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := rule.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateDiscountRuleWithAudit(r.Context(), rule,
		auditEntry(r, model.ModuleDiscountRule, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "discount rule")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusCreated, created)
}

// HandleListDiscountRules lists discount rules ordered by priority.
func (h *Handlers) HandleListDiscountRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := storage.RuleFilters{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Channel:     q.Get("channel"),
		Status:      q.Get("status"),
	}
	limit, offset := listParams(r)
	rules, total, err := h.db.ListDiscountRules(r.Context(), filters, limit, offset)
	if err != nil {
		h.storageError(w, r, err, "discount rule")
		return
	}
	writeList(w, r, rules, total, limit, offset)
}

// HandleGetDiscountRule retrieves one discount rule by ID.
func (h *Handlers) HandleGetDiscountRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	rule, err := h.db.GetDiscountRule(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "discount rule")
		return
	}
	writeJSON(w, r, http.StatusOK, rule)
}

// HandleUpdateDiscountRule replaces a discount rule.
func (h *Handlers) HandleUpdateDiscountRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var rule model.DynamicDiscountRule
	if err := decodeJSON(r, &rule); err != nil {
		badBody(w, r, err)
		return
	}
	rule.ID = id
	if errs := rule.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateDiscountRuleWithAudit(r.Context(), rule,
		auditEntry(r, model.ModuleDiscountRule, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "discount rule")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDiscountRuleStatus transitions a discount rule's status.
func (h *Handlers) HandleDiscountRuleStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleDiscountRule, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for discount rules"}})
		return
	}

	audit := auditEntry(r, model.ModuleDiscountRule, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateDiscountRuleStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "discount rule")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteDiscountRule removes a discount rule.
func (h *Handlers) HandleDeleteDiscountRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteDiscountRuleWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleDiscountRule, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "discount rule")
		return
	}
	h.invalidateRuleCaches(r)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSimulateDiscountRule previews a discount rule against a base fare
// without persisting anything. The preview runs in fare context, so PERCENT
// and AMOUNT are additive.
func (h *Handlers) HandleSimulateDiscountRule(w http.ResponseWriter, r *http.Request) {
	h.simulate(w, r, pricing.Fare, func(id uuid.UUID) (string, model.AdjustmentType, float64, error) {
		rule, err := h.db.GetDiscountRule(r.Context(), id)
		if err != nil {
			return "", "", 0, err
		}
		return rule.RuleCode, rule.AdjustmentType, rule.AdjustmentValue, nil
	})
}

// simulate implements the shared simulate-endpoint flow: load the rule,
// evaluate the adjustment in the given context, return adjusted value and
// delta.
func (h *Handlers) simulate(w http.ResponseWriter, r *http.Request, ctx pricing.Context, load func(uuid.UUID) (string, model.AdjustmentType, float64, error)) {
	var req model.SimulateRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if req.Base() <= 0 {
		validationFailed(w, r, []model.FieldError{{Field: "baseFare", Message: "must be greater than zero"}})
		return
	}
	id, err := uuid.Parse(req.RuleID)
	if err != nil {
		validationFailed(w, r, []model.FieldError{{Field: "ruleId", Message: "must be a valid UUID"}})
		return
	}

	code, adjType, adjValue, err := load(id)
	if err != nil {
		h.storageError(w, r, err, "rule")
		return
	}

	res := pricing.Evaluate(req.Base(), adjType, adjValue, ctx)
	writeJSON(w, r, http.StatusOK, model.SimulateResponse{
		RuleCode:       code,
		AdjustmentType: adjType,
		BaseValue:      req.Base(),
		AdjustedFare:   res.Adjusted,
		Delta:          res.Delta,
		Currency:       req.Currency,
	})
}
