package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/pricing"
)

// Bundles.

func (h *Handlers) HandleCreateBundle(w http.ResponseWriter, r *http.Request) {
	var bundle model.Bundle
	if err := decodeJSON(r, &bundle); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := bundle.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateBundleWithAudit(r.Context(), bundle,
		auditEntry(r, model.ModuleBundle, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "bundle")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) HandleListBundles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := listParams(r)
	bundles, total, err := h.db.ListBundles(r.Context(), q.Get("bundleType"), q.Get("status"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "bundle")
		return
	}
	writeList(w, r, bundles, total, limit, offset)
}

func (h *Handlers) HandleGetBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	bundle, err := h.db.GetBundle(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "bundle")
		return
	}
	writeJSON(w, r, http.StatusOK, bundle)
}

func (h *Handlers) HandleUpdateBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var bundle model.Bundle
	if err := decodeJSON(r, &bundle); err != nil {
		badBody(w, r, err)
		return
	}
	bundle.ID = id
	if errs := bundle.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateBundleWithAudit(r.Context(), bundle,
		auditEntry(r, model.ModuleBundle, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "bundle")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleBundleStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleBundle, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for bundles"}})
		return
	}

	audit := auditEntry(r, model.ModuleBundle, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateBundleStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "bundle")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteBundleWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleBundle, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "bundle")
		return
	}
	h.invalidateRuleCaches(r)
	w.WriteHeader(http.StatusNoContent)
}

// Bundle pricing rules.

func (h *Handlers) HandleCreateBundlePricingRule(w http.ResponseWriter, r *http.Request) {
	var rule model.BundlePricingRule
	if err := decodeJSON(r, &rule); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := rule.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateBundlePricingRuleWithAudit(r.Context(), rule,
		auditEntry(r, model.ModuleBundlePricingRule, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "bundle pricing rule")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) HandleListBundlePricingRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := listParams(r)
	rules, total, err := h.db.ListBundlePricingRules(r.Context(), q.Get("bundleCode"), q.Get("status"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "bundle pricing rule")
		return
	}
	writeList(w, r, rules, total, limit, offset)
}

func (h *Handlers) HandleGetBundlePricingRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	rule, err := h.db.GetBundlePricingRule(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "bundle pricing rule")
		return
	}
	writeJSON(w, r, http.StatusOK, rule)
}

func (h *Handlers) HandleUpdateBundlePricingRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var rule model.BundlePricingRule
	if err := decodeJSON(r, &rule); err != nil {
		badBody(w, r, err)
		return
	}
	rule.ID = id
	if errs := rule.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateBundlePricingRuleWithAudit(r.Context(), rule,
		auditEntry(r, model.ModuleBundlePricingRule, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "bundle pricing rule")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleBundlePricingRuleStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleBundlePricingRule, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for bundle pricing rules"}})
		return
	}

	audit := auditEntry(r, model.ModuleBundlePricingRule, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateBundlePricingRuleStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "bundle pricing rule")
		return
	}
	h.invalidateRuleCaches(r)
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteBundlePricingRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteBundlePricingRuleWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleBundlePricingRule, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "bundle pricing rule")
		return
	}
	h.invalidateRuleCaches(r)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSimulateBundlePricingRule previews a bundle pricing rule against a
// base price in discount context.
func (h *Handlers) HandleSimulateBundlePricingRule(w http.ResponseWriter, r *http.Request) {
	h.simulate(w, r, pricing.Discount, func(id uuid.UUID) (string, model.AdjustmentType, float64, error) {
		rule, err := h.db.GetBundlePricingRule(r.Context(), id)
		if err != nil {
			return "", "", 0, err
		}
		return rule.RuleCode, rule.DiscountType, rule.DiscountValue, nil
	})
}
