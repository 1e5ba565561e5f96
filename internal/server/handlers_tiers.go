package server

import (
	"net/http"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/service/tiers"
)

func validWindow(window string) bool {
	switch window {
	case "", tiers.WindowMonthly, tiers.WindowQuarterly, tiers.WindowYearly:
		return true
	}
	return false
}

func (h *Handlers) HandleCreateTier(w http.ResponseWriter, r *http.Request) {
	var tier model.AgentTier
	if err := decodeJSON(r, &tier); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := tier.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateTierWithAudit(r.Context(), tier,
		auditEntry(r, model.ModuleAgentTier, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "tier")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) HandleListTiers(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)
	items, total, err := h.db.ListTiers(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "tier")
		return
	}
	writeList(w, r, items, total, limit, offset)
}

func (h *Handlers) HandleGetTier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	tier, err := h.db.GetTier(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "tier")
		return
	}
	writeJSON(w, r, http.StatusOK, tier)
}

func (h *Handlers) HandleUpdateTier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var tier model.AgentTier
	if err := decodeJSON(r, &tier); err != nil {
		badBody(w, r, err)
		return
	}
	tier.ID = id
	if errs := tier.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateTierWithAudit(r.Context(), tier,
		auditEntry(r, model.ModuleAgentTier, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "tier")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleTierStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleAgentTier, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for tiers"}})
		return
	}

	audit := auditEntry(r, model.ModuleAgentTier, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateTierStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "tier")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteTier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteTierWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleAgentTier, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "tier")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEvaluateTier computes an agent's KPIs and recommended tier without
// writing anything.
func (h *Handlers) HandleEvaluateTier(w http.ResponseWriter, r *http.Request) {
	var req model.TierEvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if req.AgentID == "" {
		validationFailed(w, r, []model.FieldError{{Field: "agentId", Message: "is required"}})
		return
	}
	if !validWindow(req.Window) {
		validationFailed(w, r, []model.FieldError{{Field: "window", Message: "must be MONTHLY, QUARTERLY or YEARLY"}})
		return
	}

	resp, err := h.tierSvc.Evaluate(r.Context(), req)
	if err != nil {
		h.storageError(w, r, err, "agent")
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleAutoAssignTiers runs a batch evaluation and assigns the recommended
// tier to every agent whose current tier no longer matches. Per-agent
// failures come back in the result list, not as an HTTP error.
func (h *Handlers) HandleAutoAssignTiers(w http.ResponseWriter, r *http.Request) {
	var req model.TierAutoAssignRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if len(req.AgentIDs) == 0 {
		validationFailed(w, r, []model.FieldError{{Field: "agentIds", Message: "at least one agent is required"}})
		return
	}
	if !validWindow(req.Window) {
		validationFailed(w, r, []model.FieldError{{Field: "window", Message: "must be MONTHLY, QUARTERLY or YEARLY"}})
		return
	}

	results, err := h.tierSvc.AutoAssign(r.Context(), req, ActorFromContext(r.Context()), requestMeta(r))
	if err != nil {
		h.storageError(w, r, err, "agent")
		return
	}
	writeJSON(w, r, http.StatusOK, results)
}

func (h *Handlers) HandleManualAssignTier(w http.ResponseWriter, r *http.Request) {
	var req model.ManualAssignRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	var errs []model.FieldError
	if req.AgentID == "" {
		errs = append(errs, model.FieldError{Field: "agentId", Message: "is required"})
	}
	if req.TierCode == "" {
		errs = append(errs, model.FieldError{Field: "tierCode", Message: "is required"})
	}
	if req.Justification == "" {
		errs = append(errs, model.FieldError{Field: "justification", Message: "is required for manual overrides"})
	}
	if len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	assignment, err := h.tierSvc.ManualAssign(r.Context(), req, ActorFromContext(r.Context()), requestMeta(r))
	if err != nil {
		h.storageError(w, r, err, "agent")
		return
	}
	writeJSON(w, r, http.StatusCreated, assignment)
}

func (h *Handlers) HandleListAssignments(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("agentId")
	if code == "" {
		validationFailed(w, r, []model.FieldError{{Field: "agentId", Message: "query parameter is required"}})
		return
	}
	agent, err := h.db.GetAgentByCode(r.Context(), code)
	if err != nil {
		h.storageError(w, r, err, "agent")
		return
	}

	limit, offset := listParams(r)
	assignments, total, err := h.db.ListAssignments(r.Context(), agent.ID, limit, offset)
	if err != nil {
		h.storageError(w, r, err, "assignment")
		return
	}
	writeList(w, r, assignments, total, limit, offset)
}
