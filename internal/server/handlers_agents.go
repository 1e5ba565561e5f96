package server

import (
	"net/http"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

func (h *Handlers) HandleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var agent model.Agent
	if err := decodeJSON(r, &agent); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := agent.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateAgentWithAudit(r.Context(), agent,
		auditEntry(r, model.ModuleAgent, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "agent")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := listParams(r)
	agents, total, err := h.db.ListAgents(r.Context(), q.Get("status"), q.Get("pos"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "agent")
		return
	}
	writeList(w, r, agents, total, limit, offset)
}

func (h *Handlers) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	agent, err := h.db.GetAgent(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "agent")
		return
	}
	writeJSON(w, r, http.StatusOK, agent)
}

func (h *Handlers) HandleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var agent model.Agent
	if err := decodeJSON(r, &agent); err != nil {
		badBody(w, r, err)
		return
	}
	agent.ID = id
	if errs := agent.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateAgentWithAudit(r.Context(), agent,
		auditEntry(r, model.ModuleAgent, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "agent")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleAgentStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleAgent, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for agents"}})
		return
	}

	audit := auditEntry(r, model.ModuleAgent, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateAgentStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "agent")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteAgentWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleAgent, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "agent")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
