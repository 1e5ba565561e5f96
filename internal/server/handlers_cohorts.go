package server

import (
	"net/http"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

func (h *Handlers) HandleCreateCohort(w http.ResponseWriter, r *http.Request) {
	var cohort model.Cohort
	if err := decodeJSON(r, &cohort); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := cohort.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateCohortWithAudit(r.Context(), cohort,
		auditEntry(r, model.ModuleCohort, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "cohort")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) HandleListCohorts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := listParams(r)
	cohorts, total, err := h.db.ListCohorts(r.Context(), q.Get("type"), q.Get("status"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "cohort")
		return
	}
	writeList(w, r, cohorts, total, limit, offset)
}

func (h *Handlers) HandleGetCohort(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	cohort, err := h.db.GetCohort(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "cohort")
		return
	}
	writeJSON(w, r, http.StatusOK, cohort)
}

func (h *Handlers) HandleUpdateCohort(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var cohort model.Cohort
	if err := decodeJSON(r, &cohort); err != nil {
		badBody(w, r, err)
		return
	}
	cohort.ID = id
	if errs := cohort.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateCohortWithAudit(r.Context(), cohort,
		auditEntry(r, model.ModuleCohort, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "cohort")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleCohortStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleCohort, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for cohorts"}})
		return
	}

	audit := auditEntry(r, model.ModuleCohort, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateCohortStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "cohort")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteCohort(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteCohortWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleCohort, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "cohort")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
