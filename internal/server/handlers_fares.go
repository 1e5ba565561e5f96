package server

import (
	"net/http"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
)

// HandleCreateFare inserts a negotiated fare. The conflict check runs inside
// the insert transaction; overlapping fares reject the whole request with the
// blocking records in the error details.
func (h *Handlers) HandleCreateFare(w http.ResponseWriter, r *http.Request) {
	var fare model.NegotiatedFare
	if err := decodeJSON(r, &fare); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := fare.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, conflicts, err := h.db.CreateFareWithAudit(r.Context(), fare,
		auditEntry(r, model.ModuleNegotiatedFare, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "fare")
		return
	}
	if len(conflicts) > 0 {
		writeErrorDetails(w, r, http.StatusConflict, model.ErrCodeConflict,
			"fare overlaps existing ACTIVE fares in the same scope", conflicts)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// HandleListFares lists fares with optional scope filters.
func (h *Handlers) HandleListFares(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := storage.FareFilters{
		Airline:     q.Get("airline"),
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		CabinClass:  q.Get("cabinClass"),
		Status:      q.Get("status"),
	}
	limit, offset := listParams(r)
	fares, total, err := h.db.ListFares(r.Context(), filters, limit, offset)
	if err != nil {
		h.storageError(w, r, err, "fare")
		return
	}
	writeList(w, r, fares, total, limit, offset)
}

// HandleGetFare retrieves one fare by ID.
func (h *Handlers) HandleGetFare(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	fare, err := h.db.GetFare(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "fare")
		return
	}
	writeJSON(w, r, http.StatusOK, fare)
}

// HandleUpdateFare replaces a fare. The conflict check runs again with the
// updated windows.
func (h *Handlers) HandleUpdateFare(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var fare model.NegotiatedFare
	if err := decodeJSON(r, &fare); err != nil {
		badBody(w, r, err)
		return
	}
	fare.ID = id
	if errs := fare.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, conflicts, err := h.db.UpdateFareWithAudit(r.Context(), fare,
		auditEntry(r, model.ModuleNegotiatedFare, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "fare")
		return
	}
	if len(conflicts) > 0 {
		writeErrorDetails(w, r, http.StatusConflict, model.ErrCodeConflict,
			"fare overlaps existing ACTIVE fares in the same scope", conflicts)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleFareStatus transitions a fare's lifecycle status.
func (h *Handlers) HandleFareStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleNegotiatedFare, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for fares"}})
		return
	}

	audit := auditEntry(r, model.ModuleNegotiatedFare, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateFareStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "fare")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteFare removes a fare. The before snapshot survives in the audit
// log.
func (h *Handlers) HandleDeleteFare(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteFareWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleNegotiatedFare, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "fare")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
