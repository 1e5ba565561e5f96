package server

import (
	"net/http"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

// HandleComposeOffer runs the full composition pipeline and returns the
// persisted trace.
func (h *Handlers) HandleComposeOffer(w http.ResponseWriter, r *http.Request) {
	var req model.ComposeRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	trace, err := h.composer.Compose(r.Context(), req)
	if err != nil {
		h.storageError(w, r, err, "offer")
		return
	}

	if h.metrics.Composed != nil {
		h.metrics.Composed.Add(r.Context(), 1)
		if trace.FareSource == model.FareSourceAPI {
			h.metrics.Fallbacks.Add(r.Context(), 1)
		}
	}
	writeJSON(w, r, http.StatusOK, trace)
}

func (h *Handlers) HandleGetOfferTrace(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("traceId")
	if traceID == "" {
		validationFailed(w, r, []model.FieldError{{Field: "traceId", Message: "is required"}})
		return
	}
	trace, err := h.db.GetOfferTrace(r.Context(), traceID)
	if err != nil {
		h.storageError(w, r, err, "offer trace")
		return
	}
	writeJSON(w, r, http.StatusOK, trace)
}

func (h *Handlers) HandleListOfferTraces(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)
	traces, total, err := h.db.ListOfferTraces(r.Context(), r.URL.Query().Get("agentId"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "offer trace")
		return
	}
	writeList(w, r, traces, total, limit, offset)
}
