package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

func (h *Handlers) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var campaign model.Campaign
	if err := decodeJSON(r, &campaign); err != nil {
		badBody(w, r, err)
		return
	}
	if campaign.Status == "" {
		campaign.Status = model.StatusDraft
	}
	if errs := campaign.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	created, err := h.db.CreateCampaignWithAudit(r.Context(), campaign,
		auditEntry(r, model.ModuleCampaign, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "campaign")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)
	items, total, err := h.db.ListCampaigns(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.storageError(w, r, err, "campaign")
		return
	}
	writeList(w, r, items, total, limit, offset)
}

func (h *Handlers) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	campaign, err := h.db.GetCampaign(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "campaign")
		return
	}
	writeJSON(w, r, http.StatusOK, campaign)
}

func (h *Handlers) HandleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var campaign model.Campaign
	if err := decodeJSON(r, &campaign); err != nil {
		badBody(w, r, err)
		return
	}
	campaign.ID = id
	if errs := campaign.Validate(); len(errs) > 0 {
		validationFailed(w, r, errs)
		return
	}

	updated, err := h.db.UpdateCampaignWithAudit(r.Context(), campaign,
		auditEntry(r, model.ModuleCampaign, model.ActionUpdated))
	if err != nil {
		h.storageError(w, r, err, "campaign")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleCampaignStatus(w http.ResponseWriter, r *http.Request) {
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
	if !model.ValidStatus(model.ModuleCampaign, req.Status) {
		validationFailed(w, r, []model.FieldError{{Field: "status", Message: "unsupported status for campaigns"}})
		return
	}

	audit := auditEntry(r, model.ModuleCampaign, model.ActionStatusChanged)
	audit.Justification = req.Justification
	updated, err := h.db.UpdateCampaignStatusWithAudit(r.Context(), id, req.Status, audit)
	if err != nil {
		h.storageError(w, r, err, "campaign")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) HandleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.DeleteCampaignWithAudit(r.Context(), id,
		auditEntry(r, model.ModuleCampaign, model.ActionDeleted)); err != nil {
		h.storageError(w, r, err, "campaign")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deliveryCreateRequest is the body for enqueueing campaign deliveries.
type deliveryCreateRequest struct {
	Recipients []string      `json:"recipients"`
	Channel    model.Channel `json:"channel"`
}

func (h *Handlers) HandleCreateDeliveries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	var req deliveryCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	if len(req.Recipients) == 0 {
		validationFailed(w, r, []model.FieldError{{Field: "recipients", Message: "at least one recipient is required"}})
		return
	}
	if req.Channel != model.ChannelAPI && req.Channel != model.ChannelPortal && req.Channel != model.ChannelMobile {
		validationFailed(w, r, []model.FieldError{{Field: "channel", Message: "must be API, PORTAL or MOBILE"}})
		return
	}

	// Deliveries attach to an existing campaign only.
	campaign, err := h.db.GetCampaign(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "campaign")
		return
	}

	deliveries := make([]model.CampaignDelivery, 0, len(req.Recipients))
	for _, recipient := range req.Recipients {
		deliveries = append(deliveries, model.CampaignDelivery{
			CampaignID: campaign.ID,
			Recipient:  recipient,
			Channel:    req.Channel,
			Status:     model.DeliveryPending,
		})
	}
	inserted, err := h.db.InsertDeliveries(r.Context(), deliveries)
	if err != nil {
		h.storageError(w, r, err, "delivery")
		return
	}
	writeJSON(w, r, http.StatusCreated, inserted)
}

func (h *Handlers) HandleListDeliveries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	limit, offset := listParams(r)
	deliveries, total, err := h.db.ListDeliveries(r.Context(), id, limit, offset)
	if err != nil {
		h.storageError(w, r, err, "delivery")
		return
	}
	writeList(w, r, deliveries, total, limit, offset)
}

func (h *Handlers) HandleMarkDeliverySent(w http.ResponseWriter, r *http.Request) {
	deliveryID, err := uuid.Parse(r.PathValue("deliveryId"))
	if err != nil {
		badID(w, r)
		return
	}
	if err := h.db.MarkDeliverySent(r.Context(), deliveryID); err != nil {
		h.storageError(w, r, err, "delivery")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleDeliveryEvent(w http.ResponseWriter, r *http.Request) {
	deliveryID, err := uuid.Parse(r.PathValue("deliveryId"))
	if err != nil {
		badID(w, r)
		return
	}
	var req model.DeliveryEventRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	switch req.Event {
	case model.EventOpened, model.EventClicked, model.EventPurchased:
	default:
		validationFailed(w, r, []model.FieldError{{Field: "event", Message: "must be OPENED, CLICKED or PURCHASED"}})
		return
	}
	if req.Revenue != 0 && req.Event != model.EventPurchased {
		validationFailed(w, r, []model.FieldError{{Field: "revenue", Message: "only PURCHASED events carry revenue"}})
		return
	}

	if err := h.db.RecordDeliveryEvent(r.Context(), deliveryID, req.Event, req.Revenue); err != nil {
		h.storageError(w, r, err, "delivery")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleCampaignMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	metrics, err := h.db.ListCampaignMetrics(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "campaign")
		return
	}
	writeJSON(w, r, http.StatusOK, metrics)
}

// HandleRollupCampaignMetrics recomputes daily engagement aggregates from the
// campaign's delivery rows and returns the fresh series.
func (h *Handlers) HandleRollupCampaignMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badID(w, r)
		return
	}
	metrics, err := h.db.RollupCampaignMetrics(r.Context(), id)
	if err != nil {
		h.storageError(w, r, err, "campaign")
		return
	}
	writeJSON(w, r, http.StatusOK, metrics)
}
