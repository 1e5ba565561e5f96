package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/cache"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/service/compose"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/service/tiers"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/telemetry"
)

// Handlers bundles the HTTP handlers with their dependencies.
type Handlers struct {
	db             *storage.DB
	composer       *compose.Composer
	tierSvc        *tiers.Service
	cache          *cache.Cache
	logger         *slog.Logger
	metrics        telemetry.OfferMetrics
	maxUploadBytes int64
	version        string
	openAPISpec    []byte
}

// HandlersDeps holds the dependencies for NewHandlers.
type HandlersDeps struct {
	DB             *storage.DB
	Composer       *compose.Composer
	TierSvc        *tiers.Service
	Cache          *cache.Cache
	Logger         *slog.Logger
	Metrics        telemetry.OfferMetrics
	MaxUploadBytes int64
	Version        string
	OpenAPISpec    []byte
}

// NewHandlers creates the handler set.
func NewHandlers(deps HandlersDeps) *Handlers {
	return &Handlers{
		db:             deps.DB,
		composer:       deps.Composer,
		tierSvc:        deps.TierSvc,
		cache:          deps.Cache,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		maxUploadBytes: deps.MaxUploadBytes,
		version:        deps.Version,
		openAPISpec:    deps.OpenAPISpec,
	}
}

// HandleOpenAPI serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if len(h.openAPISpec) == 0 {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "spec not embedded in this build")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(h.openAPISpec)
}

// HandleHealth reports liveness and database reachability.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// pathID parses the {id} path segment as a UUID.
func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}

// listParams reads limit/offset query parameters. The storage layer clamps
// them to its own bounds.
func listParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

// auditEntry builds the audit row skeleton for a mutation in this request.
func auditEntry(r *http.Request, module string, action model.AuditAction) model.AuditLog {
	return model.AuditLog{
		Actor:  ActorFromContext(r.Context()),
		Module: module,
		Action: action,
		Meta:   requestMeta(r),
	}
}

// storageError maps storage sentinel errors onto API responses.
func (h *Handlers) storageError(w http.ResponseWriter, r *http.Request, err error, entity string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, entity+" not found")
	case errors.Is(err, storage.ErrDuplicateCode):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "an ACTIVE "+entity+" with this code already exists")
	default:
		h.logger.Error("storage failure", "entity", entity, "error", err,
			"request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
	}
}

// invalidateRuleCaches drops the cached rule sets after a pricing-relevant
// mutation so the next compose re-reads from the database.
func (h *Handlers) invalidateRuleCaches(r *http.Request) {
	if err := h.cache.Invalidate(r.Context(),
		compose.CacheKeyDiscounts,
		compose.CacheKeyAncillaries,
		compose.CacheKeyBundles,
		compose.CacheKeyBundlePricing,
	); err != nil {
		h.logger.Warn("cache invalidation failed", "error", err)
	}
}

// validationFailed writes a 400 with field-level details.
func validationFailed(w http.ResponseWriter, r *http.Request, errs []model.FieldError) {
	writeErrorDetails(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "validation failed", errs)
}

// badBody writes the standard malformed-JSON error.
func badBody(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
}

// badID writes the standard malformed-UUID error.
func badID(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "id must be a valid UUID")
}
