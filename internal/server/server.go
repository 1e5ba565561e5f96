// Package server exposes the offer-management API over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds the HTTP listener settings.
type Config struct {
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	AllowedOrigins      []string
	MaxRequestBodyBytes int64
}

// Server wires the handler set, middleware chain, and route table onto an
// http.Server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// New builds the server. The route table uses Go 1.22 method patterns;
// registration order does not matter because the mux prefers the most
// specific pattern.
func New(cfg Config, handlers *Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.HandleFunc("GET /api/openapi.yaml", handlers.HandleOpenAPI)

	// Offer composition.
	mux.HandleFunc("POST /api/offer/compose", handlers.HandleComposeOffer)
	mux.HandleFunc("GET /api/offer/trace/{traceId}", handlers.HandleGetOfferTrace)
	mux.HandleFunc("GET /api/offer/traces", handlers.HandleListOfferTraces)

	// Negotiated fares.
	mux.HandleFunc("POST /api/negofares", handlers.HandleCreateFare)
	mux.HandleFunc("GET /api/negofares", handlers.HandleListFares)
	mux.HandleFunc("POST /api/negofares/upload", handlers.HandleUploadFares)
	mux.HandleFunc("GET /api/negofares/{id}", handlers.HandleGetFare)
	mux.HandleFunc("PUT /api/negofares/{id}", handlers.HandleUpdateFare)
	mux.HandleFunc("PATCH /api/negofares/{id}/status", handlers.HandleFareStatus)
	mux.HandleFunc("DELETE /api/negofares/{id}", handlers.HandleDeleteFare)

	// Dynamic discount rules.
	mux.HandleFunc("POST /api/dynamic-discount-rules", handlers.HandleCreateDiscountRule)
	mux.HandleFunc("GET /api/dynamic-discount-rules", handlers.HandleListDiscountRules)
	mux.HandleFunc("POST /api/dynamic-discount-rules/simulate", handlers.HandleSimulateDiscountRule)
	mux.HandleFunc("GET /api/dynamic-discount-rules/{id}", handlers.HandleGetDiscountRule)
	mux.HandleFunc("PUT /api/dynamic-discount-rules/{id}", handlers.HandleUpdateDiscountRule)
	mux.HandleFunc("PATCH /api/dynamic-discount-rules/{id}/status", handlers.HandleDiscountRuleStatus)
	mux.HandleFunc("DELETE /api/dynamic-discount-rules/{id}", handlers.HandleDeleteDiscountRule)

	// Air ancillary rules.
	mux.HandleFunc("POST /api/air-ancillary-rules", handlers.HandleCreateAncillaryRule)
	mux.HandleFunc("GET /api/air-ancillary-rules", handlers.HandleListAncillaryRules)
	mux.HandleFunc("POST /api/air-ancillary-rules/simulate", handlers.HandleSimulateAncillaryRule)
	mux.HandleFunc("GET /api/air-ancillary-rules/{id}", handlers.HandleGetAncillaryRule)
	mux.HandleFunc("PUT /api/air-ancillary-rules/{id}", handlers.HandleUpdateAncillaryRule)
	mux.HandleFunc("PATCH /api/air-ancillary-rules/{id}/status", handlers.HandleAncillaryRuleStatus)
	mux.HandleFunc("DELETE /api/air-ancillary-rules/{id}", handlers.HandleDeleteAncillaryRule)

	// Non-air rates and markup rules.
	mux.HandleFunc("POST /api/nonair/rates", handlers.HandleCreateNonAirRate)
	mux.HandleFunc("GET /api/nonair/rates", handlers.HandleListNonAirRates)
	mux.HandleFunc("POST /api/nonair/rates/upload", handlers.HandleUploadNonAirRates)
	mux.HandleFunc("GET /api/nonair/rates/{id}", handlers.HandleGetNonAirRate)
	mux.HandleFunc("PUT /api/nonair/rates/{id}", handlers.HandleUpdateNonAirRate)
	mux.HandleFunc("PATCH /api/nonair/rates/{id}/status", handlers.HandleNonAirRateStatus)
	mux.HandleFunc("DELETE /api/nonair/rates/{id}", handlers.HandleDeleteNonAirRate)

	mux.HandleFunc("POST /api/nonair/rules", handlers.HandleCreateNonAirMarkupRule)
	mux.HandleFunc("GET /api/nonair/rules", handlers.HandleListNonAirMarkupRules)
	mux.HandleFunc("POST /api/nonair/rules/simulate", handlers.HandleSimulateNonAirMarkupRule)
	mux.HandleFunc("GET /api/nonair/rules/{id}", handlers.HandleGetNonAirMarkupRule)
	mux.HandleFunc("PUT /api/nonair/rules/{id}", handlers.HandleUpdateNonAirMarkupRule)
	mux.HandleFunc("PATCH /api/nonair/rules/{id}/status", handlers.HandleNonAirMarkupRuleStatus)
	mux.HandleFunc("DELETE /api/nonair/rules/{id}", handlers.HandleDeleteNonAirMarkupRule)

	// Bundles and bundle pricing rules.
	mux.HandleFunc("POST /api/bundles", handlers.HandleCreateBundle)
	mux.HandleFunc("GET /api/bundles", handlers.HandleListBundles)
	mux.HandleFunc("POST /api/bundles/pricing", handlers.HandleCreateBundlePricingRule)
	mux.HandleFunc("GET /api/bundles/pricing", handlers.HandleListBundlePricingRules)
	mux.HandleFunc("POST /api/bundles/pricing/simulate", handlers.HandleSimulateBundlePricingRule)
	mux.HandleFunc("GET /api/bundles/pricing/{id}", handlers.HandleGetBundlePricingRule)
	mux.HandleFunc("PUT /api/bundles/pricing/{id}", handlers.HandleUpdateBundlePricingRule)
	mux.HandleFunc("PATCH /api/bundles/pricing/{id}/status", handlers.HandleBundlePricingRuleStatus)
	mux.HandleFunc("DELETE /api/bundles/pricing/{id}", handlers.HandleDeleteBundlePricingRule)
	mux.HandleFunc("GET /api/bundles/{id}", handlers.HandleGetBundle)
	mux.HandleFunc("PUT /api/bundles/{id}", handlers.HandleUpdateBundle)
	mux.HandleFunc("PATCH /api/bundles/{id}/status", handlers.HandleBundleStatus)
	mux.HandleFunc("DELETE /api/bundles/{id}", handlers.HandleDeleteBundle)

	// Offer rules.
	mux.HandleFunc("POST /api/offer-rules", handlers.HandleCreateOfferRule)
	mux.HandleFunc("GET /api/offer-rules", handlers.HandleListOfferRules)
	mux.HandleFunc("GET /api/offer-rules/{id}", handlers.HandleGetOfferRule)
	mux.HandleFunc("PUT /api/offer-rules/{id}", handlers.HandleUpdateOfferRule)
	mux.HandleFunc("PATCH /api/offer-rules/{id}/status", handlers.HandleOfferRuleStatus)
	mux.HandleFunc("DELETE /api/offer-rules/{id}", handlers.HandleDeleteOfferRule)

	// Channel overrides.
	mux.HandleFunc("POST /api/channel-overrides", handlers.HandleCreateChannelOverride)
	mux.HandleFunc("GET /api/channel-overrides", handlers.HandleListChannelOverrides)
	mux.HandleFunc("POST /api/channel-overrides/simulate", handlers.HandleSimulateChannelOverride)
	mux.HandleFunc("GET /api/channel-overrides/{id}", handlers.HandleGetChannelOverride)
	mux.HandleFunc("PUT /api/channel-overrides/{id}", handlers.HandleUpdateChannelOverride)
	mux.HandleFunc("PATCH /api/channel-overrides/{id}/status", handlers.HandleChannelOverrideStatus)
	mux.HandleFunc("DELETE /api/channel-overrides/{id}", handlers.HandleDeleteChannelOverride)

	// Agents.
	mux.HandleFunc("POST /api/agents", handlers.HandleCreateAgent)
	mux.HandleFunc("GET /api/agents", handlers.HandleListAgents)
	mux.HandleFunc("GET /api/agents/{id}", handlers.HandleGetAgent)
	mux.HandleFunc("PUT /api/agents/{id}", handlers.HandleUpdateAgent)
	mux.HandleFunc("PATCH /api/agents/{id}/status", handlers.HandleAgentStatus)
	mux.HandleFunc("DELETE /api/agents/{id}", handlers.HandleDeleteAgent)

	// Cohorts.
	mux.HandleFunc("POST /api/cohorts", handlers.HandleCreateCohort)
	mux.HandleFunc("GET /api/cohorts", handlers.HandleListCohorts)
	mux.HandleFunc("GET /api/cohorts/{id}", handlers.HandleGetCohort)
	mux.HandleFunc("PUT /api/cohorts/{id}", handlers.HandleUpdateCohort)
	mux.HandleFunc("PATCH /api/cohorts/{id}/status", handlers.HandleCohortStatus)
	mux.HandleFunc("DELETE /api/cohorts/{id}", handlers.HandleDeleteCohort)

	// Tiers, evaluation, and assignments.
	mux.HandleFunc("POST /api/tiers", handlers.HandleCreateTier)
	mux.HandleFunc("GET /api/tiers", handlers.HandleListTiers)
	mux.HandleFunc("POST /api/tiers/evaluate", handlers.HandleEvaluateTier)
	mux.HandleFunc("POST /api/tiers/auto-assign", handlers.HandleAutoAssignTiers)
	mux.HandleFunc("POST /api/tiers/assignments", handlers.HandleManualAssignTier)
	mux.HandleFunc("GET /api/tiers/assignments", handlers.HandleListAssignments)
	mux.HandleFunc("GET /api/tiers/{id}", handlers.HandleGetTier)
	mux.HandleFunc("PUT /api/tiers/{id}", handlers.HandleUpdateTier)
	mux.HandleFunc("PATCH /api/tiers/{id}/status", handlers.HandleTierStatus)
	mux.HandleFunc("DELETE /api/tiers/{id}", handlers.HandleDeleteTier)

	// Campaigns, deliveries, and metrics.
	mux.HandleFunc("POST /api/campaigns", handlers.HandleCreateCampaign)
	mux.HandleFunc("GET /api/campaigns", handlers.HandleListCampaigns)
	mux.HandleFunc("GET /api/campaigns/{id}", handlers.HandleGetCampaign)
	mux.HandleFunc("PUT /api/campaigns/{id}", handlers.HandleUpdateCampaign)
	mux.HandleFunc("PATCH /api/campaigns/{id}/status", handlers.HandleCampaignStatus)
	mux.HandleFunc("DELETE /api/campaigns/{id}", handlers.HandleDeleteCampaign)
	mux.HandleFunc("POST /api/campaigns/{id}/deliveries", handlers.HandleCreateDeliveries)
	mux.HandleFunc("GET /api/campaigns/{id}/deliveries", handlers.HandleListDeliveries)
	mux.HandleFunc("POST /api/campaigns/{id}/deliveries/{deliveryId}/sent", handlers.HandleMarkDeliverySent)
	mux.HandleFunc("POST /api/campaigns/{id}/deliveries/{deliveryId}/events", handlers.HandleDeliveryEvent)
	mux.HandleFunc("GET /api/campaigns/{id}/metrics", handlers.HandleCampaignMetrics)
	mux.HandleFunc("POST /api/campaigns/{id}/metrics/rollup", handlers.HandleRollupCampaignMetrics)

	// Audit trail.
	mux.HandleFunc("GET /api/audit-logs", handlers.HandleListAuditLogs)
	mux.HandleFunc("GET /api/audit-logs/export", handlers.HandleExportAuditLogs)
	mux.HandleFunc("POST /api/audit-logs/{id}/rollback", handlers.HandleRollbackAuditLog)

	// Middleware, innermost first.
	var handler http.Handler = mux
	handler = bodyLimitMiddleware(cfg.MaxRequestBodyBytes, handler)
	handler = recoveryMiddleware(handlers.logger, handler)
	handler = actorMiddleware(handler)
	handler = loggingMiddleware(handlers.logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(cfg.AllowedOrigins)(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  logger,
	}
}

// bodyLimitMiddleware caps JSON request bodies. Upload endpoints set their
// own, larger limit.
func bodyLimitMiddleware(limit int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit > 0 && r.Body != nil && !strings.HasSuffix(r.URL.Path, "/upload") {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// Handler exposes the composed handler chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
