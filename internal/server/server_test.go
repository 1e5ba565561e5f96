package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer wires the full route table and middleware chain with no
// database. Only endpoints that fail validation before touching storage are
// exercised here; storage-backed paths live in the integration tests.
func testServer(t *testing.T) http.Handler {
	t.Helper()
	handlers := NewHandlers(HandlersDeps{
		Logger:         discardLogger(),
		MaxUploadBytes: 1 << 20,
		Version:        "test",
	})
	srv := New(Config{
		Port:                8080,
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        5 * time.Second,
		AllowedOrigins:      []string{"*"},
		MaxRequestBodyBytes: 1 << 20,
	}, handlers, discardLogger())
	return srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUnknownRoute(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestComposeOffer_RejectsInvalidBody(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPost, "/api/offer/compose", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestComposeOffer_RequiresRoute(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPost, "/api/offer/compose",
		`{"origin":"JFK"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "destination")
	assert.Contains(t, body, "agentId")
}

func TestCreateFare_RejectsUnknownFields(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPost, "/api/negofares",
		`{"bogusField":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFareStatus_RejectsBadID(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPatch, "/api/negofares/not-a-uuid/status",
		`{"status":"INACTIVE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "UUID")
}

func TestDiscountRuleStatus_RejectsUnknownStatus(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPatch,
		"/api/dynamic-discount-rules/5bd9ad17-35b1-4f5a-a6e7-74b63c3f8b60/status",
		`{"status":"ARCHIVED"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "status")
}

func TestChannelOverrideStatus_RouteRegistered(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPatch,
		"/api/channel-overrides/5bd9ad17-35b1-4f5a-a6e7-74b63c3f8b60/status",
		`{"status":"ARCHIVED"}`)
	// 400 from status validation, not 404 or 405 from a missing route.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "status")
}

func TestSimulateDiscountRule_RequiresBase(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPost, "/api/dynamic-discount-rules/simulate",
		`{"currency":"USD","ruleId":"5bd9ad17-35b1-4f5a-a6e7-74b63c3f8b60"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateTier_RequiresAgent(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPost, "/api/tiers/evaluate",
		`{"window":"QUARTERLY"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentId")
}

func TestEvaluateTier_RejectsUnknownWindow(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPost, "/api/tiers/evaluate",
		`{"agentId":"AGT-001","window":"WEEKLY"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "window")
}

func TestManualAssign_RequiresJustification(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPost, "/api/tiers/assignments",
		`{"agentId":"AGT-001","tierCode":"GOLD"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "justification")
}

func TestRollback_RequiresJustification(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPost,
		"/api/audit-logs/5bd9ad17-35b1-4f5a-a6e7-74b63c3f8b60/rollback", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "justification")
}

func TestUploadFares_RequiresFilePart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/negofares/upload",
		strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	rec := httptest.NewRecorder()
	testServer(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeliveryEvent_RejectsUnknownEvent(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodPost,
		"/api/campaigns/5bd9ad17-35b1-4f5a-a6e7-74b63c3f8b60/deliveries/9c7a4f7e-54f3-4dc1-a158-28f188030cd9/events",
		`{"event":"BOUNCED"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "event")
}

func TestAuditLogs_RejectsBadTimestamp(t *testing.T) {
	rec := doJSON(t, testServer(t), http.MethodGet, "/api/audit-logs?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "RFC 3339")
}

func TestResponseCarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/offer/compose", strings.NewReader("{"))
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	testServer(t).ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), "req-42")
}
