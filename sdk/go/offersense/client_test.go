package offersense

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, User: "sdk-test@example.com"})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorContains(t, err, "BaseURL")
}

func TestComposeOffer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/offer/compose", r.URL.Path)
		assert.Equal(t, "sdk-test@example.com", r.Header.Get("x-user"))

		var req ComposeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "JFK", req.Origin)

		_ = json.NewEncoder(w).Encode(map[string]any{"data": OfferTrace{
			TraceID:    "TRC-a1b2c",
			AgentTier:  "GOLD",
			BasePrice:  8500,
			FinalPrice: 8500,
			FareSource: "API",
		}})
	})

	trace, err := client.ComposeOffer(context.Background(), ComposeRequest{
		Origin:      "JFK",
		Destination: "LHR",
		AgentID:     "AGT-001",
	})
	require.NoError(t, err)
	assert.Equal(t, "TRC-a1b2c", trace.TraceID)
	assert.Equal(t, 8500.0, trace.BasePrice)
}

func TestGetTrace_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "NOT_FOUND", "message": "offer trace not found"},
		})
	})

	_, err := client.GetTrace(context.Background(), "TRC-zzzzz")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.ErrorContains(t, err, "offer trace not found")
}

func TestCreateFare_Conflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "CONFLICT", "message": "overlapping ACTIVE fare"},
		})
	})

	_, err := client.CreateFare(context.Background(), NegotiatedFare{FareCode: "NF-001"})
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestListFares_SendsFilters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "EK", q.Get("airline"))
		assert.Equal(t, "ACTIVE", q.Get("status"))
		assert.Equal(t, "25", q.Get("limit"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":   []NegotiatedFare{{FareCode: "NF-001"}, {FareCode: "NF-002"}},
			"total":  42,
			"limit":  25,
			"offset": 0,
		})
	})

	page, err := client.ListFares(context.Background(), FareFilters{
		Airline: "EK",
		Status:  "ACTIVE",
		Limit:   25,
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 42, page.Total)
}

func TestEvaluateTier(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tiers/evaluate", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"currentTier":     "SILVER",
			"recommendedTier": "GOLD",
			"changeRequired":  true,
		}})
	})

	eval, err := client.EvaluateTier(context.Background(), "AGT-001", "QUARTERLY")
	require.NoError(t, err)
	assert.Equal(t, "GOLD", eval.RecommendedTier)
	assert.True(t, eval.ChangeRequired)
}

func TestHandleResponse_UnwrappedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Health responses are enveloped like everything else, but the client
		// tolerates bare bodies too.
		_ = json.NewEncoder(w).Encode(Health{Status: "ok", Version: "dev"})
	})

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}
