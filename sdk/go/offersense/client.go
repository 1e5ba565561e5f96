package offersense

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the OfferSense server
	// (e.g. "http://localhost:8080").
	BaseURL string

	// User identifies the acting user for audit attribution. Sent as the
	// x-user header; defaults to "system" server-side when empty.
	User string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the OfferSense API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	user    string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("offersense: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		user:    cfg.User,
		client:  httpClient,
	}, nil
}

// ComposeOffer runs the composition pipeline and returns the persisted trace.
func (c *Client) ComposeOffer(ctx context.Context, req ComposeRequest) (*OfferTrace, error) {
	var trace OfferTrace
	if err := c.post(ctx, "/api/offer/compose", req, &trace); err != nil {
		return nil, err
	}
	return &trace, nil
}

// GetTrace retrieves a composition trace by its TRC- identifier.
func (c *Client) GetTrace(ctx context.Context, traceID string) (*OfferTrace, error) {
	var trace OfferTrace
	if err := c.get(ctx, "/api/offer/trace/"+url.PathEscape(traceID), &trace); err != nil {
		return nil, err
	}
	return &trace, nil
}

// CreateFare creates a negotiated fare. A 409 means the fare overlaps an
// ACTIVE fare for the same airline/route/cabin scope; IsConflict reports it.
func (c *Client) CreateFare(ctx context.Context, fare NegotiatedFare) (*NegotiatedFare, error) {
	var created NegotiatedFare
	if err := c.post(ctx, "/api/negofares", fare, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetFare retrieves a negotiated fare by id.
func (c *Client) GetFare(ctx context.Context, id uuid.UUID) (*NegotiatedFare, error) {
	var fare NegotiatedFare
	if err := c.get(ctx, "/api/negofares/"+id.String(), &fare); err != nil {
		return nil, err
	}
	return &fare, nil
}

// ListFares pages through negotiated fares matching the filters.
func (c *Client) ListFares(ctx context.Context, filters FareFilters) (*Page[NegotiatedFare], error) {
	q := url.Values{}
	if filters.Airline != "" {
		q.Set("airline", filters.Airline)
	}
	if filters.Origin != "" {
		q.Set("origin", filters.Origin)
	}
	if filters.Destination != "" {
		q.Set("destination", filters.Destination)
	}
	if filters.CabinClass != "" {
		q.Set("cabinClass", filters.CabinClass)
	}
	if filters.Status != "" {
		q.Set("status", filters.Status)
	}
	if filters.Limit > 0 {
		q.Set("limit", strconv.Itoa(filters.Limit))
	}
	if filters.Offset > 0 {
		q.Set("offset", strconv.Itoa(filters.Offset))
	}
	path := "/api/negofares"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("offersense: create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("offersense: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("offersense: read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	var envelope listEnvelope[NegotiatedFare]
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return nil, fmt.Errorf("offersense: decode list response: %w", err)
	}
	return &Page[NegotiatedFare]{
		Items:  envelope.Data,
		Total:  envelope.Total,
		Limit:  envelope.Limit,
		Offset: envelope.Offset,
	}, nil
}

// DeleteFare removes a negotiated fare.
func (c *Client) DeleteFare(ctx context.Context, id uuid.UUID) error {
	return c.doDelete(ctx, "/api/negofares/"+id.String())
}

// EvaluateTier computes an agent's KPIs and recommended tier.
func (c *Client) EvaluateTier(ctx context.Context, agentCode, window string) (*TierEvaluation, error) {
	body := map[string]string{"agentId": agentCode}
	if window != "" {
		body["window"] = window
	}
	var eval TierEvaluation
	if err := c.post(ctx, "/api/tiers/evaluate", body, &eval); err != nil {
		return nil, err
	}
	return &eval, nil
}

// Health reports server liveness and database reachability.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.get(ctx, "/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) setHeaders(req *http.Request) {
	if c.user != "" {
		req.Header.Set("x-user", c.user)
	}
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("offersense: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("offersense: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("offersense: create request: %w", err)
	}
	c.setHeaders(req)

	return c.doRequest(req, dest)
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("offersense: create request: %w", err)
	}
	c.setHeaders(req)

	return c.doRequest(req, nil)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("offersense: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("offersense: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	// Nothing to decode on 204 No Content.
	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("offersense: decode response envelope: %w", err)
	}
	if envelope.Data == nil {
		return json.Unmarshal(bodyBytes, dest)
	}
	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}
	return apiErr
}
