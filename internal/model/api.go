package model

import (
	"regexp"
	"time"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for paginated list endpoints.
type ListResponse struct {
	Data   any          `json:"data"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
	Meta   ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error. Details carries field-level validation
// errors for INVALID_INPUT and the conflicting records for CONFLICT.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// StatusChangeRequest is the body for PATCH /{id}/status endpoints.
type StatusChangeRequest struct {
	Status        Status `json:"status"`
	Justification string `json:"justification,omitempty"`
}

// SimulateRequest is the body for the rule simulate endpoints. BaseFare and
// BaseRate are aliases; whichever is non-zero is used.
type SimulateRequest struct {
	BaseFare float64 `json:"baseFare,omitempty"`
	BaseRate float64 `json:"baseRate,omitempty"`
	Currency string  `json:"currency"`
	RuleID   string  `json:"ruleId"`
}

// Base returns whichever of the two base-value aliases was provided.
func (r SimulateRequest) Base() float64 {
	if r.BaseFare != 0 {
		return r.BaseFare
	}
	return r.BaseRate
}

// SimulateResponse is the result of a non-persisting rule simulation.
type SimulateResponse struct {
	RuleCode       string         `json:"ruleCode"`
	AdjustmentType AdjustmentType `json:"adjustmentType"`
	BaseValue      float64        `json:"baseValue"`
	AdjustedFare   float64        `json:"adjustedFare"`
	Delta          float64        `json:"delta"`
	Currency       string         `json:"currency"`
}

var (
	airportRe  = regexp.MustCompile(`^[A-Z]{3}$`)
	currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
	posRe      = regexp.MustCompile(`^[A-Z]{2}$`)
)

func appendRequired(errs []FieldError, field, value string) []FieldError {
	if value == "" {
		errs = append(errs, FieldError{Field: field, Message: "is required"})
	}
	return errs
}

func appendAirport(errs []FieldError, field, value string) []FieldError {
	if !airportRe.MatchString(value) {
		errs = append(errs, FieldError{Field: field, Message: "must be a 3-letter IATA code"})
	}
	return errs
}

func appendCurrency(errs []FieldError, field, value string) []FieldError {
	if !currencyRe.MatchString(value) {
		errs = append(errs, FieldError{Field: field, Message: "must be a 3-letter ISO currency code"})
	}
	return errs
}

func appendPOS(errs []FieldError, field string, values []string) []FieldError {
	for _, v := range values {
		if !posRe.MatchString(v) {
			errs = append(errs, FieldError{Field: field, Message: "entries must be 2-letter ISO country codes"})
			break
		}
	}
	return errs
}

func appendWindow(errs []FieldError, startField, endField string, start, end time.Time) []FieldError {
	switch {
	case start.IsZero():
		errs = append(errs, FieldError{Field: startField, Message: "is required"})
	case end.IsZero():
		errs = append(errs, FieldError{Field: endField, Message: "is required"})
	case end.Before(start):
		errs = append(errs, FieldError{Field: endField, Message: "must not be before " + startField})
	}
	return errs
}

func appendAdjustment(errs []FieldError, adjType AdjustmentType, value float64, allowFree bool) []FieldError {
	switch adjType {
	case AdjustPercent:
		if value < 0 || value > 100 {
			errs = append(errs, FieldError{Field: "adjustmentValue", Message: "percent must be between 0 and 100"})
		}
	case AdjustAmount:
		if value < 0 {
			errs = append(errs, FieldError{Field: "adjustmentValue", Message: "amount must not be negative"})
		}
	case AdjustFree:
		if !allowFree {
			errs = append(errs, FieldError{Field: "adjustmentType", Message: "FREE is not supported for this rule type"})
		}
	default:
		errs = append(errs, FieldError{Field: "adjustmentType", Message: "must be PERCENT or AMOUNT" + freeSuffix(allowFree)})
	}
	return errs
}

func freeSuffix(allowFree bool) string {
	if allowFree {
		return " or FREE"
	}
	return ""
}
