// Package errors provides the error vocabulary shared by the HTTP and job
// worker boundaries.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidBudget  ErrorCode = "INVALID_BUDGET"
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	ErrCodeNegotiationExhausted ErrorCode = "NEGOTIATION_EXHAUSTED"
	ErrCodeFPSEstimationFailed  ErrorCode = "FPS_ESTIMATION_FAILED"

	ErrCodeOracleTransportFailed ErrorCode = "ORACLE_TRANSPORT_FAILED"
	ErrCodeOracleTimeout         ErrorCode = "ORACLE_TIMEOUT"

	ErrCodeCatalogUnavailable ErrorCode = "CATALOG_UNAVAILABLE"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidBudgetError creates a non-retryable input error.
func NewInvalidBudgetError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidBudget,
		Message:   "Budget must be between 1 and 1000000000000",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable input error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Request payload is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNegotiationExhaustedError is raised when no acceptable build was found
// within the attempt limit. Re-running the job rarely helps, so it is not retried.
func NewNegotiationExhaustedError(attempts int, lastOutcome string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNegotiationExhausted,
		Message:   "No acceptable build found within the attempt limit",
		Details:   fmt.Sprintf("attempts: %d, lastOutcome: %s", attempts, lastOutcome),
		Retryable: false,
		Metadata: map[string]interface{}{
			"attempts":    attempts,
			"lastOutcome": lastOutcome,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewFPSEstimationFailedError creates a retryable estimation error.
func NewFPSEstimationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFPSEstimationFailed,
		Message:   "FPS estimate could not be produced",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOracleTransportFailedError creates a retryable oracle transport error.
func NewOracleTransportFailedError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOracleTransportFailed,
		Message:   fmt.Sprintf("Oracle provider '%s' request failed", provider),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

// NewOracleTimeoutError creates a retryable oracle timeout error.
func NewOracleTimeoutError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOracleTimeout,
		Message:   fmt.Sprintf("Oracle provider '%s' timeout", provider),
		Details:   "oracle call exceeded the negotiation deadline",
		Retryable: true,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogUnavailableError creates a retryable catalog error.
func NewCatalogUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogUnavailable,
		Message:   "Product catalog is unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// AsStandardError unwraps err to a StandardError if the chain carries one.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidBudget:         "INVALID_BUDGET",
	ErrCodeInvalidRequest:        "INVALID_REQUEST",
	ErrCodeNegotiationExhausted:  "NEGOTIATION_EXHAUSTED",
	ErrCodeFPSEstimationFailed:   "FPS_ESTIMATION_FAILED",
	ErrCodeOracleTransportFailed: "ORACLE_TRANSPORT_FAILED",
	ErrCodeOracleTimeout:         "ORACLE_TIMEOUT",
	ErrCodeCatalogUnavailable:    "CATALOG_UNAVAILABLE",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeOracleTransportFailed,
		ErrCodeCatalogUnavailable:
		return 3

	case ErrCodeOracleTimeout,
		ErrCodeFPSEstimationFailed:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "ORACLE"):
		return "ORACLE"
	case strings.Contains(codeStr, "NEGOTIATION") || strings.Contains(codeStr, "FPS"):
		return "NEGOTIATION"
	case strings.Contains(codeStr, "CATALOG"):
		return "CATALOG"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code to the response status of the HTTP API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidBudget, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeNegotiationExhausted, ErrCodeFPSEstimationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeOracleTransportFailed:
		return http.StatusBadGateway
	case ErrCodeOracleTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeCatalogUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
