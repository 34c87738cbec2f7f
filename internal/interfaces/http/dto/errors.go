package dto

import "net/http"

// Error code constants, format ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeValidation   = "ERR_VALIDATION"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
)

// External synchronization error codes. The distinction matters to
// callers: a rejection is final, a timeout or outage is retryable, and
// manual reconciliation means the ERP holds a document this application
// failed to record.
const (
	ErrCodeExternalRejected     = "ERR_EXTERNAL_REJECTED"
	ErrCodeExternalTimeout      = "ERR_EXTERNAL_TIMEOUT"
	ErrCodeExternalUnavailable  = "ERR_EXTERNAL_UNAVAILABLE"
	ErrCodeManualReconciliation = "ERR_MANUAL_RECONCILIATION"
	ErrCodeSyncInProgress       = "ERR_SYNC_IN_PROGRESS"
	ErrCodeAlreadySynced        = "ERR_ALREADY_SYNCED"
	ErrCodeRetryLimit           = "ERR_RETRY_LIMIT"
)

// Reconciliation error codes
const (
	ErrCodeScanInProgress   = "ERR_SCAN_IN_PROGRESS"
	ErrCodeImportValidation = "ERR_IMPORT_VALIDATION"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,

	ErrCodeExternalRejected:     http.StatusUnprocessableEntity,
	ErrCodeExternalTimeout:      http.StatusGatewayTimeout,
	ErrCodeExternalUnavailable:  http.StatusBadGateway,
	ErrCodeManualReconciliation: http.StatusInternalServerError,
	ErrCodeSyncInProgress:       http.StatusConflict,
	ErrCodeAlreadySynced:        http.StatusConflict,
	ErrCodeRetryLimit:           http.StatusConflict,

	ErrCodeScanInProgress:   http.StatusConflict,
	ErrCodeImportValidation: http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code,
// defaulting to 500 for codes it does not know
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the wire format
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"VALIDATION_FAILED":    ErrCodeValidation,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"SYNC_IN_PROGRESS":     ErrCodeSyncInProgress,
	"ALREADY_SYNCED":       ErrCodeAlreadySynced,
	"RETRY_LIMIT_REACHED":  ErrCodeRetryLimit,
	"SCAN_IN_PROGRESS":     ErrCodeScanInProgress,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the wire format.
// Codes already in the wire format or unknown pass through unchanged.
func NormalizeErrorCode(code string) string {
	if wireCode, ok := DomainErrorCodeMapping[code]; ok {
		return wireCode
	}
	return code
}
