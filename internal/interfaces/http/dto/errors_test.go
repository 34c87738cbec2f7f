package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeExternalRejected, http.StatusUnprocessableEntity},
		{ErrCodeExternalTimeout, http.StatusGatewayTimeout},
		{ErrCodeExternalUnavailable, http.StatusBadGateway},
		{ErrCodeSyncInProgress, http.StatusConflict},
		{ErrCodeScanInProgress, http.StatusConflict},
		{ErrCodeImportValidation, http.StatusUnprocessableEntity},
		{ErrCodeManualReconciliation, http.StatusInternalServerError},
		{"ERR_NEVER_HEARD_OF", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, GetHTTPStatus(tt.code), tt.code)
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode("NOT_FOUND"))
	assert.Equal(t, ErrCodeSyncInProgress, NormalizeErrorCode("SYNC_IN_PROGRESS"))
	assert.Equal(t, ErrCodeRetryLimit, NormalizeErrorCode("RETRY_LIMIT_REACHED"))
	// already normalized codes pass through
	assert.Equal(t, ErrCodeConflict, NormalizeErrorCode(ErrCodeConflict))
	// unknown codes pass through untouched
	assert.Equal(t, "SOMETHING_ELSE", NormalizeErrorCode("SOMETHING_ELSE"))
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "operation not found", "req-123")
	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "operation not found", resp.Error.Message)
	assert.Equal(t, "req-123", resp.Error.RequestID)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]int{1, 2, 3}, 45, 2, 20)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}
