package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appreconcile "github.com/ledgerlink/backend/internal/application/reconcile"
	"github.com/ledgerlink/backend/internal/application/saga"
	"github.com/ledgerlink/backend/internal/domain/ledger"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/erp"
	"github.com/ledgerlink/backend/internal/interfaces/http/dto"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID set by the RequestID middleware
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with an explicit status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps application errors onto the wire taxonomy. Typed errors
// from the saga, the ledger and the importer are checked first, then ERP
// sentinels, then generic domain errors.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	var manual *saga.ManualReconciliationError
	if errors.As(err, &manual) {
		c.JSON(dto.GetHTTPStatus(dto.ErrCodeManualReconciliation), dto.NewErrorResponseWithDetails(
			dto.ErrCodeManualReconciliation, manual.Error(), requestID,
			gin.H{"external_id": manual.ExternalID, "external_number": manual.ExternalNumber},
		))
		return
	}

	var shortfall *ledger.ShortfallError
	if errors.As(err, &shortfall) {
		c.JSON(dto.GetHTTPStatus(dto.ErrCodeInsufficientStock), dto.NewErrorResponseWithDetails(
			dto.ErrCodeInsufficientStock, shortfall.Error(), requestID,
			shortfallDetails(shortfall),
		))
		return
	}

	var blocked *appreconcile.ImportBlockedError
	if errors.As(err, &blocked) {
		c.JSON(dto.GetHTTPStatus(dto.ErrCodeImportValidation), dto.NewErrorResponseWithDetails(
			dto.ErrCodeImportValidation, blocked.Error(), requestID,
			blocked.Result,
		))
		return
	}

	if code, ok := erpErrorCode(err); ok {
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, err.Error(), requestID))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal, "An unexpected error occurred", requestID))
}

func erpErrorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, erp.ErrRejected):
		return dto.ErrCodeExternalRejected, true
	case errors.Is(err, erp.ErrTimeout):
		return dto.ErrCodeExternalTimeout, true
	case errors.Is(err, erp.ErrUnavailable), errors.Is(err, erp.ErrAuthFailed), errors.Is(err, erp.ErrInvalidResponse):
		return dto.ErrCodeExternalUnavailable, true
	}
	return "", false
}

func shortfallDetails(e *ledger.ShortfallError) gin.H {
	lots := make([]gin.H, 0, len(e.Lots))
	for _, l := range e.Lots {
		lots = append(lots, gin.H{
			"lot_id":       l.LotID,
			"batch_number": l.BatchNumber,
			"available":    l.Available,
		})
	}
	return gin.H{
		"product_id":  e.ProductID,
		"location_id": e.LocationID,
		"requested":   e.Requested,
		"available":   e.Available,
		"lots":        lots,
	}
}
