package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerlink/backend/internal/application/saga"
	"github.com/ledgerlink/backend/internal/domain/operation"
	"github.com/ledgerlink/backend/internal/interfaces/http/dto"
)

// OperationHandler exposes the dual-write submit and retry protocol
type OperationHandler struct {
	BaseHandler
	coordinator *saga.DualWriteCoordinator
}

// NewOperationHandler creates a new OperationHandler
func NewOperationHandler(coordinator *saga.DualWriteCoordinator) *OperationHandler {
	return &OperationHandler{coordinator: coordinator}
}

// RegisterRoutes registers operation routes
func (h *OperationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	ops := rg.Group("/operations")
	{
		ops.POST("/receipts", h.SubmitReceipt)
		ops.POST("/transfers", h.SubmitTransfer)
		ops.POST("/consumptions", h.SubmitConsumption)
		ops.GET("", h.ListOperations)
		ops.GET("/:kind/:id", h.GetOperation)
		ops.POST("/:kind/:id/retry-sync", h.RetrySync)
		ops.POST("/:kind/:id/clear-retries", h.ClearRetries)
	}
}

// SubmitLineRequest is one movement line of a submitted operation
type SubmitLineRequest struct {
	ProductID   string          `json:"product_id" binding:"required,uuid"`
	BatchNumber string          `json:"batch_number"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	ExpiryDate  *time.Time      `json:"expiry_date"`
}

// SubmitReceiptRequest is the payload for submitting a stock receipt
type SubmitReceiptRequest struct {
	DestinationLocationID string              `json:"destination_location_id" binding:"required,uuid"`
	Lines                 []SubmitLineRequest `json:"lines" binding:"required,min=1,dive"`
	Actor                 string              `json:"actor"`
	Reference             string              `json:"reference"`
}

// SubmitTransferRequest is the payload for submitting a transfer
type SubmitTransferRequest struct {
	SourceLocationID      string              `json:"source_location_id" binding:"required,uuid"`
	DestinationLocationID string              `json:"destination_location_id" binding:"required,uuid"`
	Lines                 []SubmitLineRequest `json:"lines" binding:"required,min=1,dive"`
	Actor                 string              `json:"actor"`
	Reference             string              `json:"reference"`
}

// SubmitConsumptionRequest is the payload for submitting a consumption
type SubmitConsumptionRequest struct {
	SourceLocationID string              `json:"source_location_id" binding:"required,uuid"`
	Lines            []SubmitLineRequest `json:"lines" binding:"required,min=1,dive"`
	Actor            string              `json:"actor"`
	Reference        string              `json:"reference"`
}

// OperationListRequest filters the operation listing
type OperationListRequest struct {
	dto.ListRequest
	Kind      string `form:"kind"`
	SyncState string `form:"sync_state"`
	Actor     string `form:"actor"`
}

func submitLines(reqs []SubmitLineRequest) []saga.SubmitLine {
	lines := make([]saga.SubmitLine, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, saga.SubmitLine{
			ProductID:   uuid.MustParse(r.ProductID),
			BatchNumber: r.BatchNumber,
			Quantity:    r.Quantity,
			ExpiryDate:  r.ExpiryDate,
		})
	}
	return lines
}

// SubmitReceipt godoc
//
//	@Summary		Submit a goods receipt
//	@Description	Posts a goods receipt to the ERP, then books the stock into the batch ledger
//	@Tags			operations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SubmitReceiptRequest	true	"Receipt submission"
//	@Success		201		{object}	dto.Response
//	@Failure		400		{object}	dto.Response
//	@Failure		422		{object}	dto.Response
//	@Failure		502		{object}	dto.Response
//	@Router			/operations/receipts [post]
func (h *OperationHandler) SubmitReceipt(c *gin.Context) {
	var req SubmitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	op, err := h.coordinator.SubmitReceipt(c.Request.Context(), saga.ReceiptInput{
		DestinationLocationID: uuid.MustParse(req.DestinationLocationID),
		Lines:                 submitLines(req.Lines),
		Actor:                 actorFrom(c, req.Actor),
		Reference:             req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, op)
}

// SubmitTransfer godoc
//
//	@Summary		Submit a stock transfer
//	@Description	Posts a stock transfer to the ERP, then books both legs locally
//	@Tags			operations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SubmitTransferRequest	true	"Transfer submission"
//	@Success		201		{object}	dto.Response
//	@Failure		400		{object}	dto.Response
//	@Failure		422		{object}	dto.Response
//	@Failure		502		{object}	dto.Response
//	@Router			/operations/transfers [post]
func (h *OperationHandler) SubmitTransfer(c *gin.Context) {
	var req SubmitTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	op, err := h.coordinator.SubmitTransfer(c.Request.Context(), saga.TransferInput{
		SourceLocationID:      uuid.MustParse(req.SourceLocationID),
		DestinationLocationID: uuid.MustParse(req.DestinationLocationID),
		Lines:                 submitLines(req.Lines),
		Actor:                 actorFrom(c, req.Actor),
		Reference:             req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, op)
}

// SubmitConsumption godoc
//
//	@Summary		Submit a consumption
//	@Description	Posts a delivery to the ERP, then draws the stock locally in FEFO order
//	@Tags			operations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SubmitConsumptionRequest	true	"Consumption submission"
//	@Success		201		{object}	dto.Response
//	@Failure		400		{object}	dto.Response
//	@Failure		422		{object}	dto.Response
//	@Failure		502		{object}	dto.Response
//	@Router			/operations/consumptions [post]
func (h *OperationHandler) SubmitConsumption(c *gin.Context) {
	var req SubmitConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	op, err := h.coordinator.SubmitConsumption(c.Request.Context(), saga.ConsumptionInput{
		SourceLocationID: uuid.MustParse(req.SourceLocationID),
		Lines:            submitLines(req.Lines),
		Actor:            actorFrom(c, req.Actor),
		Reference:        req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, op)
}

// ListOperations godoc
//
//	@Summary	List operations
//	@Tags		operations
//	@Produce	json
//	@Param		kind		query		string	false	"Operation kind"
//	@Param		sync_state	query		string	false	"Sync state"
//	@Param		actor		query		string	false	"Actor"
//	@Param		page		query		int		false	"Page number"
//	@Param		page_size	query		int		false	"Page size"
//	@Success	200			{object}	dto.Response
//	@Failure	400			{object}	dto.Response
//	@Router		/operations [get]
func (h *OperationHandler) ListOperations(c *gin.Context) {
	var req OperationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := listFilter(req.ListRequest)
	if req.Kind != "" {
		kind, err := operation.ParseKind(strings.ToUpper(req.Kind))
		if err != nil {
			h.HandleError(c, err)
			return
		}
		filter.Filters["kind"] = string(kind)
	}
	if req.SyncState != "" {
		filter.Filters["sync_state"] = req.SyncState
	}
	if req.Actor != "" {
		filter.Filters["actor"] = req.Actor
	}

	page, err := h.coordinator.GetOperations(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetOperation godoc
//
//	@Summary	Get an operation
//	@Tags		operations
//	@Produce	json
//	@Param		kind	path		string	true	"Operation kind"
//	@Param		id		path		string	true	"Operation ID"
//	@Success	200		{object}	dto.Response
//	@Failure	404		{object}	dto.Response
//	@Router		/operations/{kind}/{id} [get]
func (h *OperationHandler) GetOperation(c *gin.Context) {
	op, ok := h.operationFromPath(c)
	if !ok {
		return
	}
	h.Success(c, op)
}

// RetrySync godoc
//
//	@Summary		Retry a failed sync
//	@Description	Claims a FAILED or UNSYNCED operation and re-drives the external posting
//	@Tags			operations
//	@Produce		json
//	@Param			kind	path		string	true	"Operation kind"
//	@Param			id		path		string	true	"Operation ID"
//	@Success		200		{object}	dto.Response
//	@Failure		404		{object}	dto.Response
//	@Failure		409		{object}	dto.Response
//	@Router			/operations/{kind}/{id}/retry-sync [post]
func (h *OperationHandler) RetrySync(c *gin.Context) {
	op, ok := h.operationFromPath(c)
	if !ok {
		return
	}

	retried, err := h.coordinator.RetrySync(c.Request.Context(), op.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, retried)
}

// ClearRetries godoc
//
//	@Summary	Reset the retry counter of a failed operation
//	@Tags		operations
//	@Produce	json
//	@Param		kind	path		string	true	"Operation kind"
//	@Param		id		path		string	true	"Operation ID"
//	@Success	200		{object}	dto.Response
//	@Failure	404		{object}	dto.Response
//	@Router		/operations/{kind}/{id}/clear-retries [post]
func (h *OperationHandler) ClearRetries(c *gin.Context) {
	op, ok := h.operationFromPath(c)
	if !ok {
		return
	}

	cleared, err := h.coordinator.ClearRetries(c.Request.Context(), op.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cleared)
}

// operationFromPath resolves :kind/:id and verifies the kind matches; a
// mismatched kind behaves like an unknown operation.
func (h *OperationHandler) operationFromPath(c *gin.Context) (*operation.Operation, bool) {
	kind, err := operation.ParseKind(strings.ToUpper(c.Param("kind")))
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "invalid operation id")
		return nil, false
	}

	op, err := h.coordinator.GetOperation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	if op.Kind != kind {
		h.NotFound(c, "no such operation of that kind")
		return nil, false
	}
	return op, true
}
