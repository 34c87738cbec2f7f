package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	appreconcile "github.com/ledgerlink/backend/internal/application/reconcile"
	"github.com/ledgerlink/backend/internal/domain/reconcile"
	"github.com/ledgerlink/backend/internal/interfaces/http/dto"
)

// ReconciliationHandler triggers scans and serves the run history
type ReconciliationHandler struct {
	BaseHandler
	scanner *appreconcile.Scanner
	runs    reconcile.RunRepository
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(scanner *appreconcile.Scanner, runs reconcile.RunRepository) *ReconciliationHandler {
	return &ReconciliationHandler{scanner: scanner, runs: runs}
}

// RegisterRoutes registers reconciliation routes
func (h *ReconciliationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rec := rg.Group("/reconciliation")
	{
		rec.POST("/runs", h.TriggerScan)
		rec.GET("/runs", h.ListRuns)
		rec.GET("/runs/:id", h.GetRun)
	}
}

// TriggerScanRequest optionally overrides the discovery window
type TriggerScanRequest struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

// RunListRequest filters the run history
type RunListRequest struct {
	dto.ListRequest
	Status string `form:"status"`
}

// TriggerScan godoc
//
//	@Summary		Start a reconciliation scan
//	@Description	Scans the ERP for inventory documents with no local counterpart. Refused with a conflict while another scan is running.
//	@Tags			reconciliation
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TriggerScanRequest	false	"Window override"
//	@Success		201		{object}	dto.Response
//	@Failure		409		{object}	dto.Response
//	@Failure		502		{object}	dto.Response
//	@Router			/reconciliation/runs [post]
func (h *ReconciliationHandler) TriggerScan(c *gin.Context) {
	var req TriggerScanRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, err.Error())
		return
	}

	run, err := h.scanner.Scan(c.Request.Context(), appreconcile.ScanOptions{From: req.From, To: req.To})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, run)
}

// ListRuns godoc
//
//	@Summary	List scan runs, newest first
//	@Tags		reconciliation
//	@Produce	json
//	@Param		status	query		string	false	"Run status"
//	@Success	200		{object}	dto.Response
//	@Failure	400		{object}	dto.Response
//	@Router		/reconciliation/runs [get]
func (h *ReconciliationHandler) ListRuns(c *gin.Context) {
	var req RunListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := listFilter(req.ListRequest)
	if req.Status != "" {
		filter.Filters["status"] = req.Status
	}

	page, err := h.runs.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetRun godoc
//
//	@Summary	Get one scan with its counts and per-document errors
//	@Tags		reconciliation
//	@Produce	json
//	@Param		id	path		string	true	"Run ID"
//	@Success	200	{object}	dto.Response
//	@Failure	404	{object}	dto.Response
//	@Router		/reconciliation/runs/{id} [get]
func (h *ReconciliationHandler) GetRun(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "invalid run id")
		return
	}

	run, err := h.runs.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, run)
}
