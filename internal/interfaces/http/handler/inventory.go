package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appledger "github.com/ledgerlink/backend/internal/application/ledger"
	"github.com/ledgerlink/backend/internal/interfaces/http/dto"
)

// InventoryHandler serves ledger reads and the stock repair endpoint
type InventoryHandler struct {
	BaseHandler
	batchLedger *appledger.BatchLedgerService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(batchLedger *appledger.BatchLedgerService) *InventoryHandler {
	return &InventoryHandler{batchLedger: batchLedger}
}

// RegisterRoutes registers inventory routes
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	inv := rg.Group("/inventory")
	{
		inv.GET("/lots", h.ListLots)
		inv.GET("/lots/:id", h.GetLot)
		inv.POST("/lots/:id/recall", h.RecallLot)
		inv.POST("/lots/flag-expired", h.FlagExpiredLots)
		inv.GET("/stock", h.ListStock)
		inv.POST("/stock/recompute", h.RecomputeStock)
	}
}

// LotListRequest filters the lot listing
type LotListRequest struct {
	dto.ListRequest
	ProductID   string `form:"product_id" binding:"omitempty,uuid"`
	LocationID  string `form:"location_id" binding:"omitempty,uuid"`
	BatchNumber string `form:"batch_number"`
	Status      string `form:"status"`
}

// StockListRequest filters the derived stock listing
type StockListRequest struct {
	dto.ListRequest
	ProductID  string `form:"product_id" binding:"omitempty,uuid"`
	LocationID string `form:"location_id" binding:"omitempty,uuid"`
}

// RecallLotRequest records who pulled the lot and why
type RecallLotRequest struct {
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// FlagExpiredRequest attributes an expiry sweep
type FlagExpiredRequest struct {
	Actor string `json:"actor" binding:"required"`
}

// RecomputeStockRequest names the (product, location) aggregate to rebuild
type RecomputeStockRequest struct {
	ProductID  string `json:"product_id" binding:"required,uuid"`
	LocationID string `json:"location_id" binding:"required,uuid"`
}

// ListLots godoc
//
//	@Summary	List lots with their quantity buckets
//	@Tags		inventory
//	@Produce	json
//	@Param		product_id	query		string	false	"Product ID"
//	@Param		location_id	query		string	false	"Location ID"
//	@Param		batch_number	query	string	false	"Batch number"
//	@Param		status		query		string	false	"Lot status"
//	@Success	200			{object}	dto.Response
//	@Failure	400			{object}	dto.Response
//	@Router		/inventory/lots [get]
func (h *InventoryHandler) ListLots(c *gin.Context) {
	var req LotListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := listFilter(req.ListRequest)
	if req.ProductID != "" {
		filter.Filters["product_id"] = req.ProductID
	}
	if req.LocationID != "" {
		filter.Filters["location_id"] = req.LocationID
	}
	if req.BatchNumber != "" {
		filter.Filters["batch_number"] = req.BatchNumber
	}
	if req.Status != "" {
		filter.Filters["status"] = req.Status
	}

	page, err := h.batchLedger.GetLots(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetLot godoc
//
//	@Summary	Get one lot with its full movement history
//	@Tags		inventory
//	@Produce	json
//	@Param		id	path		string	true	"Lot ID"
//	@Success	200	{object}	dto.Response
//	@Failure	404	{object}	dto.Response
//	@Router		/inventory/lots/{id} [get]
func (h *InventoryHandler) GetLot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "invalid lot id")
		return
	}

	lot, err := h.batchLedger.GetLot(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lot)
}

// ListStock godoc
//
//	@Summary	List derived per-product, per-location stock aggregates
//	@Tags		inventory
//	@Produce	json
//	@Param		product_id	query		string	false	"Product ID"
//	@Param		location_id	query		string	false	"Location ID"
//	@Success	200			{object}	dto.Response
//	@Failure	400			{object}	dto.Response
//	@Router		/inventory/stock [get]
func (h *InventoryHandler) ListStock(c *gin.Context) {
	var req StockListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := listFilter(req.ListRequest)
	if req.ProductID != "" {
		filter.Filters["product_id"] = req.ProductID
	}
	if req.LocationID != "" {
		filter.Filters["location_id"] = req.LocationID
	}

	stocks, err := h.batchLedger.GetLocationStocks(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stocks)
}

// RecomputeStock godoc
//
//	@Summary	Rebuild one derived stock aggregate from its lots
//	@Tags		inventory
//	@Accept		json
//	@Produce	json
//	@Param		request	body		RecomputeStockRequest	true	"Aggregate to rebuild"
//	@Success	200		{object}	dto.Response
//	@Failure	400		{object}	dto.Response
//	@Router		/inventory/stock/recompute [post]
func (h *InventoryHandler) RecomputeStock(c *gin.Context) {
	var req RecomputeStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	stock, err := h.batchLedger.RepairLocationStock(c.Request.Context(),
		uuid.MustParse(req.ProductID), uuid.MustParse(req.LocationID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stock)
}

// RecallLot godoc
//
//	@Summary		Recall a lot
//	@Description	Pulls one lot from circulation; a recalled lot never allocates again
//	@Tags			inventory
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Lot ID"
//	@Param			request	body		RecallLotRequest	true	"Recall attribution"
//	@Success		200		{object}	dto.Response
//	@Failure		400		{object}	dto.Response
//	@Failure		404		{object}	dto.Response
//	@Router			/inventory/lots/{id}/recall [post]
func (h *InventoryHandler) RecallLot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "invalid lot id")
		return
	}

	var req RecallLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lot, err := h.batchLedger.RecallLot(c.Request.Context(), id, req.Actor, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lot)
}

// FlagExpiredLots godoc
//
//	@Summary	Sweep overdue lots into the EXPIRED status
//	@Tags		inventory
//	@Accept		json
//	@Produce	json
//	@Param		request	body		FlagExpiredRequest	true	"Sweep attribution"
//	@Success	200		{object}	dto.Response
//	@Failure	400		{object}	dto.Response
//	@Router		/inventory/lots/flag-expired [post]
func (h *InventoryHandler) FlagExpiredLots(c *gin.Context) {
	var req FlagExpiredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	flagged, err := h.batchLedger.FlagExpiredLots(c.Request.Context(), req.Actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"flagged": flagged})
}
