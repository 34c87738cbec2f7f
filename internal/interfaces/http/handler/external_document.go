package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appreconcile "github.com/ledgerlink/backend/internal/application/reconcile"
	"github.com/ledgerlink/backend/internal/domain/reconcile"
	"github.com/ledgerlink/backend/internal/interfaces/http/dto"
)

// ExternalDocumentHandler serves the review queue of ERP documents that
// reconciliation scans discovered
type ExternalDocumentHandler struct {
	BaseHandler
	importer *appreconcile.ImportService
}

// NewExternalDocumentHandler creates a new ExternalDocumentHandler
func NewExternalDocumentHandler(importer *appreconcile.ImportService) *ExternalDocumentHandler {
	return &ExternalDocumentHandler{importer: importer}
}

// RegisterRoutes registers external document routes
func (h *ExternalDocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/external-documents")
	{
		docs.GET("", h.ListDocuments)
		docs.GET("/pending-count", h.PendingCount)
		docs.GET("/:id", h.GetDocument)
		docs.GET("/:id/validation", h.ValidateDocument)
		docs.POST("/:id/acknowledge", h.AcknowledgeDocument)
		docs.POST("/:id/ignore", h.IgnoreDocument)
		docs.POST("/:id/import", h.ImportDocument)
	}
}

// DocumentListRequest filters the document listing
type DocumentListRequest struct {
	dto.ListRequest
	DocType string `form:"doc_type"`
	Status  string `form:"status"`
}

// ReviewRequest carries the reviewer and an optional note
type ReviewRequest struct {
	Actor string `json:"actor"`
	Note  string `json:"note"`
}

// ListDocuments godoc
//
//	@Summary	List discovered external documents
//	@Tags		external-documents
//	@Produce	json
//	@Param		doc_type	query		string	false	"Document type"
//	@Param		status		query		string	false	"Review status"
//	@Success	200			{object}	dto.Response
//	@Failure	400			{object}	dto.Response
//	@Router		/external-documents [get]
func (h *ExternalDocumentHandler) ListDocuments(c *gin.Context) {
	var req DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := reconcile.DocumentFilter{Filter: listFilter(req.ListRequest)}
	if req.DocType != "" {
		docType, err := reconcile.ParseDocType(strings.ToUpper(req.DocType))
		if err != nil {
			h.HandleError(c, err)
			return
		}
		filter.DocType = &docType
	}
	if req.Status != "" {
		status := reconcile.DocStatus(strings.ToUpper(req.Status))
		filter.Status = &status
	}

	page, err := h.importer.GetDocuments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// PendingCount godoc
//
//	@Summary	Report document counts per review status
//	@Tags		external-documents
//	@Produce	json
//	@Success	200	{object}	dto.Response
//	@Router		/external-documents/pending-count [get]
func (h *ExternalDocumentHandler) PendingCount(c *gin.Context) {
	counts, err := h.importer.PendingCount(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, counts)
}

// GetDocument godoc
//
//	@Summary	Get one discovered document with its lines
//	@Tags		external-documents
//	@Produce	json
//	@Param		id	path		string	true	"Document ID"
//	@Success	200	{object}	dto.Response
//	@Failure	404	{object}	dto.Response
//	@Router		/external-documents/{id} [get]
func (h *ExternalDocumentHandler) GetDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "invalid document id")
		return
	}

	doc, err := h.importer.GetDocument(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// ValidateDocument godoc
//
//	@Summary	Dry-run the import and return the per-line outcome
//	@Tags		external-documents
//	@Produce	json
//	@Param		id	path		string	true	"Document ID"
//	@Success	200	{object}	dto.Response
//	@Failure	404	{object}	dto.Response
//	@Router		/external-documents/{id}/validation [get]
func (h *ExternalDocumentHandler) ValidateDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "invalid document id")
		return
	}

	result, err := h.importer.Validate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// AcknowledgeDocument godoc
//
//	@Summary	Mark a document as reviewed without importing it
//	@Tags		external-documents
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"Document ID"
//	@Param		request	body		ReviewRequest	false	"Reviewer attribution"
//	@Success	200		{object}	dto.Response
//	@Failure	409		{object}	dto.Response
//	@Router		/external-documents/{id}/acknowledge [post]
func (h *ExternalDocumentHandler) AcknowledgeDocument(c *gin.Context) {
	h.reviewTransition(c, h.importer.Acknowledge)
}

// IgnoreDocument godoc
//
//	@Summary	Mark a document as deliberately not imported
//	@Tags		external-documents
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"Document ID"
//	@Param		request	body		ReviewRequest	false	"Reviewer attribution"
//	@Success	200		{object}	dto.Response
//	@Failure	409		{object}	dto.Response
//	@Router		/external-documents/{id}/ignore [post]
func (h *ExternalDocumentHandler) IgnoreDocument(c *gin.Context) {
	h.reviewTransition(c, h.importer.Ignore)
}

// ImportDocument godoc
//
//	@Summary		Import an external document
//	@Description	Replays the document into the local ledger. A blocked validation answers 422 with the itemized result.
//	@Tags			external-documents
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Document ID"
//	@Param			request	body		ReviewRequest	false	"Reviewer attribution"
//	@Success		201		{object}	dto.Response
//	@Failure		409		{object}	dto.Response
//	@Failure		422		{object}	dto.Response
//	@Router			/external-documents/{id}/import [post]
func (h *ExternalDocumentHandler) ImportDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "invalid document id")
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, err.Error())
		return
	}

	op, err := h.importer.Import(c.Request.Context(), id, actorFrom(c, req.Actor))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, op)
}

func (h *ExternalDocumentHandler) reviewTransition(
	c *gin.Context,
	transition func(ctx context.Context, id uuid.UUID, reviewer, note string) (*reconcile.ExternalDocument, error),
) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "invalid document id")
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, err.Error())
		return
	}

	doc, err := transition(c.Request.Context(), id, actorFrom(c, req.Actor), req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}
