package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kitbuilder/backend/internal/domain"
)

type writeDocumentRequest struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// ListDocuments returns one page of a managed collection
func (h *Handler) ListDocuments(c *gin.Context) {
	page, err := intParam(c, "page")
	if err != nil {
		h.respondError(c, err)
		return
	}
	pageSize, err := intParam(c, "pageSize")
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.admin.List(c.Request.Context(), c.Param("collection"), page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetDocument returns a raw document
func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.admin.Get(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// CreateDocument creates a document; an empty id is generated
func (h *Handler) CreateDocument(c *gin.Context) {
	var req writeDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}

	doc, err := h.admin.Create(c.Request.Context(), c.Param("collection"), req.ID, req.Fields)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// UpdateDocument merges fields into an existing document
func (h *Handler) UpdateDocument(c *gin.Context) {
	var req writeDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}

	doc, err := h.admin.Update(c.Request.Context(), c.Param("collection"), c.Param("id"), req.Fields)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocument removes a document
func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.admin.Delete(c.Request.Context(), c.Param("collection"), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportDocuments bulk upserts a JSON array of {id, fields} records
func (h *Handler) ImportDocuments(c *gin.Context) {
	var records []domain.Record
	if err := c.ShouldBindJSON(&records); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}

	result, err := h.admin.Import(c.Request.Context(), c.Param("collection"), records)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
