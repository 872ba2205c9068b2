package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kitbuilder/backend/internal/domain"
)

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// GetKit returns the kit summary for a session. Unknown sessions yield an empty kit.
func (h *Handler) GetKit(c *gin.Context) {
	summary, err := h.kits.Get(c.Request.Context(), c.Param("session"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// AddKitItem adds a product to the kit, replacing any existing entry
func (h *Handler) AddKitItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}

	summary, err := h.kits.AddItem(c.Request.Context(), c.Param("session"), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SetKitItemQuantity sets the quantity of a product. Zero or less removes it.
func (h *Handler) SetKitItemQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}
	if req.Quantity == nil {
		h.respondError(c, invalidParam("quantity", ""))
		return
	}

	summary, err := h.kits.SetQuantity(c.Request.Context(), c.Param("session"), c.Param("productId"), *req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RemoveKitItem removes a product from the kit; absent products are a no-op
func (h *Handler) RemoveKitItem(c *gin.Context) {
	summary, err := h.kits.RemoveItem(c.Request.Context(), c.Param("session"), c.Param("productId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ResetKit empties the kit
func (h *Handler) ResetKit(c *gin.Context) {
	if err := h.kits.Reset(c.Request.Context(), c.Param("session")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func invalidBody(err error) error {
	return fmt.Errorf("invalid request body: %v: %w", err, domain.ErrInvalidRequest)
}
