package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kitbuilder/backend/internal/domain"
	"github.com/kitbuilder/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	catalog *usecase.CatalogService
	kits    *usecase.KitService
	admin   *usecase.AdminService
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog *usecase.CatalogService,
	kits *usecase.KitService,
	admin *usecase.AdminService,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		catalog: catalog,
		kits:    kits,
		admin:   admin,
		logger:  logger,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "kitbuilder-backend",
		"version": "1.0.0",
	})
}

// ListCategories returns the category table in display order
func (h *Handler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.catalog.Categories()})
}

// ListProducts runs a catalog query built from the URL parameters
func (h *Handler) ListProducts(c *gin.Context) {
	spec, err := parseQuerySpec(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.catalog.Products(c.Request.Context(), spec)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SuggestProducts returns search suggestions for the q parameter
func (h *Handler) SuggestProducts(c *gin.Context) {
	var fields []string
	if raw := strings.TrimSpace(c.Query("fields")); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}
	limit, err := intParam(c, "limit")
	if err != nil {
		h.respondError(c, err)
		return
	}

	suggestions, err := h.catalog.Suggest(c.Request.Context(), c.Query("q"), fields, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// GetProduct returns a single normalized product
func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// parseQuerySpec reads catalog query parameters. Paging and sort values are clamped later.
func parseQuerySpec(c *gin.Context) (domain.QuerySpec, error) {
	spec := domain.QuerySpec{
		SearchText:    c.Query("search"),
		Category:      c.Query("category"),
		Brand:         c.Query("brand"),
		SortKey:       domain.SortKey(c.Query("sort")),
		SortDirection: domain.SortDirection(c.Query("dir")),
	}

	var err error
	bounds := []struct {
		name string
		dst  **float64
	}{
		{"minPrice", &spec.MinPrice},
		{"maxPrice", &spec.MaxPrice},
		{"minRating", &spec.MinRating},
		{"maxRating", &spec.MaxRating},
	}
	for _, b := range bounds {
		if *b.dst, err = floatParam(c, b.name); err != nil {
			return domain.QuerySpec{}, err
		}
	}
	if spec.Page, err = intParam(c, "page"); err != nil {
		return domain.QuerySpec{}, err
	}
	if spec.PageSize, err = intParam(c, "pageSize"); err != nil {
		return domain.QuerySpec{}, err
	}
	return spec, nil
}

func floatParam(c *gin.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, invalidParam(name, raw)
	}
	return &v, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(name, raw)
	}
	return v, nil
}

func invalidParam(name, value string) error {
	return fmt.Errorf("invalid value %q for parameter %s: %w", value, name, domain.ErrInvalidRequest)
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownCollection):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreFailure), errors.Is(err, domain.ErrUnsupportedFragment):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": message}. Internal errors are logged and masked.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}
