package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"discord-fake-service/internal/services"
)

// BrowseHandler serves the read-only aggregates behind the inspection UI.
type BrowseHandler struct {
	tenantService *services.TenantService
	logger        *logrus.Logger
}

// NewBrowseHandler creates a new browse handler
func NewBrowseHandler(tenantService *services.TenantService, logger *logrus.Logger) *BrowseHandler {
	return &BrowseHandler{
		tenantService: tenantService,
		logger:        logger,
	}
}

// ListTenants handles GET /_test/tenants
func (h *BrowseHandler) ListTenants(c *gin.Context) {
	tenants, err := h.tenantService.List(c.Request.Context())
	if err != nil {
		testServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants, "total": len(tenants)})
}

// TenantOverview handles GET /_test/:tenantId/overview
func (h *BrowseHandler) TenantOverview(c *gin.Context) {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		TestError(c, http.StatusNotFound, "Tenant not found")
		return
	}
	overview, err := h.tenantService.Overview(c.Request.Context(), id)
	if err != nil {
		testServiceError(c, err)
		return
	}
	if overview == nil {
		TestError(c, http.StatusNotFound, "Tenant not found")
		return
	}
	c.JSON(http.StatusOK, overview)
}
