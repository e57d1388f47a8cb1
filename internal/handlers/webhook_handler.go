package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"discord-fake-service/internal/middleware"
	"discord-fake-service/internal/models"
	"discord-fake-service/internal/repository"
	"discord-fake-service/internal/services"
)

// WebhookHandler serves the interaction webhook endpoints. These carry no
// Authorization header; the clientId path segment resolves the tenant.
type WebhookHandler struct {
	tenantRepo         *repository.TenantRepository
	interactionService *services.InteractionService
	logger             *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(tenantRepo *repository.TenantRepository, interactionService *services.InteractionService, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		tenantRepo:         tenantRepo,
		interactionService: interactionService,
		logger:             logger,
	}
}

func (h *WebhookHandler) resolveApplication(c *gin.Context) *models.Tenant {
	tenant, err := h.tenantRepo.GetByClientID(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		discordServiceError(c, err)
		return nil
	}
	if tenant == nil {
		DiscordError(c, http.StatusNotFound, "Unknown Application")
		return nil
	}
	middleware.SetTenantID(c, tenant.ID)
	return tenant
}

// EditOriginal handles
// PATCH /api/v10/webhooks/:clientId/:token/messages/@original
func (h *WebhookHandler) EditOriginal(c *gin.Context) {
	tenant := h.resolveApplication(c)
	if tenant == nil {
		return
	}
	body, ok := readJSONBody(c)
	if !ok {
		return
	}

	response, err := h.interactionService.EditResponse(c.Request.Context(), tenant.ID, c.Param("token"), body)
	if err != nil {
		discordServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      response.ResponseID,
		"content": services.ContentOf(body),
	})
}

// SendFollowup handles POST /api/v10/webhooks/:clientId/:token
func (h *WebhookHandler) SendFollowup(c *gin.Context) {
	tenant := h.resolveApplication(c)
	if tenant == nil {
		return
	}
	body, ok := readJSONBody(c)
	if !ok {
		return
	}

	followup, err := h.interactionService.SendFollowup(c.Request.Context(), tenant.ID, c.Param("token"), body)
	if err != nil {
		discordServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         followup.ID,
		"channel_id": "chan-followup",
		"content":    services.ContentOf(body),
	})
}
