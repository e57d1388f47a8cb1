package handlers

import (
	"github.com/gin-gonic/gin"

	"discord-fake-service/internal/middleware"
	"discord-fake-service/internal/models"
	"discord-fake-service/internal/repository"
)

// resolveBotTenant maps the Authorization: Bot header to a tenant and
// records it on the request context. Writes 401 and returns nil on any
// failure.
func resolveBotTenant(c *gin.Context, tenantRepo *repository.TenantRepository) *models.Tenant {
	token := authToken(c, "Bot")
	if token == "" {
		unauthorized(c)
		return nil
	}
	tenant, err := tenantRepo.GetByBotToken(c.Request.Context(), token)
	if err != nil {
		discordServiceError(c, err)
		return nil
	}
	if tenant == nil {
		unauthorized(c)
		return nil
	}
	middleware.SetTenantID(c, tenant.ID)
	return tenant
}
