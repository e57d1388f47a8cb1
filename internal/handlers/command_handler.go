package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"discord-fake-service/internal/repository"
	"discord-fake-service/internal/services"
)

// CommandHandler serves the bulk command registration endpoint.
type CommandHandler struct {
	tenantRepo     *repository.TenantRepository
	commandService *services.CommandService
	logger         *logrus.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(tenantRepo *repository.TenantRepository, commandService *services.CommandService, logger *logrus.Logger) *CommandHandler {
	return &CommandHandler{
		tenantRepo:     tenantRepo,
		commandService: commandService,
		logger:         logger,
	}
}

// BulkOverwrite handles
// PUT /api/v10/applications/:clientId/guilds/:guildId/commands
func (h *CommandHandler) BulkOverwrite(c *gin.Context) {
	tenant := resolveBotTenant(c, h.tenantRepo)
	if tenant == nil {
		return
	}
	body, ok := readJSONBody(c)
	if !ok {
		return
	}

	var commands []json.RawMessage
	if err := json.Unmarshal(body, &commands); err != nil {
		DiscordError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.commandService.BulkOverwrite(c.Request.Context(), tenant, c.Param("clientId"), c.Param("guildId"), commands)
	if err != nil {
		discordServiceError(c, err)
		return
	}

	result := make([]map[string]interface{}, 0, len(created))
	for _, cmd := range created {
		entry := map[string]interface{}{}
		if err := json.Unmarshal(cmd.Payload, &entry); err != nil {
			entry = map[string]interface{}{}
		}
		entry["id"] = cmd.ID
		entry["application_id"] = tenant.ClientID
		entry["guild_id"] = cmd.GuildID
		result = append(result, entry)
	}
	c.JSON(http.StatusOK, result)
}
