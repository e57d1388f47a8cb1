package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"discord-fake-service/internal/repository"
	"discord-fake-service/internal/services"
)

// ChannelHandler serves the bot-authenticated channel and message
// endpoints.
type ChannelHandler struct {
	tenantRepo     *repository.TenantRepository
	messageService *services.MessageService
	logger         *logrus.Logger
}

// NewChannelHandler creates a new channel handler
func NewChannelHandler(tenantRepo *repository.TenantRepository, messageService *services.MessageService, logger *logrus.Logger) *ChannelHandler {
	return &ChannelHandler{
		tenantRepo:     tenantRepo,
		messageService: messageService,
		logger:         logger,
	}
}

// GetChannel handles GET /api/v10/channels/:channelId
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	tenant := resolveBotTenant(c, h.tenantRepo)
	if tenant == nil {
		return
	}

	channel, err := h.messageService.GetChannel(c.Request.Context(), tenant.ID, c.Param("channelId"))
	if err != nil {
		discordServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       channel.ID,
		"guild_id": channel.GuildID,
		"name":     channel.Name,
		"type":     0,
	})
}

// SendMessage handles POST /api/v10/channels/:channelId/messages. The
// whole request body becomes the stored payload.
func (h *ChannelHandler) SendMessage(c *gin.Context) {
	tenant := resolveBotTenant(c, h.tenantRepo)
	if tenant == nil {
		return
	}
	body, ok := readJSONBody(c)
	if !ok {
		return
	}

	message, err := h.messageService.SendMessage(c.Request.Context(), tenant.ID, c.Param("channelId"), body)
	if err != nil {
		discordServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         message.ID,
		"channel_id": message.ChannelID,
		"content":    services.ContentOf(body),
	})
}

// EditMessage handles PATCH /api/v10/channels/:channelId/messages/:messageId
func (h *ChannelHandler) EditMessage(c *gin.Context) {
	tenant := resolveBotTenant(c, h.tenantRepo)
	if tenant == nil {
		return
	}
	body, ok := readJSONBody(c)
	if !ok {
		return
	}

	messageID := c.Param("messageId")
	if err := h.messageService.EditMessage(c.Request.Context(), tenant.ID, messageID, body); err != nil {
		discordServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      messageID,
		"content": services.ContentOf(body),
	})
}

// AddReaction handles
// PUT /api/v10/channels/:channelId/messages/:messageId/reactions/:emoji/@me
func (h *ChannelHandler) AddReaction(c *gin.Context) {
	tenant := resolveBotTenant(c, h.tenantRepo)
	if tenant == nil {
		return
	}

	emoji, err := url.PathUnescape(c.Param("emoji"))
	if err != nil {
		DiscordError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	err = h.messageService.AddReaction(c.Request.Context(), tenant.ID, c.Param("channelId"), c.Param("messageId"), emoji)
	if err != nil {
		discordServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
