package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"discord-fake-service/internal/middleware"
	"discord-fake-service/internal/models"
	"discord-fake-service/internal/repository"
	"discord-fake-service/internal/services"
)

// SweepRunner triggers one expiry sweep pass on demand.
type SweepRunner interface {
	RunOnce(ctx context.Context) (*services.SweepResult, error)
}

// TestControlHandler serves the /_test surface: tenant lifecycle, state
// inspection, auth-code pre-issue and signed interaction delivery.
type TestControlHandler struct {
	tenantService      *services.TenantService
	oauthService       *services.OAuthService
	messageService     *services.MessageService
	interactionService *services.InteractionService
	commandService     *services.CommandService
	auditRepo          *repository.AuditRepository
	sweeper            SweepRunner
	logger             *logrus.Logger
}

// NewTestControlHandler creates a new test-control handler
func NewTestControlHandler(
	tenantService *services.TenantService,
	oauthService *services.OAuthService,
	messageService *services.MessageService,
	interactionService *services.InteractionService,
	commandService *services.CommandService,
	auditRepo *repository.AuditRepository,
	sweeper SweepRunner,
	logger *logrus.Logger,
) *TestControlHandler {
	return &TestControlHandler{
		tenantService:      tenantService,
		oauthService:       oauthService,
		messageService:     messageService,
		interactionService: interactionService,
		commandService:     commandService,
		auditRepo:          auditRepo,
		sweeper:            sweeper,
		logger:             logger,
	}
}

// requireTenant resolves the :tenantId path parameter. Writes 404 and
// returns nil on a malformed id or an unknown tenant.
func (h *TestControlHandler) requireTenant(c *gin.Context) *models.Tenant {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		TestError(c, http.StatusNotFound, "Tenant not found")
		return nil
	}
	tenant, err := h.tenantService.Get(c.Request.Context(), id)
	if err != nil {
		testServiceError(c, err)
		return nil
	}
	if tenant == nil {
		TestError(c, http.StatusNotFound, "Tenant not found")
		return nil
	}
	middleware.SetTenantID(c, tenant.ID)
	return tenant
}

// CreateTenant handles POST /_test/tenants
func (h *TestControlHandler) CreateTenant(c *gin.Context) {
	if !hasJSONContentType(c) {
		DiscordError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	var req services.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		DiscordError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	tenant, err := h.tenantService.Create(c.Request.Context(), &req)
	if err != nil {
		testServiceError(c, err)
		return
	}

	middleware.SetTenantID(c, tenant.ID)
	c.JSON(http.StatusCreated, tenant)
}

// DeleteTenant handles DELETE /_test/tenants/:tenantId
func (h *TestControlHandler) DeleteTenant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		TestError(c, http.StatusNotFound, "Tenant not found")
		return
	}
	middleware.SetTenantID(c, id)
	if err := h.tenantService.Delete(c.Request.Context(), id); err != nil {
		testServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetTenant handles POST /_test/:tenantId/reset. Idempotent.
func (h *TestControlHandler) ResetTenant(c *gin.Context) {
	tenant := h.requireTenant(c)
	if tenant == nil {
		return
	}
	if err := h.tenantService.Reset(c.Request.Context(), tenant.ID); err != nil {
		testServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMessages handles GET /_test/:tenantId/messages/:channelId
func (h *TestControlHandler) GetMessages(c *gin.Context) {
	tenant := h.requireTenant(c)
	if tenant == nil {
		return
	}
	messages, err := h.messageService.ListMessages(c.Request.Context(), tenant.ID, c.Param("channelId"))
	if err != nil {
		testServiceError(c, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	for i := range messages {
		if messages[i].EditHistory == nil {
			messages[i].EditHistory = []models.MessageEdit{}
		}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "total": len(messages)})
}

// GetReactions handles GET /_test/:tenantId/reactions
func (h *TestControlHandler) GetReactions(c *gin.Context) {
	tenant := h.requireTenant(c)
	if tenant == nil {
		return
	}
	reactions, err := h.messageService.ListReactions(c.Request.Context(), tenant.ID)
	if err != nil {
		testServiceError(c, err)
		return
	}
	if reactions == nil {
		reactions = []models.Reaction{}
	}
	c.JSON(http.StatusOK, gin.H{"reactions": reactions, "total": len(reactions)})
}

// GetInteractionResponse handles GET /_test/:tenantId/interaction-responses/:token
func (h *TestControlHandler) GetInteractionResponse(c *gin.Context) {
	tenant := h.requireTenant(c)
	if tenant == nil {
		return
	}
	response, err := h.interactionService.GetResponse(c.Request.Context(), tenant.ID, c.Param("token"))
	if err != nil {
		testServiceError(c, err)
		return
	}
	responses := []models.InteractionResponse{}
	if response != nil {
		responses = append(responses, *response)
	}
	c.JSON(http.StatusOK, gin.H{"responses": responses, "total": len(responses)})
}

// GetFollowups handles GET /_test/:tenantId/followups/:token
func (h *TestControlHandler) GetFollowups(c *gin.Context) {
	tenant := h.requireTenant(c)
	if tenant == nil {
		return
	}
	followups, err := h.interactionService.ListFollowups(c.Request.Context(), tenant.ID, c.Param("token"))
	if err != nil {
		testServiceError(c, err)
		return
	}
	if followups == nil {
		followups = []models.Followup{}
	}
	c.JSON(http.StatusOK, gin.H{"followups": followups, "total": len(followups)})
}

// GetCommands handles GET /_test/:tenantId/commands/:guildId
func (h *TestControlHandler) GetCommands(c *gin.Context) {
	tenant := h.requireTenant(c)
	if tenant == nil {
		return
	}
	commands, err := h.commandService.List(c.Request.Context(), tenant.ID, c.Param("guildId"))
	if err != nil {
		testServiceError(c, err)
		return
	}
	if commands == nil {
		commands = []models.RegisteredCommand{}
	}
	c.JSON(http.StatusOK, gin.H{"commands": commands, "total": len(commands)})
}

// GetAuditLogs handles GET /_test/:tenantId/audit-logs?limit&offset. The
// audit middleware never records these requests.
func (h *TestControlHandler) GetAuditLogs(c *gin.Context) {
	tenant := h.requireTenant(c)
	if tenant == nil {
		return
	}

	limit := parseIntQuery(c, "limit", 100)
	if limit > 1000 {
		limit = 1000
	}
	if limit < 1 {
		limit = 100
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, total, err := h.auditRepo.ListByTenant(c.Request.Context(), tenant.ID, limit, offset)
	if err != nil {
		testServiceError(c, err)
		return
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{
		"auditLogs": entries,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// CreateAuthCode handles POST /_test/:tenantId/auth-code, pre-issuing a
// code for scripted OAuth flows.
func (h *TestControlHandler) CreateAuthCode(c *gin.Context) {
	tenant := h.requireTenant(c)
	if tenant == nil {
		return
	}

	var req struct {
		GuildID     string `json:"guildId"`
		RedirectURI string `json:"redirectUri"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		DiscordError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.GuildID == "" {
		TestError(c, http.StatusBadRequest, "Missing required field: guildId")
		return
	}
	if req.RedirectURI == "" {
		TestError(c, http.StatusBadRequest, "Missing required field: redirectUri")
		return
	}

	code, err := h.oauthService.CreateAuthCode(c.Request.Context(), tenant.ID, req.GuildID, req.RedirectURI)
	if err != nil {
		testServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, code)
}

// SendInteraction handles POST /_test/:tenantId/interactions, signing and
// delivering an interaction to the system under test.
func (h *TestControlHandler) SendInteraction(c *gin.Context) {
	tenant := h.requireTenant(c)
	if tenant == nil {
		return
	}

	var req struct {
		WebhookURL  string          `json:"webhookUrl"`
		Interaction json.RawMessage `json:"interaction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		DiscordError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.WebhookURL == "" {
		TestError(c, http.StatusBadRequest, "Missing required field: webhookUrl")
		return
	}
	if len(req.Interaction) == 0 {
		TestError(c, http.StatusBadRequest, "Missing required field: interaction")
		return
	}

	result, err := h.interactionService.DeliverSigned(c.Request.Context(), tenant, req.WebhookURL, req.Interaction)
	if err != nil {
		testServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunCleanup handles POST /_test/jobs/cleanup-old-tenants
func (h *TestControlHandler) RunCleanup(c *gin.Context) {
	result, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		testServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
