package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"discord-fake-service/internal/middleware"
	"discord-fake-service/internal/services"
)

// OAuthHandler serves the impersonated OAuth flow: authorize, token
// exchange, and the synthetic /users/@me.
type OAuthHandler struct {
	oauthService *services.OAuthService
	logger       *logrus.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(oauthService *services.OAuthService, logger *logrus.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauthService: oauthService,
		logger:       logger,
	}
}

// Authorize handles GET /oauth2/authorize. Unlike real Discord there is no
// consent page: an unknown client_id fails immediately with 400.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	clientID := c.Query("client_id")
	redirectURI := c.Query("redirect_uri")
	state := c.Query("state")

	tenant, location, err := h.oauthService.Authorize(c.Request.Context(), clientID, redirectURI, state)
	if err != nil {
		var validation *services.ValidationError
		if errors.As(err, &validation) {
			DiscordError(c, http.StatusBadRequest, validation.Error())
			return
		}
		discordServiceError(c, err)
		return
	}

	middleware.SetTenantID(c, tenant.ID)
	c.Redirect(http.StatusFound, location)
}

// Token handles POST /api/v10/oauth2/token, the form-encoded code
// exchange.
func (h *OAuthHandler) Token(c *gin.Context) {
	if !strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded") {
		DiscordError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	clientID := c.PostForm("client_id")
	clientSecret := c.PostForm("client_secret")
	code := c.PostForm("code")
	redirectURI := c.PostForm("redirect_uri")

	tenant, token, err := h.oauthService.Exchange(c.Request.Context(), clientID, clientSecret, code, redirectURI)
	if tenant != nil {
		middleware.SetTenantID(c, tenant.ID)
	}
	if err != nil {
		var oauthErr *services.OAuthError
		if errors.As(err, &oauthErr) {
			body := gin.H{"error": oauthErr.Code}
			if oauthErr.Description != "" {
				body["error_description"] = oauthErr.Description
			}
			c.JSON(oauthErr.Status, body)
			return
		}
		discordServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, token)
}

// Me handles GET /api/v10/users/@me with a bearer token.
func (h *OAuthHandler) Me(c *gin.Context) {
	token := authToken(c, "Bearer")
	if token == "" {
		unauthorized(c)
		return
	}

	tenant, user, err := h.oauthService.GetUser(c.Request.Context(), token)
	if err != nil {
		discordServiceError(c, err)
		return
	}
	if tenant == nil {
		unauthorized(c)
		return
	}

	middleware.SetTenantID(c, tenant.ID)
	c.JSON(http.StatusOK, user)
}
