package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"discord-fake-service/internal/services"
)

// DiscordError writes the Discord-shaped error envelope.
func DiscordError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// TestError writes the test-control error envelope.
func TestError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// unauthorized is the uniform bot/bearer failure body. A missing header is
// indistinguishable from a bad token.
func unauthorized(c *gin.Context) {
	DiscordError(c, http.StatusUnauthorized, "401: Unauthorized")
}

// hasJSONContentType accepts application/json with an optional ;charset
// suffix.
func hasJSONContentType(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "application/json")
}

// readJSONBody enforces the JSON content-type discipline and returns the
// raw body bytes. On any failure it writes 400 and returns false.
func readJSONBody(c *gin.Context) ([]byte, bool) {
	if !hasJSONContentType(c) {
		DiscordError(c, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !json.Valid(body) {
		DiscordError(c, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return body, true
}

// authToken extracts the credential from an Authorization header with the
// given scheme ("Bot" or "Bearer"), empty when absent or malformed.
func authToken(c *gin.Context, scheme string) string {
	header := c.GetHeader("Authorization")
	prefix := scheme + " "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// discordServiceError maps service errors onto the Discord surface.
func discordServiceError(c *gin.Context, err error) {
	var notFound *services.NotFoundError
	var validation *services.ValidationError
	switch {
	case errors.As(err, &notFound):
		DiscordError(c, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		DiscordError(c, http.StatusBadRequest, validation.Error())
	default:
		DiscordError(c, http.StatusInternalServerError, "Internal Server Error")
	}
}

// testServiceError maps service errors onto the test-control surface.
func testServiceError(c *gin.Context, err error) {
	var notFound *services.NotFoundError
	var validation *services.ValidationError
	var conflict *services.ConflictError
	var webhook *services.WebhookError
	switch {
	case errors.As(err, &notFound):
		if notFound.Entity == "Tenant" {
			TestError(c, http.StatusNotFound, "Tenant not found")
			return
		}
		TestError(c, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		TestError(c, http.StatusBadRequest, validation.Error())
	case errors.As(err, &conflict):
		TestError(c, http.StatusConflict, conflict.Error())
	case errors.As(err, &webhook):
		TestError(c, http.StatusBadGateway, webhook.Error())
	default:
		TestError(c, http.StatusInternalServerError, "Internal server error")
	}
}
