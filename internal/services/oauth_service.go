package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"discord-fake-service/internal/models"
	"discord-fake-service/internal/repository"
)

// OAuthError carries the wire form of an OAuth failure: the RFC 6749 error
// code plus optional description.
type OAuthError struct {
	Status      int
	Code        string
	Description string
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

var (
	errInvalidClient = &OAuthError{Status: 401, Code: "invalid_client"}
	errInvalidGrant  = &OAuthError{Status: 401, Code: "invalid_grant"}
	errRedirectURI   = &OAuthError{Status: 400, Code: "invalid_request", Description: "redirect_uri mismatch"}
)

// TokenResponse is the token-exchange success body, Discord wire shape.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	GuildID     string `json:"guild_id,omitempty"`
}

// UserResponse is the /users/@me success body, Discord wire shape.
type UserResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name"`
	Discriminator string `json:"discriminator"`
}

// OAuthService implements the authorize/exchange flow against tenant state.
type OAuthService struct {
	tenantRepo *repository.TenantRepository
	stateRepo  *repository.StateRepository
	logger     *logrus.Logger
}

// NewOAuthService creates a new OAuth service
func NewOAuthService(tenantRepo *repository.TenantRepository, stateRepo *repository.StateRepository, logger *logrus.Logger) *OAuthService {
	return &OAuthService{
		tenantRepo: tenantRepo,
		stateRepo:  stateRepo,
		logger:     logger,
	}
}

// Authorize issues a fresh auth code bound to the tenant's first guild and
// returns the redirect location. Unknown client ids fail instead of
// rendering a consent page, this service is a test aid.
func (s *OAuthService) Authorize(ctx context.Context, clientID, redirectURI, state string) (*models.Tenant, string, error) {
	tenant, err := s.tenantRepo.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, "", err
	}
	if tenant == nil {
		return nil, "", NewValidationError("Unknown client_id")
	}

	guild, err := s.stateRepo.FirstGuild(ctx, tenant.ID)
	if err != nil {
		return nil, "", err
	}
	if guild == nil {
		return nil, "", NewValidationError("tenant has no guilds")
	}

	code := uuid.New().String()
	authCode := &models.AuthCode{
		Code:        code,
		TenantID:    tenant.ID,
		GuildID:     guild.ID,
		RedirectURI: redirectURI,
	}
	if err := s.stateRepo.CreateAuthCode(ctx, authCode); err != nil {
		return nil, "", err
	}

	location := fmt.Sprintf("%s?code=%s&state=%s&guild_id=%s",
		redirectURI, url.QueryEscape(code), url.QueryEscape(state), url.QueryEscape(guild.ID))
	return tenant, location, nil
}

// CreateAuthCode pre-issues a code for scripted OAuth flows. The guild must
// belong to the tenant.
func (s *OAuthService) CreateAuthCode(ctx context.Context, tenantID uuid.UUID, guildID, redirectURI string) (*models.AuthCode, error) {
	guild, err := s.stateRepo.GetGuild(ctx, tenantID, guildID)
	if err != nil {
		return nil, err
	}
	if guild == nil {
		return nil, NewNotFoundError("Guild")
	}

	authCode := &models.AuthCode{
		Code:        uuid.New().String(),
		TenantID:    tenantID,
		GuildID:     guildID,
		RedirectURI: redirectURI,
	}
	if err := s.stateRepo.CreateAuthCode(ctx, authCode); err != nil {
		return nil, err
	}
	return authCode, nil
}

// Exchange redeems an authorization code for a bearer token. Consumption of
// the code is a single atomic read-and-delete, so two racing exchanges of
// the same code produce one success and one invalid_grant.
func (s *OAuthService) Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*models.Tenant, *TokenResponse, error) {
	tenant, err := s.tenantRepo.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}
	if tenant == nil || tenant.ClientSecret != clientSecret {
		return nil, nil, errInvalidClient
	}

	authCode, err := s.stateRepo.ConsumeAuthCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if authCode == nil || authCode.TenantID != tenant.ID {
		return tenant, nil, errInvalidGrant
	}
	if authCode.RedirectURI != redirectURI {
		return tenant, nil, errRedirectURI
	}

	token := &models.AccessToken{
		Token:     uuid.New().String(),
		TenantID:  tenant.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.stateRepo.CreateAccessToken(ctx, token); err != nil {
		return tenant, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"client_id": clientID,
	}).Debug("Access token issued")

	return tenant, &TokenResponse{
		AccessToken: token.Token,
		TokenType:   "Bearer",
		ExpiresIn:   604800,
		Scope:       "bot applications.commands",
		GuildID:     authCode.GuildID,
	}, nil
}

// GetUser resolves a bearer token to its synthetic user. Returns nil tenant
// when the token is unknown.
func (s *OAuthService) GetUser(ctx context.Context, bearerToken string) (*models.Tenant, *UserResponse, error) {
	tenant, err := s.tenantRepo.GetByAccessToken(ctx, bearerToken)
	if err != nil {
		return nil, nil, err
	}
	if tenant == nil {
		return nil, nil, nil
	}
	return tenant, &UserResponse{
		ID:            fmt.Sprintf("fake-user-%s", tenant.ID),
		Username:      "fakeuser",
		GlobalName:    fmt.Sprintf("Fake User (%s)", tenant.ID),
		Discriminator: "0",
	}, nil
}
