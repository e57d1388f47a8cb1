package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"discord-fake-service/internal/events"
	"discord-fake-service/internal/models"
	"discord-fake-service/internal/repository"
)

// CreateTenantRequest is the test-control payload for tenant creation.
type CreateTenantRequest struct {
	BotToken     string               `json:"botToken"`
	ClientID     string               `json:"clientId"`
	ClientSecret string               `json:"clientSecret"`
	PublicKey    string               `json:"publicKey"`
	PrivateKey   string               `json:"privateKey"`
	Guilds       []CreateGuildRequest `json:"guilds"`
}

// CreateGuildRequest describes one guild and its channels.
type CreateGuildRequest struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Channels []CreateChannelRequest `json:"channels"`
}

// CreateChannelRequest describes one channel.
type CreateChannelRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SweepResult summarizes one expiry sweep pass.
type SweepResult struct {
	Deleted int  `json:"deleted"`
	Checked bool `json:"checked"`
}

// TenantService handles tenant lifecycle: creation with topology, deletion,
// reset, and the expiry sweep.
type TenantService struct {
	tenantRepo *repository.TenantRepository
	stateRepo  *repository.StateRepository
	publisher  *events.Publisher
	logger     *logrus.Logger
}

// NewTenantService creates a new tenant service
func NewTenantService(tenantRepo *repository.TenantRepository, stateRepo *repository.StateRepository, publisher *events.Publisher, logger *logrus.Logger) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		stateRepo:  stateRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

// Create validates the request, assigns a fresh tenant id and persists the
// tenant with its guild/channel topology in one batch. Uniqueness of
// botToken and clientId is enforced by the store; under a race exactly one
// creator wins and the other gets a ConflictError.
func (s *TenantService) Create(ctx context.Context, req *CreateTenantRequest) (*models.Tenant, error) {
	if req.BotToken == "" {
		return nil, NewMissingFieldError("botToken")
	}
	if req.ClientID == "" {
		return nil, NewMissingFieldError("clientId")
	}
	if req.ClientSecret == "" {
		return nil, NewMissingFieldError("clientSecret")
	}
	if req.PublicKey == "" {
		return nil, NewMissingFieldError("publicKey")
	}
	if req.PrivateKey == "" {
		return nil, NewMissingFieldError("privateKey")
	}
	if len(req.Guilds) == 0 {
		return nil, NewMissingFieldError("guilds")
	}
	for _, g := range req.Guilds {
		if g.ID == "" {
			return nil, NewMissingFieldError("guilds[].id")
		}
		if len(g.Channels) == 0 {
			return nil, NewValidationError(fmt.Sprintf("guild %s has no channels", g.ID))
		}
		for _, c := range g.Channels {
			if c.ID == "" {
				return nil, NewMissingFieldError("guilds[].channels[].id")
			}
		}
	}

	tenant := &models.Tenant{
		ID:           uuid.New(),
		BotToken:     req.BotToken,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		PublicKey:    req.PublicKey,
		PrivateKey:   req.PrivateKey,
		NextID:       1,
		CreatedAt:    time.Now().UTC(),
	}

	var guilds []models.Guild
	var channels []models.Channel
	for _, g := range req.Guilds {
		guilds = append(guilds, models.Guild{
			TenantID: tenant.ID,
			ID:       g.ID,
			Name:     g.Name,
		})
		for _, c := range g.Channels {
			channels = append(channels, models.Channel{
				TenantID: tenant.ID,
				ID:       c.ID,
				GuildID:  g.ID,
				Name:     c.Name,
			})
		}
	}

	if err := s.tenantRepo.Create(ctx, tenant, guilds, channels); err != nil {
		if errors.Is(err, repository.ErrDuplicateBotToken) {
			return nil, NewConflictError("botToken already in use")
		}
		if errors.Is(err, repository.ErrDuplicateClientID) {
			return nil, NewConflictError("clientId already in use")
		}
		return nil, err
	}

	s.publisher.PublishTenantCreated(tenant.ID.String(), tenant.ClientID)
	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"client_id": tenant.ClientID,
		"guilds":    len(guilds),
	}).Info("Tenant created")

	tenant.Guilds = assembleTopology(guilds, channels)
	return tenant, nil
}

func assembleTopology(guilds []models.Guild, channels []models.Channel) []models.Guild {
	byGuild := map[string][]models.Channel{}
	for _, c := range channels {
		byGuild[c.GuildID] = append(byGuild[c.GuildID], c)
	}
	for i := range guilds {
		guilds[i].Channels = byGuild[guilds[i].ID]
	}
	return guilds
}

// Get returns a tenant by id or nil when unknown.
func (s *TenantService) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, tenantID)
}

// Delete removes a tenant and every row it owns.
func (s *TenantService) Delete(ctx context.Context, tenantID uuid.UUID) error {
	err := s.tenantRepo.Delete(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFoundError("Tenant")
		}
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	s.publisher.PublishTenantDeleted(tenantID.String())
	s.logger.WithField("tenant_id", tenantID).Info("Tenant deleted")
	return nil
}

// Reset clears all mutable state and rewinds the id counter. Topology and
// credentials survive. Idempotent.
func (s *TenantService) Reset(ctx context.Context, tenantID uuid.UUID) error {
	err := s.tenantRepo.Reset(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFoundError("Tenant")
		}
		return fmt.Errorf("failed to reset tenant: %w", err)
	}
	s.publisher.PublishTenantReset(tenantID.String())
	s.logger.WithField("tenant_id", tenantID).Info("Tenant reset")
	return nil
}

// List returns all tenants for the browse surface.
func (s *TenantService) List(ctx context.Context) ([]models.Tenant, error) {
	return s.tenantRepo.List(ctx)
}

// Overview aggregates a tenant's topology and per-table state counts.
func (s *TenantService) Overview(ctx context.Context, tenantID uuid.UUID) (map[string]interface{}, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, nil
	}
	guilds, err := s.stateRepo.ListGuilds(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range guilds {
		channels, err := s.stateRepo.ListChannels(ctx, tenantID, guilds[i].ID)
		if err != nil {
			return nil, err
		}
		guilds[i].Channels = channels
	}
	counts, err := s.stateRepo.CountForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":        tenant.ID,
		"clientId":  tenant.ClientID,
		"createdAt": tenant.CreatedAt,
		"guilds":    guilds,
		"counts":    counts,
	}, nil
}

// CleanupExpiredTenants deletes every tenant older than maxAge, cascading
// over all child tables. Safe to run concurrently with live traffic since
// each deletion is its own transaction and deletion is idempotent.
func (s *TenantService) CleanupExpiredTenants(ctx context.Context, maxAge time.Duration) (*SweepResult, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	expired, err := s.tenantRepo.ListCreatedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired tenants: %w", err)
	}

	deleted := 0
	for _, tenant := range expired {
		if err := s.tenantRepo.Delete(ctx, tenant.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			s.logger.WithError(err).WithField("tenant_id", tenant.ID).Error("Failed to delete expired tenant")
			continue
		}
		s.publisher.PublishTenantExpired(tenant.ID.String())
		deleted++
	}

	if deleted > 0 {
		s.logger.WithFields(logrus.Fields{
			"deleted": deleted,
			"cutoff":  cutoff,
		}).Info("Expired tenants cleaned up")
	}
	return &SweepResult{Deleted: deleted, Checked: true}, nil
}
