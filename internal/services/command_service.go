package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"discord-fake-service/internal/models"
	"discord-fake-service/internal/repository"
)

// CommandService handles bulk slash-command registration.
type CommandService struct {
	stateRepo *repository.StateRepository
	logger    *logrus.Logger
}

// NewCommandService creates a new command service
func NewCommandService(stateRepo *repository.StateRepository, logger *logrus.Logger) *CommandService {
	return &CommandService{
		stateRepo: stateRepo,
		logger:    logger,
	}
}

// BulkOverwrite replaces the entire command set for (tenant, guild). The
// clientId path parameter must match the resolved tenant's; a mismatch is a
// caller bug, not a missing resource.
func (s *CommandService) BulkOverwrite(ctx context.Context, tenant *models.Tenant, pathClientID, guildID string, commands []json.RawMessage) ([]models.RegisteredCommand, error) {
	if pathClientID != tenant.ClientID {
		return nil, NewValidationError("client_id mismatch")
	}

	guild, err := s.stateRepo.GetGuild(ctx, tenant.ID, guildID)
	if err != nil {
		return nil, err
	}
	if guild == nil {
		return nil, NewNotFoundError("Guild")
	}

	payloads := make([]datatypes.JSON, 0, len(commands))
	for _, c := range commands {
		payloads = append(payloads, datatypes.JSON(c))
	}

	created, err := s.stateRepo.ReplaceCommands(ctx, tenant.ID, guildID, payloads, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"guild_id":  guildID,
		"commands":  len(created),
	}).Debug("Command set replaced")
	return created, nil
}

// List returns the registered commands for a guild.
func (s *CommandService) List(ctx context.Context, tenantID uuid.UUID, guildID string) ([]models.RegisteredCommand, error) {
	return s.stateRepo.ListCommands(ctx, tenantID, guildID)
}
