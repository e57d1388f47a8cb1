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

// MessageService handles channel reads and message send/edit/react.
type MessageService struct {
	tenantRepo *repository.TenantRepository
	stateRepo  *repository.StateRepository
	logger     *logrus.Logger
}

// NewMessageService creates a new message service
func NewMessageService(tenantRepo *repository.TenantRepository, stateRepo *repository.StateRepository, logger *logrus.Logger) *MessageService {
	return &MessageService{
		tenantRepo: tenantRepo,
		stateRepo:  stateRepo,
		logger:     logger,
	}
}

// GetChannel returns a tenant's channel.
func (s *MessageService) GetChannel(ctx context.Context, tenantID uuid.UUID, channelID string) (*models.Channel, error) {
	channel, err := s.stateRepo.GetChannel(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, NewNotFoundError("Channel")
	}
	return channel, nil
}

// SendMessage stores the raw request body as the message payload and
// assigns the next "msg-N" id from the tenant counter.
func (s *MessageService) SendMessage(ctx context.Context, tenantID uuid.UUID, channelID string, payload []byte) (*models.Message, error) {
	channel, err := s.stateRepo.GetChannel(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, NewNotFoundError("Channel")
	}

	id, err := s.tenantRepo.GenerateID(ctx, tenantID, "msg")
	if err != nil {
		return nil, err
	}
	message := &models.Message{
		TenantID:  tenantID,
		ID:        id,
		ChannelID: channelID,
		Payload:   datatypes.JSON(payload),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.stateRepo.CreateMessage(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// EditMessage replaces a message's payload, capturing the previous payload
// into its edit history first. The two writes commit together.
func (s *MessageService) EditMessage(ctx context.Context, tenantID uuid.UUID, messageID string, payload []byte) error {
	err := s.stateRepo.EditMessage(ctx, tenantID, messageID, datatypes.JSON(payload), time.Now().UTC())
	if err != nil {
		if err == repository.ErrNotFound {
			return NewNotFoundError("Message")
		}
		return err
	}
	return nil
}

// AddReaction appends an emoji reaction after validating that both the
// channel and the message exist.
func (s *MessageService) AddReaction(ctx context.Context, tenantID uuid.UUID, channelID, messageID, emoji string) error {
	channel, err := s.stateRepo.GetChannel(ctx, tenantID, channelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return NewNotFoundError("Channel")
	}
	message, err := s.stateRepo.GetMessage(ctx, tenantID, messageID)
	if err != nil {
		return err
	}
	if message == nil {
		return NewNotFoundError("Message")
	}

	return s.stateRepo.CreateReaction(ctx, &models.Reaction{
		TenantID:  tenantID,
		ChannelID: channelID,
		MessageID: messageID,
		Emoji:     emoji,
		CreatedAt: time.Now().UTC(),
	})
}

// ListMessages returns a channel's messages with edit history attached.
func (s *MessageService) ListMessages(ctx context.Context, tenantID uuid.UUID, channelID string) ([]models.Message, error) {
	return s.stateRepo.ListMessages(ctx, tenantID, channelID)
}

// ListReactions returns all reactions recorded for the tenant.
func (s *MessageService) ListReactions(ctx context.Context, tenantID uuid.UUID) ([]models.Reaction, error) {
	return s.stateRepo.ListReactions(ctx, tenantID)
}

// ContentOf extracts the "content" field of a stored payload, empty string
// when absent. The Discord-shaped responses echo it.
func ContentOf(payload []byte) string {
	var body struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Content
}
