package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"discord-fake-service/internal/models"
)

// ErrNotFound is returned by state mutations whose target row is missing.
var ErrNotFound = errors.New("record not found")

// StateRepository handles per-tenant Discord state: topology reads and the
// message/reaction/interaction/command tables.
type StateRepository struct {
	db *gorm.DB
}

// NewStateRepository creates a new state repository
func NewStateRepository(db *gorm.DB) *StateRepository {
	return &StateRepository{
		db: db,
	}
}

// GetGuild returns a guild or nil when unknown.
func (r *StateRepository) GetGuild(ctx context.Context, tenantID uuid.UUID, guildID string) (*models.Guild, error) {
	var guild models.Guild
	err := r.db.WithContext(ctx).First(&guild, "tenant_id = ? AND id = ?", tenantID, guildID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get guild: %w", err)
	}
	return &guild, nil
}

// FirstGuild returns the tenant's first guild by id ascending. The OAuth
// authorize flow binds its code to this guild.
func (r *StateRepository) FirstGuild(ctx context.Context, tenantID uuid.UUID) (*models.Guild, error) {
	var guild models.Guild
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		First(&guild).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get first guild: %w", err)
	}
	return &guild, nil
}

// ListGuilds returns the tenant's guilds by id ascending.
func (r *StateRepository) ListGuilds(ctx context.Context, tenantID uuid.UUID) ([]models.Guild, error) {
	var guilds []models.Guild
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("id ASC").Find(&guilds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	return guilds, nil
}

// GetChannel returns a channel or nil when unknown.
func (r *StateRepository) GetChannel(ctx context.Context, tenantID uuid.UUID, channelID string) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).First(&channel, "tenant_id = ? AND id = ?", tenantID, channelID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &channel, nil
}

// ListChannels returns a guild's channels by id ascending.
func (r *StateRepository) ListChannels(ctx context.Context, tenantID uuid.UUID, guildID string) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND guild_id = ?", tenantID, guildID).
		Order("id ASC").
		Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

// CreateAuthCode stores a pending authorization code.
func (r *StateRepository) CreateAuthCode(ctx context.Context, code *models.AuthCode) error {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		return fmt.Errorf("failed to create auth code: %w", err)
	}
	return nil
}

// ConsumeAuthCode atomically reads and deletes an authorization code.
// Exactly one of two racing exchanges gets the row; the loser sees nil.
func (r *StateRepository) ConsumeAuthCode(ctx context.Context, code string) (*models.AuthCode, error) {
	var row models.AuthCode
	res := r.db.WithContext(ctx).
		Raw("DELETE FROM auth_codes WHERE code = ? RETURNING code, tenant_id, guild_id, redirect_uri", code).
		Scan(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to consume auth code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// CreateAccessToken stores an issued bearer token.
func (r *StateRepository) CreateAccessToken(ctx context.Context, token *models.AccessToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return nil
}

// CreateMessage persists a sent message.
func (r *StateRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetMessage returns a message or nil when unknown.
func (r *StateRepository) GetMessage(ctx context.Context, tenantID uuid.UUID, messageID string) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).First(&message, "tenant_id = ? AND id = ?", tenantID, messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &message, nil
}

// EditMessage captures the current payload into message_edits and replaces
// it, in one transaction. The INSERT ... SELECT keeps the pre-image capture
// on the database side so readers never observe a half-applied edit.
// Returns ErrNotFound when the message does not exist.
func (r *StateRepository) EditMessage(ctx context.Context, tenantID uuid.UUID, messageID string, payload datatypes.JSON, editedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ins := tx.Exec(
			"INSERT INTO message_edits (tenant_id, message_id, payload, edited_at) "+
				"SELECT tenant_id, id, payload, ? FROM messages WHERE tenant_id = ? AND id = ?",
			editedAt, tenantID, messageID,
		)
		if ins.Error != nil {
			return fmt.Errorf("failed to capture edit history: %w", ins.Error)
		}
		upd := tx.Model(&models.Message{}).
			Where("tenant_id = ? AND id = ?", tenantID, messageID).
			Update("payload", payload)
		if upd.Error != nil {
			return fmt.Errorf("failed to update message: %w", upd.Error)
		}
		if upd.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListMessages returns a channel's messages ordered by creation time, each
// with its edit history attached oldest first.
func (r *StateRepository) ListMessages(ctx context.Context, tenantID uuid.UUID, channelID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_id = ?", tenantID, channelID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	for i := range messages {
		var edits []models.MessageEdit
		err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND message_id = ?", tenantID, messages[i].ID).
			Order("edited_at ASC, id ASC").
			Find(&edits).Error
		if err != nil {
			return nil, fmt.Errorf("failed to list message edits: %w", err)
		}
		messages[i].EditHistory = edits
	}
	return messages, nil
}

// CreateReaction appends a reaction.
func (r *StateRepository) CreateReaction(ctx context.Context, reaction *models.Reaction) error {
	if err := r.db.WithContext(ctx).Create(reaction).Error; err != nil {
		return fmt.Errorf("failed to create reaction: %w", err)
	}
	return nil
}

// ListReactions returns a tenant's reactions ordered by creation time.
func (r *StateRepository) ListReactions(ctx context.Context, tenantID uuid.UUID) ([]models.Reaction, error) {
	var reactions []models.Reaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	return reactions, nil
}

// UpsertInteractionResponse inserts or replaces the one response row for an
// interaction token.
func (r *StateRepository) UpsertInteractionResponse(ctx context.Context, response *models.InteractionResponse) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "interaction_token"}},
			DoUpdates: clause.AssignmentColumns([]string{"response_id", "payload", "responded_at"}),
		}).
		Create(response).Error
	if err != nil {
		return fmt.Errorf("failed to upsert interaction response: %w", err)
	}
	return nil
}

// GetInteractionResponse returns the response for a token or nil.
func (r *StateRepository) GetInteractionResponse(ctx context.Context, tenantID uuid.UUID, token string) (*models.InteractionResponse, error) {
	var response models.InteractionResponse
	err := r.db.WithContext(ctx).First(&response, "tenant_id = ? AND interaction_token = ?", tenantID, token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get interaction response: %w", err)
	}
	return &response, nil
}

// CreateFollowup appends a followup message for an interaction token.
func (r *StateRepository) CreateFollowup(ctx context.Context, followup *models.Followup) error {
	if err := r.db.WithContext(ctx).Create(followup).Error; err != nil {
		return fmt.Errorf("failed to create followup: %w", err)
	}
	return nil
}

// ListFollowups returns the followups for a token ordered by creation time.
func (r *StateRepository) ListFollowups(ctx context.Context, tenantID uuid.UUID, token string) ([]models.Followup, error) {
	var followups []models.Followup
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND interaction_token = ?", tenantID, token).
		Order("created_at ASC, id ASC").
		Find(&followups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list followups: %w", err)
	}
	return followups, nil
}

// ReplaceCommands swaps the whole command set for a guild in one
// transaction. Ids are assigned from the tenant counter inside the same
// transaction so a concurrent reader sees the old set or the new set,
// never a mix.
func (r *StateRepository) ReplaceCommands(ctx context.Context, tenantID uuid.UUID, guildID string, payloads []datatypes.JSON, registeredAt time.Time) ([]models.RegisteredCommand, error) {
	var created []models.RegisteredCommand
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND guild_id = ?", tenantID, guildID).
			Delete(&models.RegisteredCommand{}).Error; err != nil {
			return fmt.Errorf("failed to clear commands: %w", err)
		}
		for _, payload := range payloads {
			id, err := GenerateID(ctx, tx, tenantID, "cmd")
			if err != nil {
				return err
			}
			cmd := models.RegisteredCommand{
				TenantID:     tenantID,
				ID:           id,
				GuildID:      guildID,
				Payload:      payload,
				RegisteredAt: registeredAt,
			}
			if err := tx.Create(&cmd).Error; err != nil {
				return fmt.Errorf("failed to register command: %w", err)
			}
			created = append(created, cmd)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListCommands returns a guild's registered commands in registration order.
func (r *StateRepository) ListCommands(ctx context.Context, tenantID uuid.UUID, guildID string) ([]models.RegisteredCommand, error) {
	var commands []models.RegisteredCommand
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND guild_id = ?", tenantID, guildID).
		Order("registered_at ASC, id ASC").
		Find(&commands).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	return commands, nil
}

// CountForTenant returns per-table row counts for the browse overview.
func (r *StateRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	counts := map[string]int64{}
	tables := map[string]interface{}{
		"messages":             &models.Message{},
		"messageEdits":         &models.MessageEdit{},
		"reactions":            &models.Reaction{},
		"interactionResponses": &models.InteractionResponse{},
		"followups":            &models.Followup{},
		"commands":             &models.RegisteredCommand{},
		"authCodes":            &models.AuthCode{},
		"accessTokens":         &models.AccessToken{},
	}
	for name, m := range tables {
		var n int64
		if err := r.db.WithContext(ctx).Model(m).Where("tenant_id = ?", tenantID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}
