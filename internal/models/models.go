package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Tenant is an isolated impersonation context: one bot identity, one OAuth
// application, and a fixed guild/channel topology. Every other row in the
// store hangs off a tenant.
type Tenant struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BotToken     string    `json:"botToken" gorm:"uniqueIndex:idx_tenants_bot_token;not null"`
	ClientID     string    `json:"clientId" gorm:"column:client_id;uniqueIndex:idx_tenants_client_id;not null"`
	ClientSecret string    `json:"clientSecret" gorm:"not null"`
	PublicKey    string    `json:"publicKey" gorm:"not null"`
	PrivateKey   string    `json:"-" gorm:"not null"`
	NextID       int64     `json:"-" gorm:"column:next_id;not null;default:1"`
	CreatedAt    time.Time `json:"createdAt" gorm:"index:idx_tenants_created_at"`

	Guilds []Guild `json:"guilds,omitempty" gorm:"-"`
}

// Guild is a server within a tenant. Created with the tenant, immutable.
type Guild struct {
	TenantID uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	ID       string    `json:"id" gorm:"primaryKey"`
	Name     string    `json:"name" gorm:"not null"`

	Channels []Channel `json:"channels,omitempty" gorm:"-"`
}

// Channel is a message container within a guild.
type Channel struct {
	TenantID uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	ID       string    `json:"id" gorm:"primaryKey"`
	GuildID  string    `json:"guildId" gorm:"not null"`
	Name     string    `json:"name" gorm:"not null"`
}

// AuthCode is a single-use OAuth authorization code. The row exists only
// while the code is pending; a successful token exchange consumes it.
type AuthCode struct {
	Code        string    `json:"code" gorm:"primaryKey"`
	TenantID    uuid.UUID `json:"-" gorm:"type:uuid;index:idx_auth_codes_tenant"`
	GuildID     string    `json:"guildId" gorm:"not null"`
	RedirectURI string    `json:"redirectUri" gorm:"not null"`
}

// AccessToken is a bearer credential issued by the token exchange.
type AccessToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	TenantID  uuid.UUID `json:"-" gorm:"type:uuid;index:idx_access_tokens_tenant"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a sent channel message. The payload is the entire request body
// the client posted, stored verbatim; edits move the old payload into a
// MessageEdit row.
type Message struct {
	TenantID  uuid.UUID      `json:"-" gorm:"type:uuid;primaryKey;index:idx_messages_tenant_channel_created,priority:1"`
	ID        string         `json:"id" gorm:"primaryKey"`
	ChannelID string         `json:"channelId" gorm:"not null;index:idx_messages_tenant_channel_created,priority:2"`
	Payload   datatypes.JSON `json:"payload" gorm:"not null"`
	CreatedAt time.Time      `json:"createdAt" gorm:"index:idx_messages_tenant_channel_created,priority:3"`

	EditHistory []MessageEdit `json:"editHistory" gorm:"-"`
}

// MessageEdit is the pre-image of a message payload captured at edit time,
// oldest first.
type MessageEdit struct {
	ID        uint           `json:"-" gorm:"primaryKey;autoIncrement"`
	TenantID  uuid.UUID      `json:"-" gorm:"type:uuid;index:idx_message_edits_tenant_message,priority:1"`
	MessageID string         `json:"-" gorm:"not null;index:idx_message_edits_tenant_message,priority:2"`
	Payload   datatypes.JSON `json:"payload" gorm:"not null"`
	EditedAt  time.Time      `json:"editedAt" gorm:"index:idx_message_edits_tenant_message,priority:3"`
}

// Reaction is an emoji reaction on a message. Append-only.
type Reaction struct {
	ID        uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	TenantID  uuid.UUID `json:"-" gorm:"type:uuid;index:idx_reactions_tenant_created,priority:1"`
	ChannelID string    `json:"channelId" gorm:"not null"`
	MessageID string    `json:"messageId" gorm:"not null"`
	Emoji     string    `json:"emoji" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_reactions_tenant_created,priority:2"`
}

// InteractionResponse is the one-per-token response to an interaction,
// upserted on each PATCH of the original message.
type InteractionResponse struct {
	TenantID         uuid.UUID      `json:"-" gorm:"type:uuid;primaryKey"`
	InteractionToken string         `json:"interactionToken" gorm:"primaryKey"`
	ResponseID       string         `json:"responseId" gorm:"not null"`
	Payload          datatypes.JSON `json:"payload" gorm:"not null"`
	RespondedAt      time.Time      `json:"respondedAt"`
}

// Followup is an additional message appended after the interaction response.
// Any number per token.
type Followup struct {
	TenantID         uuid.UUID      `json:"-" gorm:"type:uuid;primaryKey;index:idx_followups_tenant_token_created,priority:1"`
	ID               string         `json:"id" gorm:"primaryKey"`
	InteractionToken string         `json:"interactionToken" gorm:"not null;index:idx_followups_tenant_token_created,priority:2"`
	Payload          datatypes.JSON `json:"payload" gorm:"not null"`
	CreatedAt        time.Time      `json:"createdAt" gorm:"index:idx_followups_tenant_token_created,priority:3"`
}

// RegisteredCommand is a slash command registered for a guild. The whole
// (tenant, guild) set is replaced on each bulk overwrite.
type RegisteredCommand struct {
	TenantID     uuid.UUID      `json:"-" gorm:"type:uuid;primaryKey;index:idx_commands_tenant_guild_registered,priority:1"`
	ID           string         `json:"id" gorm:"primaryKey"`
	GuildID      string         `json:"guildId" gorm:"not null;index:idx_commands_tenant_guild_registered,priority:2"`
	Payload      datatypes.JSON `json:"payload" gorm:"not null"`
	RegisteredAt time.Time      `json:"registeredAt" gorm:"index:idx_commands_tenant_guild_registered,priority:3"`
}

// TableName overrides the default pluralization ("registered_commands")
// to keep the table name short.
func (RegisteredCommand) TableName() string {
	return "commands"
}

// AuditLog records one HTTP round-trip through the service. TenantID is nil
// for requests that never resolved a tenant.
type AuditLog struct {
	ID             uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID       *uuid.UUID `json:"tenantId" gorm:"type:uuid;index:idx_audit_logs_tenant_created,priority:1"`
	Method         string     `json:"method" gorm:"not null"`
	URL            string     `json:"url" gorm:"not null"`
	RequestBody    *string    `json:"requestBody"`
	ResponseStatus int        `json:"responseStatus" gorm:"not null"`
	ResponseBody   *string    `json:"responseBody"`
	CreatedAt      time.Time  `json:"createdAt" gorm:"index:idx_audit_logs_tenant_created,priority:2"`
}

// All returns the models in migration order.
func All() []interface{} {
	return []interface{}{
		&Tenant{},
		&Guild{},
		&Channel{},
		&AuthCode{},
		&AccessToken{},
		&Message{},
		&MessageEdit{},
		&Reaction{},
		&InteractionResponse{},
		&Followup{},
		&RegisteredCommand{},
		&AuditLog{},
	}
}
