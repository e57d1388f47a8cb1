package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"discord-fake-service/internal/models"
)

// ErrDuplicateBotToken and ErrDuplicateClientID surface unique-constraint
// violations from tenant creation. The database constraint is the authority:
// two concurrent creators with the same credential get exactly one success.
var (
	ErrDuplicateBotToken = errors.New("botToken already in use")
	ErrDuplicateClientID = errors.New("clientId already in use")
)

// TenantRepository handles tenant lifecycle and credential resolution
type TenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{
		db: db,
	}
}

// DB exposes the underlying handle for health checks
func (r *TenantRepository) DB() *gorm.DB {
	return r.db
}

// Create inserts a tenant with its guild/channel topology in one transaction.
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant, guilds []models.Guild, channels []models.Channel) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}
		if len(guilds) > 0 {
			if err := tx.Create(&guilds).Error; err != nil {
				return err
			}
		}
		if len(channels) > 0 {
			if err := tx.Create(&channels).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if dup := classifyDuplicate(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// classifyDuplicate maps a unique-constraint violation to the credential
// that caused it. Postgres reports the index name, sqlite the column.
func classifyDuplicate(err error) error {
	msg := err.Error()
	isDup := errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
	if !isDup {
		return nil
	}
	if strings.Contains(msg, "client_id") {
		return ErrDuplicateClientID
	}
	return ErrDuplicateBotToken
}

// GetByID resolves a tenant by its id. Returns nil when unknown.
func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// GetByBotToken resolves a tenant by bot token. Returns nil when unknown.
func (r *TenantRepository) GetByBotToken(ctx context.Context, botToken string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).First(&tenant, "bot_token = ?", botToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant by bot token: %w", err)
	}
	return &tenant, nil
}

// GetByClientID resolves a tenant by OAuth client id. Returns nil when unknown.
func (r *TenantRepository) GetByClientID(ctx context.Context, clientID string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).First(&tenant, "client_id = ?", clientID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant by client id: %w", err)
	}
	return &tenant, nil
}

// GetByAccessToken resolves a tenant through the access_tokens table.
// Returns nil when the token is unknown.
func (r *TenantRepository) GetByAccessToken(ctx context.Context, token string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).
		Joins("JOIN access_tokens ON access_tokens.tenant_id = tenants.id").
		Where("access_tokens.token = ?", token).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant by access token: %w", err)
	}
	return &tenant, nil
}

// GenerateID atomically increments the tenant counter and returns the next
// prefixed id ("msg-1", "resp-2", ...). The single UPDATE ... RETURNING
// statement keeps concurrent generators contiguous and distinct.
func (r *TenantRepository) GenerateID(ctx context.Context, tenantID uuid.UUID, prefix string) (string, error) {
	return GenerateID(ctx, r.db, tenantID, prefix)
}

// GenerateID is the transaction-friendly form used by batch operations.
func GenerateID(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, prefix string) (string, error) {
	var next int64
	res := db.WithContext(ctx).
		Raw("UPDATE tenants SET next_id = next_id + 1 WHERE id = ? RETURNING next_id", tenantID).
		Scan(&next)
	if res.Error != nil {
		return "", fmt.Errorf("failed to generate id: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("failed to generate id: tenant %s not found", tenantID)
	}
	return fmt.Sprintf("%s-%d", prefix, next-1), nil
}

// Delete cascades over all child tables and removes the tenant.
// Returns gorm.ErrRecordNotFound when the tenant does not exist.
func (r *TenantRepository) Delete(ctx context.Context, tenantID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Tenant{}, "id = ?", tenantID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return deleteChildren(tx, tenantID, true)
	})
}

// Reset clears all mutable state for a tenant and rewinds the id counter.
// Guild/channel topology and the tenant row itself survive.
func (r *TenantRepository) Reset(ctx context.Context, tenantID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Tenant{}).Where("id = ?", tenantID).Update("next_id", 1)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return deleteChildren(tx, tenantID, false)
	})
}

// deleteChildren removes tenant-owned rows. Topology (guilds, channels) is
// only removed on full deletion, not on reset.
func deleteChildren(tx *gorm.DB, tenantID uuid.UUID, includeTopology bool) error {
	mutable := []interface{}{
		&models.Followup{},
		&models.InteractionResponse{},
		&models.RegisteredCommand{},
		&models.Reaction{},
		&models.MessageEdit{},
		&models.Message{},
		&models.AccessToken{},
		&models.AuthCode{},
		&models.AuditLog{},
	}
	for _, m := range mutable {
		if err := tx.Where("tenant_id = ?", tenantID).Delete(m).Error; err != nil {
			return err
		}
	}
	if includeTopology {
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&models.Channel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&models.Guild{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// ListCreatedBefore returns tenants older than the cutoff, oldest first.
// Used by the expiry sweeper.
func (r *TenantRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&tenants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired tenants: %w", err)
	}
	return tenants, nil
}

// List returns all tenants ordered by creation time, for the browse surface.
func (r *TenantRepository) List(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&tenants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

// Count returns the number of tenants, for metrics.
func (r *TenantRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tenant{}).Count(&count).Error
	return count, err
}
