package services

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"discord-fake-service/internal/models"
	"discord-fake-service/internal/repository"
)

func newServiceFixture(t *testing.T) (*gorm.DB, *repository.TenantRepository, *repository.StateRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		for _, m := range models.All() {
			db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m)
		}
		sqlDB.Close()
	})
	return db, repository.NewTenantRepository(db), repository.NewStateRepository(db)
}

func seedServiceTenant(t *testing.T, repo *repository.TenantRepository) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		ID:           uuid.New(),
		BotToken:     "bot-" + uuid.NewString(),
		ClientID:     "client-" + uuid.NewString(),
		ClientSecret: "secret",
		PublicKey:    "p",
		PrivateKey:   "k",
		NextID:       1,
		CreatedAt:    time.Now().UTC(),
	}
	guilds := []models.Guild{{TenantID: tenant.ID, ID: "g1", Name: "G"}}
	channels := []models.Channel{{TenantID: tenant.ID, ID: "c1", GuildID: "g1", Name: "c"}}
	require.NoError(t, repo.Create(context.Background(), tenant, guilds, channels))
	return tenant
}

func TestExchange_CodeFromAnotherTenantIsInvalidGrant(t *testing.T) {
	_, tenantRepo, stateRepo := newServiceFixture(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	svc := NewOAuthService(tenantRepo, stateRepo, logger)
	ctx := context.Background()

	owner := seedServiceTenant(t, tenantRepo)
	other := seedServiceTenant(t, tenantRepo)

	code, err := svc.CreateAuthCode(ctx, owner.ID, "g1", "https://app.example/cb")
	require.NoError(t, err)

	// redeeming with the other tenant's credentials must fail, and the
	// code is still consumed
	_, _, err = svc.Exchange(ctx, other.ClientID, "secret", code.Code, "https://app.example/cb")
	var oauthErr *OAuthError
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, "invalid_grant", oauthErr.Code)

	_, _, err = svc.Exchange(ctx, owner.ClientID, "secret", code.Code, "https://app.example/cb")
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, "invalid_grant", oauthErr.Code)
}

func TestCreateAuthCode_UnknownGuild(t *testing.T) {
	_, tenantRepo, stateRepo := newServiceFixture(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	svc := NewOAuthService(tenantRepo, stateRepo, logger)

	tenant := seedServiceTenant(t, tenantRepo)
	_, err := svc.CreateAuthCode(context.Background(), tenant.ID, "g404", "https://app.example/cb")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Guild", notFound.Entity)
}

func TestAuthorize_BindsFirstGuildByID(t *testing.T) {
	db, tenantRepo, stateRepo := newServiceFixture(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	svc := NewOAuthService(tenantRepo, stateRepo, logger)
	ctx := context.Background()

	tenant := seedServiceTenant(t, tenantRepo)
	require.NoError(t, db.Create(&models.Guild{TenantID: tenant.ID, ID: "a0", Name: "Earlier"}).Error)

	_, location, err := svc.Authorize(ctx, tenant.ClientID, "https://app.example/cb", "st")
	require.NoError(t, err)
	assert.Contains(t, location, "guild_id=a0")
}

func TestContentOf(t *testing.T) {
	assert.Equal(t, "Hi", ContentOf([]byte(`{"content":"Hi","embeds":[]}`)))
	assert.Equal(t, "", ContentOf([]byte(`{"embeds":[]}`)))
	assert.Equal(t, "", ContentOf([]byte(`not json`)))
}
