package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"discord-fake-service/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(0)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
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
	return db
}

func seedTenant(t *testing.T, db *gorm.DB) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		ID:           uuid.New(),
		BotToken:     "bot-" + uuid.NewString(),
		ClientID:     "client-" + uuid.NewString(),
		ClientSecret: "secret",
		PublicKey:    "pub",
		PrivateKey:   "priv",
		NextID:       1,
		CreatedAt:    time.Now().UTC(),
	}
	guilds := []models.Guild{{TenantID: tenant.ID, ID: "g1", Name: "Guild One"}}
	channels := []models.Channel{{TenantID: tenant.ID, ID: "c1", GuildID: "g1", Name: "general"}}
	require.NoError(t, NewTenantRepository(db).Create(context.Background(), tenant, guilds, channels))
	return tenant
}

func TestTenantRepository_DuplicateBotToken(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepository(db)
	ctx := context.Background()

	first := seedTenant(t, db)

	dup := &models.Tenant{
		ID:           uuid.New(),
		BotToken:     first.BotToken,
		ClientID:     "client-" + uuid.NewString(),
		ClientSecret: "secret",
		PublicKey:    "pub",
		PrivateKey:   "priv",
		CreatedAt:    time.Now().UTC(),
	}
	err := repo.Create(ctx, dup, nil, nil)
	assert.ErrorIs(t, err, ErrDuplicateBotToken)
}

func TestTenantRepository_DuplicateClientID(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepository(db)
	ctx := context.Background()

	first := seedTenant(t, db)

	dup := &models.Tenant{
		ID:           uuid.New(),
		BotToken:     "bot-" + uuid.NewString(),
		ClientID:     first.ClientID,
		ClientSecret: "secret",
		PublicKey:    "pub",
		PrivateKey:   "priv",
		CreatedAt:    time.Now().UTC(),
	}
	err := repo.Create(ctx, dup, nil, nil)
	assert.ErrorIs(t, err, ErrDuplicateClientID)
}

func TestTenantRepository_Resolvers(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepository(db)
	stateRepo := NewStateRepository(db)
	ctx := context.Background()

	tenant := seedTenant(t, db)

	byID, err := repo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, tenant.BotToken, byID.BotToken)

	byToken, err := repo.GetByBotToken(ctx, tenant.BotToken)
	require.NoError(t, err)
	require.NotNil(t, byToken)

	byClient, err := repo.GetByClientID(ctx, tenant.ClientID)
	require.NoError(t, err)
	require.NotNil(t, byClient)

	missing, err := repo.GetByBotToken(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, stateRepo.CreateAccessToken(ctx, &models.AccessToken{
		Token:     "tok-1",
		TenantID:  tenant.ID,
		CreatedAt: time.Now().UTC(),
	}))
	byAccess, err := repo.GetByAccessToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, byAccess)
	assert.Equal(t, tenant.ID, byAccess.ID)
}

func TestGenerateID_MonotonicPerTenant(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepository(db)
	ctx := context.Background()

	tenant := seedTenant(t, db)

	seen := map[string]bool{}
	for i := 1; i <= 5; i++ {
		id, err := repo.GenerateID(ctx, tenant.ID, "msg")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), id)
		assert.False(t, seen[id])
		seen[id] = true
	}

	// prefixes share the same counter
	id, err := repo.GenerateID(ctx, tenant.ID, "resp")
	require.NoError(t, err)
	assert.Equal(t, "resp-6", id)
}

func TestGenerateID_UnknownTenant(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepository(db)

	_, err := repo.GenerateID(context.Background(), uuid.New(), "msg")
	assert.Error(t, err)
}

func TestConsumeAuthCode_SingleUse(t *testing.T) {
	db := newTestDB(t)
	stateRepo := NewStateRepository(db)
	ctx := context.Background()

	tenant := seedTenant(t, db)
	require.NoError(t, stateRepo.CreateAuthCode(ctx, &models.AuthCode{
		Code:        "code-1",
		TenantID:    tenant.ID,
		GuildID:     "g1",
		RedirectURI: "https://app.example/cb",
	}))

	first, err := stateRepo.ConsumeAuthCode(ctx, "code-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, tenant.ID, first.TenantID)
	assert.Equal(t, "g1", first.GuildID)
	assert.Equal(t, "https://app.example/cb", first.RedirectURI)

	second, err := stateRepo.ConsumeAuthCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestEditMessage_CapturesPreImage(t *testing.T) {
	db := newTestDB(t)
	stateRepo := NewStateRepository(db)
	ctx := context.Background()

	tenant := seedTenant(t, db)
	require.NoError(t, stateRepo.CreateMessage(ctx, &models.Message{
		TenantID:  tenant.ID,
		ID:        "msg-1",
		ChannelID: "c1",
		Payload:   datatypes.JSON(`{"content":"Hi"}`),
		CreatedAt: time.Now().UTC(),
	}))

	err := stateRepo.EditMessage(ctx, tenant.ID, "msg-1", datatypes.JSON(`{"content":"Hi!"}`), time.Now().UTC())
	require.NoError(t, err)

	messages, err := stateRepo.ListMessages(ctx, tenant.ID, "c1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.JSONEq(t, `{"content":"Hi!"}`, string(messages[0].Payload))
	require.Len(t, messages[0].EditHistory, 1)
	assert.JSONEq(t, `{"content":"Hi"}`, string(messages[0].EditHistory[0].Payload))
}

func TestEditMessage_UnknownMessage(t *testing.T) {
	db := newTestDB(t)
	stateRepo := NewStateRepository(db)

	tenant := seedTenant(t, db)
	err := stateRepo.EditMessage(context.Background(), tenant.ID, "msg-404", datatypes.JSON(`{}`), time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertInteractionResponse_OneRowPerToken(t *testing.T) {
	db := newTestDB(t)
	stateRepo := NewStateRepository(db)
	ctx := context.Background()

	tenant := seedTenant(t, db)
	for i, content := range []string{"first", "second"} {
		err := stateRepo.UpsertInteractionResponse(ctx, &models.InteractionResponse{
			TenantID:         tenant.ID,
			InteractionToken: "tok",
			ResponseID:       fmt.Sprintf("resp-%d", i+1),
			Payload:          datatypes.JSON(fmt.Sprintf(`{"content":%q}`, content)),
			RespondedAt:      time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.InteractionResponse{}).
		Where("tenant_id = ?", tenant.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	response, err := stateRepo.GetInteractionResponse(ctx, tenant.ID, "tok")
	require.NoError(t, err)
	require.NotNil(t, response)
	assert.Equal(t, "resp-2", response.ResponseID)
	assert.JSONEq(t, `{"content":"second"}`, string(response.Payload))
}

func TestReplaceCommands_ReplacesWholeSet(t *testing.T) {
	db := newTestDB(t)
	stateRepo := NewStateRepository(db)
	ctx := context.Background()

	tenant := seedTenant(t, db)

	first, err := stateRepo.ReplaceCommands(ctx, tenant.ID, "g1",
		[]datatypes.JSON{datatypes.JSON(`{"name":"old"}`)}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "cmd-1", first[0].ID)

	second, err := stateRepo.ReplaceCommands(ctx, tenant.ID, "g1",
		[]datatypes.JSON{datatypes.JSON(`{"name":"new"}`)}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "cmd-2", second[0].ID)

	commands, err := stateRepo.ListCommands(ctx, tenant.ID, "g1")
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.JSONEq(t, `{"name":"new"}`, string(commands[0].Payload))
}

func TestReset_ClearsMutableStateOnly(t *testing.T) {
	db := newTestDB(t)
	tenantRepo := NewTenantRepository(db)
	stateRepo := NewStateRepository(db)
	ctx := context.Background()

	tenant := seedTenant(t, db)
	_, err := tenantRepo.GenerateID(ctx, tenant.ID, "msg")
	require.NoError(t, err)
	require.NoError(t, stateRepo.CreateMessage(ctx, &models.Message{
		TenantID: tenant.ID, ID: "msg-1", ChannelID: "c1",
		Payload: datatypes.JSON(`{}`), CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, stateRepo.CreateReaction(ctx, &models.Reaction{
		TenantID: tenant.ID, ChannelID: "c1", MessageID: "msg-1",
		Emoji: "🔥", CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, tenantRepo.Reset(ctx, tenant.ID))

	messages, err := stateRepo.ListMessages(ctx, tenant.ID, "c1")
	require.NoError(t, err)
	assert.Empty(t, messages)

	channel, err := stateRepo.GetChannel(ctx, tenant.ID, "c1")
	require.NoError(t, err)
	assert.NotNil(t, channel)

	fresh, err := tenantRepo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fresh.NextID)

	// reset is idempotent
	require.NoError(t, tenantRepo.Reset(ctx, tenant.ID))
}

func TestDelete_CascadesEverything(t *testing.T) {
	db := newTestDB(t)
	tenantRepo := NewTenantRepository(db)
	stateRepo := NewStateRepository(db)
	ctx := context.Background()

	tenant := seedTenant(t, db)
	require.NoError(t, stateRepo.CreateMessage(ctx, &models.Message{
		TenantID: tenant.ID, ID: "msg-1", ChannelID: "c1",
		Payload: datatypes.JSON(`{}`), CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, tenantRepo.Delete(ctx, tenant.ID))

	gone, err := tenantRepo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	for _, m := range []interface{}{&models.Guild{}, &models.Channel{}, &models.Message{}} {
		var count int64
		require.NoError(t, db.Model(m).Where("tenant_id = ?", tenant.ID).Count(&count).Error)
		assert.Zero(t, count)
	}

	err = tenantRepo.Delete(ctx, tenant.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListCreatedBefore(t *testing.T) {
	db := newTestDB(t)
	tenantRepo := NewTenantRepository(db)
	ctx := context.Background()

	old := seedTenant(t, db)
	require.NoError(t, db.Model(&models.Tenant{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().UTC().Add(-25*time.Hour)).Error)
	seedTenant(t, db)

	expired, err := tenantRepo.ListCreatedBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)
}
