package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
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

func newAuditRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))
	t.Cleanup(func() {
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.AuditLog{})
		sqlDB.Close()
	})

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	router := gin.New()
	router.Use(AuditLogger(repository.NewAuditRepository(db), logger))
	return router, db
}

func TestAuditLogger_CapturesRoundTrip(t *testing.T) {
	router, db := newAuditRouter(t)
	tenantID := uuid.New()

	router.POST("/echo", func(c *gin.Context) {
		SetTenantID(c, tenantID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest("POST", "/echo?x=1", strings.NewReader(`{"content":"Hi"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []models.AuditLog
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "POST", entry.Method)
	assert.Equal(t, "/echo?x=1", entry.URL)
	require.NotNil(t, entry.RequestBody)
	assert.JSONEq(t, `{"content":"Hi"}`, *entry.RequestBody)
	assert.Equal(t, http.StatusOK, entry.ResponseStatus)
	require.NotNil(t, entry.ResponseBody)
	assert.JSONEq(t, `{"ok":true}`, *entry.ResponseBody)
	require.NotNil(t, entry.TenantID)
	assert.Equal(t, tenantID, *entry.TenantID)
}

func TestAuditLogger_GetHasNoRequestBody(t *testing.T) {
	router, db := newAuditRouter(t)
	router.GET("/thing", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/thing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var entries []models.AuditLog
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].RequestBody)
	assert.Nil(t, entries[0].TenantID)
}

func TestAuditLogger_SkipsAuditLogPaths(t *testing.T) {
	router, db := newAuditRouter(t)
	router.GET("/_test/:tenantId/audit-logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auditLogs": []string{}})
	})
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/_test/" + uuid.NewString() + "/audit-logs", "/health"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAuditLogger_HandlerBodyStillDelivered(t *testing.T) {
	router, _ := newAuditRouter(t)
	router.POST("/read", func(c *gin.Context) {
		body, err := c.GetRawData()
		require.NoError(t, err)
		c.String(http.StatusOK, string(body))
	})

	req := httptest.NewRequest("POST", "/read", strings.NewReader("payload"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// buffering the request body for the audit row must not consume it
	assert.Equal(t, "payload", w.Body.String())
}
