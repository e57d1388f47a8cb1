// Package scheduler runs the hourly tenant expiry sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"discord-fake-service/internal/redis"
	"discord-fake-service/internal/services"
)

// Sweeper deletes tenants older than the configured age on a cron
// schedule. When Redis is available an advisory lock keeps a multi-replica
// deployment from running the same pass everywhere; the lock is an
// optimization, deletion itself is idempotent.
type Sweeper struct {
	tenantService *services.TenantService
	redisClient   *redis.Client
	schedule      string
	maxAge        time.Duration
	logger        *logrus.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper creates a new expiry sweeper
func NewSweeper(tenantService *services.TenantService, redisClient *redis.Client, schedule string, maxAge time.Duration, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		tenantService: tenantService,
		redisClient:   redisClient,
		schedule:      schedule,
		maxAge:        maxAge,
		logger:        logger,
	}
}

// Start registers the cron entry and begins scheduling
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.WithError(err).Error("Scheduled tenant sweep failed")
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.WithField("schedule", s.schedule).Info("Expiry sweeper started")
	return nil
}

// Stop halts scheduling and waits for a running pass to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

// RunOnce executes a single sweep pass. When another instance holds the
// advisory lock the pass is skipped and reports zero deletions.
func (s *Sweeper) RunOnce(ctx context.Context) (*services.SweepResult, error) {
	acquired, err := s.redisClient.AcquireSweepLock(ctx, 10*time.Minute)
	if err != nil {
		s.logger.WithError(err).Warn("Sweeper lock unavailable, skipping pass")
		return &services.SweepResult{Deleted: 0, Checked: true}, nil
	}
	if !acquired {
		return &services.SweepResult{Deleted: 0, Checked: true}, nil
	}
	defer s.redisClient.ReleaseSweepLock(ctx)

	return s.tenantService.CleanupExpiredTenants(ctx, s.maxAge)
}
