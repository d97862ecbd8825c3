package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"fieldops-backend/dal"
	"fieldops-backend/models"
	"fieldops-backend/repository"
	"fieldops-backend/utils/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron"
)

// Service owns the background jobs: one-time table provisioning at startup
// and the recurring audit-consistency sweep.
type Service struct {
	config *models.Config
	logger logger.Logger

	infra *InfrastructureSetup
	sweep *AuditSweep

	cronJob *cron.Cron
	lock    *LockManager
	ownerID string

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewService(db dal.DatabaseClientInterface, workOrders repository.WorkOrderRepositoryInterface, audits repository.AuditRepositoryInterface, cfg *models.Config, log logger.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		hostname = "localhost"
	}
	ownerID := fmt.Sprintf("worker-%s-%s", hostname, uuid.New().String()[:8])

	lockPath := fmt.Sprintf("/tmp/fieldops-worker-%s.lock", cfg.AppEnv)
	lockManager := NewLockManager(lockPath, 30*time.Minute, cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		config:  cfg,
		logger:  log,
		infra:   NewInfrastructureSetup(db, cfg, log),
		sweep:   NewAuditSweep(workOrders, audits, cfg, log),
		cronJob: cron.New(),
		lock:    lockManager,
		ownerID: ownerID,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start provisions tables and schedules the audit sweep. It returns once the
// scheduler is running; jobs execute on the cron goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("worker is already running")
	}

	s.logger.Infof("Starting background worker %s", s.ownerID)

	setupCtx, cancel := context.WithTimeout(s.ctx, 15*time.Minute)
	defer cancel()
	if err := s.infra.EnsureTables(setupCtx); err != nil {
		return fmt.Errorf("infrastructure setup failed: %w", err)
	}

	if err := s.cronJob.AddFunc(s.config.SweepSchedule, s.runSweepJob); err != nil {
		return fmt.Errorf("failed to schedule audit sweep %q: %w", s.config.SweepSchedule, err)
	}

	s.cronJob.Start()
	s.isRunning = true

	s.logger.Infof("Background worker started, sweep schedule: %s", s.config.SweepSchedule)
	return nil
}

// StartInBackground runs Start on its own goroutine so server startup is not
// blocked by table provisioning.
func (s *Service) StartInBackground() {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Errorf("Background worker panicked: %v", r)
			}
		}()
		if err := s.Start(); err != nil {
			s.logger.Errorf("Background worker failed to start: %v", err)
		}
	}()
}

// runSweepJob is the cron entry point. The file lock keeps instances sharing
// a host from sweeping the same tables concurrently.
func (s *Service) runSweepJob() {
	if _, err := s.lock.AcquireLock(s.ownerID); err != nil {
		s.logger.Infof("Skipping audit sweep, lock unavailable: %v", err)
		return
	}
	defer func() {
		if err := s.lock.ReleaseLock(s.ownerID); err != nil {
			s.logger.Warnf("Failed to release worker lock: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, 15*time.Minute)
	defer cancel()

	if _, err := s.sweep.Run(ctx); err != nil {
		s.logger.Errorf("Audit sweep failed: %v", err)
	}
}

// Stop halts the scheduler and cancels any in-flight job context.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.cronJob.Stop()
	s.cancel()
	s.isRunning = false
	s.logger.Info("Background worker stopped")
}
