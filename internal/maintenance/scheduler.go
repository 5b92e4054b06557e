package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/events"
)

var ErrAlreadyRunning = errors.New("maintenance scheduler already running")

// StartupTempAge is the age threshold of the quick sweep done on Start.
const StartupTempAge = time.Hour

type SchedulerConfig struct {
	CheckInterval  time.Duration
	BackupInterval time.Duration
	CleanupEvery   time.Duration
	CleanupAge     time.Duration
}

// Scheduler runs backups and temp cleanups on its own goroutine. Stop waits a
// bounded time for a task in flight; a task still running after that is
// abandoned and logged.
type Scheduler struct {
	cfg       SchedulerConfig
	backups   *Backuper
	cleaner   *Cleaner
	publisher events.Publisher
	logger    logger.ILogger
	now       func() time.Time

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	lastBackup  time.Time
	lastCleanup time.Time
}

func NewScheduler(cfg SchedulerConfig, backups *Backuper, cleaner *Cleaner, publisher events.Publisher, log logger.ILogger) *Scheduler {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	return &Scheduler{
		cfg:       cfg,
		backups:   backups,
		cleaner:   cleaner,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrAlreadyRunning
	}

	if s.cleaner != nil {
		s.cleaner.CleanTemp(ctx, StartupTempAge, false)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	now := s.now()
	s.lastBackup = now
	s.lastCleanup = now

	go s.loop(runCtx, s.done)

	s.logger.Info("Scheduler", "Maintenance scheduler started", map[string]interface{}{
		"check_interval":  s.cfg.CheckInterval.String(),
		"backup_interval": s.cfg.BackupInterval.String(),
		"cleanup_every":   s.cfg.CleanupEvery.String(),
	})
	return nil
}

// Stop reports whether the loop exited within timeout. Calling Stop on a
// scheduler that is not running is a no-op.
func (s *Scheduler) Stop(timeout time.Duration) bool {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return true
	}
	cancel()

	select {
	case <-done:
		s.logger.Info("Scheduler", "Maintenance scheduler stopped", nil)
		return true
	case <-time.After(timeout):
		s.logger.Warn("Scheduler", "Maintenance task still running after stop timeout", map[string]interface{}{
			"timeout": timeout.String(),
		})
		return false
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs whichever task is due. A panicking task is logged and the loop
// keeps going.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduler", "Maintenance task panicked", map[string]interface{}{"panic": r})
		}
	}()

	now := s.now()
	s.mu.Lock()
	backupDue := s.backups != nil && s.cfg.BackupInterval > 0 && now.Sub(s.lastBackup) >= s.cfg.BackupInterval
	cleanupDue := s.cleaner != nil && s.cfg.CleanupEvery > 0 && now.Sub(s.lastCleanup) >= s.cfg.CleanupEvery
	if backupDue {
		s.lastBackup = now
	}
	if cleanupDue {
		s.lastCleanup = now
	}
	s.mu.Unlock()

	if backupDue {
		s.RunBackup(ctx)
	}
	if cleanupDue && ctx.Err() == nil {
		s.cleaner.CleanTemp(ctx, s.cfg.CleanupAge, false)
	}
}

// RunBackup creates an archive, prunes old ones and announces the result.
func (s *Scheduler) RunBackup(ctx context.Context) (BackupResult, error) {
	result, err := s.backups.Create(ctx)
	if err != nil {
		s.logger.Error("Scheduler", "Backup failed", map[string]interface{}{"error": err})
		return result, err
	}
	if _, err := s.backups.Prune(); err != nil {
		s.logger.Warn("Scheduler", "Backup prune failed", map[string]interface{}{"error": err.Error()})
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.BackupCreated(result.Path, result.Files)); err != nil {
			s.logger.Warn("Scheduler", "Failed to publish backup event", map[string]interface{}{"error": err.Error()})
		}
	}
	return result, nil
}
