package fileutil

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"inventory-assistant-be/internal/pkg/logger"
)

// RetryConfig configures delete retries. Delay is fixed between attempts.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetry tolerates short-lived file locks held by viewers or antivirus scanners.
var DefaultRetry = RetryConfig{
	MaxAttempts: 3,
	Delay:       500 * time.Millisecond,
}

// Remover deletes files with bounded retries. Failures are logged, never returned.
type Remover struct {
	cfg    RetryConfig
	logger logger.ILogger
	remove func(string) error
}

func NewRemover(cfg RetryConfig, log logger.ILogger) *Remover {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Remover{cfg: cfg, logger: log, remove: os.Remove}
}

// Remove reports whether the file is gone. A file that never existed counts as removed.
func (r *Remover) Remove(ctx context.Context, path string) bool {
	if path == "" {
		return true
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := r.remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			if attempt > 1 {
				r.logger.Debug("FileUtil", "File removed after retry", map[string]interface{}{
					"path":    path,
					"attempt": attempt,
				})
			}
			return true
		}
		lastErr = err

		if attempt == r.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			r.logger.Warn("FileUtil", "File removal interrupted", map[string]interface{}{
				"path":  path,
				"error": ctx.Err().Error(),
			})
			return false
		case <-time.After(r.cfg.Delay):
		}
	}

	r.logger.Warn("FileUtil", "Giving up on file removal", map[string]interface{}{
		"path":     path,
		"attempts": r.cfg.MaxAttempts,
		"error":    lastErr.Error(),
	})
	return false
}

// RemoveAll removes every path and returns how many are gone.
func (r *Remover) RemoveAll(ctx context.Context, paths []string) int {
	removed := 0
	for _, p := range paths {
		if r.Remove(ctx, p) {
			removed++
		}
	}
	return removed
}

// Exists reports whether path refers to an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
