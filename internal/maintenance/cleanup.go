package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"inventory-assistant-be/internal/pkg/fileutil"
	"inventory-assistant-be/internal/pkg/logger"
)

// TempPatterns match the photos saved while a recognition request is in flight.
var TempPatterns = []string{
	"temp_*.jpg",
	"temp_*.jpeg",
	"temp_*.png",
	"temp_battery_*.jpg",
	"temp_pc_cleaning_*.jpg",
	"temp_component_replacement_*.jpg",
	"temp_transfer_*.jpg",
}

// ActPatterns match generated transfer acts.
var ActPatterns = []string{"*.html", "*.pdf"}

type CleanupStats struct {
	Found   int
	Deleted int
	Skipped int
	Bytes   int64
	Files   []string
}

func (s CleanupStats) SizeMB() float64 {
	return float64(s.Bytes) / (1024 * 1024)
}

// Cleaner removes stale temp photos and old act documents.
type Cleaner struct {
	tempDirs []string
	actsDir  string
	remover  *fileutil.Remover
	logger   logger.ILogger
	now      func() time.Time
}

func NewCleaner(tempDirs []string, actsDir string, remover *fileutil.Remover, log logger.ILogger) *Cleaner {
	return &Cleaner{
		tempDirs: tempDirs,
		actsDir:  actsDir,
		remover:  remover,
		logger:   log,
		now:      time.Now,
	}
}

// CleanTemp deletes temp photos older than maxAge. The acts directory is
// scanned too because transfer photos are sometimes saved next to the acts.
func (c *Cleaner) CleanTemp(ctx context.Context, maxAge time.Duration, dryRun bool) CleanupStats {
	dirs := append([]string{}, c.tempDirs...)
	if c.actsDir != "" {
		dirs = append(dirs, c.actsDir)
	}
	stats := c.sweep(ctx, match(dirs, TempPatterns), maxAge, dryRun)
	c.report("Temp files cleaned", stats, dryRun)
	return stats
}

// CleanActs deletes act documents older than maxAge.
func (c *Cleaner) CleanActs(ctx context.Context, maxAge time.Duration, dryRun bool) CleanupStats {
	if c.actsDir == "" {
		return CleanupStats{}
	}
	stats := c.sweep(ctx, match([]string{c.actsDir}, ActPatterns), maxAge, dryRun)
	c.report("Old acts cleaned", stats, dryRun)
	return stats
}

func (c *Cleaner) report(msg string, stats CleanupStats, dryRun bool) {
	details := map[string]interface{}{
		"found":   stats.Found,
		"deleted": stats.Deleted,
		"skipped": stats.Skipped,
		"size_mb": stats.SizeMB(),
		"dry_run": dryRun,
	}
	if stats.Deleted > 0 {
		c.logger.Info("Cleanup", msg, details)
		return
	}
	c.logger.Debug("Cleanup", msg, details)
}

// match expands the patterns in every existing dir, each file reported once.
func match(dirs, patterns []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, pattern := range patterns {
			found, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				continue
			}
			for _, p := range found {
				abs, err := filepath.Abs(p)
				if err != nil {
					abs = p
				}
				if seen[abs] {
					continue
				}
				seen[abs] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (c *Cleaner) sweep(ctx context.Context, files []string, maxAge time.Duration, dryRun bool) CleanupStats {
	cutoff := c.now().Add(-maxAge)
	stats := CleanupStats{Found: len(files)}

	for _, p := range files {
		if ctx.Err() != nil {
			stats.Skipped++
			continue
		}
		info, err := os.Stat(p)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			stats.Skipped++
			continue
		}

		if !dryRun && !c.remover.Remove(ctx, p) {
			stats.Skipped++
			continue
		}
		stats.Deleted++
		stats.Bytes += info.Size()
		stats.Files = append(stats.Files, p)
	}
	return stats
}
