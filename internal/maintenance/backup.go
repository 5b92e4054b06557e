package maintenance

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"inventory-assistant-be/internal/pkg/logger"
)

const (
	backupPrefix     = "json_backup_"
	backupExt        = ".zip"
	backupTimeLayout = "20060102_150405"
	archiveDataDir   = "data"
)

var ErrBackupNotFound = errors.New("backup archive not found")

type BackupConfig struct {
	DataDir    string
	BackupDir  string
	MaxBackups int
	// Files is the fixed set of data file names placed in every archive.
	Files []string
}

type BackupResult struct {
	Path    string
	Files   int
	Missing []string
}

type BackupInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Backuper writes timestamped zip archives of the JSON record files and keeps
// only the newest MaxBackups of them.
type Backuper struct {
	cfg    BackupConfig
	logger logger.ILogger
	now    func() time.Time
}

func NewBackuper(cfg BackupConfig, log logger.ILogger) *Backuper {
	return &Backuper{cfg: cfg, logger: log, now: time.Now}
}

func (b *Backuper) Dir() string {
	return b.cfg.BackupDir
}

// Create archives every file of the set that exists. Missing files are
// reported, not fatal.
func (b *Backuper) Create(ctx context.Context) (BackupResult, error) {
	if err := ctx.Err(); err != nil {
		return BackupResult{}, err
	}
	if err := os.MkdirAll(b.cfg.BackupDir, 0o755); err != nil {
		return BackupResult{}, fmt.Errorf("failed to create backup dir: %w", err)
	}

	name := backupPrefix + b.now().Format(backupTimeLayout) + backupExt
	target := filepath.Join(b.cfg.BackupDir, name)

	tmp, err := os.CreateTemp(b.cfg.BackupDir, ".backup-*")
	if err != nil {
		return BackupResult{}, fmt.Errorf("failed to create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	result := BackupResult{Path: target}
	zw := zip.NewWriter(tmp)
	for _, file := range b.cfg.Files {
		added, err := addToArchive(zw, filepath.Join(b.cfg.DataDir, file), path.Join(archiveDataDir, file))
		if err != nil {
			zw.Close()
			tmp.Close()
			return BackupResult{}, err
		}
		if !added {
			result.Missing = append(result.Missing, file)
			b.logger.Warn("Backup", "Data file missing, skipped", map[string]interface{}{"file": file})
			continue
		}
		result.Files++
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return BackupResult{}, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return BackupResult{}, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return BackupResult{}, fmt.Errorf("failed to store archive: %w", err)
	}

	b.logger.Info("Backup", "Backup created", map[string]interface{}{
		"archive": name,
		"files":   result.Files,
		"missing": len(result.Missing),
	})
	return result, nil
}

func addToArchive(zw *zip.Writer, src, entry string) (bool, error) {
	f, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", src, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return false, err
	}
	header.Name = entry
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return false, fmt.Errorf("failed to add %s: %w", entry, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return false, fmt.Errorf("failed to add %s: %w", entry, err)
	}
	return true, nil
}

// List returns the archives newest first.
func (b *Backuper) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(b.cfg.BackupDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}

	var out []BackupInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{
			Name:    name,
			Path:    filepath.Join(b.cfg.BackupDir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].Name > out[j].Name
		}
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}

// Prune deletes everything past the newest MaxBackups archives.
func (b *Backuper) Prune() (int, error) {
	if b.cfg.MaxBackups <= 0 {
		return 0, nil
	}
	list, err := b.List()
	if err != nil {
		return 0, err
	}
	if len(list) <= b.cfg.MaxBackups {
		return 0, nil
	}

	removed := 0
	for _, old := range list[b.cfg.MaxBackups:] {
		if err := os.Remove(old.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("Backup", "Failed to remove old backup", map[string]interface{}{
				"archive": old.Name,
				"error":   err.Error(),
			})
			continue
		}
		removed++
	}
	b.logger.Info("Backup", "Old backups pruned", map[string]interface{}{
		"removed": removed,
		"kept":    len(list) - removed,
		"limit":   b.cfg.MaxBackups,
	})
	return removed, nil
}

// Restore copies the data/*.json entries of an archive back into the data
// directory. archive may be a path or a bare name inside the backup dir.
func (b *Backuper) Restore(ctx context.Context, archive string) ([]string, error) {
	src, err := b.resolve(archive)
	if err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(b.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	var restored []string
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		dir, name := path.Split(f.Name)
		if path.Clean(dir) != archiveDataDir || name == "" || path.Ext(name) != ".json" {
			continue
		}
		if err := extract(f, filepath.Join(b.cfg.DataDir, name)); err != nil {
			return restored, err
		}
		restored = append(restored, name)
	}

	b.logger.Info("Backup", "Backup restored", map[string]interface{}{
		"archive": filepath.Base(src),
		"files":   len(restored),
	})
	return restored, nil
}

func (b *Backuper) resolve(archive string) (string, error) {
	candidates := []string{archive}
	if !filepath.IsAbs(archive) {
		candidates = append(candidates, filepath.Join(b.cfg.BackupDir, archive))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrBackupNotFound, archive)
}

func extract(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".restore-*")
	if err != nil {
		return fmt.Errorf("failed to restore %s: %w", f.Name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restore %s: %w", f.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to restore %s: %w", f.Name, err)
	}
	return os.Rename(tmp.Name(), dst)
}
