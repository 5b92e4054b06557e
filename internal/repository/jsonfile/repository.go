// Package jsonfile persists operational records as JSON arrays under the
// data directory. Every write rewrites the file through a temp file and a
// rename so a crash never leaves half a document behind.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/records"
	"inventory-assistant-be/pkg/validation"
)

const (
	FileUnfound     = "unfound_equipment.json"
	FileTransfers   = "equipment_transfers.json"
	FileCartridges  = "cartridge_replacements.json"
	FileBatteries   = "battery_replacements.json"
	FileCleanings   = "pc_cleanings.json"
	FileComponents  = "component_replacements.json"
	FileDBSelection = "user_db_selection.json"
)

// BackupSet is the fixed list of data files archived by the backup job. The
// cache files are kept for archives made by older deployments.
var BackupSet = []string{
	FileUnfound,
	FileTransfers,
	FileCartridges,
	FileBatteries,
	FileCleanings,
	FileComponents,
	FileDBSelection,
	"export_state.json",
	"printer_color_cache.json",
	"printer_component_cache.json",
	"employee_suggestions_cache.json",
	"equipment_list_cache.json",
	"equipment_models_cache.json",
}

var workFiles = map[records.WorkKind]string{
	records.WorkBattery:   FileBatteries,
	records.WorkCleaning:  FileCleanings,
	records.WorkComponent: FileComponents,
	records.WorkCartridge: FileCartridges,
}

type Repository struct {
	dir    string
	mu     sync.Mutex
	logger logger.ILogger
	now    func() time.Time

	selMu      sync.RWMutex
	selections map[string]string
}

var (
	_ records.Store      = (*Repository)(nil)
	_ records.Selections = (*Repository)(nil)
)

func NewRepository(dir string, log logger.ILogger) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	r := &Repository{dir: dir, logger: log, now: time.Now, selections: make(map[string]string)}
	if err := r.read(FileDBSelection, &r.selections); err != nil {
		log.Warn("JSONRepository", "Ignoring unreadable database selections", map[string]interface{}{
			"error": err.Error(),
		})
		r.selections = make(map[string]string)
	}
	return r, nil
}

func (r *Repository) Dir() string {
	return r.dir
}

func (r *Repository) path(name string) string {
	return filepath.Join(r.dir, name)
}

// read decodes name into out. A missing or empty file leaves out untouched.
func (r *Repository) read(name string, out interface{}) error {
	data, err := os.ReadFile(r.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (r *Repository) write(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(r.dir, "."+name+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.path(name))
}

// appendRecord reads the array in name, lets check inspect it and writes it
// back with rec appended.
func appendRecord[T any](r *Repository, name string, rec T, check func([]T) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []T
	if err := r.read(name, &list); err != nil {
		return err
	}
	if check != nil {
		if err := check(list); err != nil {
			return err
		}
	}
	return r.write(name, append(list, rec))
}

func (r *Repository) SaveUnfound(_ context.Context, rec records.Unfound) (records.Unfound, error) {
	if err := validation.Struct(rec); err != nil {
		return rec, err
	}
	records.Stamp(&rec.ID, &rec.CreatedAt, r.now())

	err := appendRecord(r, FileUnfound, rec, func(list []records.Unfound) error {
		for _, existing := range list {
			if strings.EqualFold(strings.TrimSpace(existing.Serial), strings.TrimSpace(rec.Serial)) {
				return fmt.Errorf("%w: %s", records.ErrDuplicateSerial, rec.Serial)
			}
		}
		return nil
	})
	if err != nil {
		return rec, err
	}
	r.logger.Info("JSONRepository", "Unfound equipment saved", map[string]interface{}{
		"serial": rec.Serial,
		"db":     rec.DBName,
	})
	return rec, nil
}

func (r *Repository) AppendTransfer(_ context.Context, rec records.Transfer) (records.Transfer, error) {
	if err := validation.Struct(rec); err != nil {
		return rec, err
	}
	records.Stamp(&rec.ID, &rec.CreatedAt, r.now())
	if err := appendRecord(r, FileTransfers, rec, nil); err != nil {
		return rec, err
	}
	return rec, nil
}

func (r *Repository) AppendWork(_ context.Context, rec records.Work) (records.Work, error) {
	name, ok := workFiles[rec.Kind]
	if !ok {
		return rec, fmt.Errorf("unknown work type %q", rec.Kind)
	}
	records.Stamp(&rec.ID, &rec.CreatedAt, r.now())
	if err := appendRecord(r, name, rec, nil); err != nil {
		return rec, err
	}
	return rec, nil
}

// ListUnfound returns every saved unfound record.
func (r *Repository) ListUnfound() ([]records.Unfound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []records.Unfound
	err := r.read(FileUnfound, &list)
	return list, err
}

func (r *Repository) ListWork(kind records.WorkKind) ([]records.Work, error) {
	name, ok := workFiles[kind]
	if !ok {
		return nil, fmt.Errorf("unknown work type %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []records.Work
	err := r.read(name, &list)
	return list, err
}

func (r *Repository) Selected(userID string) (string, bool) {
	r.selMu.RLock()
	defer r.selMu.RUnlock()
	db, ok := r.selections[userID]
	return db, ok
}

func (r *Repository) Select(userID, db string) error {
	r.selMu.Lock()
	defer r.selMu.Unlock()
	r.selections[userID] = db

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(FileDBSelection, r.selections)
}
