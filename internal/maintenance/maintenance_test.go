package maintenance

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"inventory-assistant-be/internal/pkg/fileutil"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nop = logger.NewNopLogger()

func writeFile(t *testing.T, path, content string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	if age > 0 {
		ts := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, ts, ts))
	}
}

func newBackuper(t *testing.T, max int) (*Backuper, string) {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	b := NewBackuper(BackupConfig{
		DataDir:    dataDir,
		BackupDir:  filepath.Join(root, "backups", "json"),
		MaxBackups: max,
		Files:      []string{"unfound_equipment.json", "equipment_transfers.json", "pc_cleanings.json"},
	}, nop)
	return b, dataDir
}

func archiveEntries(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestBackuper_CreateArchivesExistingFiles(t *testing.T) {
	b, dataDir := newBackuper(t, 30)
	b.now = func() time.Time { return time.Date(2026, 3, 14, 9, 5, 7, 0, time.Local) }
	writeFile(t, filepath.Join(dataDir, "unfound_equipment.json"), `[{"serial":"AB0C12"}]`, 0)
	writeFile(t, filepath.Join(dataDir, "pc_cleanings.json"), `[]`, 0)

	res, err := b.Create(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "json_backup_20260314_090507.zip", filepath.Base(res.Path))
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, []string{"equipment_transfers.json"}, res.Missing)
	assert.Equal(t, []string{"data/pc_cleanings.json", "data/unfound_equipment.json"}, archiveEntries(t, res.Path))
}

func TestBackuper_PruneKeepsNewest(t *testing.T) {
	b, dataDir := newBackuper(t, 3)
	writeFile(t, filepath.Join(dataDir, "pc_cleanings.json"), `[]`, 0)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)
	var paths []string
	for i := 0; i < 5; i++ {
		stamp := base.Add(time.Duration(i) * time.Hour)
		b.now = func() time.Time { return stamp }
		res, err := b.Create(context.Background())
		require.NoError(t, err)
		mtime := time.Now().Add(time.Duration(i-10) * time.Minute)
		require.NoError(t, os.Chtimes(res.Path, mtime, mtime))
		paths = append(paths, res.Path)
	}
	// unrelated files in the backup dir are left alone
	writeFile(t, filepath.Join(b.Dir(), "notes.txt"), "keep", 0)

	removed, err := b.Prune()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := b.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, filepath.Base(paths[4]), list[0].Name)
	assert.Equal(t, filepath.Base(paths[2]), list[2].Name)
	assert.NoFileExists(t, paths[0])
	assert.NoFileExists(t, paths[1])
	assert.FileExists(t, filepath.Join(b.Dir(), "notes.txt"))
}

func TestBackuper_ListWithoutDir(t *testing.T) {
	b, _ := newBackuper(t, 3)
	list, err := b.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBackuper_Restore(t *testing.T) {
	b, dataDir := newBackuper(t, 30)
	file := filepath.Join(dataDir, "unfound_equipment.json")
	writeFile(t, file, `["original"]`, 0)

	res, err := b.Create(context.Background())
	require.NoError(t, err)
	writeFile(t, file, `["changed"]`, 0)

	t.Run("by name", func(t *testing.T) {
		restored, err := b.Restore(context.Background(), filepath.Base(res.Path))
		require.NoError(t, err)
		assert.Equal(t, []string{"unfound_equipment.json"}, restored)

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Equal(t, `["original"]`, string(data))
	})

	t.Run("missing archive", func(t *testing.T) {
		_, err := b.Restore(context.Background(), "json_backup_19990101_000000.zip")
		assert.ErrorIs(t, err, ErrBackupNotFound)
	})
}

func TestBackuper_RestoreOnlyTakesDataEntries(t *testing.T) {
	b, dataDir := newBackuper(t, 30)
	archive := filepath.Join(t.TempDir(), "manual.zip")

	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{"data/ok.json", "data/notes.txt", "other/x.json", "x.json"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(`{}`))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	restored, err := b.Restore(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.json"}, restored)
	assert.FileExists(t, filepath.Join(dataDir, "ok.json"))
	assert.NoFileExists(t, filepath.Join(dataDir, "x.json"))
}

func newCleaner(t *testing.T) (*Cleaner, string, string) {
	t.Helper()
	tempDir := t.TempDir()
	actsDir := filepath.Join(t.TempDir(), "transfer_acts")
	remover := fileutil.NewRemover(fileutil.RetryConfig{MaxAttempts: 1}, nop)
	return NewCleaner([]string{tempDir}, actsDir, remover, nop), tempDir, actsDir
}

func TestCleaner_CleanTemp(t *testing.T) {
	tests := []struct {
		name        string
		dryRun      bool
		wantDeleted int
		wantRemain  []string
	}{
		{
			name:        "deletes old temp photos",
			wantDeleted: 3,
			wantRemain:  []string{"temp_fresh.png", "photo.jpg"},
		},
		{
			name:        "dry run keeps everything",
			dryRun:      true,
			wantDeleted: 3,
			wantRemain:  []string{"temp_old.jpg", "temp_battery_1.jpg", "temp_fresh.png", "photo.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, tempDir, actsDir := newCleaner(t)
			writeFile(t, filepath.Join(tempDir, "temp_old.jpg"), "xx", 3*time.Hour)
			writeFile(t, filepath.Join(tempDir, "temp_battery_1.jpg"), "xxxx", 3*time.Hour)
			writeFile(t, filepath.Join(tempDir, "temp_fresh.png"), "x", 0)
			writeFile(t, filepath.Join(tempDir, "photo.jpg"), "x", 3*time.Hour)
			writeFile(t, filepath.Join(actsDir, "temp_transfer_9.jpg"), "xxx", 3*time.Hour)

			stats := c.CleanTemp(context.Background(), time.Hour, tt.dryRun)

			assert.Equal(t, 4, stats.Found, "battery photo matches two patterns but counts once")
			assert.Equal(t, tt.wantDeleted, stats.Deleted)
			assert.Equal(t, 1, stats.Skipped)
			assert.Equal(t, int64(9), stats.Bytes)
			for _, name := range tt.wantRemain {
				assert.FileExists(t, filepath.Join(tempDir, name))
			}
		})
	}
}

func TestCleaner_CleanActs(t *testing.T) {
	c, _, actsDir := newCleaner(t)
	writeFile(t, filepath.Join(actsDir, "act_old.html"), "old", 40*24*time.Hour)
	writeFile(t, filepath.Join(actsDir, "act_old.pdf"), "old", 31*24*time.Hour)
	writeFile(t, filepath.Join(actsDir, "act_new.html"), "new", 24*time.Hour)

	stats := c.CleanActs(context.Background(), 30*24*time.Hour, false)

	assert.Equal(t, 3, stats.Found)
	assert.Equal(t, 2, stats.Deleted)
	assert.Equal(t, 1, stats.Skipped)
	assert.NoFileExists(t, filepath.Join(actsDir, "act_old.html"))
	assert.FileExists(t, filepath.Join(actsDir, "act_new.html"))
}

func TestCleaner_MissingDirs(t *testing.T) {
	remover := fileutil.NewRemover(fileutil.DefaultRetry, nop)
	c := NewCleaner([]string{filepath.Join(t.TempDir(), "nope")}, "", remover, nop)

	assert.Zero(t, c.CleanTemp(context.Background(), time.Hour, false).Found)
	assert.Zero(t, c.CleanActs(context.Background(), time.Hour, false).Found)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	block  chan struct{}
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestScheduler_TickRunsDueTasks(t *testing.T) {
	b, dataDir := newBackuper(t, 30)
	writeFile(t, filepath.Join(dataDir, "pc_cleanings.json"), `[]`, 0)
	c, tempDir, _ := newCleaner(t)
	pub := &recordingPublisher{}

	clock := time.Now()
	s := NewScheduler(SchedulerConfig{
		CheckInterval:  time.Hour,
		BackupInterval: 6 * time.Hour,
		CleanupEvery:   2 * time.Hour,
		CleanupAge:     24 * time.Hour,
	}, b, c, pub, nop)
	s.now = func() time.Time { return clock }

	writeFile(t, filepath.Join(tempDir, "temp_startup.jpg"), "x", 2*time.Hour)
	writeFile(t, filepath.Join(tempDir, "temp_day_old.jpg"), "x", 25*time.Hour)
	writeFile(t, filepath.Join(tempDir, "temp_recent.jpg"), "x", 30*time.Minute)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(time.Second)

	// startup sweep uses the one hour threshold
	assert.NoFileExists(t, filepath.Join(tempDir, "temp_startup.jpg"))
	assert.NoFileExists(t, filepath.Join(tempDir, "temp_day_old.jpg"))
	assert.FileExists(t, filepath.Join(tempDir, "temp_recent.jpg"))

	ctx := context.Background()
	clock = clock.Add(time.Hour)
	s.tick(ctx)
	list, err := b.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	writeFile(t, filepath.Join(tempDir, "temp_late.jpg"), "x", 30*time.Hour)
	clock = clock.Add(90 * time.Minute)
	s.tick(ctx)
	assert.NoFileExists(t, filepath.Join(tempDir, "temp_late.jpg"), "cleanup due after two hours")
	assert.FileExists(t, filepath.Join(tempDir, "temp_recent.jpg"))

	clock = clock.Add(4 * time.Hour)
	s.tick(ctx)
	list, err = b.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.Equal(t, 1, pub.count())
	assert.Equal(t, events.TypeBackupCreated, pub.events[0].EventType())
}

func TestScheduler_StartStop(t *testing.T) {
	b, _ := newBackuper(t, 30)
	s := NewScheduler(SchedulerConfig{CheckInterval: time.Millisecond}, b, nil, nil, nop)

	assert.True(t, s.Stop(time.Second), "stop before start is a no-op")
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
	assert.True(t, s.Stop(time.Second))
	assert.True(t, s.Stop(time.Second))
	require.NoError(t, s.Start(context.Background()), "can be restarted")
	assert.True(t, s.Stop(time.Second))
}

func TestScheduler_LoopBacksUp(t *testing.T) {
	b, dataDir := newBackuper(t, 30)
	writeFile(t, filepath.Join(dataDir, "pc_cleanings.json"), `[]`, 0)
	pub := &recordingPublisher{}
	s := NewScheduler(SchedulerConfig{
		CheckInterval:  5 * time.Millisecond,
		BackupInterval: time.Nanosecond,
	}, b, nil, pub, nop)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return pub.count() > 0 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.Stop(time.Second))

	list, err := b.List()
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}

func TestScheduler_StopIsBounded(t *testing.T) {
	b, dataDir := newBackuper(t, 30)
	writeFile(t, filepath.Join(dataDir, "pc_cleanings.json"), `[]`, 0)
	pub := &recordingPublisher{block: make(chan struct{})}
	s := NewScheduler(SchedulerConfig{
		CheckInterval:  5 * time.Millisecond,
		BackupInterval: time.Nanosecond,
	}, b, nil, pub, nop)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		list, _ := b.List()
		return len(list) > 0
	}, 2*time.Second, 5*time.Millisecond)

	done := s.done
	start := time.Now()
	assert.False(t, s.Stop(20*time.Millisecond), "task blocked in publish")
	assert.Less(t, time.Since(start), time.Second)

	close(pub.block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after the task finished")
	}
}

func ExampleCleanupStats_SizeMB() {
	fmt.Printf("%.2f\n", CleanupStats{Bytes: 3 * 1024 * 1024 / 2}.SizeMB())
	// Output: 1.50
}
