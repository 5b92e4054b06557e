package main

import (
	"time"

	"inventory-assistant-be/internal/config"
	"inventory-assistant-be/internal/maintenance"
	"inventory-assistant-be/internal/pkg/fileutil"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/internal/repository/jsonfile"

	"github.com/spf13/cobra"
)

// RootOptions holds the directories every subcommand works on. Defaults come
// from the service configuration so the CLI and the service agree.
type RootOptions struct {
	Verbose    bool
	DataDir    string
	TempDir    string
	ActsDir    string
	BackupDir  string
	MaxBackups int
}

func (o *RootOptions) newLogger() logger.ILogger {
	return logger.NewConsoleLogger(o.Verbose)
}

func (o *RootOptions) backuper() *maintenance.Backuper {
	return maintenance.NewBackuper(maintenance.BackupConfig{
		DataDir:    o.DataDir,
		BackupDir:  o.BackupDir,
		MaxBackups: o.MaxBackups,
		Files:      jsonfile.BackupSet,
	}, o.newLogger())
}

func (o *RootOptions) cleaner() *maintenance.Cleaner {
	log := o.newLogger()
	remover := fileutil.NewRemover(fileutil.RetryConfig{MaxAttempts: 3, Delay: 200 * time.Millisecond}, log)
	return maintenance.NewCleaner([]string{o.TempDir}, o.ActsDir, remover, log)
}

func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "maintenance",
		Short:         "Backup and cleanup tasks for the inventory assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.DataDir, "data-dir", cfg.Data.Dir, "directory holding the JSON record files")
	flags.StringVar(&opts.TempDir, "temp-dir", cfg.Data.TempDir, "directory holding temporary photos")
	flags.StringVar(&opts.ActsDir, "acts-dir", cfg.Transfer.ActsDir, "directory holding generated acts")
	flags.StringVar(&opts.BackupDir, "backup-dir", cfg.Maintenance.BackupDir, "directory for backup archives")
	flags.IntVar(&opts.MaxBackups, "max-backups", cfg.Maintenance.MaxBackups, "number of archives to keep")

	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	return cmd
}
