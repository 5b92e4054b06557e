package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the JSON record files and prune old archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(cmd, rootOpts)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backup archives, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupList(cmd, rootOpts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore the JSON record files from an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, rootOpts, args[0])
		},
	})
	return cmd
}

func runBackup(cmd *cobra.Command, rootOpts *RootOptions) error {
	out := cmd.OutOrStdout()
	b := rootOpts.backuper()

	res, err := b.Create(cmd.Context())
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	color.New(color.FgGreen).Fprintf(out, "✅ Backup created: %s (%d files)\n", filepath.Base(res.Path), res.Files)
	for _, missing := range res.Missing {
		color.New(color.FgYellow).Fprintf(out, "  ⚠️ not found: %s\n", missing)
	}

	removed, err := b.Prune()
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	if removed > 0 {
		fmt.Fprintf(out, "  Removed %d old archive(s)\n", removed)
	}
	return runBackupList(cmd, rootOpts)
}

func runBackupList(cmd *cobra.Command, rootOpts *RootOptions) error {
	out := cmd.OutOrStdout()
	list, err := rootOpts.backuper().List()
	if err != nil {
		return err
	}

	var total int64
	for _, info := range list {
		total += info.Size
	}
	color.New(color.FgCyan).Fprintf(out, "📦 %d backup(s) in %s, %.2f MB total\n",
		len(list), rootOpts.BackupDir, float64(total)/(1024*1024))
	for _, info := range list {
		fmt.Fprintf(out, "  %s  %8.2f KB  %s\n", info.Name, float64(info.Size)/1024, info.ModTime.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRestore(cmd *cobra.Command, rootOpts *RootOptions, archive string) error {
	restored, err := rootOpts.backuper().Restore(cmd.Context(), archive)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	out := cmd.OutOrStdout()
	color.New(color.FgGreen).Fprintf(out, "✅ Restored %d file(s) from %s\n", len(restored), filepath.Base(archive))
	for _, name := range restored {
		fmt.Fprintf(out, "  - %s\n", name)
	}
	return nil
}
