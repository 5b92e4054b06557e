package main

import (
	"fmt"
	"io"
	"time"

	"inventory-assistant-be/internal/maintenance"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type cleanupOptions struct {
	Hours       int
	Days        int
	IncludeActs bool
	DryRun      bool
}

func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &cleanupOptions{}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stale temporary photos and, optionally, old acts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Hours < 0 || opts.Days < 0 {
				return fmt.Errorf("--hours and --days must not be negative")
			}
			return runCleanup(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Hours, "hours", 24, "delete temp files older than this many hours")
	cmd.Flags().IntVar(&opts.Days, "days", 30, "delete acts older than this many days")
	cmd.Flags().BoolVar(&opts.IncludeActs, "include-acts", false, "also delete old transfer acts")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show what would be deleted without deleting")
	return cmd
}

func runCleanup(cmd *cobra.Command, rootOpts *RootOptions, opts *cleanupOptions) error {
	out := cmd.OutOrStdout()
	cleaner := rootOpts.cleaner()

	mode := "delete"
	if opts.DryRun {
		mode = "dry run"
	}
	color.New(color.FgCyan).Fprintf(out, "🧹 Cleanup (max age %dh, mode: %s)\n", opts.Hours, mode)

	stats := cleaner.CleanTemp(cmd.Context(), time.Duration(opts.Hours)*time.Hour, opts.DryRun)
	printStats(out, "Temporary files", stats, opts.DryRun)

	if opts.IncludeActs {
		acts := cleaner.CleanActs(cmd.Context(), time.Duration(opts.Days)*24*time.Hour, opts.DryRun)
		printStats(out, fmt.Sprintf("Acts older than %d days", opts.Days), acts, opts.DryRun)
	}
	return nil
}

func printStats(w io.Writer, title string, s maintenance.CleanupStats, dryRun bool) {
	verb := "Deleted"
	if dryRun {
		verb = "Would delete"
	}
	color.New(color.Bold).Fprintf(w, "%s\n", title)
	fmt.Fprintf(w, "  Found:   %d\n", s.Found)
	color.New(color.FgGreen).Fprintf(w, "  %s: %d\n", verb, s.Deleted)
	color.New(color.FgYellow).Fprintf(w, "  Skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "  Freed:   %.2f MB\n", s.SizeMB())
	if dryRun {
		for _, f := range s.Files {
			fmt.Fprintf(w, "    - %s\n", f)
		}
	}
}
