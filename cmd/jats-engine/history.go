// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/jats-engine/internal/history"
	"github.com/pdiddy/jats-engine/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past conversions (list, show, export, prune)",
	Long: `History reads the conversion history database. Every convert run
records each file's outcome, options, diagnostics and full log there.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded conversions, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), historyQueryFromFlags(cmd))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRunList(os.Stdout, runs, jsonOutput)
}

func formatRunList(w io.Writer, runs []history.Run, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %-19s  %-7s  %-30s  %-8s  %s\n",
		"ID", "Started", "Status", "Source", "Warnings", "Error")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range runs {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		src := r.Source
		if len(src) > 30 {
			src = "..." + src[len(src)-27:]
		}
		fmt.Fprintf(w, "%-8s  %-19s  %-7s  %-30s  %-8d  %s\n",
			shortID(r.ID), r.StartedAt.Local().Format("2006-01-02 15:04:05"), status, src, r.Warnings, r.ErrorKind)
	}
	fmt.Fprintf(w, "\n%d run(s)\n", len(runs))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one conversion with its full log",
	Long:  `Show prints a recorded conversion and its log. ID may be any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	formatDetail(os.Stdout, d)
	return nil
}

func formatDetail(w io.Writer, d *history.Detail) {
	fmt.Fprintf(w, "Run:        %s\n", d.ID)
	fmt.Fprintf(w, "Source:     %s\n", d.Source)
	if d.Format != "" {
		fmt.Fprintf(w, "Format:     %s\n", d.Format)
	}
	fmt.Fprintf(w, "Started:    %s\n", d.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:   %s\n", d.Duration)
	if d.Success {
		fmt.Fprintf(w, "Status:     converted (%d warning(s), %d asset(s))\n", d.Warnings, d.Assets)
	} else {
		fmt.Fprintf(w, "Status:     failed during %s (%s)\n", d.FailedStage, d.ErrorKind)
		fmt.Fprintf(w, "Error:      %s\n", d.Error)
	}
	if d.OutputDir != "" {
		fmt.Fprintf(w, "Output:     %s\n", d.OutputDir)
	}
	fmt.Fprintln(w)
	for _, line := range d.Log {
		fmt.Fprintln(w, line)
	}
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded conversions to YAML or JSON",
	Long: `Export writes the matching runs, with their logs and diagnostics, to
export.yaml or export.json in the history directory.`,
	RunE: runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := historyQueryFromFlags(cmd)

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(context.Background(), opts)
	case "json":
		path, err = store.ExportJSON(context.Background(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

// --- prune subcommand ---

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than --older-than",
	RunE:  runHistoryPrune,
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	age, _ := cmd.Flags().GetDuration("older-than")
	if age <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Prune(context.Background(), time.Now().Add(-age))
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d run(s)\n", n)
	return nil
}

// --- shared helpers ---

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	dir, _ := cmd.Flags().GetString("history-dir")
	if dir == "" {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return nil, err
		}
		dir = cfg.History.Dir
	}
	return history.Open(dir)
}

func historyQueryFromFlags(cmd *cobra.Command) history.QueryOptions {
	source, _ := cmd.Flags().GetString("source")
	failed, _ := cmd.Flags().GetBool("failed")
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")

	return history.QueryOptions{
		Source:     source,
		FailedOnly: failed,
		Kind:       types.ErrorKind(kind),
		Limit:      limit,
	}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	historyCmd.PersistentFlags().String("history-dir", "", "history directory (default from config)")

	for _, c := range []*cobra.Command{historyListCmd, historyExportCmd} {
		c.Flags().String("source", "", "keep runs whose source path contains this text")
		c.Flags().Bool("failed", false, "keep failed runs only")
		c.Flags().String("kind", "", "keep runs that failed with this error kind (e.g. MalformedSource)")
	}
	historyListCmd.Flags().Int("limit", 0, "maximum runs to list (0 = 50)")
	historyListCmd.Flags().Bool("json", false, "output runs as JSON")
	historyShowCmd.Flags().Bool("json", false, "output the run as JSON")
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "age of the runs to delete")

	// Wire subcommands.
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyPruneCmd)

	rootCmd.AddCommand(historyCmd)
}
