package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tagfinder/pkg/checkpoint"
	"tagfinder/pkg/export"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/ui"
)

var (
	exportFrom    string
	exportFormats string
	exportOutput  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export blogs from a saved progress file",
	Long: `Write the qualified blogs recorded in a progress file without running a search.

Useful after an interrupted run, or to produce another format from an
earlier search.`,
	Example: `  # Export the default progress file as JSON and CSV
  tagfinder export

  # Load a specific file into SQLite
  tagfinder export --from old_progress.json --format sqlite -o archive`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFrom, "from", "", "progress file to read (default: configured progress file)")
	exportCmd.Flags().StringVar(&exportFormats, "format", "", "comma separated formats: json,csv,sqlite,postgres")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output base name (default: configured base name)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(globalFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return errSilent
	}

	path := cfg.Progress.File
	if exportFrom != "" {
		path = exportFrom
	}
	formats := cfg.Output.Formats
	if exportFormats != "" {
		formats = strings.Split(exportFormats, ",")
		for i := range formats {
			formats[i] = strings.TrimSpace(formats[i])
		}
	}
	base := cfg.Output.BaseName
	if exportOutput != "" {
		base = exportOutput
	}

	log := logger.GetLogger()
	manager, err := checkpoint.NewManager(path, log)
	if err != nil {
		return err
	}
	progress, err := manager.Load()
	if err != nil {
		ui.PrintError("Failed to read progress file", err)
		return errSilent
	}
	if progress == nil || len(progress.DiscoveredBlogs) == 0 {
		ui.PrintWarning(fmt.Sprintf("No saved blogs in %s", manager.Path()))
		return nil
	}

	profiles := progress.Profiles()
	written, err := export.Run(context.Background(), formats, base, profiles,
		export.Options{SQLitePath: cfg.Output.SQLitePath, PostgresDSN: cfg.Output.PostgresDSN}, log)
	for _, dest := range written {
		ui.PrintInfo("Wrote", dest)
	}
	if err != nil {
		ui.PrintError("Export incomplete", err)
		return errSilent
	}
	ui.PrintSuccess(fmt.Sprintf("Exported %d blogs", len(profiles)))
	return nil
}
