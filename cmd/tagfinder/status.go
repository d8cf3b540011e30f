package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tagfinder/pkg/checkpoint"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/ui"
)

var statusFile string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show saved search progress",
	Long:  `Summarize the progress file a --resume run would continue from.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusFile, "progress-file", "", "progress file to inspect (default: configured progress file)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(globalFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return errSilent
	}

	path := cfg.Progress.File
	if statusFile != "" {
		path = statusFile
	}
	manager, err := checkpoint.NewManager(path, logger.GetLogger())
	if err != nil {
		return err
	}

	info, err := manager.Info()
	if err != nil {
		ui.PrintError("Failed to read progress file", err)
		return errSilent
	}
	if info == nil {
		ui.PrintInfo("No saved progress", manager.Path())
		return nil
	}

	ui.PrintHighlight("Saved Progress")
	fmt.Println()
	ui.PrintInfo("File", info.Path)
	if info.RunID != "" {
		ui.PrintInfo("Run", info.RunID)
	}
	ui.PrintInfo("Saved", fmt.Sprintf("%s (%s ago)", info.Timestamp.Format("2006-01-02 15:04:05"), ui.FormatDuration(info.Age)))
	ui.PrintInfo("Qualified blogs", fmt.Sprintf("%d", info.Blogs))
	if len(info.Themes) > 0 {
		ui.PrintInfo("Themes", strings.Join(info.Themes, ", "))
	}

	rl := info.RateLimit
	fmt.Println()
	fmt.Printf("  Hour  [%s] %d/%d\n", ui.Bar(rl.HourlyCalls, rl.HourlyLimit, 30), rl.HourlyCalls, rl.HourlyLimit)
	fmt.Printf("  Day   [%s] %d/%d\n", ui.Bar(rl.DailyCalls, rl.DailyLimit, 30), rl.DailyCalls, rl.DailyLimit)
	fmt.Printf("  Total %d calls\n", rl.TotalCalls)

	if !rl.DayStart.IsZero() {
		if reset := rl.DayResetAt(); time.Now().Before(reset) {
			fmt.Printf("\nDaily window resets at %s\n", reset.Format("2006-01-02 15:04"))
		} else {
			fmt.Println("\nDaily window has reset; 'tagfinder --resume' continues with a fresh budget")
		}
	}
	return nil
}
