package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redmiedge/sensordash/internal/dashboard"
	"github.com/redmiedge/sensordash/internal/prefs"
	"github.com/redmiedge/sensordash/internal/stream"
	"github.com/redmiedge/sensordash/internal/tui"
	"github.com/redmiedge/sensordash/internal/utils"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the live sensor dashboard",
	Long: `Open the live terminal dashboard.

The dashboard subscribes to a sensor event stream (the proxy or the sampler itself)
and redraws the live table, pinned sensors and charts on every snapshot. Layout
choices such as pinned sensors and dark mode are saved between runs.

Examples:
  sensordash dashboard
  sensordash dashboard --url http://192.168.1.20:5000/sensor-stream
  sensordash dashboard --no-persist --export-dir ~/exports
`,
	Annotations: map[string]string{annotationLogToFile: "true"},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"url":        "url",
			"prefs-file": "prefs_file",
			"no-persist": "no_persist",
			"export-dir": "export_dir",
			"retry":      "retry",
			"title":      "title",
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	dashboardCmd.Flags().String("url", "", "event stream URL (default http://127.0.0.1:5050/sensor-stream)")
	dashboardCmd.Flags().String("prefs-file", "", "preference file (default $HOME/.sensordash/prefs.toml)")
	dashboardCmd.Flags().Bool("no-persist", false, "keep preferences in memory only")
	dashboardCmd.Flags().String("export-dir", "", "directory for CSV and PNG exports (default .)")
	dashboardCmd.Flags().Duration("retry", stream.DefaultRetryDelay, "delay before reconnecting")
	dashboardCmd.Flags().String("title", "", "dashboard title")
}

func runDashboard(ctx context.Context) error {
	log := GetLogger()
	if ctx == nil {
		ctx = context.Background()
	}

	url := viper.GetString("url")
	if err := utils.ValidateBaseURL("url", url); err != nil {
		return utils.NewUserError("Invalid stream URL", "Pass --url http://<host>:<port>/sensor-stream", err)
	}
	retry := viper.GetDuration("retry")
	if err := utils.ValidatePositive("retry", retry); err != nil {
		return err
	}

	store, err := openPrefs()
	if err != nil {
		return err
	}

	exportDir, err := utils.ExpandHome(viper.GetString("export_dir"))
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(exportDir); err != nil {
		return utils.NewUserError("Cannot use export directory", "Set --export-dir to a writable directory", err)
	}

	app := dashboard.NewApp(store, *log)
	model := tui.New(app, tui.Options{Title: viper.GetString("title"), ExportDir: exportDir})
	p := tea.NewProgram(model, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := stream.New(stream.Config{URL: url, RetryDelay: retry, Logger: log}, tui.NewBridge(p.Send))
	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("stream stopped")
			p.Send(tui.NoticeMsg{Text: fmt.Sprintf("Stream stopped: %v", err)})
		}
	}()

	log.Info().Str("url", url).Msg("dashboard started")
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}

func openPrefs() (*prefs.Store, error) {
	if viper.GetBool("no_persist") {
		return prefs.New(prefs.NewMemoryKV()), nil
	}

	path, err := utils.ExpandHome(viper.GetString("prefs_file"))
	if err != nil {
		return nil, err
	}
	kv, err := prefs.OpenFile(path)
	if err != nil {
		return nil, utils.NewUserError("Failed to load preferences", "Delete the file or run with --no-persist", err)
	}
	return prefs.New(kv), nil
}
