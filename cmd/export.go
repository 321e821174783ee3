package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redmiedge/sensordash/internal/dashboard"
	"github.com/redmiedge/sensordash/internal/prefs"
	"github.com/redmiedge/sensordash/internal/proxy"
	"github.com/redmiedge/sensordash/internal/sensor"
	"github.com/redmiedge/sensordash/internal/utils"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the current sensor window as CSV or PNG",
	Long: `Fetch the current snapshot from a sampler or proxy and export it.

CSV exports contain every sensor axis against the shared time column. PNG exports draw
one sensor chart at 1200x800, using the saved view mode and axis filter.

Examples:
  sensordash export
  sensordash export --format png --sensor Accelerometer --output ~/exports
`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"from":       "phone_host",
			"output":     "export_dir",
			"prefs-file": "prefs_file",
			"timeout":    "upstream_timeout",
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		name, _ := cmd.Flags().GetString("sensor")
		dark, _ := cmd.Flags().GetBool("dark")
		return runExport(cmd.Context(), format, name, dark)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("from", "", "sampler or proxy base URL (default phone_host)")
	exportCmd.Flags().String("format", "csv", "export format: csv, png")
	exportCmd.Flags().String("sensor", "", "sensor to draw for png exports")
	exportCmd.Flags().Bool("dark", false, "dark chart background for png exports")
	exportCmd.Flags().StringP("output", "o", "", "output directory (default .)")
	exportCmd.Flags().String("prefs-file", "", "preference file used for view mode and axis filter")
	exportCmd.Flags().Duration("timeout", proxy.DefaultTimeout, "request timeout")
}

func runExport(ctx context.Context, format, name string, dark bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	from := viper.GetString("phone_host")
	if err := utils.ValidateBaseURL("from", from); err != nil {
		return err
	}
	dir, err := utils.ExpandHome(viper.GetString("export_dir"))
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}

	data, err := proxy.NewUpstream(from, viper.GetDuration("upstream_timeout")).FetchSnapshot(ctx)
	if err != nil {
		return utils.NewUserError("Failed to fetch sensor data", "Check that the sampler or proxy is running", err)
	}
	snap, err := sensor.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	store := exportPrefs(name)
	store.SetDarkMode(dark)
	app := dashboard.NewApp(store, *GetLogger())
	app.HandleSnapshot(snap, true)

	var path string
	switch format {
	case "csv":
		path, err = app.ExportCSV(dir, time.Now())
	case "png":
		if name == "" {
			return utils.NewValidationError("sensor", "--sensor is required for png exports")
		}
		if app.Scene().Widget(name) == nil {
			return fmt.Errorf("sensor %q has no chart in the current snapshot", name)
		}
		path, err = app.ExportPNG(dir, name)
	default:
		return utils.NewValidationError("format", fmt.Sprintf("unknown format %q, use csv or png", format))
	}
	if errors.Is(err, sensor.ErrNoData) {
		color.Yellow("No data available for export.")
		return nil
	}
	if err != nil {
		return err
	}

	color.Green("✓ Exported %s", path)
	return nil
}

// exportPrefs copies the saved chart settings of name into a throwaway store.
// Rendering for export never rewrites the user's layout.
func exportPrefs(name string) *prefs.Store {
	store := prefs.New(prefs.NewMemoryKV())
	if name != "" {
		_ = store.SetSelectedSensor(name)
	}

	path, err := utils.ExpandHome(viper.GetString("prefs_file"))
	if err != nil || !utils.FileExists(path) {
		return store
	}
	kv, err := prefs.OpenFile(path)
	if err != nil {
		return store
	}
	saved := prefs.New(kv)
	if name != "" {
		_ = store.SetView(name, saved.View(name))
		_ = store.SetAxisFilter(name, saved.AxisFilter(name))
	}
	return store
}
