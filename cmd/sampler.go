package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redmiedge/sensordash/internal/metrics"
	"github.com/redmiedge/sensordash/internal/sampler"
	"github.com/redmiedge/sensordash/internal/sensor"
	"github.com/redmiedge/sensordash/internal/utils"
)

var samplerCmd = &cobra.Command{
	Use:   "sampler",
	Short: "Sample phone sensors and serve them over HTTP",
	Long: `Run on the phone (Termux) to poll the sensors and serve the rolling window.

Endpoints:
  /sensor-stream  event stream, one snapshot per interval
  /sensor-data    current snapshot as JSON
  /export         CSV history log download
  /health         liveness and mapped sensors
  /metrics        Prometheus metrics

Examples:
  sensordash sampler
  sensordash sampler --simulate --listen 127.0.0.1:5000
  sensordash sampler mapping --format mermaid
`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindSamplerFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSampler(cmd.Context())
	},
}

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Show how catalog sensors map onto device sensors",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindSamplerFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return showMapping(cmd.Context(), format)
	},
}

func init() {
	rootCmd.AddCommand(samplerCmd)
	samplerCmd.AddCommand(mappingCmd)

	samplerCmd.PersistentFlags().String("catalog", "", "YAML sensor catalog (default built-in)")
	samplerCmd.PersistentFlags().Bool("simulate", false, "generate synthetic readings instead of calling termux-sensor")
	samplerCmd.PersistentFlags().String("termux-command", sampler.DefaultTermuxCommand, "termux-sensor binary")

	samplerCmd.Flags().String("listen", "0.0.0.0:5000", "HTTP listen address")
	samplerCmd.Flags().Duration("interval", sampler.DefaultInterval, "sampling and push interval")
	samplerCmd.Flags().Int("window", sampler.DefaultWindowSize, "rows kept in the rolling window")
	samplerCmd.Flags().String("csv-path", "", "CSV history log (default ~/redmiedge/data/sensor_log.csv)")
	samplerCmd.Flags().Bool("no-csv", false, "disable the CSV history log")
	samplerCmd.Flags().Int("batch", sampler.DefaultBatchSize, "rows buffered before appending to the CSV log")

	mappingCmd.Flags().String("format", "table", "output format: table, mermaid")
}

func bindSamplerFlags(cmd *cobra.Command) error {
	keys := map[string]string{
		"catalog":        "catalog",
		"simulate":       "simulate",
		"termux-command": "termux_command",
	}
	if cmd.Name() == "sampler" {
		keys["listen"] = "sampler_listen"
		keys["interval"] = "interval"
		keys["window"] = "window"
		keys["csv-path"] = "csv_path"
		keys["no-csv"] = "no_csv"
		keys["batch"] = "batch"
	}
	return bindFlags(cmd, keys)
}

func loadCatalog() (*sensor.Catalog, error) {
	path := viper.GetString("catalog")
	if path == "" {
		return sensor.DefaultCatalog(), nil
	}
	path, err := utils.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	cat, err := sensor.LoadCatalog(path)
	if err != nil {
		return nil, utils.NewUserError("Invalid sensor catalog", "Check the YAML against the documented layout", err)
	}
	return cat, nil
}

func newSource() sampler.Source {
	if viper.GetBool("simulate") {
		return sampler.NewSimulatedSource()
	}
	return sampler.NewTermuxSource(viper.GetString("termux_command"))
}

func runSampler(ctx context.Context) error {
	log := GetLogger()
	ctx, stop := signalContext(ctx)
	defer stop()

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	interval := viper.GetDuration("interval")
	if err := utils.ValidatePositive("interval", interval); err != nil {
		return err
	}

	csvPath := ""
	if !viper.GetBool("no_csv") {
		if csvPath, err = utils.ExpandHome(viper.GetString("csv_path")); err != nil {
			return err
		}
	}

	reg := metrics.New("sampler")
	s, err := sampler.New(sampler.Config{
		Catalog:    cat,
		Source:     newSource(),
		Interval:   interval,
		WindowSize: viper.GetInt("window"),
		CSVPath:    csvPath,
		BatchSize:  viper.GetInt("batch"),
		Logger:     log.With().Str("component", "sampler").Logger(),
		Metrics:    reg,
	})
	if err != nil {
		return utils.NewUserError("Failed to start sampler", "Check --csv-path and --catalog", err)
	}

	go func() {
		err := s.Run(ctx)
		if errors.Is(err, sensor.ErrNoSensors) {
			color.Yellow("No sensors detected. Is Termux:API installed? Try --simulate.")
		}
	}()

	addr := viper.GetString("sampler_listen")
	color.Cyan("Sampler serving at http://%s/sensor-stream", addr)
	if csvPath != "" {
		log.Info().Str("path", csvPath).Msg("CSV history log enabled")
	}

	srv := sampler.NewServer(s, reg, log.With().Str("component", "http").Logger())
	err = serve(ctx, addr, srv.Handler(), log)

	log.Info().Msg("cleaning up")
	if n, ferr := s.Flush(); ferr != nil {
		log.Error().Err(ferr).Msg("failed to flush CSV log")
	} else if n > 0 {
		log.Info().Int("rows", n).Msg("flushed CSV log")
	}
	return err
}

func showMapping(ctx context.Context, format string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	s, err := sampler.New(sampler.Config{Catalog: cat, Source: newSource(), Logger: *GetLogger()})
	if err != nil {
		return err
	}

	mapping, err := s.Discover(ctx)
	if errors.Is(err, sensor.ErrNoSensors) {
		return utils.NewUserError("No sensors detected", "Install Termux:API and grant sensor access, or pass --simulate", err)
	}

	switch format {
	case "table":
		color.Cyan("=== Sensor Mapping (canonical → device) ===")
		mapping.WriteTable(os.Stdout)
	case "mermaid":
		fmt.Println(mapping.Mermaid())
	default:
		return utils.NewValidationError("format", fmt.Sprintf("unknown format %q, use table or mermaid", format))
	}

	if errors.Is(err, sampler.ErrNoCatalogSensors) {
		color.Red("None of the catalog sensors were found.")
	}
	return err
}
