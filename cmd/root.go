// Package cmd implements the command-line interface for sensordash.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redmiedge/sensordash/internal/telemetry"
	"github.com/redmiedge/sensordash/internal/utils"
)

// annotationLogToFile marks commands that own the terminal, so logs and console
// traces must go to files instead.
const annotationLogToFile = "log-to-file"

var (
	cfgFile        string
	verbose        bool
	debug          bool
	trace          bool
	traceExporter  string
	traceEndpoint  string
	traceSample    float64
	logFilePath    string
	tracerShutdown func(context.Context) error
	logCloser      io.Closer
	logger         *zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sensordash",
	Short: "Live phone sensor dashboard",
	Long: `sensordash streams phone sensor readings to a live terminal dashboard.

Components:
  • sampler    polls the phone sensors (Termux) and serves them over HTTP
  • proxy      relays the phone endpoints to a stable desktop address
  • dashboard  terminal UI with live table, pinned sensors and charts
  • export     one-shot CSV/PNG export of the current window

Get started with: sensordash sampler --simulate & sensordash dashboard --url http://127.0.0.1:5000/sensor-stream`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug = viper.GetBool("debug")

		var w io.Writer
		if cmd.Annotations[annotationLogToFile] == "true" {
			path, err := utils.ExpandHome(viper.GetString("log_file"))
			if err != nil {
				return err
			}
			f, err := utils.OpenLogFile(path)
			if err != nil {
				return utils.NewUserError("Failed to open log file", "Set --log-file to a writable path", err)
			}
			w, logCloser = f, f
		}

		l := utils.NewLogger(debug, w)
		logger = &l
		// Set a global level as well for libraries using zerolog's package logger
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		// Use RFC3339 time format consistently
		zerolog.TimeFieldFormat = time.RFC3339

		trace = viper.GetBool("trace")
		if !trace {
			return nil
		}

		traceExporter = viper.GetString("trace_exporter")
		traceEndpoint = viper.GetString("trace_endpoint")
		traceSample = viper.GetFloat64("trace_sample")
		if cmd.Annotations[annotationLogToFile] == "true" && traceExporter == telemetry.ExporterConsole {
			traceExporter = telemetry.ExporterFile
		}
		if traceExporter == telemetry.ExporterFile && traceEndpoint == "" {
			dir, err := utils.DataDir()
			if err != nil {
				return err
			}
			traceEndpoint = filepath.Join(dir, "traces.json")
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		shutdown, err := telemetry.SetupTracer(ctx, telemetry.Config{
			ServiceName:    "sensordash-" + cmd.Name(),
			ServiceVersion: Version,
			Exporter:       traceExporter,
			FilePath:       traceEndpoint,
			SampleRate:     traceSample,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to set up tracer")
			return nil
		}
		tracerShutdown = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tracerShutdown != nil {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			_ = tracerShutdown(ctx)
		}
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sensordash.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug mode")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "enable tracing")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", "console", "trace exporter: console|file")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", "", "trace file path (for file exporter)")
	rootCmd.PersistentFlags().Float64Var(&traceSample, "trace-sample", 1.0, "trace sample rate (0.0-1.0)")
	rootCmd.PersistentFlags().StringVar(&logFilePath, "log-file", "", "log file for the dashboard (default is $HOME/.sensordash/dashboard.log)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("trace", rootCmd.PersistentFlags().Lookup("trace"))
	_ = viper.BindPFlag("trace_exporter", rootCmd.PersistentFlags().Lookup("trace-exporter"))
	_ = viper.BindPFlag("trace_endpoint", rootCmd.PersistentFlags().Lookup("trace-endpoint"))
	_ = viper.BindPFlag("trace_sample", rootCmd.PersistentFlags().Lookup("trace-sample"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".sensordash")
	}

	viper.SetEnvPrefix("SENSORDASH")
	viper.AutomaticEnv()

	viper.SetDefault("trace_exporter", "console")
	viper.SetDefault("trace_sample", 1.0)
	viper.SetDefault("log_file", "~/.sensordash/dashboard.log")
	viper.SetDefault("phone_host", "http://127.0.0.1:5000")
	viper.SetDefault("url", "http://127.0.0.1:5050/sensor-stream")
	viper.SetDefault("prefs_file", "~/.sensordash/prefs.toml")
	viper.SetDefault("export_dir", ".")
	viper.SetDefault("csv_path", "~/redmiedge/data/sensor_log.csv")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// GetLogger returns the configured logger
func GetLogger() *zerolog.Logger {
	if logger == nil {
		l := utils.NewLogger(false, nil)
		logger = &l
	}
	return logger
}

// bindFlags binds flags to config keys when cmd runs. Several commands share keys
// such as phone_host, and viper keeps only the last binding per key.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}
