package cmd

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redmiedge/sensordash/internal/proxy"
	"github.com/redmiedge/sensordash/internal/utils"
)

var healthCmd = &cobra.Command{
	Use:   "health [url]",
	Short: "Check that a sampler or proxy is reachable",
	Args:  cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{"timeout": "upstream_timeout"})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		target := viper.GetString("phone_host")
		if len(args) > 0 {
			target = args[0]
		}
		return checkHealth(cmd.Context(), target, viper.GetDuration("upstream_timeout"))
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().Duration("timeout", 5*time.Second, "request timeout")
}

func checkHealth(ctx context.Context, target string, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := utils.ValidateBaseURL("url", target); err != nil {
		return err
	}

	if err := proxy.NewUpstream(target, timeout).Health(ctx); err != nil {
		color.Red("✗ %s is not healthy", target)
		return utils.NewUserError("Health check failed", "Make sure the sampler or proxy is running and reachable", err)
	}
	color.Green("✓ %s is healthy", target)
	return nil
}
