package cmd

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redmiedge/sensordash/internal/metrics"
	"github.com/redmiedge/sensordash/internal/proxy"
	"github.com/redmiedge/sensordash/internal/utils"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Relay the phone's endpoints to a desktop address",
	Long: `Run on the desktop to relay the phone sampler.

The event stream is forwarded unchanged; upstream failures reach the dashboard as an
error event so it reconnects. /export redirects to the phone.

Examples:
  sensordash proxy --phone-host http://192.168.1.20:5000
  SENSORDASH_PHONE_HOST=http://192.168.1.20:5000 sensordash proxy
`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"phone-host": "phone_host",
			"listen":     "proxy_listen",
			"timeout":    "upstream_timeout",
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProxy(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(proxyCmd)

	proxyCmd.Flags().String("phone-host", "", "sampler base URL (default http://127.0.0.1:5000)")
	proxyCmd.Flags().String("listen", "0.0.0.0:5050", "HTTP listen address")
	proxyCmd.Flags().Duration("timeout", proxy.DefaultTimeout, "upstream connect and first-byte timeout")
}

func runProxy(ctx context.Context) error {
	log := GetLogger()
	ctx, stop := signalContext(ctx)
	defer stop()

	phone := viper.GetString("phone_host")
	if err := utils.ValidateBaseURL("phone_host", phone); err != nil {
		return utils.NewUserError("Invalid phone host", "Set --phone-host or SENSORDASH_PHONE_HOST to http://<phone-ip>:5000", err)
	}
	timeout := viper.GetDuration("upstream_timeout")
	if err := utils.ValidatePositive("timeout", timeout); err != nil {
		return err
	}

	up := proxy.NewUpstream(phone, timeout)
	if err := up.Health(ctx); err != nil {
		log.Warn().Err(err).Str("phone_host", phone).Msg("phone not reachable yet")
	}

	addr := viper.GetString("proxy_listen")
	color.Cyan("Proxy serving at http://%s/sensor-stream (phone %s)", addr, phone)

	srv := proxy.NewServer(up, metrics.New("proxy"), log.With().Str("component", "proxy").Logger())
	return serve(ctx, addr, srv.Handler(), log)
}
