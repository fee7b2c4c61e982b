package main

import (
	"os"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/tripvoice/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assistant over HTTP",
	Long: `Starts the JSON API with server-sent events, a WebSocket channel and
Prometheus metrics. Browsers record audio themselves and upload it to /audio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, debug, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		devices, _ := cmd.Flags().GetBool("devices")

		app, err := cli.NewApp(cfg, cli.AppOptions{Debug: debug, Devices: devices})
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := lifecycle.NewSignalContext(cmd.Context())

		return cli.Serve(ctx, app, cfg.Server.Addr, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().Bool("devices", false, "Also speak replies and record on the server's own audio devices")
}
