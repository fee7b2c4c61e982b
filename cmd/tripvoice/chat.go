package main

import (
	"context"
	"os"
	"strings"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/tripvoice"
	"github.com/aretw0/tripvoice/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Plan a trip in an interactive terminal chat",
	Long: `Starts an interactive chat. Type to talk to the assistant, or use /rec to
record from the microphone configured in devices.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, debug, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		noDevices, _ := cmd.Flags().GetBool("no-devices")
		quiet, _ := cmd.Flags().GetBool("quiet")

		app, err := cli.NewApp(cfg, cli.AppOptions{Debug: debug, Devices: !noDevices})
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := lifecycle.NewSignalContext(cmd.Context())

		fd := int(os.Stdout.Fd())
		styled := term.IsTerminal(fd)
		width := 0
		if styled {
			if w, _, err := term.GetSize(fd); err == nil {
				width = w
			}
		}
		opts := cli.ChatOptions{
			In:     os.Stdin,
			Out:    os.Stdout,
			Styled: styled,
			Width:  width,
		}
		if !quiet {
			opts.Banner = strings.TrimSpace(tripvoice.Version)
		}
		err = cli.RunChat(ctx, app, opts)
		if ctx.Err() != nil {
			app.Logger.Info("Chat interrupted", "cause", context.Cause(ctx))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().Bool("no-devices", false, "Disable the microphone and audio playback")
	chatCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")

	rootCmd.RunE = chatCmd.RunE
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())
}
