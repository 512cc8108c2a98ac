package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tuber/internal/log"
	"github.com/teslashibe/go-tuber/pkg/app"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		termPreview bool
		watch       bool
		backend     string
		port        int
		gain        float32
		noServer    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the avatar (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("backend") {
				cfg.Audio.Backend = backend
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("gain") {
				cfg.Avatar.GainDB = gain
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			closer, err := setupLogging(cfg, termPreview)
			if err != nil {
				return err
			}
			defer closer.Close()

			a, err := app.New(cfg, app.Options{
				Term:     termPreview,
				Watch:    watch,
				NoServer: noServer,
			})
			if err != nil {
				return err
			}
			if err := a.Init(); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			defer a.Shutdown()

			if !noServer && !termPreview {
				fmt.Fprintf(cmd.OutOrStdout(), "overlay: http://localhost:%d/\n", cfg.Server.Port)
			}

			ctx, cancel := signal.NotifyContext(background(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if err := a.Run(ctx); err != nil {
				log.Error("tuber failed", "error", err)
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&termPreview, "term", "t", false, "show the terminal preview and read hotkeys from the keyboard")
	f.BoolVar(&watch, "watch", true, "reload the config file when it changes")
	f.StringVar(&backend, "backend", "", "override audio.backend (auto, malgo, wav, remote, mock)")
	f.IntVar(&port, "port", 0, "override server.port")
	f.Float32Var(&gain, "gain", 0, "override avatar.gain_db")
	f.BoolVar(&noServer, "no-server", false, "do not start the HTTP server")
	return cmd
}

// background returns ctx, or a fresh one when cobra was run without one.
func background(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
