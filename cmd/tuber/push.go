package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tuber/internal/log"
	"github.com/teslashibe/go-tuber/pkg/audioio"
	"github.com/teslashibe/go-tuber/pkg/remote"
)

func newPushCmd(flags *rootFlags) *cobra.Command {
	var (
		ccfg    remote.ClientConfig
		backend string
	)
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Stream this machine's microphone to a remote tuber",
		Long: `push captures audio locally and sends it to the /ws/mic endpoint of a
tuber running elsewhere (with remote.enabled or audio.backend: remote).
The level format sends only the peak dBFS of each buffer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			closer, err := setupLogging(cfg, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			audioCfg := cfg.AudioIO()
			if backend != "" {
				audioCfg.Backend = audioio.Backend(backend)
			}
			if audioCfg.Backend == audioio.BackendRemote {
				return fmt.Errorf("push needs a local audio backend, not %q", audioCfg.Backend)
			}
			if ccfg.Token == "" {
				ccfg.Token = cfg.Remote.Token
			}

			client, err := remote.NewClient(ccfg, log.L())
			if err != nil {
				return err
			}
			src, err := audioio.NewSource(audioCfg, log.L())
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(background(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if err := src.Start(ctx); err != nil {
				return err
			}
			defer src.Stop()

			err = client.Run(ctx, src)
			log.Info("push finished", "messages", client.Sent(), "rejected", client.Rejected())
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ccfg.Server, "server", "s", "ws://localhost:8420", "tuber server URL")
	f.StringVar(&ccfg.ID, "id", "", "peer id shown on the server")
	f.StringVar(&ccfg.Token, "token", "", "ingest token (default: remote.token)")
	f.StringVar(&ccfg.Format, "format", remote.FormatLevel, "what to send: level, pcm16 or opus")
	f.DurationVar(&ccfg.PingInterval, "ping", 15*time.Second, "keepalive ping interval, 0 to disable")
	f.StringVar(&backend, "backend", "", "override audio.backend")
	return cmd
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices and backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backends: %v\n", audioio.AvailableBackends())

			devices, err := audioio.ListCaptureDevices()
			if err != nil {
				return err
			}
			for _, d := range devices {
				fmt.Fprintf(out, "  %s\n", d)
			}
			return nil
		},
	}
}
