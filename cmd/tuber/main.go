// tuber drives a PNG-tuber avatar from microphone loudness and hotkeys,
// rendering it to a browser overlay and an optional terminal preview.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tuber/internal/config"
	"github.com/teslashibe/go-tuber/internal/log"
)

// Version information (set at build time)
var version = "dev"

type rootFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "tuber",
		Short: "Loudness-driven PNG-tuber avatar",
		Long: `tuber animates a two-layer avatar (head and eyes) from microphone
loudness. Hotkeys switch or momentarily override the expression; the result
is served as a browser overlay for streaming software.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default: $"+config.EnvConfig+")")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	run := newRunCmd(flags)
	root.AddCommand(
		run,
		newMoodsCmd(flags),
		newCheckCmd(flags),
		newConfigCmd(flags),
		newDevicesCmd(),
		newPushCmd(flags),
		newStatusCmd(),
		newExprCmd(),
	)
	// Plain `tuber` runs the avatar.
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())
	return root
}

// loadConfig loads the config file and applies the global flags.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, nil
}

// setupLogging installs the global logger. quiet discards console output
// when the terminal preview owns the screen.
func setupLogging(cfg *config.Config, quiet bool) (io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	switch {
	case cfg.Log.File != "":
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		out, closer = f, f
	case quiet:
		out = io.Discard
	}
	log.Setup(log.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
