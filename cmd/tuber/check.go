package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tuber/internal/config"
)

func newCheckCmd(flags *rootFlags) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config, moods, hotkeys and art files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			source := cfg.Path
			if source == "" {
				source = "built-in defaults"
			}
			fmt.Fprintf(out, "config     ok (%s)\n", source)

			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "moods      ok (%d, default %s)\n", reg.Count(), reg.DefaultName())
			fmt.Fprintf(out, "hotkeys    ok (%s)\n", strings.Join(cfg.Bindings().Keys(), " "))

			if missing := missingArt(reg, cfg.Server.AssetsDir); len(missing) > 0 {
				fmt.Fprintf(out, "art        %d missing under %s\n", len(missing), cfg.Server.AssetsDir)
				for _, img := range missing {
					fmt.Fprintf(out, "  - %s\n", img)
				}
				if strict {
					return fmt.Errorf("%d art files missing", len(missing))
				}
			} else {
				fmt.Fprintf(out, "art        ok (%s)\n", cfg.Server.AssetsDir)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when art files are missing")
	return cmd
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	var defaults bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if defaults {
				_, err := cmd.OutOrStdout().Write(config.DefaultYAML())
				return err
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&defaults, "default", false, "print the commented built-in defaults instead")
	return cmd
}
