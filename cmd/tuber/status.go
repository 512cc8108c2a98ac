package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tuber/internal/httpc"
	"github.com/teslashibe/go-tuber/pkg/protocol"
	"github.com/teslashibe/go-tuber/pkg/web"
)

const defaultServer = "http://localhost:8420"

func apiURL(server, path string) string {
	return strings.TrimSuffix(server, "/") + path
}

func newStatusCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the expression and last frame of a running tuber",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(background(cmd.Context()), 5*time.Second)
			defer cancel()

			var st web.StatusResponse
			if err := httpc.GetJSON(ctx, apiURL(server, "/api/status"), &st); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "expression  head=%s eyes=%s\n", st.Head, st.Eyes)
			fmt.Fprintf(out, "overlays    %d\n", st.Clients)
			if f := st.Frame; f != nil {
				fmt.Fprintf(out, "frame       #%d %s %.1f dBFS\n", f.Seq, f.Tier, f.Loudness)
				fmt.Fprintf(out, "drawing     %s + %s (blink %s)\n", f.HeadImage, f.EyeImage, f.Blink)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", defaultServer, "tuber server URL")
	return cmd
}

func newExprCmd() *cobra.Command {
	var (
		server     string
		head, eyes string
	)
	cmd := &cobra.Command{
		Use:   "expr",
		Short: "Latch an expression on a running tuber",
		Example: `  tuber expr --head happy
  tuber expr --head normal --eyes sad`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req protocol.ExpressionData
			if cmd.Flags().Changed("head") {
				req.Head = &head
			}
			if cmd.Flags().Changed("eyes") {
				req.Eyes = &eyes
			}
			if req.Head == nil && req.Eyes == nil {
				return errors.New("set --head, --eyes or both")
			}

			ctx, cancel := context.WithTimeout(background(cmd.Context()), 5*time.Second)
			defer cancel()
			var st protocol.StatusData
			if err := httpc.PostJSON(ctx, apiURL(server, "/api/expression"), req, &st); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "head=%s eyes=%s\n", st.Head, st.Eyes)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&server, "server", "s", defaultServer, "tuber server URL")
	f.StringVar(&head, "head", "", "head mood")
	f.StringVar(&eyes, "eyes", "", "eye mood")
	return cmd
}
