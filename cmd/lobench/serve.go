package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/glossalab/lobench/api"
)

func newServeCmd(st *cliState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve reports, gaps, and the leaderboard over HTTP",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			if st == nil || st.cfg == nil {
				return fmt.Errorf("serve: missing config (internal error)")
			}
			if addr == "" {
				addr = st.cfg.Server.Addr
			}

			srv, err := api.NewServer(st.cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", addr)
			return srv.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
