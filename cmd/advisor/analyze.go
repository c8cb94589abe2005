package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			_, err = a.runOnce(ctx, flags.request(a.cfg), !flags.noRunLog, cmd.OutOrStdout())
			return err
		},
	}
	flags.register(cmd)
	return cmd
}
