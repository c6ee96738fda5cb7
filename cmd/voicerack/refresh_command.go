package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"voicerack/internal/api"
	"voicerack/internal/services"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh <provider-ref>",
		Short: "Tell running instances of a provider to reload their voices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(cmdCtx context.Context, svc *api.Service) error {
				outcome, err := svc.RefreshProvider(cmdCtx, args[0])
				out := cmd.OutOrStdout()
				if err != nil && !errors.Is(err, services.ErrRefreshPartial) {
					return err
				}

				if outcome.Reached == 0 && len(outcome.Unreachable) == 0 {
					fmt.Fprintf(out, "No running instances of %s\n", outcome.Provider)
					return nil
				}
				fmt.Fprintf(out, "Reloaded %d instance(s) of %s\n", outcome.Reached, outcome.Provider)
				for _, busName := range outcome.Unreachable {
					fmt.Fprintf(out, "  unreachable: %s\n", busName)
				}
				if err != nil {
					return err
				}
				return nil
			})
		},
	}
	return cmd
}
