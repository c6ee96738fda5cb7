package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voicerack/internal/api"
	"voicerack/internal/store"
)

func newUninstallCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall <voice-ref>",
		Short: "Remove a voice, keeping its provider for other voices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd, func(cmdCtx context.Context, svc *api.Service) error {
				ref := args[0]
				out := cmd.OutOrStdout()

				opID, err := svc.Uninstall(cmdCtx, ref)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removing %s (operation %s)\n", ref, opID)

				if err := svc.Await(cmdCtx, ref); err != nil {
					return err
				}
				voice, err := svc.Describe(cmdCtx, ref)
				if err != nil {
					return err
				}
				if voice.Status == string(store.StatusInstalled) {
					return fmt.Errorf("removal of %s failed, the voice remains installed", ref)
				}
				fmt.Fprintf(out, "Removed %s\n", ref)
				return nil
			})
		},
	}
	return cmd
}
