package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voicerack/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status <voice-ref>",
		Short: "Show the current state of one voice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd, func(cmdCtx context.Context, svc *api.Service) error {
				voice, err := svc.Describe(cmdCtx, args[0])
				if err != nil {
					return err
				}
				if jsonFlag {
					return writeJSON(cmd, voice)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Voice:     %s (%s)\n", voice.Name, voice.Ref)
				fmt.Fprintf(out, "Provider:  %s (%s)\n", voice.ProviderName, voice.ProviderRef)
				fmt.Fprintf(out, "Languages: %s\n", joinOrDash(voice.LanguageNames))
				fmt.Fprintf(out, "Remote:    %s\n", voice.Remote)
				fmt.Fprintf(out, "Size:      %s\n", humanSize(voice.DownloadSize))
				fmt.Fprintf(out, "Status:    %s\n", voice.Status)
				if voice.Phase != "" {
					fmt.Fprintf(out, "Phase:     %s (%.0f%%)\n", voice.Phase, voice.ProgressPercent)
				}
				if voice.FailureReason != "" {
					fmt.Fprintf(out, "Failure:   %s\n", voice.FailureReason)
				}
				if voice.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:     %s\n", voice.ErrorMessage)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of text")
	return cmd
}
