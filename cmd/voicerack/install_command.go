package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voicerack/internal/api"
	"voicerack/internal/store"
)

func newInstallCommand(ctx *commandContext) *cobra.Command {
	var detachFlag bool

	cmd := &cobra.Command{
		Use:   "install <voice-ref>",
		Short: "Install a voice and, when needed, its provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd, func(cmdCtx context.Context, svc *api.Service) error {
				ref := args[0]
				out := cmd.OutOrStdout()

				opID, err := svc.Install(cmdCtx, ref)
				if err != nil {
					return err
				}
				if opID == "" {
					fmt.Fprintf(out, "%s is already installed\n", ref)
					return nil
				}
				fmt.Fprintf(out, "Installing %s (operation %s)\n", ref, opID)
				if detachFlag {
					return nil
				}

				// Ctrl-C cancels the operation instead of abandoning it. A
				// provider install that already started runs to completion.
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
				defer signal.Stop(sigCh)
				done := make(chan struct{})
				defer close(done)
				go func() {
					select {
					case <-sigCh:
						fmt.Fprintln(out, "\nCancelling install...")
						if err := svc.CancelInstall(context.Background(), ref); err != nil {
							fmt.Fprintf(out, "Cancel not possible: %v\n", err)
						}
					case <-done:
					}
				}()

				return followInstall(cmdCtx, cmd, svc, ref)
			})
		},
	}

	cmd.Flags().BoolVar(&detachFlag, "detach", false, "Return immediately instead of following progress")
	return cmd
}

// followInstall tails the state-change feed until the voice reaches a
// terminal status.
func followInstall(ctx context.Context, cmd *cobra.Command, svc *api.Service, ref string) error {
	out := cmd.OutOrStdout()
	interactive := isInteractive(out)

	var since uint64
	lastPhase := store.Phase("")
	for {
		events, next, err := svc.Events(ctx, since, 0, true)
		if err != nil {
			return err
		}
		since = next

		for _, evt := range events {
			if evt.VoiceRef != ref {
				continue
			}
			if evt.Phase != "" && evt.Phase != lastPhase {
				if interactive && lastPhase != "" {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "  %s\n", phaseLabel(evt.Phase))
				lastPhase = evt.Phase
			}
			if evt.Percent > 0 {
				if interactive {
					fmt.Fprintf(out, "\r    %3.0f%% %s", evt.Percent, evt.Message)
				} else if evt.Message != "" {
					fmt.Fprintf(out, "    %3.0f%% %s\n", evt.Percent, evt.Message)
				}
			}

			switch evt.Status {
			case store.StatusInstalled:
				if interactive {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Installed %s\n", ref)
				return nil
			case store.StatusFailed:
				if interactive {
					fmt.Fprintln(out)
				}
				return fmt.Errorf("install failed (%s): %s", evt.Reason, evt.Message)
			case store.StatusProviderOnly, store.StatusUnavailable:
				if interactive {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Install of %s did not complete (status %s)\n", ref, evt.Status)
				return nil
			}
		}
	}
}

func phaseLabel(phase store.Phase) string {
	switch phase {
	case store.PhaseResolving:
		return "Resolving dependencies"
	case store.PhaseInstallingProvider:
		return "Installing provider"
	case store.PhaseInstallingVoice:
		return "Installing voice"
	case store.PhaseRemovingVoice:
		return "Removing voice"
	case store.PhaseRefreshing:
		return "Refreshing running providers"
	default:
		return string(phase)
	}
}
