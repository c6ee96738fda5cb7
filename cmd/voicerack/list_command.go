package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voicerack/internal/api"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var languageFlag string
	var providerFlag string
	var searchFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installable voices from the configured remotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd, func(cmdCtx context.Context, svc *api.Service) error {
				voices, err := svc.Voices(cmdCtx)
				if err != nil {
					return err
				}

				filtered := voices[:0:0]
				for _, voice := range voices {
					if matchVoice(voice, languageFlag, providerFlag, searchFlag) {
						filtered = append(filtered, voice)
					}
				}

				if jsonFlag {
					return writeJSON(cmd, filtered)
				}
				if len(filtered) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No voices match")
					return nil
				}

				rows := make([][]string, 0, len(filtered))
				for _, voice := range filtered {
					rows = append(rows, []string{
						voice.Name,
						joinOrDash(voice.LanguageNames),
						voice.ProviderName,
						voice.Status,
						humanSize(voice.DownloadSize),
					})
				}
				table := renderTable(
					[]string{"Voice", "Languages", "Provider", "Status", "Size"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Filter by language tag or name")
	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "Filter by provider ref")
	cmd.Flags().StringVarP(&searchFlag, "search", "s", "", "Filter by name, summary, or ref")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")
	return cmd
}
