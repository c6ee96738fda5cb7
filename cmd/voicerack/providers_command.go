package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"voicerack/internal/api"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List speech providers and their install state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd, func(cmdCtx context.Context, svc *api.Service) error {
				providers, err := svc.Providers(cmdCtx)
				if err != nil {
					return err
				}
				if jsonFlag {
					return writeJSON(cmd, providers)
				}
				if len(providers) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No providers found")
					return nil
				}

				rows := make([][]string, 0, len(providers))
				for _, provider := range providers {
					rows = append(rows, []string{
						provider.Name,
						provider.Ref,
						yesNo(provider.Installed),
						strconv.Itoa(provider.InstalledVoices) + "/" + strconv.Itoa(provider.Voices),
					})
				}
				table := renderTable(
					[]string{"Provider", "Ref", "Installed", "Voices"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")
	return cmd
}
