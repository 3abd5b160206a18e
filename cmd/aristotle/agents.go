package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the configured agents in presentation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, builder, cleanup, err := setup(context.Background())
		if err != nil {
			return err
		}
		defer cleanup()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tROLE\tTOOLS\tMODEL")
		for _, a := range builder.Agents() {
			tools := strings.Join(a.Tools(), ",")
			if tools == "" {
				tools = "-"
			}
			model := a.Model()
			if model == "" {
				model = "default"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Name(), a.Role(), tools, model)
		}
		return tw.Flush()
	},
}
