package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newGrammarsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "grammars",
		Short: "List the grammars found in the configured directories and bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := root.store(cmd.Context())

			byName := map[string]string{}
			for scope, name := range store.Scopes() {
				byName[name] = scope
			}

			names := store.Names()
			sort.Strings(names)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSCOPE\tUUID")
			for _, name := range names {
				id := ""
				if g, err := store.Get(name); err == nil && g.UUID != uuid.Nil {
					id = g.UUID.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, byName[name], id)
			}
			return tw.Flush()
		},
	}
}
