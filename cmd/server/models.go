package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the chat models the configured providers serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			registry, err := buildRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tPROVIDER\tUPSTREAM")
			routes := registry.Routes()
			aliases := make([]string, 0, len(routes))
			for alias := range routes {
				aliases = append(aliases, alias)
			}
			sort.Strings(aliases)
			for _, alias := range aliases {
				names := make([]string, 0, len(routes[alias]))
				upstreams := make([]string, 0, len(routes[alias]))
				for _, r := range routes[alias] {
					names = append(names, r.Provider.Name())
					upstreams = append(upstreams, r.Upstream)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", alias, strings.Join(names, ","), strings.Join(upstreams, ","))
			}
			return tw.Flush()
		},
	}
}
