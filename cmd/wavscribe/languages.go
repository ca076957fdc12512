package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/wavscribe/pkg/lang"
)

func newLanguagesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the language codes accepted by --language",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCODE\tNAME")
			fmt.Fprintf(tw, "-\t%s\t%s\n", lang.Auto, "detect")
			for _, l := range lang.All() {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", l.ID, l.Code, l.Name)
			}
			return tw.Flush()
		},
	}
}
