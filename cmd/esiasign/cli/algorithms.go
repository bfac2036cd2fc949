package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	esiasign "github.com/mdean75/esia-sign"
)

func newAlgorithmsCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "List available providers and algorithms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listAlgorithms(o, esiasign.DefaultRegistry())
		},
	}
}

func listAlgorithms(o *rootOptions, r *esiasign.Registry) error {
	w := tabwriter.NewWriter(o.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tALGORITHM")
	for _, name := range r.Providers() {
		p, ok := r.Provider(name)
		if !ok {
			continue
		}
		for _, alg := range p.Algorithms() {
			fmt.Fprintf(w, "%s\t%s\n", p.Name(), alg)
		}
	}
	return w.Flush()
}
