package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/proxemy/muse/transcode"
)

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported audio formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			loader := transcode.NewLoader(cfg.LoaderConfig())

			var rows [][]string
			for _, f := range loader.Formats().All() {
				note := ""
				if f.Legacy {
					note = "legacy"
				}
				rows = append(rows, []string{f.Name, strings.Join(f.Extensions(), " "), f.Backend, note})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Format", "Extensions", "Decoder", "Note"}, rows, nil))
			return nil
		},
	}
}

func newExamplesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "examples",
		Short:       "List built-in example signals",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			examples := transcode.DefaultExamples()
			var rows [][]string
			for _, name := range examples.Names() {
				ex, _ := examples.Get(name)
				rows = append(rows, []string{ex.Name, ex.Duration.String(), ex.Description})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out,
				[]string{"Name", "Length", "Description"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
