package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/burst/export"
	"github.com/xraph/burst/schedule"
	"github.com/xraph/burst/token"
)

func newExportCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a scenario to other tools",
	}
	cmd.AddCommand(newExportPostmanCmd(flags))
	return cmd
}

func newExportPostmanCmd(flags *rootFlags) *cobra.Command {
	var (
		name    string
		out     string
		resolve bool
	)
	cmd := &cobra.Command{
		Use:   "postman FILE",
		Short: "Write a Postman v2.1 collection with one request per event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, _, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			raw, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			templates, err := schedule.Normalize(raw)
			if err != nil {
				return err
			}

			var res *token.Resolver
			if resolve {
				if res, err = f.Resolver(); err != nil {
					return err
				}
			}
			col, err := export.Postman(name, templates, res, export.Endpoints{
				Events: f.PagerDuty.EventsURL,
				Change: f.PagerDuty.ChangeURL,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			return writeJSON(w, col)
		},
	}
	cmd.Flags().StringVar(&name, "name", "burst scenario", "Collection name")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to a file instead of stdout")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "Substitute placeholders with generated values")
	return cmd
}
