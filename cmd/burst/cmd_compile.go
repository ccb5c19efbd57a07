package main

import (
	"github.com/spf13/cobra"
)

func newCompileCmd(flags *rootFlags) *cobra.Command {
	var summaryOnly bool
	cmd := &cobra.Command{
		Use:   "compile FILE",
		Short: "Normalize a scenario and print its dispatch plan",
		Long: "Reads generator output from FILE (or - for stdin), repairs and validates it, " +
			"checks every placeholder and prints the dispatch plan with a per-event summary.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, logger, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			raw, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			eng, closeAudit, err := newEngine(f, logger, nil)
			if err != nil {
				return err
			}
			defer closeAudit() //nolint:errcheck // append-only log
			comp, err := eng.Compile(cmd.Context(), raw)
			if err != nil {
				return err
			}
			if summaryOnly {
				return writeJSON(cmd.OutOrStdout(), comp.Summary)
			}
			return writeJSON(cmd.OutOrStdout(), comp)
		},
	}
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "Print only the per-event schedule summary")
	return cmd
}
