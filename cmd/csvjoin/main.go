package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rrgmc/csvmigrate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		toPath string
		asPath string
		fields []string
	)

	cmd := &cobra.Command{
		Use:   "csvjoin SOURCE",
		Short: "Outer-join two sorted CSV files on their common columns",
		Long: `csvjoin merges two CSV files sorted by their common columns into an
outer join. Rows matching on the common columns are merged; unmatched
rows keep the other side's columns empty.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			var options []csvmigrate.JoinOption
			if len(fields) > 0 {
				options = append(options, csvmigrate.WithJoinFields(fields...))
			}
			return csvmigrate.JoinFiles(args[0], toPath, asPath, options...)
		},
	}

	cmd.Flags().StringVar(&toPath, "to", "", "target CSV file (default: stdin)")
	cmd.Flags().StringVar(&asPath, "as", "", "output CSV file (default: stdout)")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "source columns to include (default: all)")

	return cmd
}
