package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/casegen/parser"
)

func newPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages <pdf>",
		Short: "Print the number of pages in a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			n, err := parser.PageCount(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}
