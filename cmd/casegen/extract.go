package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/casegen/parser"
)

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <pdf>",
		Short: "Print the cleaned text of the selected pages",
		Long: `Extract prints the text of the selected pages in increasing page order.
Lines holding nothing but a number (page numbers) are dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, _ := cmd.Flags().GetString("pages")
			pages, err := parser.ParseSelection(sel)
			if err != nil {
				return err
			}

			doc, err := parser.OpenPDF(args[0])
			if err != nil {
				return err
			}
			defer doc.Close()

			if len(pages) == 0 {
				pages = parser.AllPages(doc.NumPages())
			}
			text, err := parser.ExtractPages(doc, pages)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().String("pages", "", `pages to read, e.g. "1,3,5-7" (default: all)`)
	return cmd
}
