package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/casegen"
	"github.com/brunobiangulo/casegen/export"
	"github.com/brunobiangulo/casegen/parser"
)

// errUnparsed is returned when the model answered but no test cases could be
// read from the answer.
var errUnparsed = errors.New("model output could not be parsed")

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <pdf>",
		Short: "Generate test cases and write test_cases.json and test_cases.xlsx",
		Long: `Generate sends the selected pages (and optional example test cases) to the
configured chat model and writes the parsed test cases to the output
directory. When the answer cannot be parsed, the raw answer is printed and
nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := casegen.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			sel, _ := cmd.Flags().GetString("pages")
			pages, err := parser.ParseSelection(sel)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			examplesPath, _ := cmd.Flags().GetString("examples")

			engine, err := casegen.New(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			pdf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			req := casegen.GenerateRequest{PDF: pdf, Pages: pages}
			if examplesPath != "" {
				f, err := os.Open(examplesPath)
				if err != nil {
					return err
				}
				defer f.Close()
				req.Examples = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := engine.Generate(ctx, req)
			if err != nil {
				return err
			}

			if !result.Parsed() {
				fmt.Fprintln(cmd.ErrOrStderr(), result.Warning)
				fmt.Fprintln(cmd.OutOrStdout(), result.Raw)
				return errUnparsed
			}

			for _, n := range result.Notes {
				fmt.Fprintln(cmd.ErrOrStderr(), "note:", n)
			}

			paths, err := export.WriteFiles(out, result.TestCases)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d test cases (run %s)\n", len(result.TestCases), result.RunID)
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().String("pages", "", `pages to send, e.g. "1,3,5-7" (default: all)`)
	cmd.Flags().String("examples", "", "optional .xlsx workbook of example test cases")
	cmd.Flags().String("out", ".", "output directory for test_cases.json and test_cases.xlsx")
	return cmd
}
