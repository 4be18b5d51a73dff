// Package main is the casegen command line: it counts, extracts and
// previews BRD pages and generates test cases from them.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd assembles the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "casegen",
		Short: "Generate QA test cases from business requirement documents",
		Long: `casegen reads the selected pages of a BRD PDF, optionally takes example
test cases from an .xlsx workbook, and asks a chat model for test cases with
Scenario, Content, TC_Name and Description fields.

Model settings come from casegen.yaml (in . or ~/.casegen) and CASEGEN_*
environment variables, e.g. CASEGEN_CHAT_PROVIDER and GROQ_API_KEY.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	root.PersistentFlags().String("config", "", "config file (default: ./casegen.yaml or ~/.casegen/casegen.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "debug logging")

	root.AddCommand(
		newPagesCmd(),
		newExtractCmd(),
		newPreviewCmd(),
		newGenerateCmd(),
	)
	return root
}
