package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/casegen"
	"github.com/brunobiangulo/casegen/parser"
)

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <pdf>",
		Short: "Render the selected pages as PNG files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := casegen.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.ValidatePreview(); err != nil {
				return err
			}

			sel, _ := cmd.Flags().GetString("pages")
			pages, err := parser.ParseSelection(sel)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if len(pages) == 0 {
				total, err := parser.PageCount(data)
				if err != nil {
					return err
				}
				pages = parser.AllPages(total)
			}

			previews, err := parser.RenderPreviews(data, pages, parser.PreviewOptions{
				DPI:   cfg.Preview.DPI,
				Scale: cfg.Preview.Scale,
			})
			if err != nil {
				return err
			}

			if err := os.MkdirAll(out, 0o755); err != nil {
				return err
			}
			for _, p := range previews {
				png, err := parser.EncodePNG(p.Image)
				if err != nil {
					return err
				}
				path := filepath.Join(out, fmt.Sprintf("page-%d.png", p.Page))
				if err := os.WriteFile(path, png, 0o644); err != nil {
					return err
				}
				slog.Debug("preview written", "page", p.Page, "path", path)
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().String("pages", "", `pages to render, in this order (default: all)`)
	cmd.Flags().String("out", ".", "output directory")
	return cmd
}
