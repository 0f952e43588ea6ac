package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/pkg/converters"
)

func (c *cli) detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>",
		Short: "Print the format detected from the file name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), document.DetectFormat(args[0]))
			return nil
		},
	}
}

func (c *cli) extractCmd() *cobra.Command {
	var (
		baseURL string
		reader  bool
	)

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract chapters as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, src, err := c.open(args[0])
			if err != nil {
				return err
			}

			book, err := p.Extract(cmd.Context(), src, baseURL)
			if err != nil {
				return err
			}

			var out any = book
			if reader {
				out, err = converters.NewJSONConverter().Convert(book, converters.BookInfo{Format: src.Format})
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Rewrite image references under this URL prefix")
	cmd.Flags().BoolVar(&reader, "reader", false, "Emit the reader document with TOC and stats")
	return cmd
}

func (c *cli) assetCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "asset <file> <asset-id>",
		Short: "Write an embedded asset to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, src, err := c.open(args[0])
			if err != nil {
				return err
			}

			asset, err := p.ResolveAsset(cmd.Context(), src, args[1])
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, asset.Data, 0o644); err != nil {
				return fmt.Errorf("writing asset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d bytes -> %s\n", asset.MediaType, len(asset.Data), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (c *cli) coverCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "cover <file>",
		Short: "Write the book cover to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, src, err := c.open(args[0])
			if err != nil {
				return err
			}

			cover, err := p.ExtractCover(cmd.Context(), src)
			if err != nil {
				return err
			}

			if output == "" {
				output = "cover" + document.ExtensionFor(cover.MediaType)
			}
			if err := os.WriteFile(output, cover.Data, 0o644); err != nil {
				return fmt.Errorf("writing cover: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d bytes -> %s\n", cover.MediaType, len(cover.Data), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default cover.<ext>)")
	return cmd
}
