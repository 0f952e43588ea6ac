package main

import (
	"github.com/spf13/cobra"

	"github.com/feichai0017/book-reader/internal/agent"
	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/logger"
)

// cli holds state shared by all subcommands.
type cli struct {
	logLevel string
	dpi      float64
	workers  int
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "bookctl",
		Short: "Inspect books with the reader's processors",
		Long: `bookctl runs format detection, chapter extraction, asset lookup and cover
extraction against local files, without storage or queues.

Usage:
  bookctl detect <file>
  bookctl extract <file> [--base-url /reader/1/images]
  bookctl asset <file> <asset-id> -o out.png
  bookctl cover <file> -o cover.jpg`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level written to stderr")
	root.PersistentFlags().Float64Var(&c.dpi, "cover-dpi", 0, "PDF cover render DPI (default 150)")
	root.PersistentFlags().IntVar(&c.workers, "pdf-workers", 0, "Parallel PDF page readers")

	root.AddCommand(
		c.detectCmd(),
		c.extractCmd(),
		c.assetCmd(),
		c.coverCmd(),
	)
	return root
}

func (c *cli) logger() (logger.Logger, error) {
	return logger.NewLogger(
		logger.WithLevel(c.logLevel),
		logger.WithEncoding("console"),
		logger.WithOutputPaths([]string{"stderr"}),
		logger.WithErrorPaths([]string{"stderr"}),
	)
}

// open detects the format of path and loads it with its processor.
func (c *cli) open(path string) (document.Processor, *models.SourceFile, error) {
	log, err := c.logger()
	if err != nil {
		return nil, nil, err
	}

	factory := agent.NewProcessorFactory(log, agent.Options{
		PDFWorkers:  c.workers,
		PDFCoverDPI: c.dpi,
	})
	p, kind, err := factory.ProcessorFor(path)
	if err != nil {
		return nil, nil, err
	}

	src, err := models.ReadSourceFile(path, kind)
	if err != nil {
		return nil, nil, err
	}
	return p, src, nil
}
