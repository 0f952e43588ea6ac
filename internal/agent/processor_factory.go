package agent

import (
	"fmt"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/agent/document/docx"
	"github.com/feichai0017/book-reader/internal/agent/document/epub"
	"github.com/feichai0017/book-reader/internal/agent/document/pdf"
	"github.com/feichai0017/book-reader/internal/agent/document/txt"
	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/logger"
)

// Options tunes the processors built by the factory.
type Options struct {
	PDFWorkers  int
	PDFCoverDPI float64
}

type ProcessorFactory struct {
	processors map[models.FormatKind]document.Processor
	logger     logger.Logger
}

func NewProcessorFactory(logger logger.Logger, opts Options) *ProcessorFactory {
	factory := &ProcessorFactory{
		processors: make(map[models.FormatKind]document.Processor),
		logger:     logger,
	}

	factory.Register(epub.NewProcessor(logger))
	factory.Register(docx.NewProcessor(logger))
	factory.Register(pdf.NewProcessor(logger,
		pdf.WithMaxWorkers(opts.PDFWorkers),
		pdf.WithCoverDPI(opts.PDFCoverDPI),
	))
	factory.Register(txt.NewProcessor(logger))

	return factory
}

// Register installs p for its format, replacing any previous processor.
func (f *ProcessorFactory) Register(p document.Processor) {
	f.processors[p.Format()] = p
}

func (f *ProcessorFactory) GetProcessor(kind models.FormatKind) (document.Processor, error) {
	processor, ok := f.processors[kind]
	if !ok {
		f.logger.Warn("No processor found",
			logger.String("format", string(kind)),
		)
		return nil, fmt.Errorf("format %q: %w", kind, document.ErrUnsupportedFormat)
	}

	f.logger.Debug("Processor selected",
		logger.String("format", string(kind)),
	)
	return processor, nil
}

// ProcessorFor detects the format from filename and returns its processor.
func (f *ProcessorFactory) ProcessorFor(filename string) (document.Processor, models.FormatKind, error) {
	kind := document.DetectFormat(filename)
	p, err := f.GetProcessor(kind)
	if err != nil {
		return nil, kind, err
	}
	return p, kind, nil
}
