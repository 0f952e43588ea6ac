package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/logger"
)

func TestGetProcessorForEveryFormat(t *testing.T) {
	f := NewProcessorFactory(logger.NewNop(), Options{})

	for _, kind := range []models.FormatKind{models.Epub, models.Docx, models.Pdf, models.Txt} {
		p, err := f.GetProcessor(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, p.Format())
	}
}

func TestGetProcessorUnknown(t *testing.T) {
	log := logger.NewTestLogger()
	f := NewProcessorFactory(log, Options{})

	_, err := f.GetProcessor(models.Unknown)
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)
	assert.True(t, log.HasMessage("WARN", "No processor found"))
}

func TestProcessorFor(t *testing.T) {
	f := NewProcessorFactory(logger.NewNop(), Options{PDFWorkers: 2, PDFCoverDPI: 96})

	p, kind, err := f.ProcessorFor("Novel.EPUB")
	require.NoError(t, err)
	assert.Equal(t, models.Epub, kind)
	assert.Equal(t, models.Epub, p.Format())

	_, kind, err = f.ProcessorFor("slides.pptx")
	assert.Equal(t, models.Unknown, kind)
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)
}
