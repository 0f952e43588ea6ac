package pdf

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
	ldpdf "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/logger"
)

// buildPDF writes one page per entry; an empty entry leaves its page blank.
func buildPDF(t *testing.T, title string, pages ...string) *models.SourceFile {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	if title != "" {
		doc.SetTitle(title, false)
	}
	doc.SetFont("Helvetica", "", 14)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.Text(20, 30, text)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return models.NewSourceFile("scans/report.pdf", models.Pdf, buf.Bytes())
}

func TestRenderPagesKeepsEmptyPages(t *testing.T) {
	out := renderPages([]string{"Page one\n\n  first <b> line  \n", "", "Page three"})

	want := "<p>Page one</p>\n" +
		"<p>first &lt;b&gt; line</p>\n" +
		"<hr class='page-break' data-page='1'>\n" +
		"<hr class='page-break' data-page='2'>\n" +
		"<p>Page three</p>\n" +
		"<hr class='page-break' data-page='3'>\n"
	assert.Equal(t, want, out)
}

func TestExtractThreePagesWithBlankMiddle(t *testing.T) {
	src := buildPDF(t, "", "Hello", "", "World")

	book, err := NewProcessor(logger.NewNop()).Extract(context.Background(), src, "/ignored")
	require.NoError(t, err)
	require.Len(t, book.Chapters, 1)

	ch := book.Chapters[0]
	assert.Equal(t, "pdf-content", ch.ID)
	assert.Equal(t, "#", ch.Href)
	assert.Equal(t, 3, strings.Count(ch.Content, "<hr class='page-break'"))
	assert.Equal(t, "report.pdf", book.Title)

	first := strings.Index(ch.Content, "data-page='1'")
	second := strings.Index(ch.Content, "data-page='2'")
	third := strings.Index(ch.Content, "data-page='3'")
	require.True(t, first < second && second < third)

	// Page 2 sits between the first two markers.
	assert.Contains(t, ch.Content[:first], "Hello")
	assert.NotContains(t, ch.Content[first:second], "<p>")
	assert.Contains(t, ch.Content[second:third], "World")
}

func TestExtractKeepsLinesApart(t *testing.T) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 14)
	doc.AddPage()
	doc.Text(20, 30, "Line one")
	doc.Text(20, 50, "Line two")
	doc.AddPage()
	doc.SetXY(20, 30)
	doc.MultiCell(0, 10, "Alpha\nBeta\nGamma", "", "L", false)
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	src := models.NewSourceFile("lines.pdf", models.Pdf, buf.Bytes())

	book, err := NewProcessor(logger.NewNop()).Extract(context.Background(), src, "")
	require.NoError(t, err)

	want := "<p>Line one</p>\n" +
		"<p>Line two</p>\n" +
		"<hr class='page-break' data-page='1'>\n" +
		"<p>Alpha</p>\n" +
		"<p>Beta</p>\n" +
		"<p>Gamma</p>\n" +
		"<hr class='page-break' data-page='2'>\n"
	assert.Equal(t, want, book.Chapters[0].Content)
}

func TestTextLinesGroupsByBaseline(t *testing.T) {
	glyph := func(s string, x, y, w float64) ldpdf.Text {
		return ldpdf.Text{S: s, X: x, Y: y, W: w, FontSize: 12}
	}

	tests := []struct {
		name   string
		glyphs []ldpdf.Text
		want   []string
	}{
		{
			name: "top to bottom",
			glyphs: []ldpdf.Text{
				glyph("b", 10, 700, 6), glyph("o", 16, 700, 6),
				glyph("t", 10, 760, 6), glyph("o", 16, 760, 6), glyph("p", 22, 760, 6),
			},
			want: []string{"top", "bo"},
		},
		{
			name: "small baseline jitter stays on one line",
			glyphs: []ldpdf.Text{
				glyph("a", 10, 500, 6), glyph("b", 16, 501.5, 6),
			},
			want: []string{"ab"},
		},
		{
			name: "wide gap becomes a space",
			glyphs: []ldpdf.Text{
				glyph("left", 10, 400, 24), glyph("right", 100, 400, 30),
			},
			want: []string{"left right"},
		},
		{
			name: "unknown widths keep stream order",
			glyphs: []ldpdf.Text{
				glyph("H", 10, 300, 0), glyph("i", 10, 300, 0), glyph("!", 10, 300, 0),
			},
			want: []string{"Hi!"},
		},
		{
			name: "blank rows are dropped",
			glyphs: []ldpdf.Text{
				glyph(" ", 10, 200, 3), glyph("x", 10, 100, 6),
			},
			want: []string{"x"},
		},
		{
			name: "no glyphs",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textLines(tt.glyphs))
		})
	}
}

func TestExtractUsesInfoTitle(t *testing.T) {
	src := buildPDF(t, "Annual Report", "Body")

	book, err := NewProcessor(logger.NewNop()).Extract(context.Background(), src, "")
	require.NoError(t, err)
	assert.Equal(t, "Annual Report", book.Title)

	title, _ := NewProcessor(logger.NewNop()).Metadata(src)
	assert.Equal(t, "Annual Report", title)
}

func TestExtractCorrupt(t *testing.T) {
	src := models.NewSourceFile("bad.pdf", models.Pdf, []byte("%PDF-1.4\nnot really"))

	_, err := NewProcessor(logger.NewNop()).Extract(context.Background(), src, "")
	require.Error(t, err)
	assert.True(t, document.IsReadFailure(err))
}

func TestResolveAssetAlwaysMisses(t *testing.T) {
	src := buildPDF(t, "", "Hello")
	p := NewProcessor(logger.NewNop())

	for _, id := range []string{"", "rId1", "page-1.png", "../../etc/passwd"} {
		_, err := p.ResolveAsset(context.Background(), src, id)
		assert.ErrorIs(t, err, document.ErrAssetNotFound, "asset %q", id)
	}
}

type fakeCover struct {
	name   string
	cover  *models.CoverImage
	err    error
	panics bool
	calls  int
}

func (f *fakeCover) Name() string { return f.name }

func (f *fakeCover) Cover(ctx context.Context, data []byte) (*models.CoverImage, error) {
	f.calls++
	if f.panics {
		panic("malformed xref")
	}
	return f.cover, f.err
}

func TestExtractCoverTierOrder(t *testing.T) {
	embedded := &models.CoverImage{Data: []byte("embedded"), MediaType: "image/png"}
	raster := &models.CoverImage{Data: []byte("raster"), MediaType: "image/jpeg"}

	tests := []struct {
		name      string
		first     *fakeCover
		wantData  string
		wantCalls int
	}{
		{"embedded image wins", &fakeCover{name: "embedded", cover: embedded}, "embedded", 0},
		{"decode failure falls back", &fakeCover{name: "embedded", err: errors.New("unsupported filter")}, "raster", 1},
		{"panic falls back", &fakeCover{name: "embedded", panics: true}, "raster", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			second := &fakeCover{name: "raster", cover: raster}
			p := NewProcessor(logger.NewNop())
			p.covers = []coverSource{tt.first, second}

			cover, err := p.ExtractCover(context.Background(), models.NewSourceFile("a.pdf", models.Pdf, []byte("%PDF")))
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, string(cover.Data))
			assert.Equal(t, 1, tt.first.calls)
			assert.Equal(t, tt.wantCalls, second.calls)
		})
	}
}

func TestExtractCoverNoneFound(t *testing.T) {
	p := NewProcessor(logger.NewNop())
	p.covers = []coverSource{
		&fakeCover{name: "embedded", err: errNoPageImage},
		&fakeCover{name: "raster", err: errors.New("render failed")},
	}

	_, err := p.ExtractCover(context.Background(), models.NewSourceFile("a.pdf", models.Pdf, nil))
	assert.ErrorIs(t, err, document.ErrNoCoverFound)
}

func TestWithCoverDPI(t *testing.T) {
	p := NewProcessor(logger.NewNop(), WithCoverDPI(72), WithMaxWorkers(2))
	require.Len(t, p.covers, 2)
	assert.Equal(t, pageRasterCover{dpi: 72}, p.covers[1])
	assert.Equal(t, 2, p.maxWorkers)
}

func TestPageRasterCoverRendersFirstPage(t *testing.T) {
	src := buildPDF(t, "", "Only text here", "Second page")

	cover, err := pageRasterCover{dpi: 72}.Cover(context.Background(), src.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", cover.MediaType)
	require.NotEmpty(t, cover.Data)

	img, err := imaging.Decode(bytes.NewReader(cover.Data))
	require.NoError(t, err)
	// A4 竖版, 72 DPI 下约 595x842
	b := img.Bounds()
	assert.InDelta(t, 595, b.Dx(), 2)
	assert.InDelta(t, 842, b.Dy(), 2)
}

func TestPageRasterCoverRejectsGarbage(t *testing.T) {
	_, err := pageRasterCover{dpi: 72}.Cover(context.Background(), []byte("not a pdf"))
	assert.Error(t, err)
}

func TestEmbeddedImageCoverPicksLargest(t *testing.T) {
	small := jpegOf(t, 16, 16, color.NRGBA{G: 255, A: 255})
	large := jpegOf(t, 64, 48, color.NRGBA{R: 255, A: 255})

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	for name, data := range map[string][]byte{"small": small, "large": large} {
		opts := gofpdf.ImageOptions{ImageType: "JPG"}
		doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		doc.ImageOptions(name, 10, 10, 40, 0, false, opts, 0, "")
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	cover, err := embeddedImageCover{}.Cover(context.Background(), buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", cover.MediaType)

	img, err := imaging.Decode(bytes.NewReader(cover.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
}

func jpegOf(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, c), imaging.JPEG))
	return buf.Bytes()
}
