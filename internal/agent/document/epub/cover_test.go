package epub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
)

func extractCover(t *testing.T, tb testBook) ([]byte, string, error) {
	t.Helper()
	cover, err := newTestProcessor().ExtractCover(context.Background(), tb.build(t))
	if err != nil {
		return nil, "", err
	}
	return cover.Data, cover.MediaType, nil
}

func TestCoverMetaWinsOverEverything(t *testing.T) {
	data, mediaType, err := extractCover(t, testBook{
		metadata: `<meta name="cover" content="meta-img"/>`,
		manifest: []manifestEntry{
			{id: "c1", href: "ch1.xhtml", mediaType: "application/xhtml+xml"},
			{id: "prop", href: "images/prop.png", mediaType: "image/png", properties: "cover-image"},
			{id: "meta-img", href: "images/front.jpg", mediaType: "image/jpeg"},
		},
		spine: []string{"c1"},
		files: map[string]string{
			"OEBPS/ch1.xhtml":        xhtml(`<p/>`),
			"OEBPS/images/prop.png":  "prop",
			"OEBPS/images/front.jpg": "meta",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "meta", string(data))
	assert.Equal(t, "image/jpeg", mediaType)
}

func TestCoverMetaPointingAtCoverPage(t *testing.T) {
	data, _, err := extractCover(t, testBook{
		metadata: `<meta name="cover" content="cover-page"/>`,
		manifest: []manifestEntry{
			{id: "cover-page", href: "Text/cover.xhtml", mediaType: "application/xhtml+xml"},
			{id: "art", href: "Images/art.jpg", mediaType: "image/jpeg"},
		},
		spine: []string{"cover-page"},
		files: map[string]string{
			"OEBPS/Text/cover.xhtml": xhtml(`<img src="../Images/art.jpg"/>`),
			"OEBPS/Images/art.jpg":   "art",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "art", string(data))
}

func TestCoverPropertyWinsOverCoverID(t *testing.T) {
	data, mediaType, err := extractCover(t, testBook{
		manifest: []manifestEntry{
			{id: "c1", href: "ch1.xhtml", mediaType: "application/xhtml+xml"},
			{id: "cover", href: "images/cover.jpg", mediaType: "image/jpeg"},
			{id: "img-cover", href: "images/hires/cover.png", mediaType: "image/png", properties: "cover-image"},
		},
		spine: []string{"c1"},
		files: map[string]string{
			"OEBPS/ch1.xhtml":              xhtml(`<p/>`),
			"OEBPS/images/cover.jpg":       "by-id",
			"OEBPS/images/hires/cover.png": "by-property",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "by-property", string(data))
	assert.Equal(t, "image/png", mediaType)
}

func TestCoverByIDOrFileStem(t *testing.T) {
	tests := []struct {
		name  string
		entry manifestEntry
	}{
		{"id", manifestEntry{id: "COVER", href: "images/front.gif", mediaType: "image/gif"}},
		{"stem", manifestEntry{id: "img1", href: "images/Cover.gif", mediaType: "image/gif"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mediaType, err := extractCover(t, testBook{
				manifest: []manifestEntry{
					{id: "c1", href: "ch1.xhtml", mediaType: "application/xhtml+xml"},
					{id: "other", href: "images/covers-back.gif", mediaType: "image/gif"},
					tt.entry,
				},
				spine: []string{"c1"},
				files: map[string]string{
					"OEBPS/ch1.xhtml":              xhtml(`<p/>`),
					"OEBPS/images/covers-back.gif": "back",
					"OEBPS/" + tt.entry.href:       "front",
				},
			})
			require.NoError(t, err)
			assert.Equal(t, "front", string(data))
			assert.Equal(t, "image/gif", mediaType)
		})
	}
}

func TestCoverFromFirstSpineImage(t *testing.T) {
	data, _, err := extractCover(t, testBook{
		manifest: []manifestEntry{
			{id: "c1", href: "Text/titlepage.xhtml", mediaType: "application/xhtml+xml"},
			{id: "c2", href: "Text/ch2.xhtml", mediaType: "application/xhtml+xml"},
			{id: "i1", href: "Images/page.jpg", mediaType: "image/jpeg"},
			{id: "i2", href: "Images/later.jpg", mediaType: "image/jpeg"},
		},
		spine: []string{"c1", "c2"},
		files: map[string]string{
			"OEBPS/Text/titlepage.xhtml": xhtml(`<div><img src="../Images/page.jpg"/></div>`),
			"OEBPS/Text/ch2.xhtml":       xhtml(`<img src="../Images/later.jpg"/>`),
			"OEBPS/Images/page.jpg":      "titlepage",
			"OEBPS/Images/later.jpg":     "later",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "titlepage", string(data))
}

func TestCoverFromFirstSpineSVGImage(t *testing.T) {
	data, _, err := extractCover(t, testBook{
		manifest: []manifestEntry{
			{id: "c1", href: "titlepage.xhtml", mediaType: "application/xhtml+xml"},
			{id: "i1", href: "art/front.jpeg", mediaType: "image/jpeg"},
		},
		spine: []string{"c1"},
		files: map[string]string{
			"OEBPS/titlepage.xhtml": xhtml(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 600 800">
<image width="600" height="800" xlink:href="art/front.jpeg"/></svg>`),
			"OEBPS/art/front.jpeg": "svg-cover",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "svg-cover", string(data))
}

func TestCoverSpineScanSkipsIconsAndLogos(t *testing.T) {
	data, _, err := extractCover(t, testBook{
		manifest: []manifestEntry{
			{id: "c1", href: "ch1.xhtml", mediaType: "application/xhtml+xml"},
			{id: "c2", href: "ch2.xhtml", mediaType: "application/xhtml+xml"},
			{id: "c3", href: "ch3.xhtml", mediaType: "application/xhtml+xml"},
			{id: "i1", href: "img/publisher_LOGO.png", mediaType: "image/png"},
			{id: "i2", href: "img/icon-star.png", mediaType: "image/png"},
			{id: "i3", href: "img/map.png", mediaType: "image/png"},
		},
		spine: []string{"c1", "c2", "c3"},
		files: map[string]string{
			"OEBPS/ch1.xhtml":              xhtml(`<p>No pictures.</p>`),
			"OEBPS/ch2.xhtml":              xhtml(`<img src="img/publisher_LOGO.png"/><img src="img/icon-star.png"/>`),
			"OEBPS/ch3.xhtml":              xhtml(`<img src="img/map.png"/>`),
			"OEBPS/img/publisher_LOGO.png": "logo",
			"OEBPS/img/icon-star.png":      "icon",
			"OEBPS/img/map.png":            "map",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "map", string(data))
}

func TestCoverSpineScanFindsSVGImage(t *testing.T) {
	data, mediaType, err := extractCover(t, testBook{
		manifest: []manifestEntry{
			{id: "c1", href: "ch1.xhtml", mediaType: "application/xhtml+xml"},
			{id: "c2", href: "ch2.xhtml", mediaType: "application/xhtml+xml"},
			{id: "i1", href: "plates/frontispiece.png", mediaType: "image/png"},
		},
		spine: []string{"c1", "c2"},
		files: map[string]string{
			"OEBPS/ch1.xhtml": xhtml(`<p>Foreword.</p>`),
			"OEBPS/ch2.xhtml": xhtml(`<svg xmlns="http://www.w3.org/2000/svg">
<image xlink:href="plates/frontispiece.png"/></svg>`),
			"OEBPS/plates/frontispiece.png": "plate",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "plate", string(data))
	assert.Equal(t, "image/png", mediaType)
}

func TestCoverNotFound(t *testing.T) {
	_, _, err := extractCover(t, testBook{
		manifest: []manifestEntry{
			{id: "c1", href: "ch1.xhtml", mediaType: "application/xhtml+xml"},
			{id: "i1", href: "img/logo.png", mediaType: "image/png"},
		},
		spine: []string{"c1"},
		files: map[string]string{
			"OEBPS/ch1.xhtml":    xhtml(`<p>text</p>`),
			"OEBPS/img/logo.png": "logo",
		},
	})
	assert.ErrorIs(t, err, document.ErrNoCoverFound)
}

func TestCoverOnEmptyManifest(t *testing.T) {
	_, err := newTestProcessor().ExtractCover(context.Background(), testBook{}.build(t))
	assert.ErrorIs(t, err, document.ErrNoCoverFound)
}

func TestCoverOnCorruptArchiveIsNoCover(t *testing.T) {
	src := models.NewSourceFile("broken.epub", models.Epub, []byte("PK\x03\x04garbage"))
	_, err := newTestProcessor().ExtractCover(context.Background(), src)
	assert.ErrorIs(t, err, document.ErrNoCoverFound)
}
