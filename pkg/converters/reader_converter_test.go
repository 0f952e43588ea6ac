package converters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/book-reader/internal/models"
)

func TestConvertBuildsTOCAndStats(t *testing.T) {
	book := &models.NormalizedBook{
		Title:    "Sample",
		Language: "en",
		Chapters: []models.Chapter{
			{ID: "c1", Href: "text/c1.xhtml", Content: `<h1 id="start">Opening  Lines</h1><p>One two three.</p><h2>Detail</h2><p><img src="/reader/b/images/a.png"/></p>`},
			{ID: "c2", Href: "text/c2.xhtml", Content: `<p>Four five</p>`},
		},
	}

	doc, err := NewJSONConverter().Convert(book, BookInfo{ID: "b", Author: "Ada", Format: models.Epub})
	require.NoError(t, err)

	assert.Equal(t, "Sample", doc.Title)
	assert.Equal(t, "Ada", doc.Author)
	require.Len(t, doc.Chapters, 2)
	assert.Equal(t, "Opening Lines", doc.Chapters[0].Title)
	assert.Equal(t, "Chapter 2", doc.Chapters[1].Title)
	assert.Equal(t, book.Chapters[0].Content, doc.Chapters[0].Content)

	assert.Equal(t, []TOCEntry{
		{ChapterID: "c1", Title: "Opening Lines", Level: 1, Anchor: "start"},
		{ChapterID: "c1", Title: "Detail", Level: 2},
		{ChapterID: "c2", Title: "Chapter 2", Level: 1},
	}, doc.TOC)

	// Opening Lines One two three Detail + Four five
	assert.Equal(t, 8, doc.Stats.Words)
	assert.Equal(t, 1, doc.Stats.Images)
	assert.Equal(t, 2, doc.Stats.Chapters)
	assert.Equal(t, 1, doc.Stats.ReadingMinutes)
}

func TestConvertEmptyChapter(t *testing.T) {
	book := &models.NormalizedBook{
		Title:    "Document",
		Language: "en",
		Chapters: []models.Chapter{{ID: "doc-content", Href: "#"}},
	}

	doc, err := NewJSONConverter().Convert(book, BookInfo{Format: models.Docx})
	require.NoError(t, err)
	require.Len(t, doc.Chapters, 1)
	assert.Zero(t, doc.Stats.Words)
	assert.Zero(t, doc.Stats.ReadingMinutes)
}

func TestConvertNilBook(t *testing.T) {
	_, err := NewJSONConverter().Convert(nil, BookInfo{})
	assert.Error(t, err)
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 3, countWords("hello, brave world"))
	assert.Equal(t, 4, countWords("读书 ok 了"))
	assert.Equal(t, 0, countWords("  \n "))
}
