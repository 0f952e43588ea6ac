package converters

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/feichai0017/book-reader/internal/models"
)

// DocumentConverter 定义文档转换器接口
type DocumentConverter interface {
	Convert(book *models.NormalizedBook, info BookInfo) (*ReaderDocument, error)
}

// BookInfo carries the catalog fields that are not part of the normalized book.
type BookInfo struct {
	ID     string
	Author string
	Format models.FormatKind
}

// ReaderDocument 阅读器使用的 JSON 文档
type ReaderDocument struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Author      string            `json:"author,omitempty"`
	Language    string            `json:"language"`
	Format      models.FormatKind `json:"format"`
	Chapters    []ReaderChapter   `json:"chapters"`
	TOC         []TOCEntry        `json:"toc"`
	Stats       DocumentStats     `json:"stats"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// ReaderChapter 章节内容, Content 为章节 HTML
type ReaderChapter struct {
	ID         string `json:"id"`
	Href       string `json:"href"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Words      int    `json:"words"`
	Characters int    `json:"characters"`
	Images     int    `json:"images"`
}

// TOCEntry 目录项
type TOCEntry struct {
	ChapterID string `json:"chapterId"`
	Title     string `json:"title"`
	Level     int    `json:"level"`
	Anchor    string `json:"anchor,omitempty"`
}

// DocumentStats 全书统计
type DocumentStats struct {
	Chapters       int `json:"chapters"`
	Words          int `json:"words"`
	Characters     int `json:"characters"`
	Images         int `json:"images"`
	ReadingMinutes int `json:"readingMinutes"`
}

// 阅读速度: 每分钟词数
const wordsPerMinute = 250

var headingLevels = map[string]int{"h1": 1, "h2": 2, "h3": 3}

// JSONConverter 实现文档转换器
type JSONConverter struct{}

func NewJSONConverter() *JSONConverter {
	return &JSONConverter{}
}

func (c *JSONConverter) Convert(book *models.NormalizedBook, info BookInfo) (*ReaderDocument, error) {
	if book == nil {
		return nil, errors.New("no book to convert")
	}

	doc := &ReaderDocument{
		ID:          info.ID,
		Title:       book.Title,
		Author:      info.Author,
		Language:    book.Language,
		Format:      info.Format,
		Chapters:    make([]ReaderChapter, 0, len(book.Chapters)),
		TOC:         make([]TOCEntry, 0, len(book.Chapters)),
		GeneratedAt: time.Now(),
	}

	for i, ch := range book.Chapters {
		// 章节内容是片段, goquery 会补全 html/body
		frag, err := goquery.NewDocumentFromReader(strings.NewReader(ch.Content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse chapter %s: %w", ch.ID, err)
		}

		headings := collectHeadings(frag, ch.ID)
		title := fmt.Sprintf("Chapter %d", i+1)
		if len(headings) > 0 {
			title = headings[0].Title
		} else {
			headings = []TOCEntry{{ChapterID: ch.ID, Title: title, Level: 1}}
		}

		text := visibleText(frag.Find("body"))
		rc := ReaderChapter{
			ID:         ch.ID,
			Href:       ch.Href,
			Title:      title,
			Content:    ch.Content,
			Words:      countWords(text),
			Characters: countCharacters(text),
			Images:     frag.Find("img, image").Length(),
		}

		doc.Chapters = append(doc.Chapters, rc)
		doc.TOC = append(doc.TOC, headings...)
		doc.Stats.Words += rc.Words
		doc.Stats.Characters += rc.Characters
		doc.Stats.Images += rc.Images
	}

	doc.Stats.Chapters = len(doc.Chapters)
	if doc.Stats.Words > 0 {
		doc.Stats.ReadingMinutes = (doc.Stats.Words + wordsPerMinute - 1) / wordsPerMinute
	}

	return doc, nil
}

func collectHeadings(frag *goquery.Document, chapterID string) []TOCEntry {
	var entries []TOCEntry
	frag.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		title := strings.Join(strings.Fields(s.Text()), " ")
		if title == "" {
			return
		}
		anchor, _ := s.Attr("id")
		entries = append(entries, TOCEntry{
			ChapterID: chapterID,
			Title:     title,
			Level:     headingLevels[goquery.NodeName(s)],
			Anchor:    anchor,
		})
	})
	return entries
}

// visibleText joins text nodes with spaces so adjacent blocks do not merge.
func visibleText(s *goquery.Selection) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return sb.String()
}

// countWords 按空白分词, 中日韩文字每个字算一个词
func countWords(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		switch {
		case isCJK(r):
			words++
			inWord = false
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			inWord = false
		default:
			if !inWord {
				words++
				inWord = true
			}
		}
	}
	return words
}

func countCharacters(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
