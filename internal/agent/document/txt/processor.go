package txt

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/logger"
)

const (
	chapterID       = "chapter-1"
	defaultLanguage = "en"
)

var blankLine = regexp.MustCompile(`\n[ \t\f\v]*\n`)

type Processor struct {
	logger     logger.Logger
	candidates []Candidate
}

func NewProcessor(logger logger.Logger) *Processor {
	return &Processor{
		logger:     logger.Named("txt"),
		candidates: DefaultCandidates,
	}
}

func (p *Processor) Format() models.FormatKind {
	return models.Txt
}

// Extract 解码文本并输出一个按段落划分的章节
func (p *Processor) Extract(ctx context.Context, src *models.SourceFile, imageBaseURL string) (*models.NormalizedBook, error) {
	text, enc, err := decodeText(src.Bytes(), p.candidates)
	if err != nil {
		p.logger.Warn("Failed to decode text", logger.String("file", src.Name), logger.Error(err))
		return nil, fmt.Errorf("txt %s: %w", src.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Debug("Text decoded", logger.String("file", src.Name), logger.String("encoding", enc))

	return &models.NormalizedBook{
		Title:    filepath.Base(src.Name),
		Language: defaultLanguage,
		Chapters: []models.Chapter{{
			ID:      chapterID,
			Content: renderParagraphs(text),
			Href:    chapterID,
		}},
	}, nil
}

// renderParagraphs 按空行分段, 单个换行转成 <br>
func renderParagraphs(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var sb strings.Builder
	for _, para := range blankLine.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		sb.WriteString("</p>\n")
	}
	return sb.String()
}

// ResolveAsset 纯文本没有内嵌资源, 总是返回未找到
func (p *Processor) ResolveAsset(ctx context.Context, src *models.SourceFile, assetID string) (*models.Asset, error) {
	return nil, fmt.Errorf("txt asset %q: %w", assetID, document.ErrAssetNotFound)
}

func (p *Processor) ExtractCover(ctx context.Context, src *models.SourceFile) (*models.CoverImage, error) {
	return nil, document.ErrNoCoverFound
}
