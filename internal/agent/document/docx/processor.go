package docx

import (
	"context"
	"fmt"
	"strings"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/logger"
)

const (
	defaultTitle    = "Document"
	defaultLanguage = "en"

	chapterID   = "doc-content"
	chapterHref = "#"
)

type Processor struct {
	logger logger.Logger
}

func NewProcessor(logger logger.Logger) *Processor {
	return &Processor{
		logger: logger.Named("docx"),
	}
}

func (p *Processor) Format() models.FormatKind {
	return models.Docx
}

// Extract 把整个 body 渲染成一个章节
func (p *Processor) Extract(ctx context.Context, src *models.SourceFile, imageBaseURL string) (*models.NormalizedBook, error) {
	pk, err := openPackage(src)
	if err != nil {
		p.logger.Warn("Failed to open docx", logger.String("file", src.Name), logger.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, _, err := renderBody(pk.body, imageBaseURL)
	if err != nil {
		p.logger.Warn("Failed to parse document body", logger.String("file", src.Name), logger.Error(err))
		return nil, document.Corrupt("docx", err)
	}

	book := &models.NormalizedBook{
		Title:    pk.title,
		Language: pk.language,
		Chapters: []models.Chapter{{
			ID:      chapterID,
			Content: content,
			Href:    chapterHref,
		}},
	}
	if book.Title == "" {
		book.Title = defaultTitle
	}
	if book.Language == "" {
		book.Language = defaultLanguage
	}
	return book, nil
}

// ResolveAsset 在主文档的关系表中查找关系 id
func (p *Processor) ResolveAsset(ctx context.Context, src *models.SourceFile, assetID string) (*models.Asset, error) {
	pk, err := openPackage(src)
	if err != nil {
		return nil, err
	}

	rel, data, ok := pk.image(strings.TrimSpace(assetID))
	if !ok {
		return nil, fmt.Errorf("docx asset %q: %w", assetID, document.ErrAssetNotFound)
	}
	return &models.Asset{
		Data:      data,
		MediaType: document.MediaTypeOf(rel.Target, data),
	}, nil
}

// ExtractCover 返回阅读顺序中的第一张内嵌图片
func (p *Processor) ExtractCover(ctx context.Context, src *models.SourceFile) (*models.CoverImage, error) {
	pk, err := openPackage(src)
	if err != nil {
		p.logger.Info("Cover lookup skipped", logger.String("file", src.Name), logger.Error(err))
		return nil, document.ErrNoCoverFound
	}

	_, images, err := renderBody(pk.body, "")
	if err != nil {
		p.logger.Info("Cover lookup skipped", logger.String("file", src.Name), logger.Error(err))
		return nil, document.ErrNoCoverFound
	}

	candidates := make([]document.CoverCandidate, 0, len(images))
	for _, relID := range images {
		candidates = append(candidates, document.CoverCandidate{
			Name: relID,
			Find: func() (*models.CoverImage, bool) {
				rel, data, ok := pk.image(relID)
				if !ok {
					return nil, false
				}
				return &models.CoverImage{Data: data, MediaType: document.MediaTypeOf(rel.Target, data)}, true
			},
		})
	}

	cover, relID, err := document.FirstCover(ctx, candidates...)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Cover found", logger.String("file", src.Name), logger.String("rel", relID))
	return cover, nil
}

// Metadata 读取 core properties 中的标题和作者
func (p *Processor) Metadata(src *models.SourceFile) (title, author string) {
	pk, err := openPackage(src)
	if err != nil {
		return "", ""
	}
	return pk.title, pk.author
}
