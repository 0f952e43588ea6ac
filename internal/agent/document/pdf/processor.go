package pdf

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/logger"
)

const (
	chapterID   = "pdf-content"
	chapterHref = "#"

	defaultLanguage = "en"
	defaultWorkers  = 4
)

type Processor struct {
	logger     logger.Logger
	maxWorkers int
	covers     []coverSource
}

type Option func(*Processor)

// WithMaxWorkers 限制并发读取的页数
func WithMaxWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxWorkers = n
		}
	}
}

// WithCoverDPI 设置首页渲染封面的分辨率
func WithCoverDPI(dpi float64) Option {
	return func(p *Processor) {
		for i, c := range p.covers {
			if _, ok := c.(pageRasterCover); ok && dpi > 0 {
				p.covers[i] = pageRasterCover{dpi: dpi}
			}
		}
	}
}

func NewProcessor(logger logger.Logger, opts ...Option) *Processor {
	p := &Processor{
		logger:     logger.Named("pdf"),
		maxWorkers: defaultWorkers,
		covers: []coverSource{
			embeddedImageCover{},
			pageRasterCover{dpi: DefaultCoverDPI},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Format() models.FormatKind {
	return models.Pdf
}

// Extract 把所有页渲染成一个带分页标记的章节
func (p *Processor) Extract(ctx context.Context, src *models.SourceFile, imageBaseURL string) (*models.NormalizedBook, error) {
	text, err := readPages(ctx, src, p.maxWorkers)
	if err != nil {
		p.logger.Warn("Failed to read pdf", logger.String("file", src.Name), logger.Error(err))
		return nil, err
	}

	title := text.title
	if title == "" {
		title = filepath.Base(src.Name)
	}

	p.logger.Debug("Pdf pages read",
		logger.String("file", src.Name),
		logger.Int("pages", len(text.pages)),
	)

	return &models.NormalizedBook{
		Title:    title,
		Language: defaultLanguage,
		Chapters: []models.Chapter{{
			ID:      chapterID,
			Content: renderPages(text.pages),
			Href:    chapterHref,
		}},
	}, nil
}

// ResolveAsset 内嵌图片无法单独寻址, 总是返回未找到
func (p *Processor) ResolveAsset(ctx context.Context, src *models.SourceFile, assetID string) (*models.Asset, error) {
	return nil, fmt.Errorf("pdf asset %q: %w", assetID, document.ErrAssetNotFound)
}

// ExtractCover 先取首页最大的图片, 再退回渲染首页
func (p *Processor) ExtractCover(ctx context.Context, src *models.SourceFile) (*models.CoverImage, error) {
	data := src.Bytes()

	candidates := make([]document.CoverCandidate, 0, len(p.covers))
	for _, c := range p.covers {
		candidates = append(candidates, document.CoverCandidate{
			Name: c.Name(),
			Find: func() (*models.CoverImage, bool) {
				cover, err := safeCover(ctx, c, data)
				if err != nil {
					p.logger.Info("Cover tier failed",
						logger.String("file", src.Name),
						logger.String("tier", c.Name()),
						logger.Error(err),
					)
					return nil, false
				}
				return cover, true
			},
		})
	}

	cover, tier, err := document.FirstCover(ctx, candidates...)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Cover found", logger.String("file", src.Name), logger.String("tier", tier))
	return cover, nil
}

// Metadata 读取信息字典中的标题和作者
func (p *Processor) Metadata(src *models.SourceFile) (title, author string) {
	r, err := openReader(src)
	if err != nil {
		return "", ""
	}
	return infoTitle(r), infoAuthor(r)
}
