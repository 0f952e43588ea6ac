package epub

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/logger"
)

const (
	defaultTitle    = "Unknown"
	defaultLanguage = "en"
)

type Processor struct {
	logger logger.Logger
	policy *bluemonday.Policy
}

func NewProcessor(logger logger.Logger) *Processor {
	return &Processor{
		logger: logger.Named("epub"),
		policy: chapterPolicy(),
	}
}

func (p *Processor) Format() models.FormatKind {
	return models.Epub
}

// Extract 每个 XHTML 文档输出一个章节, 先按 spine 顺序, 再接 spine 未引用的文档
func (p *Processor) Extract(ctx context.Context, src *models.SourceFile, imageBaseURL string) (*models.NormalizedBook, error) {
	pk, err := openPackage(src)
	if err != nil {
		p.logger.Warn("Failed to open epub", logger.String("file", src.Name), logger.Error(err))
		return nil, err
	}

	book := &models.NormalizedBook{
		Title:    pk.title,
		Language: pk.language,
	}
	if book.Title == "" {
		book.Title = defaultTitle
	}
	if book.Language == "" {
		book.Language = defaultLanguage
	}

	seen := make(map[string]bool, len(pk.manifest))
	for _, it := range readingOrder(pk) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true

		data, err := pk.readItem(it)
		if err != nil {
			p.logger.Warn("Skipping unreadable chapter",
				logger.String("file", src.Name),
				logger.String("href", it.Href),
				logger.Error(err),
			)
			continue
		}

		content, ok, err := normalizeChapter(data, imageBaseURL, p.policy)
		if err != nil {
			p.logger.Warn("Skipping malformed chapter",
				logger.String("file", src.Name),
				logger.String("href", it.Href),
				logger.Error(err),
			)
			continue
		}
		if !ok {
			continue
		}

		book.Chapters = append(book.Chapters, models.Chapter{
			ID:      it.ID,
			Content: content,
			Href:    it.Href,
		})
	}

	if len(book.Chapters) == 0 {
		p.logger.Warn("No chapters produced", logger.String("file", src.Name))
		return nil, fmt.Errorf("epub %s: %w", src.Name, document.ErrNoExtractableContent)
	}

	return book, nil
}

// readingOrder 先列 spine 中的文档, 再按声明顺序列其余 manifest 文档.
// 不在 spine 中的导航文档不列出
func readingOrder(pk *pkg) []*item {
	order := make([]*item, 0, len(pk.manifest))
	inSpine := make(map[string]bool, len(pk.spine))
	for _, it := range pk.spine {
		if it.isDocument() {
			order = append(order, it)
			inSpine[it.ID] = true
		}
	}
	for _, it := range pk.manifest {
		if it.isDocument() && !inSpine[it.ID] && !it.hasProperty("nav") {
			order = append(order, it)
		}
	}
	return order
}

// ResolveAsset 先按 manifest 路径匹配, 再按文件名匹配
func (p *Processor) ResolveAsset(ctx context.Context, src *models.SourceFile, assetID string) (*models.Asset, error) {
	pk, err := openPackage(src)
	if err != nil {
		return nil, err
	}

	// manifest 索引存的是解码后的路径
	id := strings.TrimPrefix(strings.ReplaceAll(unescape(assetID), "\\", "/"), "/")
	if id == "" {
		return nil, document.ErrAssetNotFound
	}

	it, ok := pk.byPath[id]
	if !ok {
		it, ok = pk.byBase[path.Base(id)]
	}
	if !ok {
		return nil, fmt.Errorf("epub asset %q: %w", assetID, document.ErrAssetNotFound)
	}

	data, err := pk.readItem(it)
	if err != nil {
		p.logger.Warn("Manifest item missing from archive",
			logger.String("file", src.Name),
			logger.String("href", it.Href),
			logger.Error(err),
		)
		return nil, fmt.Errorf("epub asset %q: %w", assetID, document.ErrAssetNotFound)
	}

	mediaType := document.GuessMediaType(it.Href)
	if mediaType == "" {
		mediaType = it.MediaType
	}
	return &models.Asset{Data: data, MediaType: mediaType}, nil
}

func (p *Processor) ExtractCover(ctx context.Context, src *models.SourceFile) (*models.CoverImage, error) {
	pk, err := openPackage(src)
	if err != nil {
		p.logger.Info("Cover lookup skipped", logger.String("file", src.Name), logger.Error(err))
		return nil, document.ErrNoCoverFound
	}

	cover, tier, err := document.FirstCover(ctx, coverCascade(pk)...)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Cover found",
		logger.String("file", src.Name),
		logger.String("tier", tier),
	)
	return cover, nil
}

// Metadata 读取 Dublin Core 标题和第一个作者
func (p *Processor) Metadata(src *models.SourceFile) (title, author string) {
	pk, err := openPackage(src)
	if err != nil {
		return "", ""
	}
	return pk.title, pk.author
}
