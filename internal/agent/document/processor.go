package document

import (
	"context"

	"github.com/feichai0017/book-reader/internal/models"
)

// Processor 单一格式的书籍处理器
type Processor interface {
	// Format 返回处理器负责的格式
	Format() models.FormatKind

	// Extract 解析书籍为章节列表, imageBaseURL 为空表示不改写图片地址
	Extract(ctx context.Context, src *models.SourceFile, imageBaseURL string) (*models.NormalizedBook, error)

	// ResolveAsset 根据章节内容中的资源标识返回原始字节
	ResolveAsset(ctx context.Context, src *models.SourceFile, assetID string) (*models.Asset, error)

	// ExtractCover 查找封面图片, 未找到时返回 ErrNoCoverFound
	ExtractCover(ctx context.Context, src *models.SourceFile) (*models.CoverImage, error)
}

// MetadataReader 不渲染正文即可读取书名和作者的处理器实现此接口.
// 空字符串表示未知
type MetadataReader interface {
	Metadata(src *models.SourceFile) (title, author string)
}
