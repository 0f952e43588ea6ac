package document

import (
	"context"

	"github.com/feichai0017/book-reader/internal/models"
)

// CoverCandidate 封面查找的一级
type CoverCandidate struct {
	Name string
	Find func() (*models.CoverImage, bool)
}

// FirstCover 按顺序尝试, 返回第一个命中的封面及其所在级别的名字
func FirstCover(ctx context.Context, candidates ...CoverCandidate) (*models.CoverImage, string, error) {
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if cover, ok := c.Find(); ok && cover != nil && len(cover.Data) > 0 {
			return cover, c.Name, nil
		}
	}
	return nil, "", ErrNoCoverFound
}
