package pdf

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
)

// pageText 文档的文本层, 每页一项
type pageText struct {
	pages []string
	title string
}

// openReader 包装 pdf.NewReader, 某些损坏的 trailer 会让它 panic
func openReader(src *models.SourceFile) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = document.Corrupt("pdf", fmt.Errorf("panic opening reader: %v", rec))
		}
	}()

	rd := src.Reader()
	r, err = pdf.NewReader(rd, rd.Size())
	if err != nil {
		return nil, document.Corrupt("pdf", err)
	}
	return r, nil
}

// readPages 并行提取每页的文本行, 结果保持页序
func readPages(ctx context.Context, src *models.SourceFile, maxWorkers int) (*pageText, error) {
	r, err := openReader(src)
	if err != nil {
		return nil, err
	}

	numPages := r.NumPage()
	if numPages <= 0 {
		return nil, fmt.Errorf("pdf %s: %w", src.Name, document.ErrNoExtractableContent)
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	texts := make([]string, numPages)

	// 创建错误组以并行处理页面
	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxWorkers)

	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return ctx.Err()
			}

			text, err := plainText(r, pageNum)
			if err != nil {
				return err
			}
			texts[pageNum-1] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &pageText{
		pages: texts,
		title: infoTitle(r),
	}, nil
}

// plainText 没有文本层的页返回 ""
func plainText(r *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = document.Corrupt("pdf", fmt.Errorf("panic reading page %d: %v\n%s", pageNum, rec, debug.Stack()))
		}
	}()

	page := r.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}
	// Content 会 panic, 由上面的 recover 转成 ContainerCorrupt
	return strings.Join(textLines(page.Content().Text), "\n"), nil
}

// textLines 按基线把字形分组成行, 从上到下, 行内从左到右
func textLines(glyphs []pdf.Text) []string {
	type row struct {
		y      float64
		size   float64
		glyphs []pdf.Text
	}

	var rows []*row
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		var target *row
		for _, r := range rows {
			if math.Abs(r.y-g.Y) <= rowTolerance(r.size, g.FontSize) {
				target = r
				break
			}
		}
		if target == nil {
			target = &row{y: g.Y, size: g.FontSize}
			rows = append(rows, target)
		}
		target.glyphs = append(target.glyphs, g)
	}

	// PDF 坐标 Y 轴向上
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		// 同一 X 的字形保持内容流顺序
		sort.SliceStable(r.glyphs, func(i, j int) bool { return r.glyphs[i].X < r.glyphs[j].X })

		var sb strings.Builder
		for i, g := range r.glyphs {
			if i > 0 && needsSpace(r.glyphs[i-1], g) {
				sb.WriteByte(' ')
			}
			sb.WriteString(g.S)
		}
		if line := strings.TrimSpace(sb.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func rowTolerance(a, b float64) float64 {
	size := math.Max(a, b)
	if size <= 0 {
		return 1
	}
	return size / 2
}

// needsSpace 两段文字之间的空隙超过字号的四分之一时补空格
func needsSpace(prev, next pdf.Text) bool {
	if strings.HasSuffix(prev.S, " ") || strings.HasPrefix(next.S, " ") {
		return false
	}
	gap := next.X - (prev.X + prev.W)
	size := math.Max(prev.FontSize, next.FontSize)
	if size <= 0 {
		size = 1
	}
	return gap > size/4
}

// infoTitle 读取信息字典的 /Title
func infoTitle(r *pdf.Reader) (title string) {
	defer func() {
		if recover() != nil {
			title = ""
		}
	}()

	trailer := r.Trailer()
	if trailer.IsNull() {
		return ""
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return ""
	}
	return info.Key("Title").Text()
}

// infoAuthor 读取信息字典的 /Author
func infoAuthor(r *pdf.Reader) (author string) {
	defer func() {
		if recover() != nil {
			author = ""
		}
	}()

	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	return info.Key("Author").Text()
}
