package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	docimage "github.com/feichai0017/book-reader/internal/agent/document/image"
	"github.com/feichai0017/book-reader/internal/models"
)

// DefaultCoverDPI 渲染首页时的分辨率
const DefaultCoverDPI = 150.0

var errNoPageImage = errors.New("first page has no images")

// coverSource 从 PDF 原始字节生成封面
type coverSource interface {
	Name() string
	Cover(ctx context.Context, data []byte) (*models.CoverImage, error)
}

// embeddedImageCover 选首页面积最大的图片对象
type embeddedImageCover struct{}

func (embeddedImageCover) Name() string { return "first-page-image" }

func (embeddedImageCover) Cover(ctx context.Context, data []byte) (*models.CoverImage, error) {
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	if pctx.PageCount < 1 {
		return nil, errNoPageImage
	}

	images, err := pdfcpu.ExtractPageImages(pctx, 1, false)
	if err != nil {
		return nil, fmt.Errorf("extract page images: %w", err)
	}
	if len(images) == 0 {
		return nil, errNoPageImage
	}

	// 面积大的优先, 面积相同按对象号
	objNrs := make([]int, 0, len(images))
	for objNr := range images {
		objNrs = append(objNrs, objNr)
	}
	sort.Slice(objNrs, func(i, j int) bool {
		a, b := images[objNrs[i]], images[objNrs[j]]
		if areaA, areaB := a.Width*a.Height, b.Width*b.Height; areaA != areaB {
			return areaA > areaB
		}
		return objNrs[i] < objNrs[j]
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := images[objNrs[0]]
	raw, err := io.ReadAll(img)
	if err != nil {
		return nil, fmt.Errorf("read image %d: %w", objNrs[0], err)
	}
	decoded, err := docimage.Decode(raw)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(img.FileType) {
	case "jpg", "jpeg":
		return &models.CoverImage{Data: raw, MediaType: "image/jpeg"}, nil
	case "png":
		return &models.CoverImage{Data: raw, MediaType: "image/png"}, nil
	}

	// tiff 等浏览器不支持的格式重新编码
	out, err := docimage.NewPipeline(docimage.DefaultJPEGQuality, docimage.NewFlattenProcessor(nil)).Encode(decoded)
	if err != nil {
		return nil, err
	}
	return &models.CoverImage{Data: out, MediaType: "image/jpeg"}, nil
}

// pageRasterCover 渲染整个首页并编码为 JPEG
type pageRasterCover struct {
	dpi float64
}

func (pageRasterCover) Name() string { return "first-page-raster" }

func (c pageRasterCover) Cover(ctx context.Context, data []byte) (*models.CoverImage, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("fitz open: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() < 1 {
		return nil, errNoPageImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dpi := c.dpi
	if dpi <= 0 {
		dpi = DefaultCoverDPI
	}
	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("render first page: %w", err)
	}

	out, err := docimage.EncodeJPEG(img, docimage.DefaultJPEGQuality)
	if err != nil {
		return nil, err
	}
	return &models.CoverImage{Data: out, MediaType: "image/jpeg"}, nil
}

// safeCover 把解析器的 panic 转成错误
func safeCover(ctx context.Context, s coverSource, data []byte) (cover *models.CoverImage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			cover, err = nil, fmt.Errorf("%s panicked: %v", s.Name(), rec)
		}
	}()
	return s.Cover(ctx, data)
}
