// internal/agent/document/image/processor.go
package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality 渲染封面和缩略图使用的 JPEG 质量
const DefaultJPEGQuality = 85

var ErrEmptyImage = errors.New("empty image")

// 图像预处理接口
type ImagePreprocessor interface {
	Process(img image.Image) (image.Image, error)
}

// 透明背景处理器, JPEG 没有 alpha 通道
type FlattenProcessor struct {
	background color.Color
}

func NewFlattenProcessor(background color.Color) *FlattenProcessor {
	if background == nil {
		background = color.White
	}
	return &FlattenProcessor{background: background}
}

func (p *FlattenProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), p.background)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0), nil
}

// 尺寸限制处理器, 只缩小不放大
type FitProcessor struct {
	maxWidth  int
	maxHeight int
}

func NewFitProcessor(maxWidth, maxHeight int) *FitProcessor {
	return &FitProcessor{
		maxWidth:  maxWidth,
		maxHeight: maxHeight,
	}
}

func (p *FitProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	if p.maxWidth <= 0 || p.maxHeight <= 0 {
		return img, nil
	}
	return imaging.Fit(img, p.maxWidth, p.maxHeight, imaging.Lanczos), nil
}

// Pipeline 按顺序执行预处理器, 结果编码为 JPEG
type Pipeline struct {
	preprocessors []ImagePreprocessor
	quality       int
}

func NewPipeline(quality int, preprocessors ...ImagePreprocessor) *Pipeline {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Pipeline{
		preprocessors: preprocessors,
		quality:       quality,
	}
}

func (p *Pipeline) Apply(img image.Image) (image.Image, error) {
	var err error
	for _, pre := range p.preprocessors {
		img, err = pre.Process(img)
		if err != nil {
			return nil, fmt.Errorf("preprocessing failed: %w", err)
		}
	}
	return img, nil
}

// Encode 执行处理链并返回 JPEG 字节
func (p *Pipeline) Encode(img image.Image) ([]byte, error) {
	out, err := p.Apply(img)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(out, p.quality)
}

// Decode 解码 imaging 支持的位图格式, 按 EXIF 方向校正
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail 把封面缩放到 width x height 以内
func Thumbnail(data []byte, width, height int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return NewPipeline(DefaultJPEGQuality,
		NewFlattenProcessor(color.White),
		NewFitProcessor(width, height),
	).Encode(img)
}
