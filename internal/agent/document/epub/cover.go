package epub

import (
	"path"
	"strings"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
)

// coverCascade 按优先级列出封面查找策略
func coverCascade(pk *pkg) []document.CoverCandidate {
	return []document.CoverCandidate{
		{Name: "meta-cover", Find: func() (*models.CoverImage, bool) { return coverFromMeta(pk) }},
		{Name: "cover-image-property", Find: func() (*models.CoverImage, bool) { return coverFromProperty(pk) }},
		{Name: "cover-name", Find: func() (*models.CoverImage, bool) { return coverFromName(pk) }},
		{Name: "first-spine-image", Find: func() (*models.CoverImage, bool) { return coverFromFirstSpine(pk) }},
		{Name: "spine-scan", Find: func() (*models.CoverImage, bool) { return coverFromSpineScan(pk) }},
	}
}

// coverFromMeta 按 <meta name="cover" content="ID"> 查找.
// ID 指向封面页而不是图片时, 取该页的第一张图片
func coverFromMeta(pk *pkg) (*models.CoverImage, bool) {
	if pk.coverID == "" {
		return nil, false
	}
	it, ok := pk.byID[pk.coverID]
	if !ok {
		return nil, false
	}
	if it.isDocument() {
		data, err := pk.readItem(it)
		if err != nil {
			return nil, false
		}
		imgs, svgImages := imageRefs(data)
		for _, ref := range append(imgs, svgImages...) {
			if img := pk.imageByBase(ref); img != nil {
				return loadCover(pk, img)
			}
		}
		return nil, false
	}
	return loadCover(pk, it)
}

func coverFromProperty(pk *pkg) (*models.CoverImage, bool) {
	for _, it := range pk.manifest {
		if it.isImage() && it.hasProperty("cover-image") {
			return loadCover(pk, it)
		}
	}
	return nil, false
}

func coverFromName(pk *pkg) (*models.CoverImage, bool) {
	for _, it := range pk.manifest {
		if !it.isImage() {
			continue
		}
		name := it.basename()
		stem := strings.TrimSuffix(name, path.Ext(name))
		if strings.EqualFold(it.ID, "cover") || strings.EqualFold(stem, "cover") {
			return loadCover(pk, it)
		}
	}
	return nil, false
}

func coverFromFirstSpine(pk *pkg) (*models.CoverImage, bool) {
	if len(pk.spine) == 0 || !pk.spine[0].isDocument() {
		return nil, false
	}
	data, err := pk.readItem(pk.spine[0])
	if err != nil {
		return nil, false
	}

	imgs, svgImages := imageRefs(data)
	var ref string
	switch {
	case len(imgs) > 0:
		ref = imgs[0]
	case len(svgImages) > 0:
		ref = svgImages[0]
	default:
		return nil, false
	}
	if it := pk.imageByBase(ref); it != nil {
		return loadCover(pk, it)
	}
	return nil, false
}

// coverFromSpineScan 按阅读顺序取第一张能解析的图片, 跳过文件名像图标或 logo 的
func coverFromSpineScan(pk *pkg) (*models.CoverImage, bool) {
	for _, doc := range pk.spine {
		if !doc.isDocument() {
			continue
		}
		data, err := pk.readItem(doc)
		if err != nil {
			continue
		}
		imgs, svgImages := imageRefs(data)
		for _, ref := range append(imgs, svgImages...) {
			name := strings.ToLower(path.Base(ref))
			if strings.Contains(name, "icon") || strings.Contains(name, "logo") {
				continue
			}
			if it := pk.imageByBase(ref); it != nil {
				return loadCover(pk, it)
			}
		}
	}
	return nil, false
}

func loadCover(pk *pkg, it *item) (*models.CoverImage, bool) {
	data, err := pk.readItem(it)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	mediaType := document.GuessMediaType(it.Href)
	if mediaType == "" {
		mediaType = document.MediaTypeOf(it.Href, data)
	}
	if mediaType == "" && it.isImage() {
		mediaType = it.MediaType
	}
	return &models.CoverImage{Data: data, MediaType: mediaType}, true
}
