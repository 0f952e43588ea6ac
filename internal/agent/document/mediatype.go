package document

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var extToMediaType = map[string]string{
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".jpe":   "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".bmp":   "image/bmp",
	".webp":  "image/webp",
	".svg":   "image/svg+xml",
	".tif":   "image/tiff",
	".tiff":  "image/tiff",
	".ico":   "image/vnd.microsoft.icon",
	".emf":   "image/emf",
	".wmf":   "image/wmf",
	".css":   "text/css",
	".xhtml": "application/xhtml+xml",
	".html":  "text/html",
	".htm":   "text/html",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// GuessMediaType 按扩展名猜测媒体类型, 未知扩展名返回 ""
func GuessMediaType(name string) string {
	return extToMediaType[strings.ToLower(path.Ext(name))]
}

// MediaTypeOf 先按文件名判断, 不行再嗅探内容
func MediaTypeOf(name string, data []byte) string {
	if mt := GuessMediaType(name); mt != "" {
		return mt
	}
	if len(data) == 0 {
		return ""
	}
	m := mimetype.Detect(data)
	if m.Is("application/octet-stream") {
		return ""
	}
	return m.String()
}

// ExtensionFor 封面媒体类型对应的存储后缀
func ExtensionFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
