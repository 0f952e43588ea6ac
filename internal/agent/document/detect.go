package document

import (
	"path/filepath"
	"strings"

	"github.com/feichai0017/book-reader/internal/models"
)

var extToFormat = map[string]models.FormatKind{
	".epub": models.Epub,
	".docx": models.Docx,
	".pdf":  models.Pdf,
	".txt":  models.Txt,
}

// DetectFormat 按后缀 (不区分大小写) 判断文件格式
func DetectFormat(filename string) models.FormatKind {
	if kind, ok := extToFormat[strings.ToLower(filepath.Ext(filename))]; ok {
		return kind
	}
	return models.Unknown
}
