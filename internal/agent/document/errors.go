package document

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrContainerCorrupt     = errors.New("container corrupt")
	ErrNoExtractableContent = errors.New("no extractable content")
	ErrAssetNotFound        = errors.New("asset not found")
	ErrNoCoverFound         = errors.New("no cover found")
	ErrEncodingUndecidable  = errors.New("encoding undecidable")
)

// Corrupt 把 cause 包装为 ErrContainerCorrupt
func Corrupt(format string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", format, ErrContainerCorrupt)
	}
	return fmt.Errorf("%s: %w: %v", format, ErrContainerCorrupt, cause)
}

// IsReadFailure 判断 err 是否表示书籍内容完全无法读取
func IsReadFailure(err error) bool {
	return errors.Is(err, ErrContainerCorrupt) ||
		errors.Is(err, ErrNoExtractableContent) ||
		errors.Is(err, ErrEncodingUndecidable)
}
