// internal/utils/validator/document.go
package validator

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/logger"
)

// 错误代码
const (
	CodeEmptyFile         = "EMPTY_FILE"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeInvalidMimeType   = "INVALID_MIME_TYPE"
)

var ErrInvalidFile = errors.New("invalid file")

// DocumentValidator 文档验证器
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize int64 // 最大文件大小（字节）
	// AllowedTypes 每种格式允许的 MIME 类型, 检测结果的父类型也算匹配
	AllowedTypes map[models.FormatKind][]string
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string            `json:"filename"`
	Size      int64             `json:"size"`
	Format    models.FormatKind `json:"format"`
	MimeType  string            `json:"mimeType"`
	Extension string            `json:"extension"`
	Hash      string            `json:"hash"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize: 200 * 1024 * 1024, // 200MB
		AllowedTypes: map[models.FormatKind][]string{
			models.Epub: {"application/epub+zip", "application/zip"},
			models.Docx: {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
			models.Pdf:  {"application/pdf"},
			// 非 UTF-8 文本可能被识别为二进制, 交给编码检测处理
			models.Txt: {"text/plain", "application/octet-stream"},
		},
	}
}

// NewDocumentValidator 创建新的文档验证器
func NewDocumentValidator(logger logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = DefaultConfig()
	}
	return &DocumentValidator{
		logger: logger,
		config: config,
	}
}

// ValidateFile 验证单个上传文件
func (v *DocumentValidator) ValidateFile(file *multipart.FileHeader) (*ValidationResult, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return v.Validate(file.Filename, file.Size, f)
}

// ValidateBytes 验证已读入内存的文件
func (v *DocumentValidator) ValidateBytes(filename string, data []byte) (*ValidationResult, error) {
	return v.Validate(filename, int64(len(data)), bytes.NewReader(data))
}

// Validate checks size, detected format and magic bytes of r.
func (v *DocumentValidator) Validate(filename string, size int64, r io.ReadSeeker) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  filename,
			Size:      size,
			Format:    document.DetectFormat(filename),
			Extension: strings.ToLower(filepath.Ext(filename)),
		},
	}

	// 基本验证
	if errs := v.performBasicValidation(result.FileInfo); len(errs) > 0 {
		result.fail(errs...)
		// 格式或大小不合法时不再读取内容
		return result, nil
	}

	// 计算文件哈希
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	result.FileInfo.Hash = hex.EncodeToString(hash.Sum(nil))

	// 重置文件指针
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to reset file pointer: %w", err)
	}

	// MIME类型验证
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to detect mime type: %w", err)
	}
	result.FileInfo.MimeType = mtype.String()

	if errs := v.validateMimeType(mtype, result.FileInfo); len(errs) > 0 {
		result.fail(errs...)
	}

	if !result.IsValid {
		v.logger.Info("Upload rejected",
			logger.String("filename", filename),
			logger.String("mimeType", result.FileInfo.MimeType),
			logger.Any("errors", result.Errors),
		)
	}

	return result, nil
}

func (r *ValidationResult) fail(errs ...ValidationError) {
	r.IsValid = false
	r.Errors = append(r.Errors, errs...)
}

// Err converts a failed result into an error. UNSUPPORTED_FORMAT also wraps
// document.ErrUnsupportedFormat.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	unsupported := false
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
		if e.Code == CodeUnsupportedFormat {
			unsupported = true
		}
	}
	msg := strings.Join(msgs, "; ")
	if unsupported {
		return fmt.Errorf("%w: %w: %s", ErrInvalidFile, document.ErrUnsupportedFormat, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalidFile, msg)
}

// 基本验证
func (v *DocumentValidator) performBasicValidation(fileInfo FileInfo) []ValidationError {
	var errs []ValidationError

	if fileInfo.Size == 0 {
		errs = append(errs, ValidationError{
			Code:    CodeEmptyFile,
			Message: "File is empty",
			Field:   "size",
		})
	}

	// 检查文件大小
	if v.config.MaxFileSize > 0 && fileInfo.Size > v.config.MaxFileSize {
		errs = append(errs, ValidationError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}

	// 检查文件格式
	if _, ok := v.config.AllowedTypes[fileInfo.Format]; !ok {
		errs = append(errs, ValidationError{
			Code:    CodeUnsupportedFormat,
			Message: fmt.Sprintf("File type %s is not supported", fileInfo.Extension),
			Field:   "extension",
		})
	}

	return errs
}

// validateMimeType 检查魔数是否与扩展名一致
func (v *DocumentValidator) validateMimeType(mtype *mimetype.MIME, fileInfo FileInfo) []ValidationError {
	allowed := v.config.AllowedTypes[fileInfo.Format]
	for m := mtype; m != nil; m = m.Parent() {
		if mimetype.EqualsAny(m.String(), allowed...) {
			return nil
		}
	}

	return []ValidationError{{
		Code:    CodeInvalidMimeType,
		Message: fmt.Sprintf("Content %s does not match extension %s", mtype.String(), fileInfo.Extension),
		Field:   "mimeType",
	}}
}
