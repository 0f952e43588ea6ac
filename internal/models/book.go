package models

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FormatKind 书籍文件格式
type FormatKind string

const (
	Epub    FormatKind = "epub"
	Docx    FormatKind = "docx"
	Pdf     FormatKind = "pdf"
	Txt     FormatKind = "txt"
	Unknown FormatKind = "unknown"
)

// Extension returns the canonical file suffix for the format, including the dot.
func (k FormatKind) Extension() string {
	if k == Unknown || k == "" {
		return ""
	}
	return "." + string(k)
}

// SourceFile is a read-only view over the stored bytes of an uploaded book.
type SourceFile struct {
	Name   string
	Format FormatKind
	data   []byte
}

func NewSourceFile(name string, format FormatKind, data []byte) *SourceFile {
	return &SourceFile{
		Name:   name,
		Format: format,
		data:   data,
	}
}

// ReadSourceFile loads a book from the local filesystem.
func ReadSourceFile(path string, format FormatKind) (*SourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return NewSourceFile(filepath.Base(path), format, data), nil
}

// Reader returns a fresh reader positioned at the start of the file.
func (s *SourceFile) Reader() *bytes.Reader {
	return bytes.NewReader(s.data)
}

// Bytes returns a copy of the file contents.
func (s *SourceFile) Bytes() []byte {
	return bytes.Clone(s.data)
}

func (s *SourceFile) Size() int64 {
	return int64(len(s.data))
}

// NormalizedBook 统一的书籍内容结构
type NormalizedBook struct {
	Title    string    `json:"title"`
	Language string    `json:"language"`
	Chapters []Chapter `json:"chapters"`
}

// Chapter 章节
type Chapter struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Href    string `json:"href"`
}

// Asset is an image or other binary part referenced from chapter content.
type Asset struct {
	Data      []byte `json:"-"`
	MediaType string `json:"mediaType"`
}

// CoverImage 封面图片, MediaType may be empty when it cannot be guessed.
type CoverImage struct {
	Data      []byte `json:"-"`
	MediaType string `json:"mediaType,omitempty"`
}

// CoverStatus 封面提取状态
type CoverStatus string

const (
	CoverPending   CoverStatus = "pending"
	CoverRunning   CoverStatus = "running"
	CoverCompleted CoverStatus = "completed"
	CoverNone      CoverStatus = "no_cover"
	CoverFailed    CoverStatus = "failed"
	CoverSkipped   CoverStatus = "skipped"
)

// BookRecord 存储的书籍元数据
type BookRecord struct {
	ID           string      `json:"id"`
	Filename     string      `json:"filename"`
	Title        string      `json:"title"`
	Author       string      `json:"author"`
	Format       FormatKind  `json:"format"`
	Size         int64       `json:"size"`
	SourceKey    string      `json:"sourceKey"`
	CoverKey     string      `json:"coverKey,omitempty"`
	ThumbnailKey string      `json:"thumbnailKey,omitempty"`
	CoverStatus  CoverStatus `json:"coverStatus"`
	CoverTaskID  string      `json:"coverTaskId,omitempty"`
	Hash         string      `json:"hash,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// CoverTask 封面提取任务
type CoverTask struct {
	ID        string      `json:"id"`
	BookID    string      `json:"bookId"`
	Status    CoverStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt,omitempty"`
}
