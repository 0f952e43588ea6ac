package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/internal/service/book"
	"github.com/feichai0017/book-reader/pkg/logger"
)

type BookHandler struct {
	service book.BookService
	logger  logger.ContextLogger
}

// BookResponse 定义书籍响应结构
type BookResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Format      string `json:"format"`
	Size        int64  `json:"size"`
	CoverStatus string `json:"coverStatus"`
	CoverURL    string `json:"coverUrl,omitempty"`
	ThumbURL    string `json:"thumbnailUrl,omitempty"`
	ReaderURL   string `json:"readerUrl"`
	CreatedAt   string `json:"createdAt"`
}

func NewBookHandler(service book.BookService, log logger.Logger) *BookHandler {
	return &BookHandler{
		service: service,
		logger:  logger.NewContextLogger(log),
	}
}

func toResponse(rec *models.BookRecord) BookResponse {
	resp := BookResponse{
		ID:          rec.ID,
		Filename:    rec.Filename,
		Title:       rec.Title,
		Author:      rec.Author,
		Format:      string(rec.Format),
		Size:        rec.Size,
		CoverStatus: string(rec.CoverStatus),
		ReaderURL:   fmt.Sprintf("/reader/%s", rec.ID),
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.CoverKey != "" {
		resp.CoverURL = fmt.Sprintf("/api/v1/books/%s/cover", rec.ID)
	}
	if rec.ThumbnailKey != "" {
		resp.ThumbURL = fmt.Sprintf("/api/v1/books/%s/cover/thumbnail", rec.ID)
	}
	return resp
}

// Upload 上传单个书籍
func (h *BookHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.logger, err)
			return
		}
		badRequest(c, h.logger, "Invalid file upload", err)
		return
	}
	defer file.Close()

	rec, err := h.service.Upload(c.Request.Context(), file, header)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toResponse(rec))
}

// UploadBatch 批量上传
func (h *BookHandler) UploadBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.logger, err)
			return
		}
		badRequest(c, h.logger, "Invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		badRequest(c, h.logger, "No files provided", nil)
		return
	}

	records, err := h.service.UploadBatch(c.Request.Context(), files)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	responses := make([]BookResponse, len(records))
	for i, rec := range records {
		responses[i] = toResponse(rec)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("Uploaded %d books", len(records)),
		"books":   responses,
	})
}

// ListBooks 书库列表
func (h *BookHandler) ListBooks(c *gin.Context) {
	records, err := h.service.ListBooks(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	responses := make([]BookResponse, len(records))
	for i, rec := range records {
		responses[i] = toResponse(rec)
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(responses),
		"books": responses,
	})
}

// GetBook 获取书籍信息
func (h *BookHandler) GetBook(c *gin.Context) {
	rec, err := h.service.GetBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(rec))
}

// DeleteBook 删除书籍
func (h *BookHandler) DeleteBook(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeleteBook(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Book deleted successfully",
		"id":      id,
	})
}

// GetCover 返回封面原图
func (h *BookHandler) GetCover(c *gin.Context) {
	cover, err := h.service.GetCover(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	writeImage(c, cover.MediaType, cover.Data)
}

// GetCoverThumbnail 返回封面缩略图
func (h *BookHandler) GetCoverThumbnail(c *gin.Context) {
	cover, err := h.service.GetCoverThumbnail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	writeImage(c, cover.MediaType, cover.Data)
}

// GetCoverStatus 获取封面提取状态
func (h *BookHandler) GetCoverStatus(c *gin.Context) {
	status, err := h.service.GetCoverStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := gin.H{
		"taskId": status.ID,
		"bookId": status.BookID,
		"status": string(status.Status),
		"error":  status.Error,
	}
	if !status.UpdatedAt.IsZero() {
		resp["updatedAt"] = status.UpdatedAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func writeImage(c *gin.Context, mediaType string, data []byte) {
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, mediaType, data)
}
