package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/book-reader/internal/service/book"
	"github.com/feichai0017/book-reader/pkg/logger"
)

type ReaderHandler struct {
	service book.BookService
	logger  logger.ContextLogger
}

func NewReaderHandler(service book.BookService, log logger.Logger) *ReaderHandler {
	return &ReaderHandler{
		service: service,
		logger:  logger.NewContextLogger(log),
	}
}

// Read 返回阅读器文档
func (h *ReaderHandler) Read(c *gin.Context) {
	doc, err := h.service.ReadBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Asset 返回章节中引用的图片
func (h *ReaderHandler) Asset(c *gin.Context) {
	assetID := strings.TrimPrefix(c.Param("path"), "/")
	if assetID == "" {
		badRequest(c, h.logger, "Asset path is required", nil)
		return
	}

	asset, err := h.service.GetAsset(c.Request.Context(), c.Param("id"), assetID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	writeImage(c, asset.MediaType, asset.Data)
}
