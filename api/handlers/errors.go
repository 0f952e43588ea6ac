package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/book-reader/internal/agent/document"
	"github.com/feichai0017/book-reader/internal/service/book"
	"github.com/feichai0017/book-reader/internal/utils/validator"
	"github.com/feichai0017/book-reader/pkg/logger"
)

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

// statusFor maps service errors to an HTTP status and public message.
func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "Unsupported format"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, validator.ErrInvalidFile):
		return http.StatusBadRequest, "Invalid file"
	case document.IsReadFailure(err):
		return http.StatusInternalServerError, "Could not read book content"
	case errors.Is(err, book.ErrDuplicateBook):
		return http.StatusConflict, "Book already exists"
	case errors.Is(err, book.ErrBookNotFound):
		return http.StatusNotFound, "Book not found"
	case errors.Is(err, document.ErrAssetNotFound):
		return http.StatusNotFound, "Asset not found"
	case errors.Is(err, document.ErrNoCoverFound):
		return http.StatusNotFound, "Cover not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondError 统一错误处理, 5xx 记 Error, 其余记 Info
func respondError(c *gin.Context, log logger.ContextLogger, err error) {
	status, message := statusFor(err)
	l := log.FromContext(c.Request.Context())
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	}
	if status >= http.StatusInternalServerError {
		l.Error(message, fields...)
	} else {
		l.Info(message, fields...)
	}

	resp := ErrorResponse{Message: message}
	if status < http.StatusInternalServerError {
		resp.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, log logger.ContextLogger, message string, err error) {
	log.FromContext(c.Request.Context()).Info(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)
	resp := ErrorResponse{Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}
