package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/book-reader/api/handlers"
	"github.com/feichai0017/book-reader/api/middleware"
	"github.com/feichai0017/book-reader/pkg/logger"
)

// Options 路由配置
type Options struct {
	CORSOrigins []string
	// MaxUploadBytes 上传请求体上限, 包含 multipart 开销
	MaxUploadBytes int64
}

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger, opts Options) {
	// 全局中间件
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log.Named("http")))
	r.Use(middleware.CORS(opts.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API 版本组
	v1 := r.Group("/api/v1")

	// 书籍路由组
	books := v1.Group("/books")
	{
		upload := books.Group("", middleware.BodyLimit(opts.MaxUploadBytes))
		upload.POST("", h.Book.Upload)
		upload.POST("/batch", h.Book.UploadBatch)

		books.GET("", h.Book.ListBooks)
		books.GET("/:id", h.Book.GetBook)
		books.DELETE("/:id", h.Book.DeleteBook)
		books.GET("/:id/cover", h.Book.GetCover)
		books.GET("/:id/cover/thumbnail", h.Book.GetCoverThumbnail)
		books.GET("/:id/cover/status", h.Book.GetCoverStatus)
	}

	// 阅读器路由
	reader := r.Group("/reader")
	{
		reader.GET("/:id", h.Reader.Read)
		reader.GET("/:id/images/*path", h.Reader.Asset)
	}
}
