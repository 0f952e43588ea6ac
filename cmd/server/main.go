package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/book-reader/api/handlers"
	"github.com/feichai0017/book-reader/api/routes"
	"github.com/feichai0017/book-reader/config"
	"github.com/feichai0017/book-reader/internal/service/book"
	"github.com/feichai0017/book-reader/pkg/logger"
)

// multipart 编码开销
const uploadOverhead = 1 << 20

func main() {
	cfg := config.GetReaderConfig()

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// init book service
	bookService, err := book.GetService(cfg, log)
	if err != nil {
		log.Fatal("Failed to get book service", logger.Error(err))
	}

	// init handlers
	h := handlers.NewHandlers(bookService, log)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 32 << 20
	routes.SetupRoutes(r, h, log, routes.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes() + uploadOverhead,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
