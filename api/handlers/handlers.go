package handlers

import (
	"github.com/feichai0017/book-reader/internal/service/book"
	"github.com/feichai0017/book-reader/pkg/logger"
)

type Handlers struct {
	Book   *BookHandler
	Reader *ReaderHandler
}

func NewHandlers(
	bookService book.BookService,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Book:   NewBookHandler(bookService, log.Named("books")),
		Reader: NewReaderHandler(bookService, log.Named("reader")),
	}
}
