package book

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/converters"
	"github.com/feichai0017/book-reader/pkg/queue"
)

var (
	ErrBookNotFound  = errors.New("book not found")
	ErrDuplicateBook = errors.New("book already exists")
)

type BookService interface {
	Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*models.BookRecord, error)
	UploadBatch(ctx context.Context, files []*multipart.FileHeader) ([]*models.BookRecord, error)
	ListBooks(ctx context.Context) ([]*models.BookRecord, error)
	GetBook(ctx context.Context, id string) (*models.BookRecord, error)
	ReadBook(ctx context.Context, id string) (*converters.ReaderDocument, error)
	GetAsset(ctx context.Context, id, assetID string) (*models.Asset, error)
	GetCover(ctx context.Context, id string) (*models.CoverImage, error)
	GetCoverThumbnail(ctx context.Context, id string) (*models.CoverImage, error)
	GetCoverStatus(ctx context.Context, id string) (*models.CoverTask, error)
	HandleCoverTask(ctx context.Context, task *queue.Task) error
	DeleteBook(ctx context.Context, id string) error
}
