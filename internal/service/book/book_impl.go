package book

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/book-reader/config"
	"github.com/feichai0017/book-reader/internal/agent"
	"github.com/feichai0017/book-reader/internal/agent/document"
	docimage "github.com/feichai0017/book-reader/internal/agent/document/image"
	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/internal/utils/validator"
	"github.com/feichai0017/book-reader/pkg/converters"
	"github.com/feichai0017/book-reader/pkg/logger"
	"github.com/feichai0017/book-reader/pkg/queue"
	"github.com/feichai0017/book-reader/pkg/storage"
)

const (
	defaultAssetMediaType = "image/jpeg"
	thumbnailMediaType    = "image/jpeg"
)

type Service struct {
	processorFactory *agent.ProcessorFactory
	queue            queue.Queue
	storage          storage.Storage
	validator        *validator.DocumentValidator
	converter        converters.DocumentConverter
	logger           logger.ContextLogger
	config           *ServiceConfig

	// recordMu 串行化本进程内记录的读改写
	recordMu sync.Mutex
	// hashMu 保护 inflight: 正在上传的内容哈希 -> 书籍 id
	hashMu   sync.Mutex
	inflight map[string]string
}

type ServiceConfig struct {
	MaxFileSize   int64
	ThumbWidth    int
	ThumbHeight   int
	MaxConcurrent int
	// ImageBaseURL 为 fmt 格式, 参数是书籍 id
	ImageBaseURL string
}

func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxFileSize:   200 * 1024 * 1024, // 200MB
		ThumbWidth:    200,
		ThumbHeight:   300,
		MaxConcurrent: 5,
		ImageBaseURL:  "/reader/%s/images",
	}
}

func NewService(
	factory *agent.ProcessorFactory,
	queue queue.Queue,
	storage storage.Storage,
	log logger.Logger,
	cfg *ServiceConfig,
) *Service {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}

	vcfg := validator.DefaultConfig()
	vcfg.MaxFileSize = cfg.MaxFileSize

	return &Service{
		processorFactory: factory,
		queue:            queue,
		storage:          storage,
		validator:        validator.NewDocumentValidator(log.Named("validator"), vcfg),
		converter:        converters.NewJSONConverter(),
		logger:           logger.NewContextLogger(log),
		config:           cfg,
		inflight:         make(map[string]string),
	}
}

// GetService wires storage, queue and processors from the reader config.
func GetService(cfg *config.ReaderConfig, log logger.Logger) (*Service, error) {
	// 初始化存储
	store, err := storage.NewStorage(cfg.Storage, log.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// 初始化队列
	q, err := queue.NewAsynqQueue(&queue.QueueConfig{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	// 初始化处理器工厂
	factory := agent.NewProcessorFactory(log.Named("processor"), agent.Options{
		PDFWorkers:  cfg.Cover.PDFWorkers,
		PDFCoverDPI: cfg.Cover.DPI,
	})

	svcCfg := DefaultServiceConfig()
	svcCfg.MaxFileSize = cfg.MaxUploadBytes()
	svcCfg.ThumbWidth = cfg.Cover.ThumbWidth
	svcCfg.ThumbHeight = cfg.Cover.ThumbHeight

	return NewService(factory, q, store, log, svcCfg), nil
}

func sourceKey(id string, kind models.FormatKind) string {
	return fmt.Sprintf("books/%s/source%s", id, kind.Extension())
}

func recordKey(id string) string {
	return fmt.Sprintf("books/%s/record.json", id)
}

func coverKey(id, mediaType string) string {
	return fmt.Sprintf("books/%s/cover%s", id, document.ExtensionFor(mediaType))
}

func thumbnailKey(id string) string {
	return fmt.Sprintf("books/%s/cover_thumb.jpg", id)
}

func bookPrefix(id string) string {
	return fmt.Sprintf("books/%s/", id)
}

// hashKey 内容哈希索引, 值为书籍 id
func hashKey(hash string) string {
	return fmt.Sprintf("hashes/%s", hash)
}

const booksPrefix = "books/"

// Upload 上传单个文件
func (s *Service) Upload(
	ctx context.Context,
	file multipart.File,
	header *multipart.FileHeader,
) (*models.BookRecord, error) {
	// 多读一个字节以发现超限文件
	data, err := io.ReadAll(io.LimitReader(file, s.config.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return s.UploadData(ctx, header.Filename, data)
}

// UploadData validates and stores an in-memory book.
func (s *Service) UploadData(ctx context.Context, filename string, data []byte) (*models.BookRecord, error) {
	filename = path.Base(filename)
	log := s.logger.FromContext(ctx)

	log.Info("Starting book upload",
		logger.String("filename", filename),
		logger.Int("size", len(data)),
	)

	// 验证文件
	result, err := s.validator.ValidateBytes(filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to validate file: %w", err)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	kind := result.FileInfo.Format
	src := models.NewSourceFile(filename, kind, data)
	processor, err := s.processorFactory.GetProcessor(kind)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &models.BookRecord{
		ID:          uuid.New().String(),
		Filename:    filename,
		Title:       filename,
		Format:      kind,
		Size:        src.Size(),
		CoverStatus: models.CoverSkipped,
		Hash:        result.FileInfo.Hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec.SourceKey = sourceKey(rec.ID, kind)
	log = log.With(logger.String("book_id", rec.ID))

	// 相同内容只保存一份
	if err := s.claimHash(ctx, rec); err != nil {
		return nil, err
	}
	defer s.releaseHash(rec.Hash)

	if mr, ok := processor.(document.MetadataReader); ok {
		title, author := mr.Metadata(src)
		if title != "" {
			rec.Title = title
		}
		rec.Author = author
	}

	// 存储源文件
	if err := s.storage.Store(ctx, rec.SourceKey, src.Reader(), src.Size(), result.FileInfo.MimeType); err != nil {
		log.Error("Failed to store source file", logger.Error(err))
		s.abandonUpload(ctx, rec)
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	// 封面: PDF 走队列, EPUB/DOCX 同步提取, TXT 没有封面
	var coverTask *queue.Task
	switch kind {
	case models.Pdf:
		coverTask = queue.NewCoverTask(uuid.New().String(), rec.ID)
		rec.CoverTaskID = coverTask.ID
		rec.CoverStatus = models.CoverPending
	case models.Epub, models.Docx:
		s.extractCoverInline(ctx, rec, processor, src)
	}

	if err := s.saveRecord(ctx, rec); err != nil {
		// 记录写入失败时源文件成为孤儿, 一并删除
		s.abandonUpload(ctx, rec)
		return nil, err
	}

	// 记录落盘后才入队, worker 立即执行也能读到书籍
	if coverTask != nil {
		s.enqueueCover(ctx, rec, coverTask)
	}

	log.Info("Book uploaded",
		logger.String("format", string(kind)),
		logger.String("title", rec.Title),
		logger.String("coverStatus", string(rec.CoverStatus)),
	)

	return rec, nil
}

// enqueueCover 提交封面任务. 初始状态先于入队写入, 不会覆盖 worker 写的状态
func (s *Service) enqueueCover(ctx context.Context, rec *models.BookRecord, task *queue.Task) {
	status := &models.CoverTask{
		ID:        task.ID,
		BookID:    rec.ID,
		Status:    models.CoverPending,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.CreatedAt,
	}
	s.saveStatus(ctx, status)

	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Warn("Failed to enqueue cover task",
			logger.String("book_id", rec.ID),
			logger.Error(err),
		)
		rec.CoverStatus = models.CoverFailed

		status.Status = models.CoverFailed
		status.Error = err.Error()
		status.UpdatedAt = time.Now()
		s.saveStatus(ctx, status)

		if err := s.updateCoverStatus(ctx, rec.ID, models.CoverFailed); err != nil {
			s.logger.Warn("Failed to record cover failure",
				logger.String("book_id", rec.ID),
				logger.Error(err),
			)
		}
	}
}

// claimHash 检查内容是否已上传, 并登记本次上传
func (s *Service) claimHash(ctx context.Context, rec *models.BookRecord) error {
	s.hashMu.Lock()
	defer s.hashMu.Unlock()

	if owner, ok := s.inflight[rec.Hash]; ok {
		return fmt.Errorf("%s duplicates book %s: %w", rec.Filename, owner, ErrDuplicateBook)
	}

	data, err := storage.ReadAll(ctx, s.storage, hashKey(rec.Hash))
	switch {
	case err == nil:
		owner := string(data)
		_, gerr := s.GetBook(ctx, owner)
		if gerr == nil {
			return fmt.Errorf("%s duplicates book %s: %w", rec.Filename, owner, ErrDuplicateBook)
		}
		if !errors.Is(gerr, ErrBookNotFound) {
			return gerr
		}
		// 索引指向的书籍已不存在, 覆盖
	case !storage.IsNotFound(err):
		return fmt.Errorf("failed to check duplicate: %w", err)
	}

	id := []byte(rec.ID)
	if err := s.storage.Store(ctx, hashKey(rec.Hash), bytes.NewReader(id), int64(len(id)), "text/plain"); err != nil {
		return fmt.Errorf("failed to store hash index: %w", err)
	}
	s.inflight[rec.Hash] = rec.ID
	return nil
}

func (s *Service) releaseHash(hash string) {
	s.hashMu.Lock()
	delete(s.inflight, hash)
	s.hashMu.Unlock()
}

// abandonUpload 清理上传失败留下的对象
func (s *Service) abandonUpload(ctx context.Context, rec *models.BookRecord) {
	if err := s.storage.DeletePrefix(ctx, bookPrefix(rec.ID)); err != nil {
		s.logger.Warn("Failed to clean up upload", logger.String("book_id", rec.ID), logger.Error(err))
	}
	if err := s.storage.Delete(ctx, hashKey(rec.Hash)); err != nil {
		s.logger.Warn("Failed to clean up hash index", logger.String("book_id", rec.ID), logger.Error(err))
	}
}

func (s *Service) extractCoverInline(ctx context.Context, rec *models.BookRecord, p document.Processor, src *models.SourceFile) {
	cover, err := p.ExtractCover(ctx, src)
	if err != nil {
		rec.CoverStatus = models.CoverFailed
		if errors.Is(err, document.ErrNoCoverFound) {
			rec.CoverStatus = models.CoverNone
		}
		s.logger.Info("No cover extracted",
			logger.String("book_id", rec.ID),
			logger.Error(err),
		)
		return
	}

	if err := s.storeCover(ctx, rec, cover); err != nil {
		rec.CoverStatus = models.CoverFailed
		s.logger.Warn("Failed to store cover",
			logger.String("book_id", rec.ID),
			logger.Error(err),
		)
		return
	}
	rec.CoverStatus = models.CoverCompleted
}

// storeCover writes the cover and, when it decodes, its thumbnail.
func (s *Service) storeCover(ctx context.Context, rec *models.BookRecord, cover *models.CoverImage) error {
	mediaType := cover.MediaType
	if mediaType == "" {
		mediaType = document.MediaTypeOf("", cover.Data)
	}

	key := coverKey(rec.ID, mediaType)
	if err := s.storage.Store(ctx, key, bytes.NewReader(cover.Data), int64(len(cover.Data)), mediaType); err != nil {
		return err
	}
	rec.CoverKey = key

	thumb, err := docimage.Thumbnail(cover.Data, s.config.ThumbWidth, s.config.ThumbHeight)
	if err != nil {
		// SVG 等格式无法生成缩略图, 原图仍然可用
		s.logger.Info("Cover thumbnail skipped",
			logger.String("book_id", rec.ID),
			logger.String("mediaType", mediaType),
			logger.Error(err),
		)
		return nil
	}

	tkey := thumbnailKey(rec.ID)
	if err := s.storage.Store(ctx, tkey, bytes.NewReader(thumb), int64(len(thumb)), thumbnailMediaType); err != nil {
		return err
	}
	rec.ThumbnailKey = tkey
	return nil
}

// UploadBatch 批量上传, 结果顺序与输入一致
func (s *Service) UploadBatch(ctx context.Context, files []*multipart.FileHeader) ([]*models.BookRecord, error) {
	results := make([]*models.BookRecord, len(files))

	// 使用 errgroup 来管理并发和错误
	g, gctx := errgroup.WithContext(ctx)
	if s.config.MaxConcurrent > 0 {
		g.SetLimit(s.config.MaxConcurrent)
	}

	for i, header := range files {
		g.Go(func() error {
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open file %s: %w", header.Filename, err)
			}
			defer file.Close()

			rec, err := s.Upload(gctx, file, header)
			if err != nil {
				return fmt.Errorf("failed to upload file %s: %w", header.Filename, err)
			}
			results[i] = rec
			return nil
		})
	}

	err := g.Wait()

	// 返回已上传的记录和错误
	records := make([]*models.BookRecord, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, err
}

// ListBooks 列出所有书籍, 最新上传的在前
func (s *Service) ListBooks(ctx context.Context) ([]*models.BookRecord, error) {
	keys, err := s.storage.List(ctx, booksPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	records := make([]*models.BookRecord, 0, len(keys)/3)
	for _, key := range keys {
		if path.Base(key) != "record.json" {
			continue
		}
		rec, err := s.GetBook(ctx, path.Base(path.Dir(key)))
		if err != nil {
			// 列出之后被删除
			if errors.Is(err, ErrBookNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// GetBook 获取书籍记录
func (s *Service) GetBook(ctx context.Context, id string) (*models.BookRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("book %q: %w", id, ErrBookNotFound)
	}

	data, err := storage.ReadAll(ctx, s.storage, recordKey(id))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("book %s: %w", id, ErrBookNotFound)
		}
		return nil, fmt.Errorf("failed to load book record: %w", err)
	}

	var rec models.BookRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode book record: %w", err)
	}
	return &rec, nil
}

func (s *Service) saveRecord(ctx context.Context, rec *models.BookRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal book record: %w", err)
	}
	if err := s.storage.Store(ctx, recordKey(rec.ID), bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("failed to store book record: %w", err)
	}
	return nil
}

// loadSource returns the record, stored bytes and processor of a book.
func (s *Service) loadSource(ctx context.Context, id string) (*models.BookRecord, *models.SourceFile, document.Processor, error) {
	rec, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	processor, err := s.processorFactory.GetProcessor(rec.Format)
	if err != nil {
		return nil, nil, nil, err
	}

	data, err := storage.ReadAll(ctx, s.storage, rec.SourceKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, nil, fmt.Errorf("book %s source: %w", id, ErrBookNotFound)
		}
		return nil, nil, nil, fmt.Errorf("failed to load source file: %w", err)
	}

	return rec, models.NewSourceFile(rec.Filename, rec.Format, data), processor, nil
}

// ReadBook 解析书籍为阅读器文档
func (s *Service) ReadBook(ctx context.Context, id string) (*converters.ReaderDocument, error) {
	ctx = logger.WithBookID(ctx, id)
	log := s.logger.FromContext(ctx)

	rec, src, processor, err := s.loadSource(ctx, id)
	if err != nil {
		return nil, err
	}

	book, err := processor.Extract(ctx, src, fmt.Sprintf(s.config.ImageBaseURL, id))
	if err != nil {
		if document.IsReadFailure(err) {
			log.Warn("Could not read book content", logger.Error(err))
		}
		return nil, err
	}

	doc, err := s.converter.Convert(book, converters.BookInfo{
		ID:     rec.ID,
		Author: rec.Author,
		Format: rec.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert book: %w", err)
	}

	log.Debug("Book read",
		logger.Int("chapters", doc.Stats.Chapters),
		logger.Int("words", doc.Stats.Words),
	)
	return doc, nil
}

// GetAsset 获取章节引用的资源
func (s *Service) GetAsset(ctx context.Context, id, assetID string) (*models.Asset, error) {
	_, src, processor, err := s.loadSource(ctx, id)
	if err != nil {
		return nil, err
	}

	asset, err := processor.ResolveAsset(ctx, src, assetID)
	if err != nil {
		return nil, err
	}
	if asset.MediaType == "" {
		asset.MediaType = defaultAssetMediaType
	}
	return asset, nil
}

// GetCover 获取存储的封面原图
func (s *Service) GetCover(ctx context.Context, id string) (*models.CoverImage, error) {
	rec, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.readCover(ctx, rec.CoverKey)
}

// GetCoverThumbnail 获取封面缩略图
func (s *Service) GetCoverThumbnail(ctx context.Context, id string) (*models.CoverImage, error) {
	rec, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.readCover(ctx, rec.ThumbnailKey)
}

func (s *Service) readCover(ctx context.Context, key string) (*models.CoverImage, error) {
	if key == "" {
		return nil, document.ErrNoCoverFound
	}
	data, err := storage.ReadAll(ctx, s.storage, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, document.ErrNoCoverFound)
		}
		return nil, err
	}
	return &models.CoverImage{
		Data:      data,
		MediaType: document.MediaTypeOf(key, data),
	}, nil
}

// GetCoverStatus 获取封面提取状态
func (s *Service) GetCoverStatus(ctx context.Context, id string) (*models.CoverTask, error) {
	rec, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	fromRecord := &models.CoverTask{
		ID:        rec.CoverTaskID,
		BookID:    rec.ID,
		Status:    rec.CoverStatus,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.CoverTaskID == "" {
		return fromRecord, nil
	}

	status, err := s.queue.GetTaskStatus(ctx, rec.CoverTaskID)
	if err != nil {
		// 状态过期后以记录为准
		if errors.Is(err, queue.ErrTaskNotFound) {
			return fromRecord, nil
		}
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}
	return status, nil
}

// HandleCoverTask 执行封面提取任务
func (s *Service) HandleCoverTask(ctx context.Context, task *queue.Task) error {
	if task == nil || task.BookID == "" {
		return fmt.Errorf("invalid task: missing required data")
	}

	ctx = logger.WithBookID(ctx, task.BookID)
	log := s.logger.FromContext(ctx).With(logger.String("taskId", task.ID))
	log.Info("Extracting cover")

	status := &models.CoverTask{
		ID:        task.ID,
		BookID:    task.BookID,
		Status:    models.CoverRunning,
		CreatedAt: task.CreatedAt,
		UpdatedAt: time.Now(),
	}
	s.saveStatus(ctx, status)

	err := s.runCoverTask(ctx, task)

	status.UpdatedAt = time.Now()
	switch {
	case err == nil:
		status.Status = models.CoverCompleted
	case errors.Is(err, document.ErrNoCoverFound):
		// 没有封面是正常结果
		status.Status = models.CoverNone
		err = nil
	default:
		status.Status = models.CoverFailed
		status.Error = err.Error()
	}
	s.saveStatus(ctx, status)

	if rerr := s.updateCoverStatus(ctx, task.BookID, status.Status); rerr != nil && err == nil {
		err = rerr
	}

	log.Info("Cover task finished",
		logger.String("status", string(status.Status)),
		logger.Error(err),
	)
	return err
}

func (s *Service) runCoverTask(ctx context.Context, task *queue.Task) error {
	rec, src, processor, err := s.loadSource(ctx, task.BookID)
	if err != nil {
		return err
	}

	cover, err := processor.ExtractCover(ctx, src)
	if err != nil {
		return err
	}

	if err := s.storeCover(ctx, rec, cover); err != nil {
		return fmt.Errorf("failed to store cover: %w", err)
	}

	// 重新读取记录, 只合并封面字段
	return s.mutateRecord(ctx, rec.ID, func(r *models.BookRecord) {
		r.CoverKey = rec.CoverKey
		r.ThumbnailKey = rec.ThumbnailKey
	})
}

func (s *Service) updateCoverStatus(ctx context.Context, id string, status models.CoverStatus) error {
	err := s.mutateRecord(ctx, id, func(r *models.BookRecord) {
		r.CoverStatus = status
	})
	if errors.Is(err, ErrBookNotFound) {
		// 书籍已被删除
		return nil
	}
	return err
}

// mutateRecord serializes read-modify-write of records within this process.
func (s *Service) mutateRecord(ctx context.Context, id string, fn func(*models.BookRecord)) error {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	rec, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}
	fn(rec)
	rec.UpdatedAt = time.Now()
	return s.saveRecord(ctx, rec)
}

func (s *Service) saveStatus(ctx context.Context, status *models.CoverTask) {
	if err := s.queue.SaveStatus(ctx, status); err != nil {
		s.logger.Warn("Failed to save cover status",
			logger.String("taskId", status.ID),
			logger.Error(err),
		)
	}
}

// DeleteBook 删除书籍的所有对象
func (s *Service) DeleteBook(ctx context.Context, id string) error {
	rec, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}

	if rec.CoverStatus == models.CoverPending && rec.CoverTaskID != "" {
		if err := s.queue.CancelTask(ctx, rec.CoverTaskID); err != nil {
			s.logger.Debug("Cover task not cancelled",
				logger.String("taskId", rec.CoverTaskID),
				logger.Error(err),
			)
		}
	}

	if err := s.storage.DeletePrefix(ctx, bookPrefix(id)); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if rec.Hash != "" {
		if err := s.storage.Delete(ctx, hashKey(rec.Hash)); err != nil {
			s.logger.Warn("Failed to delete hash index", logger.String("book_id", id), logger.Error(err))
		}
	}

	s.logger.Info("Book deleted", logger.String("book_id", id))
	return nil
}
