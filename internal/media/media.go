// Package media archives identity document photos sent through chat. A job
// names the platform media handle; the processor downloads the bytes from
// the platform, uploads them to object storage and records the outcome on
// the image record.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/integration/storage/s3"
	"github.com/dmitrymomot/chatbridge/internal/bus"
	"github.com/dmitrymomot/chatbridge/internal/chat"
	"github.com/dmitrymomot/chatbridge/internal/store"
)

// StorageType is recorded on completed images.
const StorageType = "S3"

var (
	ErrNoDownloader  = errors.New("media: no downloader for platform")
	ErrEmptyDownload = errors.New("media: downloaded file is empty")
	ErrNoUploader    = errors.New("media: image storage is not configured")
)

// Store is the part of store.Store the processor needs.
type Store interface {
	UserIDImage(ctx context.Context, id int64) (store.UserIDImage, error)
	MarkImageProcessing(ctx context.Context, id int64) error
	CompleteImage(ctx context.Context, id int64, path, storageType string, size int64) error
	FailImage(ctx context.Context, id int64, reason string) error
}

// Uploader writes archived files.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (s3.Object, error)
}

// Downloader fetches the bytes behind a platform media handle.
type Downloader interface {
	Download(ctx context.Context, handle string) ([]byte, error)
}

// Processor handles image jobs.
type Processor struct {
	store       Store
	uploader    Uploader
	downloaders map[chat.Channel]Downloader
	now         func() time.Time
	log         *slog.Logger
}

type Option func(*Processor)

// WithDownloader registers the downloader for one platform.
func WithDownloader(c chat.Channel, d Downloader) Option {
	return func(p *Processor) { p.downloaders[c] = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New builds a processor. A nil uploader fails every job that reaches the
// upload step.
func New(st Store, up Uploader, opts ...Option) *Processor {
	p := &Processor{
		store:       st,
		uploader:    up,
		downloaders: make(map[chat.Channel]Downloader),
		now:         time.Now,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ObjectKey is the archive location of an ID image taken at t.
func ObjectKey(userID, imageType string, t time.Time) string {
	return fmt.Sprintf("users/%s/idimages/%s/id_%s_%s.jpg",
		userID, imageType, imageType, t.UTC().Format("20060102150405"))
}

// Process runs one job. A missing record is dropped. Download and upload
// failures mark the record Failed and do not requeue the job; a cancelled
// context is returned so the queue retries it.
func (p *Processor) Process(ctx context.Context, job bus.ImageJob) error {
	log := p.log.With(
		slog.Int64("image_id", job.UserIDImageID),
		slog.String("user_id", job.UserID),
		logger.Channel(job.Platform.String()))

	if _, err := p.store.UserIDImage(ctx, job.UserIDImageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.WarnContext(ctx, "id image record not found")
			return nil
		}
		return err
	}
	if err := p.store.MarkImageProcessing(ctx, job.UserIDImageID); err != nil {
		return err
	}

	data, err := p.download(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.ErrorContext(ctx, "id image download failed", logger.Error(err))
		return p.fail(ctx, job.UserIDImageID, fmt.Sprintf("failed to download image from %s", job.Platform))
	}

	if p.uploader == nil {
		log.ErrorContext(ctx, "id image not archived", logger.Error(ErrNoUploader))
		return p.fail(ctx, job.UserIDImageID, ErrNoUploader.Error())
	}
	obj, err := p.uploader.Put(ctx, ObjectKey(job.UserID, job.ImageType, p.now()), data, "image/jpeg")
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.ErrorContext(ctx, "id image upload failed", logger.Error(err))
		return p.fail(ctx, job.UserIDImageID, err.Error())
	}

	if err := p.store.CompleteImage(ctx, job.UserIDImageID, obj.Key, StorageType, obj.Size); err != nil {
		return err
	}
	log.InfoContext(ctx, "id image archived",
		slog.String("path", obj.Key),
		slog.Int64("size", obj.Size))
	return nil
}

func (p *Processor) download(ctx context.Context, job bus.ImageJob) ([]byte, error) {
	d, ok := p.downloaders[job.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDownloader, job.Platform)
	}
	data, err := d.Download(ctx, job.MediaHandle)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyDownload
	}
	return data, nil
}

func (p *Processor) fail(ctx context.Context, id int64, reason string) error {
	if err := p.store.FailImage(ctx, id, reason); err != nil {
		p.log.ErrorContext(ctx, "failed to record id image failure",
			slog.Int64("image_id", id), logger.Error(err))
		return err
	}
	return nil
}
