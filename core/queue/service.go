package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/chatbridge/core/logger"
)

// Service owns one storage, one Enqueuer and a Worker per consumed queue.
type Service struct {
	storage  Storage
	enqueuer *Enqueuer
	workers  map[string]*Worker
	order    []string
	logger   *slog.Logger

	workerOpts   []WorkerOption
	enqueuerOpts []EnqueuerOption
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger passed to workers.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkerOptions applies options to every worker the service creates.
func WithWorkerOptions(opts ...WorkerOption) ServiceOption {
	return func(s *Service) { s.workerOpts = append(s.workerOpts, opts...) }
}

// WithEnqueuerOptions applies options to the service enqueuer.
func WithEnqueuerOptions(opts ...EnqueuerOption) ServiceOption {
	return func(s *Service) { s.enqueuerOpts = append(s.enqueuerOpts, opts...) }
}

// WithServiceAckMode is shorthand for WithWorkerOptions(WithAckMode(mode)).
func WithServiceAckMode(mode AckMode) ServiceOption {
	return WithWorkerOptions(WithAckMode(mode))
}

// NewService creates a service over storage.
func NewService(storage Storage, opts ...ServiceOption) (*Service, error) {
	if storage == nil {
		return nil, ErrRepositoryNil
	}

	s := &Service{
		storage: storage,
		workers: make(map[string]*Worker),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	enqueuer, err := NewEnqueuer(storage, s.enqueuerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create enqueuer: %w", err)
	}
	s.enqueuer = enqueuer
	return s, nil
}

// NewServiceFromConfig applies cfg to workers and enqueuer.
func NewServiceFromConfig(cfg Config, storage Storage, opts ...ServiceOption) (*Service, error) {
	base := []ServiceOption{
		WithWorkerOptions(cfg.WorkerOptions()...),
		WithEnqueuerOptions(WithDefaultMaxRetries(cfg.MaxRetries)),
	}
	return NewService(storage, append(base, opts...)...)
}

// Consume registers handlers for a queue, creating its worker on first use.
// Each queue gets a dedicated long-lived worker.
func (s *Service) Consume(queue string, handlers ...Handler) error {
	if queue == "" {
		return ErrEmptyQueueName
	}

	w, ok := s.workers[queue]
	if !ok {
		opts := append([]WorkerOption{
			WithWorkerLogger(s.logger.With(logger.Queue(queue))),
		}, s.workerOpts...)
		opts = append(opts, WithQueues(queue))

		var err error
		w, err = NewWorker(s.storage, opts...)
		if err != nil {
			return fmt.Errorf("failed to create worker for %q: %w", queue, err)
		}
		s.workers[queue] = w
		s.order = append(s.order, queue)
	}

	w.RegisterHandlers(handlers...)
	return nil
}

// Enqueue adds a task through the service enqueuer.
func (s *Service) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	return s.enqueuer.Enqueue(ctx, payload, opts...)
}

// Enqueuer returns the service enqueuer.
func (s *Service) Enqueuer() *Enqueuer { return s.enqueuer }

// Storage returns the underlying storage.
func (s *Service) Storage() Storage { return s.storage }

// Worker returns the worker consuming queue, if any.
func (s *Service) Worker(queue string) (*Worker, bool) {
	w, ok := s.workers[queue]
	return w, ok
}

// Run starts every worker, plus the storage's own loop when it has one,
// and blocks until ctx is cancelled. Suitable for errgroup.Go.
func (s *Service) Run(ctx context.Context) func() error {
	return func() error {
		if len(s.workers) == 0 {
			return ErrNoHandlers
		}

		eg, ctx := errgroup.WithContext(ctx)
		if r, ok := s.storage.(interface {
			Run(context.Context) func() error
		}); ok {
			eg.Go(r.Run(ctx))
		}
		for _, name := range s.order {
			eg.Go(s.workers[name].Run(ctx))
		}

		s.logger.InfoContext(ctx, "queue service started", slog.Any("queues", s.order))
		return eg.Wait()
	}
}

// Healthcheck reports the first unhealthy worker.
func (s *Service) Healthcheck(ctx context.Context) error {
	var errs []error
	for _, name := range s.order {
		if err := s.workers[name].Healthcheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
