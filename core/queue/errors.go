package queue

import "errors"

var (
	ErrRepositoryNil     = errors.New("queue: repository is nil")
	ErrPayloadNil        = errors.New("queue: payload is nil")
	ErrEmptyQueueName    = errors.New("queue: queue name is empty")
	ErrNoTaskToClaim     = errors.New("queue: no task to claim")
	ErrNoHandlers        = errors.New("queue: no handlers registered")
	ErrHandlerNotFound   = errors.New("queue: handler not found")
	ErrHandlerPanic      = errors.New("queue: handler panicked")
	ErrTaskNotFound      = errors.New("queue: task not found")
	ErrTaskExists        = errors.New("queue: task already exists")
	ErrTaskNotProcessing = errors.New("queue: task is not processing")
	ErrInvalidAckMode    = errors.New("queue: invalid ack mode")
	ErrAlreadyStarted    = errors.New("queue: already started")
	ErrNotStarted        = errors.New("queue: not started")
	ErrShutdownTimeout   = errors.New("queue: shutdown timeout exceeded")
	ErrHealthcheckFailed = errors.New("queue: healthcheck failed")
	ErrWorkerNotRunning  = errors.New("queue: worker is not running")
	ErrWorkerOverloaded  = errors.New("queue: worker is overloaded")
)
