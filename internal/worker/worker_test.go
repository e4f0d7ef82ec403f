package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/core/queue"
	"github.com/dmitrymomot/chatbridge/internal/bus"
	"github.com/dmitrymomot/chatbridge/internal/chat"
	"github.com/dmitrymomot/chatbridge/internal/pipeline"
	"github.com/dmitrymomot/chatbridge/internal/worker"
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, env chat.Envelope) ([]chat.Envelope, error) {
	args := m.Called(ctx, env)
	replies, _ := args.Get(0).([]chat.Envelope)
	return replies, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishDispatch(ctx context.Context, env chat.Envelope) error {
	return m.Called(ctx, env).Error(0)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []chat.Envelope
}

func (r *recordingDispatcher) Dispatch(_ context.Context, env chat.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, env)
}

func (r *recordingDispatcher) Sent() []chat.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Envelope(nil), r.sent...)
}

type recordingImages struct {
	mu   sync.Mutex
	jobs []bus.ImageJob
}

func (r *recordingImages) Process(_ context.Context, job bus.ImageJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recordingImages) Jobs() []bus.ImageJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bus.ImageJob(nil), r.jobs...)
}

// echoProcessor answers every message on its own channel.
type echoProcessor struct{}

func (echoProcessor) Process(_ context.Context, env chat.Envelope) ([]chat.Envelope, error) {
	u := env.Update()
	reply := chat.Update{Sender: u.Sender, Body: "echo: " + u.Body, Channel: u.Channel}
	return []chat.Envelope{chat.NewEnvelope(reply, env.CorrelationID(), nil)}, nil
}

func inbound(channel chat.Channel, sender, body string) chat.Envelope {
	return chat.NewEnvelope(chat.Update{Sender: sender, Body: body, Channel: channel}, uuid.New(), nil)
}

func TestHandlersEndToEnd(t *testing.T) {
	t.Parallel()

	svc, err := queue.NewService(queue.NewMemoryStorage(),
		queue.WithWorkerOptions(queue.WithPullInterval(5*time.Millisecond)))
	require.NoError(t, err)

	publisher := bus.NewPublisher(svc)
	telegram, whatsapp := &recordingDispatcher{}, &recordingDispatcher{}
	images := &recordingImages{}

	h := worker.New(echoProcessor{}, publisher, telegram, whatsapp, images)
	require.NoError(t, h.Register(svc))
	for _, q := range bus.Queues {
		_, ok := svc.Worker(q)
		assert.True(t, ok, q)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx)() }()

	tg := inbound(chat.ChannelTelegram, "42", "#menu")
	wa := inbound(chat.ChannelWhatsApp, "27820000001", "#shop")
	require.NoError(t, publisher.PublishInbound(ctx, tg))
	require.NoError(t, publisher.PublishInbound(ctx, wa))
	require.NoError(t, publisher.PublishImageJob(ctx, bus.ImageJob{
		UserIDImageID: 7,
		UserID:        "u-1",
		MediaHandle:   "file-1",
		ImageType:     "front",
		Platform:      chat.ChannelTelegram,
	}))

	require.Eventually(t, func() bool {
		return len(telegram.Sent()) == 1 && len(whatsapp.Sent()) == 1 && len(images.Jobs()) == 1
	}, 3*time.Second, 5*time.Millisecond)

	gotTG := telegram.Sent()[0]
	assert.Equal(t, "echo: #menu", gotTG.Update().Body)
	assert.Equal(t, "42", gotTG.Update().Sender)
	assert.Equal(t, tg.CorrelationID(), gotTG.CorrelationID())

	gotWA := whatsapp.Sent()[0]
	assert.Equal(t, "echo: #shop", gotWA.Update().Body)
	assert.Equal(t, chat.ChannelWhatsApp, gotWA.Update().Channel)

	job := images.Jobs()[0]
	assert.Equal(t, int64(7), job.UserIDImageID)
	assert.Equal(t, chat.ChannelTelegram, job.Platform)
	assert.False(t, job.QueuedAt.IsZero())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestHandleInbound(t *testing.T) {
	t.Parallel()

	t.Run("invalid envelope is dropped", func(t *testing.T) {
		t.Parallel()

		proc := new(MockProcessor)
		pub := new(MockPublisher)
		proc.On("Process", mock.Anything, mock.Anything).
			Return(nil, errors.Join(pipeline.ErrInvalidEnvelope, chat.ErrEmptyBody))

		h := worker.New(proc, pub, nil, nil, nil)
		assert.NoError(t, h.HandleInbound(context.Background(), inbound(chat.ChannelTelegram, "1", "")))
		pub.AssertNotCalled(t, "PublishDispatch", mock.Anything, mock.Anything)
	})

	t.Run("pipeline errors fail the task", func(t *testing.T) {
		t.Parallel()

		dbErr := errors.New("connection refused")
		proc := new(MockProcessor)
		proc.On("Process", mock.Anything, mock.Anything).Return(nil, dbErr)

		h := worker.New(proc, new(MockPublisher), nil, nil, nil)
		assert.ErrorIs(t, h.HandleInbound(context.Background(), inbound(chat.ChannelTelegram, "1", "#menu")), dbErr)
	})

	t.Run("publishes every reply and reports failures", func(t *testing.T) {
		t.Parallel()

		first := inbound(chat.ChannelTelegram, "1", "a")
		second := inbound(chat.ChannelTelegram, "1", "b")
		queueErr := errors.New("queue down")

		proc := new(MockProcessor)
		proc.On("Process", mock.Anything, mock.Anything).Return([]chat.Envelope{first, second}, nil)
		pub := new(MockPublisher)
		pub.On("PublishDispatch", mock.Anything, first).Return(queueErr)
		pub.On("PublishDispatch", mock.Anything, second).Return(nil)

		h := worker.New(proc, pub, nil, nil, nil)
		err := h.HandleInbound(context.Background(), inbound(chat.ChannelTelegram, "1", "#menu"))
		assert.ErrorIs(t, err, queueErr)
		pub.AssertNumberOfCalls(t, "PublishDispatch", 2)
	})

	t.Run("cancellation propagates", func(t *testing.T) {
		t.Parallel()

		proc := new(MockProcessor)
		proc.On("Process", mock.Anything, mock.Anything).Return(nil, context.Canceled)

		h := worker.New(proc, new(MockPublisher), nil, nil, nil)
		assert.ErrorIs(t, h.HandleInbound(context.Background(), inbound(chat.ChannelWhatsApp, "1", "#menu")), context.Canceled)
	})
}

func TestHandleDispatch(t *testing.T) {
	t.Parallel()

	telegram, whatsapp := &recordingDispatcher{}, &recordingDispatcher{}
	h := worker.New(nil, nil, telegram, whatsapp, nil)

	ctx := context.Background()
	require.NoError(t, h.HandleDispatch(ctx, inbound(chat.ChannelTelegram, "1", "x")))
	require.NoError(t, h.HandleDispatch(ctx, inbound(chat.ChannelWhatsApp, "2", "y")))
	require.NoError(t, h.HandleDispatch(ctx, inbound(chat.ChannelNone, "3", "z")))

	require.Len(t, telegram.Sent(), 1)
	require.Len(t, whatsapp.Sent(), 1)
	assert.Equal(t, "1", telegram.Sent()[0].Update().Sender)
	assert.Equal(t, "2", whatsapp.Sent()[0].Update().Sender)
}
