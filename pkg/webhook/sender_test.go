package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/pkg/webhook"
)

var fastBackoff = webhook.ExponentialBackoff{
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	Multiplier:      2,
}

func TestSender_Send(t *testing.T) {
	t.Parallel()

	t.Run("posts signed json", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.NoError(t, webhook.VerifySignature("s3cret", body, r.Header.Get(webhook.SignatureHeaderName)))

			var got map[string]string
			assert.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, "hi", got["text"])
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		resp, err := webhook.NewSender().Send(context.Background(), srv.URL, map[string]string{"text": "hi"},
			webhook.WithBearerToken("tok"),
			webhook.WithSignature("s3cret"),
		)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	})

	t.Run("retries temporary failures", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		var attempts []int
		_, err := webhook.NewSender().Send(context.Background(), srv.URL, []byte(`{}`),
			webhook.WithBackoff(fastBackoff),
			webhook.WithMaxRetries(3),
			webhook.WithOnDelivery(func(r webhook.DeliveryResult) { attempts = append(attempts, r.StatusCode) }),
		)
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, []int{502, 502, 200}, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		resp, err := webhook.NewSender().Send(context.Background(), srv.URL, []byte(`{}`),
			webhook.WithBackoff(fastBackoff),
			webhook.WithMaxRetries(2),
		)
		assert.ErrorIs(t, err, webhook.ErrWebhookDeliveryFailed)
		assert.ErrorIs(t, err, webhook.ErrTemporaryFailure)
		assert.Equal(t, int32(3), calls.Load())
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("client errors are permanent", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, `{"error":"bad"}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		resp, err := webhook.NewSender().Send(context.Background(), srv.URL, []byte(`{}`),
			webhook.WithBackoff(fastBackoff))
		assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
		assert.Equal(t, int32(1), calls.Load())
		require.NotNil(t, resp)
		assert.Contains(t, string(resp.Body), "bad")
	})

	t.Run("open circuit short-circuits", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		cb := webhook.NewCircuitBreaker(2, 1, time.Hour)
		sender := webhook.NewSender(webhook.WithDefaults(
			webhook.WithBackoff(fastBackoff),
			webhook.WithCircuitBreaker(cb),
		))
		_, err := sender.Send(context.Background(), srv.URL, []byte(`{}`), webhook.WithMaxRetries(5))
		assert.ErrorIs(t, err, webhook.ErrCircuitOpen)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, webhook.StateOpen, cb.State())
	})

	t.Run("rejects bad input", func(t *testing.T) {
		t.Parallel()
		sender := webhook.NewSender()
		_, err := sender.Send(context.Background(), "ftp://example.com", []byte(`{}`))
		assert.ErrorIs(t, err, webhook.ErrInvalidURL)
		_, err = sender.Send(context.Background(), "https://example.com", nil)
		assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
		_, err = sender.Send(context.Background(), "https://example.com", make(chan int))
		assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
	})
}

func TestSender_Get(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	resp, err := webhook.NewSender().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(resp.Body))

	_, err = webhook.NewSender(webhook.WithMaxResponseSize(4)).Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, webhook.ErrResponseTooLarge)
}
