package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/chatbridge/core/logger"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	defaultMaxResponse = 16 << 20
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Sender performs outbound HTTP calls with retries.
type Sender struct {
	client      *http.Client
	log         *slog.Logger
	limiter     *rate.Limiter
	maxResponse int64
	defaults    []SendOption
}

func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{
		client:      &http.Client{},
		log:         logger.Nop(),
		maxResponse: defaultMaxResponse,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send POSTs payload as JSON. A []byte payload is sent as is.
func (s *Sender) Send(ctx context.Context, target string, payload any, opts ...SendOption) (*Response, error) {
	var body []byte
	switch p := payload.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	case []byte:
		body = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, errors.Join(ErrInvalidPayload, err)
		}
		body = b
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	return s.do(ctx, http.MethodPost, target, body, opts)
}

// Get fetches target, typically a JSON document or a media file.
func (s *Sender) Get(ctx context.Context, target string, opts ...SendOption) (*Response, error) {
	return s.do(ctx, http.MethodGet, target, nil, opts)
}

func (s *Sender) options(opts []SendOption) sendOptions {
	o := sendOptions{
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		headers:    make(http.Header),
		backoff:    DefaultBackoff,
	}
	for _, opt := range s.defaults {
		opt(&o)
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (s *Sender) do(ctx context.Context, method, target string, body []byte, opts []SendOption) (*Response, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, target)
	}
	o := s.options(opts)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = o.backoff.InitialInterval
	eb.MaxInterval = o.backoff.MaxInterval
	eb.Multiplier = o.backoff.Multiplier
	eb.RandomizationFactor = o.backoff.JitterFactor
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, o.maxRetries), ctx)

	var (
		resp    *Response
		attempt int
	)
	op := func() error {
		attempt++
		if o.breaker != nil && !o.breaker.Allow() {
			return backoff.Permanent(ErrCircuitOpen)
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		start := time.Now()
		r, err := s.attempt(ctx, method, u.String(), body, o)
		result := DeliveryResult{URL: target, Attempt: attempt, Duration: time.Since(start), Error: err}
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		result.Success = err == nil
		if o.onDelivery != nil {
			o.onDelivery(result)
		}

		if o.breaker != nil {
			// Only temporary failures count against the endpoint.
			if err == nil || errors.Is(err, ErrPermanentFailure) {
				o.breaker.RecordSuccess()
			} else {
				o.breaker.RecordFailure()
			}
		}
		resp = r
		if errors.Is(err, ErrPermanentFailure) || errors.Is(err, ErrResponseTooLarge) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log.WarnContext(ctx, "outbound request failed, retrying",
			slog.String("method", method),
			slog.String("host", u.Host),
			slog.Int("attempt", attempt),
			logger.Duration(wait),
			logger.Error(err))
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if errors.Is(err, ErrTemporaryFailure) || errors.Is(err, ErrTimeout) {
			return resp, errors.Join(ErrWebhookDeliveryFailed, err)
		}
		return resp, err
	}
	return resp, nil
}

func (s *Sender) attempt(ctx context.Context, method, target string, body []byte, o sendOptions) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Join(ErrInvalidURL, err)
	}
	for k, v := range o.headers {
		req.Header[k] = v
	}
	if body != nil {
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if o.secret != "" {
			req.Header.Set(SignatureHeaderName, SignatureHeader(o.secret, body))
		}
	}

	res, err := s.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Join(ErrTimeout, err)
		}
		return nil, errors.Join(ErrTemporaryFailure, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, s.maxResponse+1))
	if err != nil {
		return nil, errors.Join(ErrTemporaryFailure, err)
	}
	if int64(len(data)) > s.maxResponse {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, s.maxResponse)
	}

	out := &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}
	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return out, nil
	case res.StatusCode == http.StatusRequestTimeout || res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
		return out, fmt.Errorf("%w: status %d", ErrTemporaryFailure, res.StatusCode)
	default:
		return out, fmt.Errorf("%w: status %d", ErrPermanentFailure, res.StatusCode)
	}
}
