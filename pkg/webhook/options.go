package webhook

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ExponentialBackoff configures the retry schedule.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// DefaultBackoff is used when no backoff is configured.
var DefaultBackoff = ExponentialBackoff{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
	Multiplier:      2,
	JitterFactor:    0.1,
}

// DeliveryResult describes one attempt.
type DeliveryResult struct {
	URL        string
	Attempt    int
	StatusCode int
	Duration   time.Duration
	Success    bool
	Error      error
}

type sendOptions struct {
	timeout    time.Duration
	maxRetries uint64
	secret     string
	headers    http.Header
	backoff    ExponentialBackoff
	breaker    *CircuitBreaker
	onDelivery func(DeliveryResult)
}

// SendOption configures a single call.
type SendOption func(*sendOptions)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = uint64(n)
		}
	}
}

// WithSignature adds an X-Hub-Signature-256 header over the request body.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) { o.secret = secret }
}

func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) { o.headers.Set(key, value) }
}

func WithBearerToken(token string) SendOption {
	return WithHeader("Authorization", "Bearer "+token)
}

func WithBackoff(b ExponentialBackoff) SendOption {
	return func(o *sendOptions) { o.backoff = b }
}

func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) { o.breaker = cb }
}

// WithOnDelivery registers a callback invoked after every attempt.
func WithOnDelivery(fn func(DeliveryResult)) SendOption {
	return func(o *sendOptions) { o.onDelivery = fn }
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

func WithLogger(l *slog.Logger) SenderOption {
	return func(s *Sender) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRateLimit throttles every request made by the sender.
func WithRateLimit(r rate.Limit, burst int) SenderOption {
	return func(s *Sender) { s.limiter = rate.NewLimiter(r, max(burst, 1)) }
}

// WithMaxResponseSize caps how many response bytes are read.
func WithMaxResponseSize(n int64) SenderOption {
	return func(s *Sender) {
		if n > 0 {
			s.maxResponse = n
		}
	}
}

// WithDefaults applies call options to every call made by the sender.
// Per-call options still override them.
func WithDefaults(opts ...SendOption) SenderOption {
	return func(s *Sender) { s.defaults = append(s.defaults, opts...) }
}
