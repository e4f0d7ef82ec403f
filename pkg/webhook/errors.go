package webhook

import "errors"

var (
	ErrMissingSignature      = errors.New("webhook: missing signature")
	ErrMissingSecret         = errors.New("webhook: signing secret not configured")
	ErrInvalidSignature      = errors.New("webhook: invalid signature")
	ErrInvalidURL            = errors.New("webhook: invalid url")
	ErrInvalidPayload        = errors.New("webhook: invalid payload")
	ErrTimeout               = errors.New("webhook: request timeout")
	ErrCircuitOpen           = errors.New("webhook: circuit breaker open")
	ErrPermanentFailure      = errors.New("webhook: permanent failure")
	ErrTemporaryFailure      = errors.New("webhook: temporary failure")
	ErrWebhookDeliveryFailed = errors.New("webhook: delivery failed")
	ErrInvalidConfiguration  = errors.New("webhook: invalid configuration")
	ErrResponseTooLarge      = errors.New("webhook: response too large")
)
