// Package webhook signs, verifies and delivers webhook-style HTTP calls.
//
// Inbound: VerifySignature checks an "X-Hub-Signature-256: sha256=<hex>"
// header against the raw request body. The comparison is constant time and
// ignores hex case.
//
//	body, _ := io.ReadAll(r.Body)
//	if err := webhook.VerifySignature(secret, body, r.Header.Get(webhook.SignatureHeaderName)); err != nil {
//		http.Error(w, "Unauthorized", http.StatusUnauthorized)
//		return
//	}
//
// Outbound: a Sender posts JSON (or fetches bytes) with exponential backoff,
// an optional circuit breaker and an optional client-side rate limit:
//
//	sender := webhook.NewSender(
//		webhook.WithRateLimit(rate.Limit(20), 5),
//		webhook.WithDefaults(webhook.WithMaxRetries(3)),
//	)
//	resp, err := sender.Send(ctx, "https://graph.facebook.com/v21.0/123/messages", msg,
//		webhook.WithBearerToken(token),
//		webhook.WithCircuitBreaker(cb),
//	)
//
// 4xx responses other than 408 and 429 are permanent and never retried.
// Network errors and 5xx are retried until MaxRetries is exhausted, after
// which the error wraps ErrWebhookDeliveryFailed.
package webhook
