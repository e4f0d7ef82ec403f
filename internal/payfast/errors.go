package payfast

import "errors"

var (
	ErrMissingSignature  = errors.New("payfast: missing signature")
	ErrInvalidSignature  = errors.New("payfast: invalid signature")
	ErrInvalidPaymentID  = errors.New("payfast: missing or invalid m_payment_id")
	ErrPaymentInitFailed = errors.New("payfast: payment initiation failed")
	ErrInvalidAmount     = errors.New("payfast: amount must be positive")
)
