package store

import "errors"

var (
	ErrNotFound        = errors.New("store: record not found")
	ErrInvalidCell     = errors.New("store: cell number is not numeric")
	ErrUserNotSaved    = errors.New("store: failed to save user")
	ErrSaleNotCreated  = errors.New("store: failed to create sale")
	ErrPaymentNotFound = errors.New("store: payment not found")
)
