package command

import "errors"

var (
	ErrInvalidPattern = errors.New("command: invalid pattern")
	ErrMissingFactory = errors.New("command: definition without factory")
	ErrDuplicateKey   = errors.New("command: duplicate key")
)
