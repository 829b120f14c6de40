package connection

import "errors"

var (
	// ErrConnectionFailed indicates all connect attempts were exhausted.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNotConnected indicates an operation that requires a live link was
	// attempted without one.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates a connect attempt on a live link.
	ErrAlreadyConnected = errors.New("already connected")
)
