package folio

import "errors"

// Errors returned by vault operations. They are always wrapped with context,
// use errors.Is to test for them.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrPathMismatch       = errors.New("swap path mismatch")
	ErrSlippageExceeded   = errors.New("slippage exceeded")
	ErrDeadlineExpired    = errors.New("deadline expired")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrInvalidBasket      = errors.New("invalid basket")
)
