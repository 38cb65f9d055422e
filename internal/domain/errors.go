package domain

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrNotFound            = errors.New("not found")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientPayment = errors.New("payment below total")
	ErrInsufficientStock   = errors.New("insufficient stock")

	// ErrTransientRemote marks a remote failure worth retrying later
	// (network, timeout); the mutation stays queued. ErrPermanentRemote
	// marks a definitive rejection; the mutation is dropped and reported.
	ErrTransientRemote = errors.New("transient remote failure")
	ErrPermanentRemote = errors.New("permanent remote rejection")
)
