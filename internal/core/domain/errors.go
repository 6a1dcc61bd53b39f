package domain

import "errors"

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductInactive    = errors.New("product inactive")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrSlotNotFound       = errors.New("delivery slot not found")
	ErrSlotFull           = errors.New("delivery slot full")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrCancelWindowClosed = errors.New("too late to cancel")
	ErrForbidden          = errors.New("order belongs to another user")
	ErrEmptyCart          = errors.New("cart is empty")
)
