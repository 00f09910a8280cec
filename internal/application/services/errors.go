package services

import "errors"

var (
	ErrWidgetNotFound   = errors.New("widget not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrThreadNotFound   = errors.New("thread not found")
	ErrInvalidHash      = errors.New("invalid customer hash")
	ErrSessionRequired  = errors.New("sessionId is required for anonymous customers")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrEmailInUse       = errors.New("email already belongs to another customer")
	ErrEmptyMessage     = errors.New("message cannot be empty")
)
