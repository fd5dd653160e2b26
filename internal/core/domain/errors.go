package domain

import "errors"

var (
	ErrSubscriberClosed = errors.New("subscriber closed")
	ErrSubscriberSlow   = errors.New("subscriber send queue full")
	ErrRegistryFull     = errors.New("subscriber registry full")
	ErrBodyTooLarge     = errors.New("request body too large")
	ErrEmptyBody        = errors.New("request body is empty")
	ErrInvalidPayload   = errors.New("payload is not valid JSON")
	ErrRelayStopped     = errors.New("relay is not running")
)
