package core

import "errors"

var (
	// ErrDataUnavailable is returned when candles could not be fetched or parsed
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrInvalidCandle is returned for degenerate candles, eg: zero open price
	ErrInvalidCandle = errors.New("invalid candle")
	// ErrIndicatorUnavailable is returned when no provider could resolve an indicator
	ErrIndicatorUnavailable = errors.New("indicator unavailable")
	// ErrRecipientUnreachable is returned when the transport rejects the identity
	ErrRecipientUnreachable = errors.New("recipient unreachable")
	// ErrActivationConflict is returned when a key is bound to another identity
	ErrActivationConflict = errors.New("key bound to another identity")
	// ErrKeyNotFound is returned for unknown access keys
	ErrKeyNotFound = errors.New("access key not found")
	// ErrNotFound is returned by stores when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrPersistence wraps storage engine failures
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidInput is returned for values rejected by validation
	ErrInvalidInput = errors.New("invalid input")
)
