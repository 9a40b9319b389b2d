package pump

import "errors"

var (
	// ErrCommandFailed indicates the gateway rejected or failed to deliver
	// an ON/OFF command on both transports.
	ErrCommandFailed = errors.New("pump: gateway command failed")

	// ErrStateNotFound indicates the singleton state row is missing.
	ErrStateNotFound = errors.New("pump: state not found")

	// ErrInvalidDuration indicates a non-positive requested run duration.
	ErrInvalidDuration = errors.New("pump: duration must be positive")
)
