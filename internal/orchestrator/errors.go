package orchestrator

import "errors"

var (
	// ErrInvalidSource is returned for a recommendation source outside
	// the allow-list.
	ErrInvalidSource = errors.New("orchestrator: invalid recommendation source")

	// ErrInvalidPriority is returned for a priority outside the allow-list.
	ErrInvalidPriority = errors.New("orchestrator: invalid recommendation priority")

	// ErrInvalidRecommendation is returned when a recommendation's fields
	// fail validation.
	ErrInvalidRecommendation = errors.New("orchestrator: invalid recommendation")

	// ErrDecisionLoopDisabled is returned when a queued-priority
	// recommendation arrives with no decision loop configured.
	ErrDecisionLoopDisabled = errors.New("orchestrator: decision loop disabled")
)
