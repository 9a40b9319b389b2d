package decision

import "errors"

// ErrInvalidConfig is returned when a runtime configuration update fails
// validation. The previous configuration stays in effect.
var ErrInvalidConfig = errors.New("decision: invalid config")
