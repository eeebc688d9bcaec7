package maintenance

import "fmt"

// Validation errors surfaced by the frequency resolver.
var ErrInvalidInterval = fmt.Errorf("custom frequency interval must be at least 1 day")
var ErrUnknownFrequency = fmt.Errorf("unknown frequency type")

// ErrTerminalState is returned when complete or cancel is attempted on an
// occurrence that is already completed or cancelled.
var ErrTerminalState = fmt.Errorf("occurrence is in a terminal state")
