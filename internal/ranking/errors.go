package ranking

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a caller violates the input contract.
// Ranking never fails for a well-formed call.
var ErrInvalidInput = errors.New("invalid ranking input")

// ErrUnknownPreset is returned for preset names that are not registered.
// It wraps ErrInvalidInput.
var ErrUnknownPreset = fmt.Errorf("%w: unknown preset", ErrInvalidInput)
