package engine

import (
	"errors"
	"fmt"

	"github.com/towow-net/towow/pkg/models"
)

// ErrConfig marks engine misconfiguration: missing required dependencies
// or invalid handler registration. Matched with errors.Is.
var ErrConfig = errors.New("invalid engine configuration")

// InvalidTransitionError reports an illegal state machine move. Always a
// programming error, never expected at runtime.
type InvalidTransitionError struct {
	From models.NegotiationState
	To   models.NegotiationState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}
