package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/towow-net/towow/pkg/models"
)

// confirmation is one pending formulation rendezvous. The channel is
// buffered so ConfirmFormulation never blocks on a waiter that already
// gave up.
type confirmation struct {
	ch chan string
}

func (e *Engine) registerConfirmation(negotiationID string) *confirmation {
	c := &confirmation{ch: make(chan string, 1)}
	e.confirmMu.Lock()
	e.confirmations[negotiationID] = c
	e.confirmMu.Unlock()
	return c
}

func (e *Engine) removeConfirmation(negotiationID string) *confirmation {
	e.confirmMu.Lock()
	defer e.confirmMu.Unlock()
	c := e.confirmations[negotiationID]
	delete(e.confirmations, negotiationID)
	return c
}

// IsAwaitingConfirmation reports whether the session is blocked on a
// formulation confirmation.
func (e *Engine) IsAwaitingConfirmation(negotiationID string) bool {
	e.confirmMu.Lock()
	defer e.confirmMu.Unlock()
	_, ok := e.confirmations[negotiationID]
	return ok
}

// ConfirmFormulation releases a session waiting on its formulation. A
// non-empty finalText replaces the formulated text; empty keeps it.
// Returns false when no session with that ID is waiting.
func (e *Engine) ConfirmFormulation(negotiationID, finalText string) bool {
	c := e.removeConfirmation(negotiationID)
	if c == nil {
		return false
	}
	c.ch <- finalText
	return true
}

// waitConfirmation blocks the driver until the user confirms, the
// confirmation timeout elapses (proceed with the formulated text as is),
// or the context is canceled.
func (e *Engine) waitConfirmation(ctx context.Context, session *models.NegotiationSession, c *confirmation, logger *slog.Logger) error {
	timer := time.NewTimer(e.confirmationTimeout)
	defer timer.Stop()

	select {
	case finalText := <-c.ch:
		if finalText != "" {
			session.Demand.FormulatedText = finalText
			logger.InfoContext(ctx, "formulation confirmed with edits")
		} else {
			logger.InfoContext(ctx, "formulation confirmed")
		}
		return nil

	case <-timer.C:
		e.removeConfirmation(session.NegotiationID)
		logger.WarnContext(ctx, "confirmation timed out, proceeding",
			"timeout", e.confirmationTimeout)
		return nil

	case <-ctx.Done():
		e.removeConfirmation(session.NegotiationID)
		return ctx.Err()
	}
}
