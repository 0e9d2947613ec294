package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/towow-net/towow/pkg/events"
	"github.com/towow-net/towow/pkg/models"
	"github.com/towow-net/towow/pkg/skills"
)

// runFormulation enriches the raw intent through the initiating user's own
// agent. Any failure degrades to the raw intent; the stage always emits
// formulation.ready and lands in FORMULATED. With AwaitConfirmation set,
// the stage then blocks until the user confirms or the timeout elapses.
func (e *Engine) runFormulation(ctx context.Context, session *models.NegotiationSession, params StartParams, logger *slog.Logger) error {
	if err := e.transition(session, models.StateFormulating); err != nil {
		return err
	}

	formulated := session.Demand.RawIntent
	enrichments := map[string]any{}

	if params.Formulation == nil || session.Demand.UserID == "" {
		logger.InfoContext(ctx, "formulation skipped, using raw intent",
			"has_skill", params.Formulation != nil, "user_id", session.Demand.UserID)
	} else {
		profile, err := params.Adapter.GetProfile(ctx, session.Demand.UserID)
		if err != nil {
			logger.WarnContext(ctx, "profile lookup failed, formulating without profile",
				"user_id", session.Demand.UserID, "error", err)
			profile = nil
		}

		result, err := params.Formulation.Execute(ctx, skills.FormulationInput{
			RawIntent: session.Demand.RawIntent,
			AgentID:   session.Demand.UserID,
			Profile:   profile,
			Adapter:   params.Adapter,
		})
		if err != nil {
			logger.WarnContext(ctx, "formulation failed, degrading to raw intent", "error", err)
		} else {
			formulated = result.FormulatedText
			enrichments = result.Enrichments
		}
	}

	session.Demand.FormulatedText = formulated
	if session.Demand.Metadata == nil {
		session.Demand.Metadata = map[string]any{}
	}
	session.Demand.Metadata["enrichments"] = enrichments
	e.traceStep(session, "formulation", formulated)

	// The waiter must exist before observers can see formulation.ready,
	// otherwise a fast confirmation could race the registration.
	var waiter *confirmation
	if params.AwaitConfirmation {
		waiter = e.registerConfirmation(session.NegotiationID)
	}

	e.pushEvent(ctx, logger, events.FormulationReady(
		session.NegotiationID, session.Demand.RawIntent, formulated, enrichments))

	if err := e.transition(session, models.StateFormulated); err != nil {
		return err
	}

	if waiter != nil {
		if err := e.waitConfirmation(ctx, session, waiter, logger); err != nil {
			return err
		}
	}
	return nil
}

// runEncoding embeds the demand text and activates resonant agents as
// participants. Encoding failures are fatal; an empty candidate pool just
// means the session proceeds with zero participants.
func (e *Engine) runEncoding(ctx context.Context, session *models.NegotiationSession, params StartParams, logger *slog.Logger) error {
	if err := e.transition(session, models.StateEncoding); err != nil {
		return err
	}

	demandVec, err := e.encoder.Encode(ctx, session.Demand.Text())
	if err != nil {
		return fmt.Errorf("encode demand for %s: %w", session.NegotiationID, err)
	}
	e.traceStep(session, "encoding", fmt.Sprintf("dimension=%d", len(demandVec)))

	if len(params.AgentVectors) == 0 || params.KStar <= 0 {
		logger.InfoContext(ctx, "no resonance candidates, proceeding with zero participants",
			"candidates", len(params.AgentVectors), "k_star", params.KStar)
		return nil
	}

	matches, err := e.detector.Detect(ctx, demandVec, params.AgentVectors, params.KStar)
	if err != nil {
		return fmt.Errorf("resonance detection for %s: %w", session.NegotiationID, err)
	}

	activated := make([]events.ActivatedAgent, 0, len(matches))
	for _, m := range matches {
		displayName := params.DisplayNames[m.AgentID]
		if displayName == "" {
			displayName = m.AgentID
		}
		session.Participants = append(session.Participants, &models.AgentParticipant{
			AgentID:        m.AgentID,
			DisplayName:    displayName,
			ResonanceScore: m.Score,
			State:          models.AgentActive,
		})
		activated = append(activated, events.ActivatedAgent{
			AgentID:        m.AgentID,
			DisplayName:    displayName,
			ResonanceScore: m.Score,
		})
	}

	logger.InfoContext(ctx, "resonance activated agents", "count", len(activated))
	e.traceStep(session, "resonance", fmt.Sprintf("activated=%d", len(activated)))
	e.pushEvent(ctx, logger, events.ResonanceActivated(session.NegotiationID, activated))
	return nil
}
