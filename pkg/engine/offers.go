package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/towow-net/towow/pkg/events"
	"github.com/towow-net/towow/pkg/models"
	"github.com/towow-net/towow/pkg/skills"
)

// runOffers collects offers from every active participant concurrently,
// then waits on the barrier: every participant must have replied or
// exited before synthesis starts. Individual failures or timeouts exit
// the participant and never fail the run.
func (e *Engine) runOffers(ctx context.Context, session *models.NegotiationSession, params StartParams, logger *slog.Logger) error {
	if err := e.transition(session, models.StateOffering); err != nil {
		return err
	}

	active := session.ActiveParticipants()

	if params.Offer == nil && len(active) > 0 {
		logger.WarnContext(ctx, "no offer skill configured, exiting all participants",
			"participants", len(active))
		for _, p := range active {
			p.State = models.AgentExited
		}
	} else if len(active) > 0 {
		demandText := session.Demand.Text()

		g, gctx := errgroup.WithContext(ctx)
		for _, p := range active {
			g.Go(func() error {
				e.collectOffer(gctx, session, params, p, demandText, logger)
				return nil
			})
		}
		// Workers never return errors; Wait only surfaces ctx cancellation
		// through gctx inside each worker.
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.transition(session, models.StateBarrierWaiting); err != nil {
		return err
	}

	offers := len(session.CollectedOffers())
	exited := 0
	for _, p := range session.Participants {
		if p.State == models.AgentExited {
			exited++
		}
	}

	logger.InfoContext(ctx, "offer barrier complete",
		"total", len(session.Participants), "offers", offers, "exited", exited)
	e.traceStep(session, "offer_barrier", fmt.Sprintf("offers=%d exited=%d", offers, exited))
	e.pushEvent(ctx, logger, events.BarrierComplete(
		session.NegotiationID, len(session.Participants), offers, exited))
	return nil
}

// collectOffer runs one participant's offer generation under the per-offer
// timeout. The participant ends up REPLIED with an offer or EXITED; no
// error escapes.
func (e *Engine) collectOffer(ctx context.Context, session *models.NegotiationSession, params StartParams, p *models.AgentParticipant, demandText string, logger *slog.Logger) {
	taskCtx, cancel := context.WithTimeout(ctx, e.offerTimeout)
	defer cancel()

	profile, err := params.Adapter.GetProfile(taskCtx, p.AgentID)
	if err != nil {
		logger.WarnContext(ctx, "participant exited: profile lookup failed",
			"agent_id", p.AgentID, "error", err)
		p.State = models.AgentExited
		return
	}

	result, err := params.Offer.Execute(taskCtx, skills.OfferInput{
		AgentID:    p.AgentID,
		DemandText: demandText,
		Profile:    profile,
		Adapter:    params.Adapter,
	})
	if err != nil {
		logger.WarnContext(ctx, "participant exited: offer generation failed",
			"agent_id", p.AgentID, "error", err)
		p.State = models.AgentExited
		return
	}

	p.Offer = &models.Offer{
		AgentID:      p.AgentID,
		Content:      result.Content,
		Capabilities: result.Capabilities,
		Confidence:   result.Confidence,
		CreatedAt:    time.Now().UTC(),
	}
	p.State = models.AgentReplied

	e.pushEvent(ctx, logger, events.OfferReceived(
		session.NegotiationID, p.AgentID, p.DisplayName, result.Content, result.Capabilities))
}
