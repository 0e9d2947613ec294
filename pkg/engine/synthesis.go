package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/towow-net/towow/pkg/events"
	"github.com/towow-net/towow/pkg/llm"
	"github.com/towow-net/towow/pkg/models"
	"github.com/towow-net/towow/pkg/skills"
)

// cannedNoPlan is the fallback plan when the Center exhausts its rounds
// without ever calling output_plan.
const cannedNoPlan = "No plan generated. Center exhausted rounds without calling output_plan."

// runSynthesis drives the Center loop. Rounds 1..max offer the full tool
// set; after that the Center gets exactly one more round restricted to
// terminal tools, and if it still produces no plan the session completes
// with the canned fallback. CenterRounds therefore reads up to
// MaxCenterRounds+1 on a completed session.
func (e *Engine) runSynthesis(ctx context.Context, session *models.NegotiationSession, params StartParams, logger *slog.Logger) error {
	if err := e.transition(session, models.StateSynthesizing); err != nil {
		return err
	}

	var history []skills.HistoryEntry

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// The restricted check precedes the increment: the round after the
		// last unrestricted one still runs, terminal tools only.
		restricted := session.CenterRounds >= session.MaxCenterRounds
		round := session.CenterRounds + 1
		session.CenterRounds = round

		if round > 1 {
			if err := e.transition(session, models.StateSynthesizing); err != nil {
				return err
			}
		}

		offers := session.CollectedOffers()
		if offers == nil {
			offers = []*models.Offer{}
		}

		var extra []llm.ToolDefinition
		if !restricted {
			extra = e.extraToolDefinitions()
		}

		logger.InfoContext(ctx, "center round", "round", round, "restricted", restricted)

		result, err := params.Center.Execute(ctx, skills.CenterInput{
			Demand:          session.Demand,
			Offers:          offers,
			Participants:    session.Participants,
			RoundNumber:     round,
			History:         history,
			ToolsRestricted: restricted,
			ExtraTools:      extra,
			LLM:             params.LLM,
		})
		if err != nil {
			return fmt.Errorf("center round %d for %s: %w", round, session.NegotiationID, err)
		}

		done, err := e.dispatchToolCalls(ctx, session, params, result, round, &history, logger)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if restricted {
			break
		}
	}

	logger.WarnContext(ctx, "center exhausted rounds without a plan",
		"rounds", session.CenterRounds)
	return e.completeWithPlan(ctx, session, cannedNoPlan, logger)
}

// dispatchToolCalls executes one round's tool calls in order. output_plan
// completes the session and stops dispatch; the non-terminal built-ins
// append their results to history for the next round. Only custom handler
// errors propagate.
func (e *Engine) dispatchToolCalls(ctx context.Context, session *models.NegotiationSession, params StartParams, result *skills.CenterResult, round int, history *[]skills.HistoryEntry, logger *slog.Logger) (bool, error) {
	for _, call := range result.ToolCalls {
		e.pushEvent(ctx, logger, events.CenterToolCall(
			session.NegotiationID, call.Name, call.Arguments, round))
		e.traceStep(session, "center_tool:"+call.Name, "")

		switch call.Name {
		case skills.ToolOutputPlan:
			planText, _ := call.Arguments["plan_text"].(string)
			if err := e.completeWithPlan(ctx, session, planText, logger); err != nil {
				return false, err
			}
			return true, nil

		case skills.ToolAskAgent:
			e.handleAskAgent(ctx, session, params, call.Arguments, history, logger)

		case skills.ToolStartDiscovery:
			e.handleStartDiscovery(ctx, session, params, call.Arguments, history, logger)

		case skills.ToolCreateSubDemand:
			e.handleCreateSubDemand(ctx, session, params, call.Arguments, history, logger)

		case skills.ToolCreateMachine:
			// Reserved for the execution layer. Recorded so the Center sees
			// its draft next round, never executed.
			logger.InfoContext(ctx, "machine draft recorded", "round", round)
			*history = append(*history, skills.HistoryEntry{
				"tool":   skills.ToolCreateMachine,
				"args":   call.Arguments,
				"result": "machine draft recorded, execution not yet available",
			})

		default:
			handler := e.lookupHandler(call.Name)
			if handler == nil {
				return false, fmt.Errorf("engine: no handler for tool %q: %w", call.Name, ErrConfig)
			}
			out, err := handler.Handle(ctx, session, call.Arguments, &ToolContext{
				Adapter:      params.Adapter,
				LLM:          params.LLM,
				DisplayNames: params.DisplayNames,
				Engine:       e,
			})
			if err != nil {
				return false, fmt.Errorf("tool %s for %s: %w", call.Name, session.NegotiationID, err)
			}
			*history = append(*history, skills.HistoryEntry{
				"tool":   call.Name,
				"args":   call.Arguments,
				"result": out,
			})
		}
	}
	return false, nil
}

// handleAskAgent forwards a Center question to one participant. Failures
// become error text in the history so the Center can route around them.
func (e *Engine) handleAskAgent(ctx context.Context, session *models.NegotiationSession, params StartParams, args map[string]any, history *[]skills.HistoryEntry, logger *slog.Logger) {
	agentID, _ := args["agent_id"].(string)
	question, _ := args["question"].(string)

	participant := session.FindParticipant(agentID)
	if participant == nil {
		logger.WarnContext(ctx, "ask_agent targeted unknown participant", "agent_id", agentID)
		return
	}

	response, err := params.Adapter.Chat(ctx, agentID,
		[]llm.Message{{Role: llm.RoleUser, Content: question}}, "")
	if err != nil {
		logger.WarnContext(ctx, "ask_agent chat failed", "agent_id", agentID, "error", err)
		response = fmt.Sprintf("[Error: %v]", err)
	}

	*history = append(*history, skills.HistoryEntry{
		"type":     "agent_reply",
		"agent_id": agentID,
		"question": question,
		"response": response,
	})
}

// handleStartDiscovery runs a discovery dialogue between two participants.
// All failures are logged and swallowed.
func (e *Engine) handleStartDiscovery(ctx context.Context, session *models.NegotiationSession, params StartParams, args map[string]any, history *[]skills.HistoryEntry, logger *slog.Logger) {
	if params.SubNegotiation == nil {
		logger.WarnContext(ctx, "start_discovery requested but no sub-negotiation skill configured")
		return
	}

	agentA, _ := args["agent_a"].(string)
	agentB, _ := args["agent_b"].(string)
	reason, _ := args["reason"].(string)

	a := e.discoveryAgent(ctx, session, params, agentA, logger)
	b := e.discoveryAgent(ctx, session, params, agentB, logger)

	report, err := params.SubNegotiation.Execute(ctx, skills.SubNegotiationInput{
		AgentA: a,
		AgentB: b,
		Reason: reason,
		LLM:    params.LLM,
	})
	if err != nil {
		logger.WarnContext(ctx, "discovery dialogue failed",
			"agent_a", agentA, "agent_b", agentB, "error", err)
		return
	}

	*history = append(*history, skills.HistoryEntry{
		"type":    "discovery",
		"agent_a": agentA,
		"agent_b": agentB,
		"result":  report,
	})
}

func (e *Engine) discoveryAgent(ctx context.Context, session *models.NegotiationSession, params StartParams, agentID string, logger *slog.Logger) skills.DiscoveryAgent {
	agent := skills.DiscoveryAgent{AgentID: agentID}

	if p := session.FindParticipant(agentID); p != nil {
		agent.DisplayName = p.DisplayName
		if p.Offer != nil {
			agent.Offer = p.Offer.Content
		}
	}

	profile, err := params.Adapter.GetProfile(ctx, agentID)
	if err != nil {
		logger.WarnContext(ctx, "discovery profile lookup failed", "agent_id", agentID, "error", err)
	} else {
		agent.Profile = profile
	}
	return agent
}

// handleCreateSubDemand spins a gap out into a child negotiation and runs
// it to completion inline. Recursion stops at depth 1; all failures are
// logged and swallowed so a dead-end gap never sinks the parent.
func (e *Engine) handleCreateSubDemand(ctx context.Context, session *models.NegotiationSession, params StartParams, args map[string]any, history *[]skills.HistoryEntry, logger *slog.Logger) {
	gapDescription, _ := args["gap_description"].(string)

	if session.Depth >= 1 {
		logger.WarnContext(ctx, "sub-demand refused at max recursion depth",
			"depth", session.Depth, "gap", gapDescription)
		*history = append(*history, skills.HistoryEntry{
			"type":            "sub_demand",
			"gap_description": gapDescription,
			"result":          "refused: maximum recursion depth reached",
		})
		return
	}
	if params.GapRecursion == nil {
		logger.WarnContext(ctx, "create_sub_demand requested but no gap recursion skill configured")
		return
	}

	gap, err := params.GapRecursion.Execute(ctx, skills.GapRecursionInput{
		GapDescription: gapDescription,
		DemandContext:  session.Demand.Text(),
		LLM:            params.LLM,
	})
	if err != nil {
		logger.WarnContext(ctx, "gap recursion failed", "gap", gapDescription, "error", err)
		return
	}

	child := models.NewSubSession(session, gap.SubDemandText)
	if params.RegisterSession != nil {
		params.RegisterSession(child)
	}
	session.SubSessionIDs = append(session.SubSessionIDs, child.NegotiationID)

	e.pushEvent(ctx, logger, events.SubNegotiationStarted(
		session.NegotiationID, child.NegotiationID, gapDescription))
	logger.InfoContext(ctx, "sub-negotiation started",
		"sub_negotiation_id", child.NegotiationID, "gap", gapDescription)

	// The child runs without formulation, confirmation or participants of
	// its own: the Center synthesizes directly over the sub-demand text.
	_, err = e.StartNegotiation(ctx, child, StartParams{
		Adapter:         params.Adapter,
		LLM:             params.LLM,
		Center:          params.Center,
		RegisterSession: params.RegisterSession,
	})

	entry := skills.HistoryEntry{
		"type":            "sub_demand",
		"sub_session_id":  child.NegotiationID,
		"gap_description": gapDescription,
	}
	if err != nil {
		logger.WarnContext(ctx, "sub-negotiation failed",
			"sub_negotiation_id", child.NegotiationID, "error", err)
		entry["result"] = fmt.Sprintf("[Error: %v]", err)
	} else {
		entry["result"] = child.PlanOutput
	}
	*history = append(*history, entry)
}

// completeWithPlan records the plan, emits plan.ready as the session's
// final event, and lands in COMPLETED.
func (e *Engine) completeWithPlan(ctx context.Context, session *models.NegotiationSession, planText string, logger *slog.Logger) error {
	session.PlanOutput = planText

	participating := make([]string, 0, len(session.Participants))
	for _, p := range session.Participants {
		participating = append(participating, p.AgentID)
	}

	e.pushEvent(ctx, logger, events.PlanReady(
		session.NegotiationID, planText, session.CenterRounds, participating))

	if err := e.transition(session, models.StateCompleted); err != nil {
		return err
	}
	e.traceStep(session, "plan", planText)
	e.markCompleted(session)
	return nil
}
