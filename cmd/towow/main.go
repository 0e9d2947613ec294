// towow runs one negotiation from the command line: it formulates the
// demand, activates resonant agents, collects their offers and prints the
// Center's plan.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	anyllm "github.com/mozilla-ai/any-llm-go"

	"github.com/towow-net/towow/pkg/adapter"
	"github.com/towow-net/towow/pkg/config"
	"github.com/towow-net/towow/pkg/engine"
	"github.com/towow-net/towow/pkg/events"
	"github.com/towow-net/towow/pkg/llm"
	"github.com/towow-net/towow/pkg/models"
	"github.com/towow-net/towow/pkg/registry"
	"github.com/towow-net/towow/pkg/resonance"
	"github.com/towow-net/towow/pkg/vectorstore"
	"github.com/towow-net/towow/pkg/version"
)

func main() {
	configPath := flag.String("config", "towow.yaml", "Path to configuration file")
	agentsPath := flag.String("agents", "", "Path to a JSON file of agent profiles (offline mode)")
	userID := flag.String("user", "", "Agent ID of the initiating user")
	trace := flag.Bool("trace", false, "Print the session trace after the run")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, continuing with existing environment", "error", err)
	}

	intent := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if intent == "" {
		fmt.Fprintln(os.Stderr, "usage: towow [flags] <demand text>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting "+version.AppName, "version", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, intent, *agentsPath, *userID, *trace); err != nil {
		logger.Error("negotiation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, intent, agentsPath, userID string, printTrace bool) error {
	var llmOpts []anyllm.Option
	if key := cfg.LLM.APIKey(); key != "" {
		llmOpts = append(llmOpts, anyllm.WithAPIKey(key))
	}
	if cfg.LLM.BaseURL != "" {
		llmOpts = append(llmOpts, anyllm.WithBaseURL(cfg.LLM.BaseURL))
	}
	client, err := llm.NewAnyLLMClient(cfg.LLM.Provider, cfg.LLM.Model, llmOpts...)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	encoder, err := buildEncoder(cfg, logger)
	if err != nil {
		return err
	}

	recorder := events.NewRecorder()
	pusher := events.NewMultiPusher(events.NewLogPusher(logger), recorder)

	reg := registry.New()

	builder := engine.NewBuilder().
		WithEncoder(encoder).
		WithPusher(pusher).
		WithLLM(client).
		WithRegistry(reg).
		WithAwaitConfirmation(cfg.Negotiation.AwaitConfirmation).
		WithOfferTimeout(cfg.Negotiation.OfferTimeout.Std()).
		WithConfirmationTimeout(cfg.Negotiation.ConfirmationTimeout.Std()).
		WithLogger(logger)

	if err := wireAgents(ctx, cfg, logger, client, builder, agentsPath, encoder); err != nil {
		return err
	}

	eng, params, err := builder.Build()
	if err != nil {
		return err
	}

	session := models.NewSession(&models.DemandSnapshot{
		RawIntent: intent,
		UserID:    userID,
	})
	session.MaxCenterRounds = cfg.Negotiation.MaxCenterRounds
	session.Trace = models.NewTraceChain(session.NegotiationID)
	reg.Register(session)

	if _, err := eng.StartNegotiation(ctx, session, params); err != nil {
		return err
	}

	fmt.Println(session.PlanOutput)

	if printTrace {
		out, err := json.MarshalIndent(session.Trace, "", "  ")
		if err == nil {
			fmt.Fprintln(os.Stderr, string(out))
		}
	}

	logger.Info("run finished",
		"negotiation_id", session.NegotiationID,
		"events", len(recorder.Events()),
		"sub_sessions", len(session.SubSessionIDs),
	)
	return nil
}

// buildEncoder picks the OpenAI embedding encoder when a key is available
// and the deterministic hash encoder otherwise.
func buildEncoder(cfg *config.Config, logger *slog.Logger) (resonance.Encoder, error) {
	if key := cfg.Embedding.APIKey(); key != "" {
		return resonance.NewOpenAIEncoder(key, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	}
	logger.Warn("no embedding api key, using hash encoder")
	return resonance.NewHashEncoder(cfg.Embedding.Dimension), nil
}

// wireAgents loads the agent pool: from Postgres when DATABASE_URL is set,
// from a profiles JSON file otherwise.
func wireAgents(ctx context.Context, cfg *config.Config, logger *slog.Logger, client llm.Client, builder *engine.Builder, agentsPath string, encoder resonance.Encoder) error {
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		store := vectorstore.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}

		vectors, err := store.LoadVectors(ctx)
		if err != nil {
			return err
		}
		names, err := store.DisplayNames(ctx)
		if err != nil {
			return err
		}
		profiles, err := store.Profiles(ctx)
		if err != nil {
			return err
		}

		logger.Info("agent pool loaded from database", "agents", len(vectors))
		builder.
			WithAdapter(adapter.NewSimulatedAdapter(client, profiles, logger)).
			WithDetector(store).
			WithAgentPool(vectors, cfg.Negotiation.KStar).
			WithDisplayNames(names)
		return nil
	}

	profiles, names, err := loadProfiles(agentsPath)
	if err != nil {
		return err
	}

	vectors := make([]resonance.AgentVector, 0, len(profiles))
	for agentID, profile := range profiles {
		text, err := json.Marshal(profile)
		if err != nil {
			continue
		}
		vec, err := encoder.Encode(ctx, string(text))
		if err != nil {
			return fmt.Errorf("encode profile for %s: %w", agentID, err)
		}
		vectors = append(vectors, resonance.AgentVector{AgentID: agentID, Vector: vec})
	}

	logger.Info("agent pool loaded from file", "agents", len(vectors), "path", agentsPath)
	builder.
		WithAdapter(adapter.NewSimulatedAdapter(client, profiles, logger)).
		WithAgentPool(vectors, cfg.Negotiation.KStar).
		WithDisplayNames(names)
	return nil
}

// loadProfiles reads the offline agent pool. The file maps agent IDs to
// profile objects; an optional "display_name" field names the agent.
func loadProfiles(path string) (map[string]map[string]any, map[string]string, error) {
	if path == "" {
		return nil, nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read agents file: %w", err)
	}

	var profiles map[string]map[string]any
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, nil, fmt.Errorf("parse agents file: %w", err)
	}

	names := make(map[string]string, len(profiles))
	for agentID, profile := range profiles {
		if name, ok := profile["display_name"].(string); ok {
			names[agentID] = name
		}
	}
	return profiles, names, nil
}
