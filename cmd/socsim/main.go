// Command socsim runs an agent-based social feed simulation: build the
// network, seed the feed, wire the ranking strategy and agents, then
// drive the step loop and persist the run artifacts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/driftlab/socsim/internal/agent"
	"github.com/driftlab/socsim/internal/config"
	"github.com/driftlab/socsim/internal/llm"
	"github.com/driftlab/socsim/internal/logging"
	"github.com/driftlab/socsim/internal/network"
	"github.com/driftlab/socsim/internal/rank"
	"github.com/driftlab/socsim/internal/sim"
	"github.com/driftlab/socsim/internal/storage"
	"github.com/driftlab/socsim/pkg/types"
)

func main() {
	// .env carries API credentials in local setups; absence is fine.
	_ = godotenv.Load()

	cfg := config.Load()

	// Flags override the environment; their defaults come from it.
	flag.Int64Var(&cfg.Run.Seed, "seed", cfg.Run.Seed, "random seed")
	flag.IntVar(&cfg.Run.Steps, "steps", cfg.Run.Steps, "number of simulation steps")
	flag.IntVar(&cfg.Run.Agents, "agents", cfg.Run.Agents, "number of agents")
	flag.IntVar(&cfg.Run.TopK, "top-k", cfg.Run.TopK, "candidate cap per user (0 = agent read amount)")
	flag.StringVar(&cfg.Network.Topology, "topology", cfg.Network.Topology, "network topology")
	flag.StringVar(&cfg.Ranking.Strategy, "strategy", cfg.Ranking.Strategy, "ranking strategy")
	flag.StringVar(&cfg.Run.OutputDir, "output", cfg.Run.OutputDir, "output directory for run artifacts")
	postsPerDay := flag.Float64("posts-per-day", 12.0, "empirical posting volume used for parameter estimation")
	flag.Parse()

	logger := logging.New()
	log := logger.WithField("component", "main")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	runDir := filepath.Join(cfg.Run.OutputDir, fmt.Sprintf("%d-%s-seed%d-%s-%s",
		cfg.Run.Agents, cfg.Network.Topology, cfg.Run.Seed, cfg.Ranking.Strategy,
		time.Now().Format("20060102_150405")))
	store, err := storage.NewRunStore(runDir, logger)
	if err != nil {
		log.WithError(err).Fatal("failed to create run directory")
	}

	engine, err := setup(cfg, *postsPerDay, store, logger)
	if err != nil {
		log.WithError(err).Fatal("simulation setup failed")
	}

	if err := store.SaveConfig(cfg); err != nil {
		log.WithError(err).Fatal("failed to persist run configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"run_dir": store.Dir(), "steps": cfg.Run.Steps, "agents": cfg.Run.Agents,
		"topology": cfg.Network.Topology, "strategy": cfg.Ranking.Strategy,
	}).Info("starting simulation")

	if err := engine.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("simulation interrupted")
			return
		}
		log.WithError(err).Error("simulation run failed")
		os.Exit(1)
	}

	log.WithField("feed", engine.Feed().Len()).Info("simulation complete")
}

// setup builds every collaborator of the engine: users, agents,
// network, seed feed, strategy, ranker and, when endpoints are
// configured, the inference client.
func setup(cfg *config.Config, postsPerDay float64, store *storage.RunStore, logger *logrus.Logger) (*sim.Engine, error) {
	log := logger.WithField("component", "setup")

	users := make([]string, cfg.Run.Agents)
	for i := range users {
		users[i] = types.NewUser().ID
	}

	net, err := network.Build(network.Topology(cfg.Network.Topology), users, network.TopologyParams{
		Degree:      cfg.Network.Degree,
		Probability: cfg.Network.Probability,
		Attachment:  cfg.Network.Attachment,
	}, cfg.Run.Seed)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}
	if err := store.SaveNetwork(net); err != nil {
		return nil, fmt.Errorf("persist network: %w", err)
	}

	client, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}

	individuals, err := buildAgents(cfg, users, postsPerDay, client, log)
	if err != nil {
		return nil, err
	}

	feed := seedFeed(users)

	ranker, err := buildRanker(cfg, logger)
	if err != nil {
		return nil, err
	}

	extras := []sim.Option{sim.WithStore(store), sim.WithLogger(logger)}
	if client != nil && cfg.LLM.EmbedURL != "" {
		extras = append(extras, sim.WithEmbedder(client))
	}

	return sim.New(sim.Options{
		Steps:             cfg.Run.Steps,
		TopK:              cfg.Run.TopK,
		SessionActivation: cfg.Run.SessionActivation,
		Window:            cfg.Run.Window,
		SnapshotEvery:     cfg.Run.SnapshotEvery,
		Workers:           cfg.Run.Workers,
		Seed:              cfg.Run.Seed,
	}, net, feed, ranker, individuals, extras...)
}

// buildClient returns nil when no endpoint is configured; the run then
// falls back to inert agents.
func buildClient(cfg *config.Config) (*llm.Client, error) {
	if cfg.LLM.GenerateURL == "" && cfg.LLM.EmbedURL == "" {
		return nil, nil
	}
	client, err := llm.NewClient(llm.Config{
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		GenerateURL:       cfg.LLM.GenerateURL,
		EmbedURL:          cfg.LLM.EmbedURL,
		MaxRetries:        cfg.LLM.MaxRetries,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("build inference client: %w", err)
	}
	return client, nil
}

func buildAgents(cfg *config.Config, users []string, postsPerDay float64, client *llm.Client, log *logrus.Entry) (map[string]agent.Agent, error) {
	individuals := make(map[string]agent.Agent, len(users))

	if client == nil || cfg.LLM.GenerateURL == "" {
		log.Warn("no generation endpoint configured, running inert agents")
		for _, userID := range users {
			individuals[userID] = agent.NewStatic(agent.Params{ActivationProbability: 1.0})
		}
		return individuals, nil
	}

	for i, userID := range users {
		params := agent.EstimateParams(postsPerDay, cfg.Run.Seed+int64(i))
		a, err := agent.NewLLMAgent(client, defaultInstructions(i), params)
		if err != nil {
			return nil, fmt.Errorf("build agent for %s: %w", userID, err)
		}
		individuals[userID] = a
	}
	return individuals, nil
}

// seedFeed gives every user one step-0 post so ranking has candidates
// from the first step.
func seedFeed(users []string) *types.Feed {
	feed := types.NewFeed()
	for _, userID := range users {
		// Append on a fresh feed at a single step cannot fail.
		_ = feed.Append(types.NewPost(userID, fmt.Sprintf("Hello, I just joined as %s.", userID), 0))
	}
	return feed
}

func buildRanker(cfg *config.Config, logger *logrus.Logger) (*rank.Ranker, error) {
	noise, err := rank.NewNoise(cfg.Ranking.NoiseLow, cfg.Ranking.NoiseHigh,
		rand.New(rand.NewSource(cfg.Run.Seed)))
	if err != nil {
		return nil, fmt.Errorf("build noise: %w", err)
	}

	var strategy rank.Strategy
	switch cfg.Ranking.Strategy {
	case "random":
		strategy = rank.NewRandomStrategy(rand.New(rand.NewSource(cfg.Run.Seed + 1)))
	case "popularity":
		popularity := rank.NewPopularityStrategy()
		popularity.Decay = rank.Decay{Minimum: cfg.Ranking.DecayMinimum, Window: cfg.Ranking.DecayWindow}
		strategy = popularity
	case "similarity":
		strategy = rank.NewSimilarityStrategy(cfg.Ranking.SimilarityRecent)
	case "social_proof":
		strategy = &rank.SocialProofStrategy{}
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Ranking.Strategy)
	}

	return rank.New(strategy, rank.Options{
		Weights: rank.Weights{
			Network:    cfg.Ranking.WeightNetwork,
			Individual: cfg.Ranking.WeightIndividual,
		},
		Noise:       noise,
		Persistence: cfg.Ranking.Persistence,
	}, logger), nil
}

// defaultInstructions is the stock prompt set; runs with curated
// personas replace these via their own instruction files.
func defaultInstructions(index int) agent.Instructions {
	return agent.Instructions{
		Persona: fmt.Sprintf("You are user number %d on a microblogging platform. "+
			"You have your own interests and opinions and write short, informal posts.", index),
		SelectActions: "You just saw the post below. Choose what you do with it from:",
		Comment:       "Write a short reply to the post below.",
		Post:          "Write a new short post about whatever is on your mind.",
	}
}
