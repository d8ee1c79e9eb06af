package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"profileagent/internal/chain"
	"profileagent/internal/config"
	"profileagent/internal/env"
	"profileagent/internal/metrics"
	"profileagent/internal/policy"
	"profileagent/internal/service"
	"profileagent/internal/store"
	"profileagent/internal/train"
)

// #region main

func main() {
	cfgPath := flag.String("config", envOr("AGENT_CONFIG", ""), "path to config yaml")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	seed := time.Now().UnixNano()
	holder := policy.NewHolder(seed)
	loaded, err := holder.LoadFrom(cfg.ArtifactPath, seed)
	switch {
	case err != nil:
		logger.Warn("policy artifact unreadable, serving fallback",
			"path", cfg.ArtifactPath, "error", err)
	case loaded:
		logger.Info("policy artifact loaded", "path", cfg.ArtifactPath)
	default:
		logger.Warn("no policy artifact, serving fallback", "path", cfg.ArtifactPath)
	}

	relay := chain.NewRelayClient(chain.RelayConfig{
		BaseURL:            cfg.RelayURL,
		AgentKey:           cfg.AgentKey,
		ChainID:            cfg.ChainID,
		RewardTokenAddress: cfg.RewardTokenAddress,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := relay.Ping(pingCtx); err != nil {
		logger.Warn("relay unreachable at startup, executions will fail until it recovers",
			"url", cfg.RelayURL, "error", err)
	}
	cancel()

	limits := limitsFrom(cfg)
	trainer := train.New(st, train.Config{
		Steps:        cfg.TrainSteps,
		ArtifactPath: cfg.ArtifactPath,
		Effect:       effectFrom(cfg, limits),
		Seed:         seed,
	})

	deps := service.Deps{
		Holder:   holder,
		Limits:   limits,
		Executor: relay,
		Metrics:  relay,
		Store:    st,
		Trainer:  trainer,
		Logger:   logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Background training joins the errgroup, so shutdown cancels the run
	// through gctx and g.Wait holds the store open until it has finished.
	deps.StartTraining = func(fn func(context.Context)) {
		g.Go(func() error {
			fn(gctx)
			return nil
		})
	}

	router := service.NewRouter(deps)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.TrainOnBoot && !loaded {
		g.Go(func() error {
			logger.Info("no artifact found, training on boot", "steps", cfg.TrainSteps)
			p, run, err := trainer.Run(gctx)
			if errors.Is(err, context.Canceled) {
				logger.Info("boot training canceled", "run_id", run.ID)
				return nil
			}
			if err != nil {
				logger.Error("boot training failed", "error", err)
				return nil // keep serving on fallback
			}
			holder.Swap(p)
			logger.Info("boot training complete",
				"run_id", run.ID, "episodes", run.Episodes, "mean_reward", run.MeanReward)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("agent listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("agent exited", "error", err)
		os.Exit(1)
	}
	logger.Info("agent stopped")
}

// #endregion main

// #region helpers

func limitsFrom(cfg config.Config) metrics.Limits {
	return metrics.Limits{
		MaxFollowers:  cfg.MaxFollowers,
		MaxPosts:      cfg.MaxPosts,
		MaxEngagement: cfg.MaxEngagement,
	}
}

func effectFrom(cfg config.Config, limits metrics.Limits) env.EffectConfig {
	ec := env.DefaultEffectConfig()
	ec.Limits = limits
	ec.EpisodeLength = cfg.EpisodeLength
	ec.HistoryLimit = cfg.HistoryLimit
	return ec
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
