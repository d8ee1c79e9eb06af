package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"profileagent/internal/env"
	"profileagent/internal/store"
	"profileagent/internal/train"
)

// #region main

func main() {
	dbPath := flag.String("db", "agent.db", "path to the agent database")
	artifact := flag.String("artifact", "policy/social_policy.json", "where to write the trained policy")
	steps := flag.Int("steps", 10000, "total environment steps to train for")
	seed := flag.Int64("seed", time.Now().UnixNano(), "training seed")
	flag.Parse()

	if *steps <= 0 {
		fmt.Fprintln(os.Stderr, "usage: train --db agent.db --artifact policy/social_policy.json --steps N")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	tr := train.New(st, train.Config{
		Steps:        *steps,
		ArtifactPath: *artifact,
		Effect:       env.DefaultEffectConfig(),
		Seed:         *seed,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("training for %d steps (seed %d)...\n", *steps, *seed)
	started := time.Now()

	_, run, err := tr.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "training failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("run %s complete in %s\n", run.ID, time.Since(started).Round(time.Millisecond))
	fmt.Printf("  episodes:    %d\n", run.Episodes)
	fmt.Printf("  mean reward: %.4f\n", run.MeanReward)
	fmt.Printf("  artifact:    %s\n", run.ArtifactPath)

	printShares(st)
}

// #endregion main

// #region summary

func printShares(st *store.Store) {
	stats, err := st.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stats: %v\n", err)
		return
	}
	names := []string{"post", "follow", "reward"}
	fmt.Println("  action share:")
	for i, name := range names {
		fmt.Printf("    %-8s %.1f%%\n", name, stats.ActionShare[i]*100)
	}
}

// #endregion summary
