package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"profileagent/internal/env"
	"profileagent/internal/policy"
	"profileagent/internal/rollout"
	"profileagent/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the agent database")
	artifact := flag.String("artifact", "", "path to a policy artifact to inspect")
	episodes := flag.Int("eval", 0, "evaluate the artifact over N simulated episodes")
	last := flag.Int("last", 10, "show N most recent training runs")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" && *artifact == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect [--db agent.db] [--artifact policy.json] [--eval N] [--last N] [--json]")
		os.Exit(2)
	}

	if *artifact != "" {
		if err := runArtifactMode(*artifact, *episodes, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	if *dbPath != "" {
		if err := runHistoryMode(*dbPath, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region artifact-mode

type artifactOutput struct {
	Path         string           `json:"path"`
	Bins         int              `json:"bins"`
	TrainedSteps int              `json:"trained_steps"`
	Evaluation   *rollout.Summary `json:"evaluation,omitempty"`
}

func runArtifactMode(path string, episodes int, jsonOut bool) error {
	p, err := policy.Load(path, 1)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}

	out := artifactOutput{
		Path:         path,
		Bins:         p.Bins(),
		TrainedSteps: p.TrainedSteps(),
	}

	if episodes > 0 {
		newEnv := func(seed int64) *env.Sim {
			return env.NewSim(env.DefaultEffectConfig(), seed)
		}
		results, err := rollout.Rollout(context.Background(), newEnv, p, episodes, 1)
		if err != nil {
			return fmt.Errorf("rollout: %w", err)
		}
		summary := rollout.Summarize(results)
		out.Evaluation = &summary
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Artifact:      %s\n", out.Path)
	fmt.Printf("Bins:          %d\n", out.Bins)
	fmt.Printf("Trained steps: %d\n", out.TrainedSteps)
	if out.Evaluation != nil {
		e := out.Evaluation
		fmt.Printf("\nGreedy evaluation over %d episodes:\n", e.Episodes)
		fmt.Printf("  mean reward: %.4f (min %.4f, max %.4f)\n", e.MeanReward, e.MinReward, e.MaxReward)
		fmt.Printf("  action share: post %.1f%% | follow %.1f%% | reward %.1f%%\n",
			e.ActionShare[0]*100, e.ActionShare[1]*100, e.ActionShare[2]*100)
	}
	return nil
}

// #endregion artifact-mode

// #region history-mode

func runHistoryMode(dbPath string, last int, jsonOut bool) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no training runs found")
		return nil
	}

	if jsonOut {
		return printJSON(runs)
	}

	active, _ := st.ActiveRun()

	fmt.Printf("%-10s  %8s  %8s  %11s  %-9s  %s\n",
		"Run", "Steps", "Episodes", "Mean Reward", "Status", "Created")
	for _, r := range runs {
		marker := " "
		if r.ID == active.ID {
			marker = "*"
		}
		fmt.Printf("%-10s  %8d  %8d  %11.4f  %-9s  %s %s\n",
			shortID(r.ID), r.Steps, r.Episodes, r.MeanReward, r.Status,
			r.CreatedAt.Format("2006-01-02T15:04:05Z"), marker)
	}

	stats, err := st.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("\nDecay-weighted aggregate: %d episodes, mean reward %.4f\n",
		stats.Episodes, stats.MeanReward)
	return nil
}

// #endregion history-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
