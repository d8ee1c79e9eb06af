package rollout

import (
	"context"
	"fmt"

	"profileagent/internal/env"
	"profileagent/internal/policy"
)

// #region types

// EpisodeResult captures the outcome of one greedy evaluation episode.
type EpisodeResult struct {
	Episode     int
	Steps       int
	TotalReward float64
	Actions     [env.NumActions]int
}

// Summary provides aggregate stats from an evaluation run.
type Summary struct {
	Episodes    int                     `json:"episodes"`
	MeanReward  float64                 `json:"mean_reward"`
	MinReward   float64                 `json:"min_reward"`
	MaxReward   float64                 `json:"max_reward"`
	ActionShare [env.NumActions]float64 `json:"action_share"`
}

// #endregion types

// #region rollout

// Rollout drives the policy through deterministic greedy episodes against
// fresh simulated environments, one per episode. Operates entirely
// in-memory; used to evaluate an artifact without touching live state.
func Rollout(ctx context.Context, newEnv func(seed int64) *env.Sim, p policy.Policy, episodes int, baseSeed int64) ([]EpisodeResult, error) {
	results := make([]EpisodeResult, 0, episodes)

	for ep := 0; ep < episodes; ep++ {
		e := newEnv(baseSeed + int64(ep))
		obs, _, err := e.Reset(ctx)
		if err != nil {
			return nil, fmt.Errorf("episode %d reset: %w", ep, err)
		}

		res := EpisodeResult{Episode: ep}
		for {
			action, _ := p.Predict(obs, true)
			step, err := e.Step(ctx, action)
			if err != nil {
				return nil, fmt.Errorf("episode %d step %d: %w", ep, res.Steps, err)
			}
			res.Steps++
			res.TotalReward += step.Reward
			res.Actions[action]++
			obs = step.Obs

			if step.Truncated || step.Terminated {
				break
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// Summarize computes aggregate stats from episode results.
func Summarize(results []EpisodeResult) Summary {
	s := Summary{Episodes: len(results)}
	if len(results) == 0 {
		return s
	}

	var totalSteps int
	var actionTotals [env.NumActions]int
	s.MinReward = results[0].TotalReward
	s.MaxReward = results[0].TotalReward

	for _, r := range results {
		s.MeanReward += r.TotalReward
		if r.TotalReward < s.MinReward {
			s.MinReward = r.TotalReward
		}
		if r.TotalReward > s.MaxReward {
			s.MaxReward = r.TotalReward
		}
		totalSteps += r.Steps
		for i, c := range r.Actions {
			actionTotals[i] += c
		}
	}
	s.MeanReward /= float64(len(results))
	if totalSteps > 0 {
		for i, c := range actionTotals {
			s.ActionShare[i] = float64(c) / float64(totalSteps)
		}
	}
	return s
}

// #endregion rollout
