package env

import (
	"math/rand"

	"profileagent/internal/metrics"
)

// #region config

// EffectConfig holds the tunables of the action effect model and episode shape.
type EffectConfig struct {
	Limits metrics.Limits

	// ActionCost is subtracted from every step's reward.
	ActionCost float64

	// RepetitionPenalty is subtracted when the last RepetitionWindow chosen
	// actions (including the current one) are identical.
	RepetitionPenalty float64
	RepetitionWindow  int

	// HistoryLimit caps the FIFO action history.
	HistoryLimit int

	// EpisodeLength is the step count at which an episode truncates.
	EpisodeLength int
}

// DefaultEffectConfig returns the standard effect model tuning.
func DefaultEffectConfig() EffectConfig {
	return EffectConfig{
		Limits:            metrics.DefaultLimits(),
		ActionCost:        0.05,
		RepetitionPenalty: 0.1,
		RepetitionWindow:  3,
		HistoryLimit:      10,
		EpisodeLength:     100,
	}
}

// #endregion config

// #region apply-action

// ApplyAction applies one action's effect to the state and returns the next
// state plus the step reward (action-specific reward minus the action cost).
// Organic drift runs after the action effect. The repetition penalty is the
// environment's concern, not this function's.
//
// Draws are intentionally stochastic; callers that need reproducibility seed
// the supplied rng.
func ApplyAction(rng *rand.Rand, s metrics.State, action Action, cfg EffectConfig) (metrics.State, float64) {
	var reward float64

	switch action {
	case ActionPost:
		s.Posts++
		reward = 0.1
		if s.Engagement > 0.05 {
			reward += rng.Float64() * 0.2
		}
	case ActionFollow:
		reward = 0.05
		if rng.Float64() < 0.2 {
			reward += rng.Float64() * 0.15
		}
		s.Followers += float64(rng.Intn(2))
	case ActionReward:
		// Reward condition reads engagement before the boost is applied.
		if s.Engagement > 0.03 {
			reward = 0.1 + rng.Float64()*0.2
		} else {
			reward = -0.05
		}
		s.Engagement *= 1.0 + rng.Float64()*0.05
	}

	reward -= cfg.ActionCost

	// Organic drift: small follower churn and engagement fluctuation.
	s.Followers += float64(rng.Intn(4) - 1)
	if s.Followers < 0 {
		s.Followers = 0
	}
	s.Engagement *= 0.98 + rng.Float64()*0.04
	s.Engagement = metrics.Clamp(s.Engagement, 0, cfg.Limits.MaxEngagement)

	return s, reward
}

// #endregion apply-action

// #region repetition

// repetitionTriggered reports whether the trailing window of the history is a
// single repeated action. The current action must already be appended.
func repetitionTriggered(history []Action, window int) bool {
	if window <= 0 || len(history) < window {
		return false
	}
	tail := history[len(history)-window:]
	for _, a := range tail[1:] {
		if a != tail[0] {
			return false
		}
	}
	return true
}

// #endregion repetition
