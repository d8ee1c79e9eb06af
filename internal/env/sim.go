package env

import (
	"context"
	"math/rand"

	"profileagent/internal/metrics"
)

// #region sim-struct

// Sim is the fully simulated environment variant. It evolves its metrics
// purely through the effect model, performs no I/O, and never suspends,
// which is what makes it trainable in a tight loop.
type Sim struct {
	cfg     EffectConfig
	rng     *rand.Rand
	state   metrics.State
	history []Action
	step    int
}

// NewSim creates a simulated environment with its own seeded random source.
func NewSim(cfg EffectConfig, seed int64) *Sim {
	return &Sim{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Reseed replaces the environment's random source. Takes effect from the
// next draw; combine with Reset for a reproducible episode.
func (s *Sim) Reseed(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
}

// #endregion sim-struct

// #region reset

// Reset zeroes the step counter and action history, draws a fresh metrics
// state and returns its normalized observation. The context is unused; the
// simulated variant never blocks.
func (s *Sim) Reset(_ context.Context) (Observation, Info, error) {
	s.step = 0
	s.history = s.history[:0]
	s.state = metrics.RandomState(s.rng, s.cfg.Limits)
	return s.state.Normalize(s.cfg.Limits), s.info(), nil
}

// #endregion reset

// #region step

// Step validates the action, applies the effect model plus repetition
// penalty, advances the step counter, and reports truncation when the
// episode length is reached. Terminated is always false; the episode shape
// has no goal condition.
func (s *Sim) Step(_ context.Context, action Action) (StepResult, error) {
	if !action.Valid() {
		// Reject before any mutation: state, history and counter unchanged.
		return StepResult{}, InvalidActionError(action)
	}

	s.step++

	s.history = append(s.history, action)
	if len(s.history) > s.cfg.HistoryLimit {
		s.history = s.history[1:]
	}

	next, reward := ApplyAction(s.rng, s.state, action, s.cfg)
	if repetitionTriggered(s.history, s.cfg.RepetitionWindow) {
		reward -= s.cfg.RepetitionPenalty
	}
	s.state = next

	return StepResult{
		Obs:       s.state.Normalize(s.cfg.Limits),
		Reward:    reward,
		Truncated: s.step >= s.cfg.EpisodeLength,
		Info:      s.info(),
	}, nil
}

// #endregion step

// #region accessors

// Metrics exposes the current raw metrics state, mainly for tests.
func (s *Sim) Metrics() metrics.State {
	return s.state
}

// StepCount returns the number of steps taken since the last reset.
func (s *Sim) StepCount() int {
	return s.step
}

// History returns the bounded action history since the last reset.
func (s *Sim) History() []Action {
	return s.history
}

func (s *Sim) info() Info {
	return Info{Step: s.step, Metrics: s.state}
}

// #endregion accessors
