package env

import (
	"context"
	"fmt"

	"profileagent/internal/metrics"
)

// #region live-struct

// Live is the chain-backed environment variant. It shares the observation
// and action contract with Sim, but Reset fetches real metrics from a
// MetricsSource and Step never mutates state locally: the real-world effect
// happens through the executor on a separate, explicitly authorized request,
// and the next true observation arrives with the next fetch.
type Live struct {
	cfg     EffectConfig
	source  MetricsSource
	profile string
	state   metrics.State
	step    int
	fetched bool
}

// NewLive creates a live environment bound to one profile.
func NewLive(cfg EffectConfig, source MetricsSource, profileAddress string) *Live {
	return &Live{
		cfg:     cfg,
		source:  source,
		profile: profileAddress,
	}
}

// #endregion live-struct

// #region reset

// Reset fetches current metrics for the profile and returns the normalized
// observation. Fetch failures surface to the caller; the live variant does
// not retry on its own.
func (l *Live) Reset(ctx context.Context) (Observation, Info, error) {
	state, err := l.source.ProfileMetrics(ctx, l.profile)
	if err != nil {
		return Observation{}, Info{}, fmt.Errorf("fetch metrics for %s: %w", l.profile, err)
	}
	l.state = state
	l.step = 0
	l.fetched = true
	return l.state.Normalize(l.cfg.Limits), l.info(), nil
}

// #endregion reset

// #region step

// Step validates the action and advances the step counter, returning the
// last fetched observation unchanged with zero reward. Deciding and
// executing are separate operations on the live path; the effect model
// never runs against real metrics.
func (l *Live) Step(_ context.Context, action Action) (StepResult, error) {
	if !action.Valid() {
		return StepResult{}, InvalidActionError(action)
	}
	if !l.fetched {
		return StepResult{}, fmt.Errorf("live step before reset for %s", l.profile)
	}
	l.step++
	return StepResult{
		Obs:       l.state.Normalize(l.cfg.Limits),
		Truncated: l.step >= l.cfg.EpisodeLength,
		Info:      l.info(),
	}, nil
}

// #endregion step

func (l *Live) info() Info {
	return Info{Step: l.step, Metrics: l.state}
}
