package env

import (
	"context"
	"errors"
	"fmt"

	"profileagent/internal/metrics"
)

// #region action

// Action identifies one of the three social actions.
type Action int

const (
	ActionPost   Action = 0
	ActionFollow Action = 1
	ActionReward Action = 2

	// NumActions is the size of the discrete action space.
	NumActions = 3
)

// Valid reports whether a is inside the discrete action space.
func (a Action) Valid() bool {
	return a >= ActionPost && a <= ActionReward
}

// Name returns the short machine name of the action.
func (a Action) Name() string {
	switch a {
	case ActionPost:
		return "post"
	case ActionFollow:
		return "follow"
	case ActionReward:
		return "reward"
	}
	return "unknown"
}

// DisplayName returns the human-readable action name used in responses.
func (a Action) DisplayName() string {
	switch a {
	case ActionPost:
		return "Make Post"
	case ActionFollow:
		return "Follow Profile"
	case ActionReward:
		return "Reward Follower"
	}
	return "Unknown Action"
}

// #endregion action

// #region errors

// ErrInvalidAction is returned by Step when the action id is outside {0,1,2}.
// The environment's state and history are untouched in that case.
var ErrInvalidAction = errors.New("env: action outside discrete action space")

// InvalidActionError wraps ErrInvalidAction with the offending id.
func InvalidActionError(a Action) error {
	return fmt.Errorf("%w: %d", ErrInvalidAction, int(a))
}

// #endregion errors

// #region observation

// Observation is the normalized fixed-length vector fed to the policy.
type Observation = [3]float64

// Info carries auxiliary per-step data alongside an observation.
type Info struct {
	Step    int
	Metrics metrics.State
}

// StepResult bundles the outputs of a single environment step.
type StepResult struct {
	Obs        Observation
	Reward     float64
	Terminated bool
	Truncated  bool
	Info       Info
}

// #endregion observation

// #region environment

// Environment is the shared contract of the simulated and live variants.
// One policy artifact serves both because the observation/action shapes
// are identical across implementations.
type Environment interface {
	Reset(ctx context.Context) (Observation, Info, error)
	Step(ctx context.Context, action Action) (StepResult, error)
}

// MetricsSource supplies current metrics for a profile. Implementations may
// be slow or unreachable; callers pass a context with a deadline.
type MetricsSource interface {
	ProfileMetrics(ctx context.Context, profileAddress string) (metrics.State, error)
}

// #endregion environment
