package policy

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"profileagent/internal/env"
)

// #region contract

// Policy maps a normalized observation to an action. Implementations are
// opaque beyond this contract so the environment and serving layers stay
// independent of the learning technique.
type Policy interface {
	// Predict returns the chosen action and a confidence score in (0,1].
	// With deterministic=true the result is a pure function of the
	// observation: repeatable, side-effect free, and free of I/O.
	Predict(obs env.Observation, deterministic bool) (env.Action, float64)

	// Train drives freshly constructed simulated environments through
	// episodes until totalSteps experience steps have been consumed or the
	// context is canceled.
	Train(ctx context.Context, newEnv func() env.Environment, totalSteps int) error
}

// ErrNotTrainable marks policies that only serve, such as the uniform
// fallback.
var ErrNotTrainable = errors.New("policy: not trainable")

// #endregion contract

// #region uniform

// Uniform is the explicit untrained fallback policy: uniform-random action
// choice with flat confidence. It exists so a missing artifact degrades the
// recommendation path instead of failing it.
type Uniform struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniform creates the fallback policy.
func NewUniform(seed int64) *Uniform {
	return &Uniform{rng: rand.New(rand.NewSource(seed))}
}

// Predict picks uniformly at random. Deterministic requests derive the
// action from the observation cell instead, so identical input keeps
// producing identical output even on the fallback path.
func (u *Uniform) Predict(obs env.Observation, deterministic bool) (env.Action, float64) {
	confidence := 1.0 / float64(env.NumActions)
	if deterministic {
		return env.Action(cellIndex(obs, defaultBins) % env.NumActions), confidence
	}
	u.mu.Lock()
	a := env.Action(u.rng.Intn(env.NumActions))
	u.mu.Unlock()
	return a, confidence
}

// Train always fails; the fallback carries no parameters.
func (u *Uniform) Train(context.Context, func() env.Environment, int) error {
	return ErrNotTrainable
}

// #endregion uniform
