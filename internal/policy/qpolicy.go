package policy

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"profileagent/internal/env"
)

// #region config

// defaultBins is the per-dimension discretization of the observation cube.
const defaultBins = 8

// QConfig tunes the tabular Q-learning update.
type QConfig struct {
	Bins         int
	LearningRate float64
	Gamma        float64

	// Epsilon decays linearly from EpsilonStart to EpsilonFinal over the
	// first EpsilonFraction of training steps.
	EpsilonStart    float64
	EpsilonFinal    float64
	EpsilonFraction float64
}

// DefaultQConfig returns the standard training tuning.
func DefaultQConfig() QConfig {
	return QConfig{
		Bins:            defaultBins,
		LearningRate:    0.1,
		Gamma:           0.99,
		EpsilonStart:    1.0,
		EpsilonFinal:    0.05,
		EpsilonFraction: 0.1,
	}
}

// #endregion config

// #region qpolicy

// QPolicy is a tabular Q-learning policy over the discretized observation
// grid. Prediction is pure table arithmetic, cheap enough for the serving
// path; training mutates the table in-process against a simulated
// environment.
type QPolicy struct {
	cfg          QConfig
	table        [][env.NumActions]float64
	trainedSteps int

	mu  sync.Mutex // guards rng only; the table is never written while serving
	rng *rand.Rand
}

// NewQPolicy creates a zero-initialized policy.
func NewQPolicy(cfg QConfig, seed int64) *QPolicy {
	if cfg.Bins <= 0 {
		cfg.Bins = defaultBins
	}
	cells := cfg.Bins * cfg.Bins * cfg.Bins
	return &QPolicy{
		cfg:   cfg,
		table: make([][env.NumActions]float64, cells),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// TrainedSteps reports how many experience steps the table has absorbed.
func (p *QPolicy) TrainedSteps() int {
	return p.trainedSteps
}

// Bins reports the per-dimension discretization width.
func (p *QPolicy) Bins() int {
	return p.cfg.Bins
}

// #endregion qpolicy

// #region predict

// Predict returns the greedy action for the observation's cell. With
// deterministic=false a small exploration epsilon is kept. Confidence is the
// softmax weight of the chosen action within its Q row.
func (p *QPolicy) Predict(obs env.Observation, deterministic bool) (env.Action, float64) {
	cell := cellIndex(obs, p.cfg.Bins)
	row := p.table[cell]

	action := argmax(row)
	if !deterministic {
		p.mu.Lock()
		explore := p.rng.Float64() < p.cfg.EpsilonFinal
		if explore {
			action = env.Action(p.rng.Intn(env.NumActions))
		}
		p.mu.Unlock()
	}

	return action, softmaxWeight(row, action)
}

// #endregion predict

// #region train

// Train runs episodes against freshly constructed environments, updating the
// table with the standard one-step Q target. Cancellation stops cleanly
// between steps; progress already absorbed stays in the table.
func (p *QPolicy) Train(ctx context.Context, newEnv func() env.Environment, totalSteps int) error {
	if totalSteps <= 0 {
		return fmt.Errorf("policy: totalSteps must be positive, got %d", totalSteps)
	}

	e := newEnv()
	obs, _, err := e.Reset(ctx)
	if err != nil {
		return fmt.Errorf("train reset: %w", err)
	}
	cell := cellIndex(obs, p.cfg.Bins)

	decaySteps := float64(totalSteps) * p.cfg.EpsilonFraction
	for step := 0; step < totalSteps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		eps := p.cfg.EpsilonFinal
		if float64(step) < decaySteps {
			frac := float64(step) / decaySteps
			eps = p.cfg.EpsilonStart + frac*(p.cfg.EpsilonFinal-p.cfg.EpsilonStart)
		}

		var action env.Action
		if p.rng.Float64() < eps {
			action = env.Action(p.rng.Intn(env.NumActions))
		} else {
			action = argmax(p.table[cell])
		}

		res, err := e.Step(ctx, action)
		if err != nil {
			return fmt.Errorf("train step %d: %w", step, err)
		}
		nextCell := cellIndex(res.Obs, p.cfg.Bins)

		target := res.Reward
		if !res.Truncated && !res.Terminated {
			target += p.cfg.Gamma * maxQ(p.table[nextCell])
		}
		p.table[cell][action] += p.cfg.LearningRate * (target - p.table[cell][action])

		cell = nextCell
		p.trainedSteps++

		if res.Truncated || res.Terminated {
			e = newEnv()
			obs, _, err = e.Reset(ctx)
			if err != nil {
				return fmt.Errorf("train reset: %w", err)
			}
			cell = cellIndex(obs, p.cfg.Bins)
		}
	}
	return nil
}

// #endregion train

// #region table-math

// cellIndex maps an observation to its discretized grid cell.
func cellIndex(obs env.Observation, bins int) int {
	idx := 0
	for _, v := range obs {
		b := int(v * float64(bins))
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		idx = idx*bins + b
	}
	return idx
}

func argmax(row [env.NumActions]float64) env.Action {
	best := 0
	for i := 1; i < env.NumActions; i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return env.Action(best)
}

func maxQ(row [env.NumActions]float64) float64 {
	m := row[0]
	for _, v := range row[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// softmaxWeight returns the softmax probability of the action within its row.
func softmaxWeight(row [env.NumActions]float64, action env.Action) float64 {
	m := maxQ(row)
	var sum float64
	var chosen float64
	for i, v := range row {
		w := math.Exp(v - m)
		sum += w
		if env.Action(i) == action {
			chosen = w
		}
	}
	if sum == 0 {
		return 1.0 / float64(env.NumActions)
	}
	return chosen / sum
}

// #endregion table-math
