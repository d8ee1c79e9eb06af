package train

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"profileagent/internal/env"
	"profileagent/internal/policy"
	"profileagent/internal/store"
)

// #region config

// Config shapes one training run.
type Config struct {
	Steps        int
	ArtifactPath string
	Effect       env.EffectConfig
	Seed         int64
}

// ErrAlreadyRunning is returned when a run is requested while one is active.
var ErrAlreadyRunning = errors.New("train: a training run is already in progress")

// #endregion config

// #region trainer

// Trainer owns the long-running training loop. It is CPU bound and single
// threaded; the serving process launches it in the background and swaps the
// policy holder only after a successful artifact save. Cancellation leaves
// any previously saved artifact untouched.
type Trainer struct {
	store   *store.Store
	cfg     Config
	running atomic.Bool
}

// New creates a Trainer.
func New(st *store.Store, cfg Config) *Trainer {
	return &Trainer{store: st, cfg: cfg}
}

// Running reports whether a run is in progress.
func (t *Trainer) Running() bool {
	return t.running.Load()
}

// #endregion trainer

// #region run

// Run trains a fresh policy to completion, saves the artifact atomically,
// records the run and its episode stats, and returns the trained policy.
// At most one run executes at a time.
func (t *Trainer) Run(ctx context.Context) (*policy.QPolicy, store.TrainingRun, error) {
	if !t.running.CompareAndSwap(false, true) {
		return nil, store.TrainingRun{}, ErrAlreadyRunning
	}
	defer t.running.Store(false)

	run, err := t.store.CreateRun(t.cfg.Steps, t.cfg.ArtifactPath)
	if err != nil {
		return nil, store.TrainingRun{}, fmt.Errorf("create run: %w", err)
	}

	agg := &episodeAggregate{store: t.store, runID: run.ID}
	seed := t.cfg.Seed
	factory := func() env.Environment {
		seed++
		return &recordingEnv{inner: env.NewSim(t.cfg.Effect, seed), agg: agg}
	}

	p := policy.NewQPolicy(policy.DefaultQConfig(), t.cfg.Seed)
	if err := p.Train(ctx, factory, t.cfg.Steps); err != nil {
		status := store.RunFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = store.RunCanceled
		}
		if ferr := t.store.FinishRun(run.ID, status); ferr != nil {
			return nil, run, errors.Join(err, ferr)
		}
		return nil, run, err
	}

	if err := policy.Save(t.cfg.ArtifactPath, p); err != nil {
		if ferr := t.store.FinishRun(run.ID, store.RunFailed); ferr != nil {
			return nil, run, errors.Join(err, ferr)
		}
		return nil, run, err
	}

	if err := t.store.CompleteRun(run.ID, agg.episodes, agg.meanReward()); err != nil {
		return nil, run, fmt.Errorf("complete run: %w", err)
	}

	run, err = t.store.GetRun(run.ID)
	if err != nil {
		return p, store.TrainingRun{}, err
	}
	return p, run, nil
}

// #endregion run

// #region recording-env

// episodeAggregate accumulates across the env instances of one run. The
// training loop is single threaded, so plain fields suffice.
type episodeAggregate struct {
	store     *store.Store
	runID     string
	episodes  int
	rewardSum float64
}

func (a *episodeAggregate) meanReward() float64 {
	if a.episodes == 0 {
		return 0
	}
	return a.rewardSum / float64(a.episodes)
}

// recordingEnv wraps a simulated environment and flushes an episode stat row
// on truncation. The policy stays unaware of the instrumentation.
type recordingEnv struct {
	inner *env.Sim
	agg   *episodeAggregate

	steps       int
	totalReward float64
	counts      [env.NumActions]int
}

func (r *recordingEnv) Reset(ctx context.Context) (env.Observation, env.Info, error) {
	r.steps = 0
	r.totalReward = 0
	r.counts = [env.NumActions]int{}
	return r.inner.Reset(ctx)
}

func (r *recordingEnv) Step(ctx context.Context, action env.Action) (env.StepResult, error) {
	res, err := r.inner.Step(ctx, action)
	if err != nil {
		return res, err
	}
	r.steps++
	r.totalReward += res.Reward
	r.counts[action]++

	if res.Truncated || res.Terminated {
		r.agg.episodes++
		r.agg.rewardSum += r.totalReward
		if serr := r.agg.store.RecordEpisode(store.EpisodeStat{
			RunID:       r.agg.runID,
			Episode:     r.agg.episodes - 1,
			Steps:       r.steps,
			TotalReward: r.totalReward,
			PostSteps:   r.counts[env.ActionPost],
			FollowSteps: r.counts[env.ActionFollow],
			RewardSteps: r.counts[env.ActionReward],
		}); serr != nil {
			return res, fmt.Errorf("record episode: %w", serr)
		}
	}
	return res, nil
}

// #endregion recording-env
