package policy

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"profileagent/internal/env"
)

func newSimFactory(seed int64) func() env.Environment {
	n := seed
	return func() env.Environment {
		n++
		return env.NewSim(env.DefaultEffectConfig(), n)
	}
}

func TestQPolicyDeterministicPredictIsIdempotent(t *testing.T) {
	p := NewQPolicy(DefaultQConfig(), 1)
	obs := env.Observation{0.3, 0.7, 0.2}

	first, conf := p.Predict(obs, true)
	for i := 0; i < 50; i++ {
		a, c := p.Predict(obs, true)
		if a != first || c != conf {
			t.Fatalf("call %d: got (%v,%v), want (%v,%v)", i, a, c, first, conf)
		}
	}
}

func TestQPolicyPredictValidOnBoundaryObservations(t *testing.T) {
	p := NewQPolicy(DefaultQConfig(), 2)
	for _, obs := range []env.Observation{
		{0, 0, 0},
		{1, 1, 1},
		{0, 1, 0.5},
	} {
		a, conf := p.Predict(obs, true)
		if !a.Valid() {
			t.Fatalf("invalid action %d for obs %v", a, obs)
		}
		if conf <= 0 || conf > 1 {
			t.Fatalf("confidence %v out of (0,1] for obs %v", conf, obs)
		}
	}
}

func TestQPolicyTrainAbsorbsSteps(t *testing.T) {
	p := NewQPolicy(DefaultQConfig(), 3)
	if err := p.Train(context.Background(), newSimFactory(100), 2000); err != nil {
		t.Fatalf("train: %v", err)
	}
	if p.TrainedSteps() != 2000 {
		t.Fatalf("trained steps = %d, want 2000", p.TrainedSteps())
	}

	// A trained table should no longer be all zeros.
	var nonzero bool
	for _, row := range p.table {
		for _, v := range row {
			if v != 0 {
				nonzero = true
			}
		}
	}
	if !nonzero {
		t.Fatal("table untouched after training")
	}
}

func TestQPolicyTrainHonorsCancellation(t *testing.T) {
	p := NewQPolicy(DefaultQConfig(), 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Train(ctx, newSimFactory(200), 1_000_000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy", "social.json")

	p := NewQPolicy(DefaultQConfig(), 5)
	if err := p.Train(context.Background(), newSimFactory(300), 500); err != nil {
		t.Fatalf("train: %v", err)
	}
	if err := Save(path, p); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path, 6)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.TrainedSteps() != p.TrainedSteps() {
		t.Fatalf("trained steps = %d, want %d", loaded.TrainedSteps(), p.TrainedSteps())
	}

	obs := env.Observation{0.4, 0.1, 0.6}
	a1, c1 := p.Predict(obs, true)
	a2, c2 := loaded.Predict(obs, true)
	if a1 != a2 || c1 != c2 {
		t.Fatalf("loaded policy diverges: (%v,%v) vs (%v,%v)", a2, c2, a1, c1)
	}
}

func TestHolderFallbackOnMissingArtifact(t *testing.T) {
	h := NewHolder(7)
	ok, err := h.LoadFrom(filepath.Join(t.TempDir(), "absent.json"), 7)
	if err != nil {
		t.Fatalf("missing artifact should not error: %v", err)
	}
	if ok {
		t.Fatal("load should report absence")
	}

	p, fallback := h.Current()
	if !fallback {
		t.Fatal("holder should be in fallback state")
	}
	a, conf := p.Predict(env.Observation{0, 0, 0}, true)
	if !a.Valid() {
		t.Fatalf("fallback returned invalid action %d", a)
	}
	if conf != 1.0/3.0 {
		t.Fatalf("fallback confidence = %v, want 1/3", conf)
	}
}

func TestHolderSwapLeavesFallback(t *testing.T) {
	h := NewHolder(8)
	h.Swap(NewQPolicy(DefaultQConfig(), 8))
	if _, fallback := h.Current(); fallback {
		t.Fatal("swap should clear fallback state")
	}
}

func TestUniformDeterministicIsStable(t *testing.T) {
	u := NewUniform(9)
	obs := env.Observation{0.2, 0.9, 0.4}
	first, _ := u.Predict(obs, true)
	for i := 0; i < 20; i++ {
		if a, _ := u.Predict(obs, true); a != first {
			t.Fatalf("deterministic fallback not stable: %v vs %v", a, first)
		}
	}
}

func TestUniformNotTrainable(t *testing.T) {
	u := NewUniform(10)
	if err := u.Train(context.Background(), newSimFactory(1), 10); !errors.Is(err, ErrNotTrainable) {
		t.Fatalf("err = %v, want ErrNotTrainable", err)
	}
}
