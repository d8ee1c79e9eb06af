package train

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"profileagent/internal/env"
	"profileagent/internal/policy"
	"profileagent/internal/store"
)

func testTrainer(t *testing.T, steps int) (*Trainer, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewStore(filepath.Join(dir, "agent.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	artifact := filepath.Join(dir, "policy", "social.json")
	tr := New(st, Config{
		Steps:        steps,
		ArtifactPath: artifact,
		Effect:       env.DefaultEffectConfig(),
		Seed:         1,
	})
	return tr, st, artifact
}

func TestRunTrainsSavesAndRecords(t *testing.T) {
	tr, st, artifact := testTrainer(t, 500)

	p, run, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p == nil || p.TrainedSteps() != 500 {
		t.Fatalf("policy trained steps = %v", p.TrainedSteps())
	}
	if run.Status != store.RunCompleted {
		t.Fatalf("status = %s, want completed", run.Status)
	}
	// 500 steps at episode length 100 -> 5 full episodes.
	if run.Episodes != 5 {
		t.Fatalf("episodes = %d, want 5", run.Episodes)
	}

	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	if _, err := policy.Load(artifact, 2); err != nil {
		t.Fatalf("artifact unreadable: %v", err)
	}

	active, err := st.ActiveRun()
	if err != nil {
		t.Fatalf("ActiveRun: %v", err)
	}
	if active.ID != run.ID {
		t.Fatalf("active run = %s, want %s", active.ID, run.ID)
	}

	stats, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Episodes != 5 {
		t.Fatalf("recorded episodes = %d, want 5", stats.Episodes)
	}
}

func TestRunCancellationPreservesPriorArtifact(t *testing.T) {
	tr, st, artifact := testTrainer(t, 300)

	// First run completes and saves.
	if _, first, err := tr.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	} else if first.Status != store.RunCompleted {
		t.Fatalf("first status = %s", first.Status)
	}
	before, err := os.ReadFile(artifact)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}

	// Second run is canceled before any step.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, canceled, err := tr.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	got, err := st.GetRun(canceled.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != store.RunCanceled {
		t.Fatalf("status = %s, want canceled", got.Status)
	}

	after, err := os.ReadFile(artifact)
	if err != nil {
		t.Fatalf("artifact missing after cancellation: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("cancellation corrupted the saved artifact")
	}

	// Active pointer still names the completed run.
	active, err := st.ActiveRun()
	if err != nil {
		t.Fatalf("ActiveRun: %v", err)
	}
	if active.Status != store.RunCompleted {
		t.Fatalf("active status = %s", active.Status)
	}
}

func TestRunRejectsConcurrentStart(t *testing.T) {
	tr, _, _ := testTrainer(t, 100)
	tr.running.Store(true)
	defer tr.running.Store(false)

	_, _, err := tr.Run(context.Background())
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}
