package env

import (
	"context"
	"testing"
)

func TestSimResetZeroesCounters(t *testing.T) {
	s := NewSim(DefaultEffectConfig(), 1)
	ctx := context.Background()

	if _, _, err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := s.Step(ctx, ActionPost); err != nil {
		t.Fatalf("step: %v", err)
	}

	obs, info, err := s.Reset(ctx)
	if err != nil {
		t.Fatalf("second reset: %v", err)
	}
	if info.Step != 0 || s.StepCount() != 0 {
		t.Fatalf("step counter not zeroed: %d", info.Step)
	}
	if len(s.History()) != 0 {
		t.Fatalf("history not cleared: %v", s.History())
	}
	for i, v := range obs {
		if v < 0 || v > 1 {
			t.Fatalf("observation component %d out of [0,1]: %v", i, v)
		}
	}
}

func TestSimTruncatesExactlyAtEpisodeLength(t *testing.T) {
	cfg := DefaultEffectConfig()
	s := NewSim(cfg, 2)
	ctx := context.Background()
	s.Reset(ctx)

	for i := 1; i <= cfg.EpisodeLength; i++ {
		res, err := s.Step(ctx, ActionFollow)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if res.Terminated {
			t.Fatalf("terminated should never be set, step %d", i)
		}
		want := i == cfg.EpisodeLength
		if res.Truncated != want {
			t.Fatalf("step %d: truncated = %v, want %v", i, res.Truncated, want)
		}
	}
}

func TestSimHundredPostsScenario(t *testing.T) {
	// Seeded reset followed by 100 post steps: truncation fires exactly at
	// step 100 and posts grow by exactly one per step (drift never touches
	// posts).
	cfg := DefaultEffectConfig()
	s := NewSim(cfg, 99)
	ctx := context.Background()
	s.Reseed(12345)
	_, info, _ := s.Reset(ctx)
	startPosts := info.Metrics.Posts

	var last StepResult
	for i := 1; i <= 100; i++ {
		res, err := s.Step(ctx, ActionPost)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if res.Truncated && i != 100 {
			t.Fatalf("truncated early at step %d", i)
		}
		last = res
	}
	if !last.Truncated {
		t.Fatal("not truncated at step 100")
	}
	if got := last.Info.Metrics.Posts; got != startPosts+100 {
		t.Fatalf("posts = %v, want %v", got, startPosts+100)
	}
}

func TestSimRepetitionPenaltyOnThirdIdenticalAction(t *testing.T) {
	// Compare many runs: with three identical actions the third step's
	// reward distribution shifts down by the penalty. Assert via bounds:
	// a penalized reward-action step can fall below the unpenalized floor.
	cfg := DefaultEffectConfig()
	ctx := context.Background()

	// Low-engagement reward action has a deterministic base (-0.05 - cost),
	// so the penalty is directly observable.
	s := NewSim(cfg, 6)
	s.Reset(ctx)
	forceLowEngagement := func() {
		s.state.Engagement = 0.0
	}

	forceLowEngagement()
	r1, _ := s.Step(ctx, ActionReward)
	forceLowEngagement()
	r2, _ := s.Step(ctx, ActionReward)
	forceLowEngagement()
	r3, _ := s.Step(ctx, ActionReward)

	base := -0.05 - cfg.ActionCost
	if r1.Reward != base || r2.Reward != base {
		t.Fatalf("first two rewards should be %v, got %v and %v", base, r1.Reward, r2.Reward)
	}
	if r3.Reward != base-cfg.RepetitionPenalty {
		t.Fatalf("third reward should include penalty: got %v, want %v",
			r3.Reward, base-cfg.RepetitionPenalty)
	}

	// Fourth identical action keeps the penalty.
	forceLowEngagement()
	r4, _ := s.Step(ctx, ActionReward)
	if r4.Reward != base-cfg.RepetitionPenalty {
		t.Fatalf("fourth reward should include penalty: got %v", r4.Reward)
	}
}

func TestSimHistoryBounded(t *testing.T) {
	cfg := DefaultEffectConfig()
	s := NewSim(cfg, 7)
	ctx := context.Background()
	s.Reset(ctx)

	for i := 0; i < cfg.HistoryLimit*3; i++ {
		s.Step(ctx, Action(i%NumActions))
	}
	if len(s.History()) != cfg.HistoryLimit {
		t.Fatalf("history length = %d, want %d", len(s.History()), cfg.HistoryLimit)
	}
}

func TestSimRejectsInvalidActionWithoutMutation(t *testing.T) {
	s := NewSim(DefaultEffectConfig(), 8)
	ctx := context.Background()
	s.Reset(ctx)
	s.Step(ctx, ActionPost)

	before := s.Metrics()
	histLen := len(s.History())
	steps := s.StepCount()

	for _, bad := range []Action{-1, 3, 99} {
		_, err := s.Step(ctx, bad)
		if err == nil {
			t.Fatalf("action %d should be rejected", bad)
		}
		if s.Metrics() != before {
			t.Fatalf("state mutated by invalid action %d", bad)
		}
		if len(s.History()) != histLen || s.StepCount() != steps {
			t.Fatalf("history or counter mutated by invalid action %d", bad)
		}
	}
}

func TestSimObservationAlwaysNormalized(t *testing.T) {
	s := NewSim(DefaultEffectConfig(), 9)
	ctx := context.Background()
	s.Reset(ctx)

	for i := 0; i < 500; i++ {
		res, err := s.Step(ctx, Action(i%NumActions))
		if err != nil {
			t.Fatal(err)
		}
		for j, v := range res.Obs {
			if v < 0 || v > 1 {
				t.Fatalf("obs[%d] = %v out of [0,1]", j, v)
			}
		}
		if res.Truncated {
			s.Reset(ctx)
		}
	}
}
