package metrics

import (
	"math/rand"
	"testing"
)

func TestNormalizeInUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	limits := DefaultLimits()

	for i := 0; i < 1000; i++ {
		s := RandomState(rng, limits)
		obs := s.Normalize(limits)
		for j, v := range obs {
			if v < 0 || v > 1 {
				t.Fatalf("component %d out of [0,1]: %v (state %+v)", j, v, s)
			}
		}
	}
}

func TestNormalizeClampsAboveCeiling(t *testing.T) {
	limits := DefaultLimits()
	s := State{
		Followers:  limits.MaxFollowers * 3,
		Posts:      limits.MaxPosts * 2,
		Engagement: limits.MaxEngagement * 1.5,
	}
	obs := s.Normalize(limits)
	for j, v := range obs {
		if v != 1 {
			t.Fatalf("component %d should clamp to 1, got %v", j, v)
		}
	}
}

func TestNormalizeZeroState(t *testing.T) {
	obs := State{}.Normalize(DefaultLimits())
	for j, v := range obs {
		if v != 0 {
			t.Fatalf("component %d should be 0, got %v", j, v)
		}
	}
}

func TestRandomStateSmallCeilings(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	limits := Limits{MaxFollowers: 15, MaxPosts: 8, MaxEngagement: 0.5}

	for i := 0; i < 200; i++ {
		s := RandomState(rng, limits)
		if s.Followers != 10 {
			t.Fatalf("degenerate follower range should pin to 10, got %v", s.Followers)
		}
		if s.Posts != 5 {
			t.Fatalf("degenerate post range should pin to 5, got %v", s.Posts)
		}
		if s.Engagement < 0.01 || s.Engagement > limits.MaxEngagement/2 {
			t.Fatalf("engagement out of range: %v", s.Engagement)
		}
	}
}

func TestRandomStateTinyEngagementCeiling(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	limits := Limits{MaxFollowers: 100, MaxPosts: 50, MaxEngagement: 0.005}

	for i := 0; i < 200; i++ {
		s := RandomState(rng, limits)
		if s.Engagement > limits.MaxEngagement {
			t.Fatalf("engagement %v exceeds ceiling %v", s.Engagement, limits.MaxEngagement)
		}
	}
}

func TestRandomStateWithinInitialRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	limits := DefaultLimits()

	for i := 0; i < 500; i++ {
		s := RandomState(rng, limits)
		if s.Followers < 10 || s.Followers > limits.MaxFollowers/2 {
			t.Fatalf("followers out of initial range: %v", s.Followers)
		}
		if s.Posts < 5 || s.Posts > limits.MaxPosts/2 {
			t.Fatalf("posts out of initial range: %v", s.Posts)
		}
		if s.Engagement < 0.01 || s.Engagement > limits.MaxEngagement/2 {
			t.Fatalf("engagement out of initial range: %v", s.Engagement)
		}
	}
}
