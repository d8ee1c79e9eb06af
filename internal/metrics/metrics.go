package metrics

import "math/rand"

// #region limits

// Limits holds the normalization ceilings for profile metrics.
// Ceilings bound the observation encoding, not the metrics themselves.
type Limits struct {
	MaxFollowers  float64
	MaxPosts      float64
	MaxEngagement float64
}

// DefaultLimits returns the standard normalization ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxFollowers:  10000,
		MaxPosts:      1000,
		MaxEngagement: 0.5,
	}
}

// #endregion limits

// #region state

// State is the minimal sufficient statistic for a profile's social standing.
// Owned exclusively by a single environment instance between resets.
type State struct {
	Followers  float64
	Posts      float64
	Engagement float64
}

// RandomState draws a fresh state within the standard initial ranges:
// followers in [10, ceiling/2], posts in [5, ceiling/2],
// engagement in [0.01, maxEngagement/2]. A range whose ceiling is too
// small to span it degenerates to its lower bound instead of failing, so
// any positive ceiling configuration produces a usable draw.
func RandomState(rng *rand.Rand, limits Limits) State {
	return State{
		Followers:  drawInt(rng, 10, int(limits.MaxFollowers/2)),
		Posts:      drawInt(rng, 5, int(limits.MaxPosts/2)),
		Engagement: Clamp(drawFloat(rng, 0.01, limits.MaxEngagement/2), 0, limits.MaxEngagement),
	}
}

// drawInt draws uniformly from [lo, hi], returning lo when the range is
// degenerate.
func drawInt(rng *rand.Rand, lo, hi int) float64 {
	if hi <= lo {
		return float64(lo)
	}
	return float64(lo + rng.Intn(hi-lo+1))
}

// drawFloat draws uniformly from [lo, hi), returning lo when the range is
// degenerate.
func drawFloat(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

// Normalize encodes the state as the fixed 3-component observation vector,
// each component divided by its ceiling and clamped to [0,1].
func (s State) Normalize(limits Limits) [3]float64 {
	return [3]float64{
		clamp01(s.Followers / limits.MaxFollowers),
		clamp01(s.Posts / limits.MaxPosts),
		clamp01(s.Engagement / limits.MaxEngagement),
	}
}

// #endregion state

// #region clamp

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp returns v limited to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion clamp
