package policy

import (
	"errors"
	"os"
	"sync"
)

// #region holder

// Holder is the process-wide current-policy slot with defined transitions:
// load at startup, atomic swap after a successful retrain, and explicit
// fallback while no artifact exists.
type Holder struct {
	mu       sync.RWMutex
	current  Policy
	fallback bool
}

// NewHolder starts in the fallback state.
func NewHolder(seed int64) *Holder {
	return &Holder{
		current:  NewUniform(seed),
		fallback: true,
	}
}

// Current returns the active policy and whether it is the fallback.
func (h *Holder) Current() (Policy, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.fallback
}

// Swap installs a trained policy, leaving the fallback state.
func (h *Holder) Swap(p Policy) {
	h.mu.Lock()
	h.current = p
	h.fallback = false
	h.mu.Unlock()
}

// LoadFrom tries to install the artifact at path. A missing artifact keeps
// the fallback and returns (false, nil); an unreadable one keeps the
// fallback and returns the error so the caller can log it. Neither is fatal.
func (h *Holder) LoadFrom(path string, seed int64) (bool, error) {
	p, err := Load(path, seed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	h.Swap(p)
	return true, nil
}

// #endregion holder
