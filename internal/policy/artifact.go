package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"profileagent/internal/env"
)

// #region artifact

const artifactVersion = 1

// Artifact is the serialized form of a trained policy.
type Artifact struct {
	Version      int         `json:"version"`
	Algorithm    string      `json:"algorithm"`
	Bins         int         `json:"bins"`
	Table        [][]float64 `json:"table"`
	TrainedSteps int         `json:"trained_steps"`
	CreatedAt    time.Time   `json:"created_at"`
}

// #endregion artifact

// #region save

// Save writes the policy artifact with write-then-rename semantics, so a
// canceled or crashed training run never corrupts a previously saved file.
func Save(path string, p *QPolicy) error {
	art := Artifact{
		Version:      artifactVersion,
		Algorithm:    "tabular-q",
		Bins:         p.cfg.Bins,
		Table:        make([][]float64, len(p.table)),
		TrainedSteps: p.trainedSteps,
		CreatedAt:    time.Now().UTC(),
	}
	for i, row := range p.table {
		art.Table[i] = append([]float64(nil), row[:]...)
	}

	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("artifact dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

// #endregion save

// #region load

// Load reads a policy artifact. A missing file surfaces as os.ErrNotExist;
// callers treat that as the recoverable fallback condition, not a failure.
func Load(path string, seed int64) (*QPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if art.Version != artifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", art.Version)
	}
	if art.Bins <= 0 || len(art.Table) != art.Bins*art.Bins*art.Bins {
		return nil, fmt.Errorf("artifact table shape mismatch: bins=%d rows=%d", art.Bins, len(art.Table))
	}

	cfg := DefaultQConfig()
	cfg.Bins = art.Bins
	p := NewQPolicy(cfg, seed)
	p.trainedSteps = art.TrainedSteps
	for i, row := range art.Table {
		if len(row) != env.NumActions {
			return nil, fmt.Errorf("artifact row %d has %d entries", i, len(row))
		}
		copy(p.table[i][:], row)
	}
	return p, nil
}

// #endregion load
