package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS training_runs (
	run_id        TEXT PRIMARY KEY,
	steps         INTEGER NOT NULL,
	episodes      INTEGER NOT NULL DEFAULT 0,
	mean_reward   REAL NOT NULL DEFAULT 0,
	artifact_path TEXT NOT NULL,
	status        TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	finished_at   TEXT
);

CREATE TABLE IF NOT EXISTS active_run (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	run_id        TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES training_runs(run_id)
);

CREATE TABLE IF NOT EXISTS episode_stats (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	episode       INTEGER NOT NULL,
	steps         INTEGER NOT NULL,
	total_reward  REAL NOT NULL,
	post_steps    INTEGER NOT NULL DEFAULT 0,
	follow_steps  INTEGER NOT NULL DEFAULT 0,
	reward_steps  INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES training_runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_episode_stats_run
ON episode_stats(run_id, episode);

CREATE TABLE IF NOT EXISTS decision_log (
	id            TEXT PRIMARY KEY,
	profile       TEXT NOT NULL,
	kind          TEXT NOT NULL,
	action        INTEGER NOT NULL,
	source        TEXT NOT NULL,
	status        TEXT NOT NULL,
	detail        TEXT,
	created_at    TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store manages training runs, episode stats and the decision audit log in
// SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion constructor

// #region training-runs

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCanceled  = "canceled"
	RunFailed    = "failed"
)

// TrainingRun is one row of training_runs.
type TrainingRun struct {
	ID           string
	Steps        int
	Episodes     int
	MeanReward   float64
	ArtifactPath string
	Status       string
	CreatedAt    time.Time
	FinishedAt   time.Time
}

// CreateRun inserts a run in the running state and returns it.
func (s *Store) CreateRun(steps int, artifactPath string) (TrainingRun, error) {
	run := TrainingRun{
		ID:           uuid.New().String(),
		Steps:        steps,
		ArtifactPath: artifactPath,
		Status:       RunRunning,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO training_runs (run_id, steps, artifact_path, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Steps, run.ArtifactPath, run.Status, run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return TrainingRun{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run completed and moves the active pointer to it in
// the same transaction, so the serving process only ever observes fully
// finished runs as active.
func (s *Store) CompleteRun(runID string, episodes int, meanReward float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.Exec(
		`UPDATE training_runs
		 SET episodes = ?, mean_reward = ?, status = ?, finished_at = ?
		 WHERE run_id = ? AND status = ?`,
		episodes, meanReward, RunCompleted, now, runID, RunRunning,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not running", runID)
	}

	_, err = tx.Exec(
		`INSERT INTO active_run (id, run_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("set active run: %w", err)
	}

	return tx.Commit()
}

// FinishRun marks a run canceled or failed without touching the active
// pointer: a previously completed run stays servable.
func (s *Store) FinishRun(runID, status string) error {
	if status != RunCanceled && status != RunFailed {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		`UPDATE training_runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		status, now, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// ActiveRun reads the run the active pointer currently names.
func (s *Store) ActiveRun() (TrainingRun, error) {
	var runID string
	err := s.db.QueryRow(`SELECT run_id FROM active_run WHERE id = 1`).Scan(&runID)
	if err != nil {
		return TrainingRun{}, fmt.Errorf("get active run: %w", err)
	}
	return s.GetRun(runID)
}

// GetRun retrieves one run by id.
func (s *Store) GetRun(runID string) (TrainingRun, error) {
	var run TrainingRun
	var createdStr string
	var finishedStr sql.NullString
	err := s.db.QueryRow(
		`SELECT run_id, steps, episodes, mean_reward, artifact_path, status, created_at, finished_at
		 FROM training_runs WHERE run_id = ?`, runID,
	).Scan(&run.ID, &run.Steps, &run.Episodes, &run.MeanReward,
		&run.ArtifactPath, &run.Status, &createdStr, &finishedStr)
	if err != nil {
		return TrainingRun{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if finishedStr.Valid {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr.String)
	}
	return run, nil
}

// ListRuns returns the most recent training runs.
func (s *Store) ListRuns(limit int) ([]TrainingRun, error) {
	rows, err := s.db.Query(
		`SELECT run_id, steps, episodes, mean_reward, artifact_path, status, created_at, finished_at
		 FROM training_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		var run TrainingRun
		var createdStr string
		var finishedStr sql.NullString
		if err := rows.Scan(&run.ID, &run.Steps, &run.Episodes, &run.MeanReward,
			&run.ArtifactPath, &run.Status, &createdStr, &finishedStr); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		if finishedStr.Valid {
			run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr.String)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// #endregion training-runs

// #region episode-stats

// EpisodeStat is one row of episode_stats.
type EpisodeStat struct {
	RunID       string
	Episode     int
	Steps       int
	TotalReward float64
	PostSteps   int
	FollowSteps int
	RewardSteps int
	CreatedAt   time.Time
}

// RecordEpisode persists one episode's aggregate.
func (s *Store) RecordEpisode(stat EpisodeStat) error {
	created := stat.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO episode_stats
		 (run_id, episode, steps, total_reward, post_steps, follow_steps, reward_steps, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stat.RunID, stat.Episode, stat.Steps, stat.TotalReward,
		stat.PostSteps, stat.FollowSteps, stat.RewardSteps,
		created.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// TrainingStats aggregates episode stats with exponential time decay.
type TrainingStats struct {
	Episodes    int
	MeanReward  float64
	ActionShare [3]float64
}

// Stats computes decay-weighted aggregates over all recorded episodes.
// Recent training counts more; the half life is 7 days.
func (s *Store) Stats() (TrainingStats, error) {
	rows, err := s.db.Query(
		`SELECT steps, total_reward, post_steps, follow_steps, reward_steps, created_at
		 FROM episode_stats`,
	)
	if err != nil {
		return TrainingStats{}, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	halfLife := 7.0 * 24.0 // hours

	var stats TrainingStats
	var weightSum, rewardSum float64
	var shareSum [3]float64

	for rows.Next() {
		var steps, post, follow, reward int
		var totalReward float64
		var createdStr string
		if err := rows.Scan(&steps, &totalReward, &post, &follow, &reward, &createdStr); err != nil {
			return TrainingStats{}, fmt.Errorf("scan episode: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339, createdStr)
		if err != nil {
			continue
		}
		ageHours := now.Sub(createdAt).Hours()
		weight := math.Exp(-ageHours / halfLife)

		stats.Episodes++
		weightSum += weight
		rewardSum += totalReward * weight
		if steps > 0 {
			shareSum[0] += weight * float64(post) / float64(steps)
			shareSum[1] += weight * float64(follow) / float64(steps)
			shareSum[2] += weight * float64(reward) / float64(steps)
		}
	}
	if err := rows.Err(); err != nil {
		return TrainingStats{}, err
	}

	if weightSum > 0 {
		stats.MeanReward = rewardSum / weightSum
		for i := range shareSum {
			stats.ActionShare[i] = shareSum[i] / weightSum
		}
	}
	return stats, nil
}

// #endregion episode-stats
