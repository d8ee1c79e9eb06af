package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region decision-record

// Decision kinds and statuses.
const (
	KindRecommend = "recommend"
	KindExecute   = "execute"

	DecisionOK          = "ok"
	DecisionClientError = "client_error"
	DecisionUnavailable = "unavailable"
	DecisionRejected    = "rejected"
	DecisionError       = "error"
)

// DecisionRecord is one audit row: a recommendation served or an execution
// attempted, with its outcome.
type DecisionRecord struct {
	ID        string
	Profile   string
	Kind      string
	Action    int
	Source    string // model | fallback | caller
	Status    string
	Detail    string
	CreatedAt time.Time
}

// #endregion decision-record

// #region log-decision

// LogDecision writes one audit row.
func (s *Store) LogDecision(rec DecisionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO decision_log (id, profile, kind, action, source, status, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Profile, rec.Kind, rec.Action, rec.Source,
		rec.Status, nullIfEmpty(rec.Detail), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region recent-decisions

// RecentDecisions returns the latest audit rows, newest first.
func (s *Store) RecentDecisions(limit int) ([]DecisionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, profile, kind, action, source, status, detail, created_at
		 FROM decision_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var recs []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var detail sql.NullString
		var createdStr string
		if err := rows.Scan(&rec.ID, &rec.Profile, &rec.Kind, &rec.Action,
			&rec.Source, &rec.Status, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if detail.Valid {
			rec.Detail = detail.String
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// #endregion recent-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
