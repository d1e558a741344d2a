package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FailedStatus captures the retry-queue lifecycle of a failed issuance.
type FailedStatus string

const (
	FailedStatusPending FailedStatus = "pending"
	FailedStatusError   FailedStatus = "error"
	FailedStatusSuccess FailedStatus = "success"
)

// IssueFailedRecord is a durable queue entry holding enough serialized state
// to retry an issuance without re-deriving it from live completion data.
type IssueFailedRecord struct {
	ID        int64         `db:"id" json:"id"`
	Status    FailedStatus  `db:"status" json:"status"`
	Timestamp time.Time     `db:"created_at" json:"timestamp"`
	Snapshot  IssueSnapshot `db:"snapshot" json:"snapshot"`
}

// Age returns how long the record has been queued.
func (r IssueFailedRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}

// Retryable reports whether the reconciler should attempt the record.
func (r IssueFailedRecord) Retryable() bool {
	return r.Status == FailedStatusPending || r.Status == FailedStatusError || r.Status == ""
}

// IssueSnapshot is the versioned retry payload persisted as JSONB. Criterion
// items are stored as explicitly typed records rather than an opaque blob so
// shape changes surface as decode errors, not silent breakage.
type IssueSnapshot struct {
	Version          int             `json:"version"`
	BadgeID          string          `json:"badge_id"`
	BadgeName        string          `json:"badge_name,omitempty"`
	CriterionID      int64           `json:"criterion_id"`
	Recipients       []string        `json:"recipients"`
	IssuedOn         int64           `json:"issued_on"`
	Email            EmailTemplate   `json:"email"`
	CriteriaAddendum string          `json:"criteria_addendum,omitempty"`
	Items            []CriterionItem `json:"items,omitempty"`
	Course           string          `json:"course,omitempty"`
	Activity         string          `json:"activity,omitempty"`
}

// SnapshotVersion is the current IssueSnapshot wire version.
const SnapshotVersion = 1

// Value marshals the snapshot to JSON for persistence.
func (s IssueSnapshot) Value() (driver.Value, error) {
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal issue snapshot: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the snapshot struct.
func (s *IssueSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = IssueSnapshot{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for IssueSnapshot", value)
	}
	if len(data) == 0 {
		*s = IssueSnapshot{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal issue snapshot: %w", err)
	}
	if s.Version > SnapshotVersion {
		return fmt.Errorf("issue snapshot version %d is newer than supported %d", s.Version, SnapshotVersion)
	}
	return nil
}
