package models

import "time"

// CompletionMethod controls how a criterion combines its item results.
type CompletionMethod int

const (
	CompletionAll CompletionMethod = 1
	CompletionAny CompletionMethod = 2
)

// CriterionItemKind enumerates the supported awarding-rule checks.
type CriterionItemKind string

const (
	ItemKindCourseCompletion CriterionItemKind = "course"
	ItemKindActivity         CriterionItemKind = "activity"
	ItemKindProfile          CriterionItemKind = "profile"
)

// Criterion is a locally persisted awarding rule tied to exactly one remote
// badge and one stored connection. Items become immutable once any user has
// met the criterion.
type Criterion struct {
	ID               int64            `db:"id" json:"id"`
	BadgeID          string           `db:"badge_id" json:"badge_id"`
	ConnectionID     int64            `db:"oauth2_id" json:"connection_id"`
	CompletionMethod CompletionMethod `db:"completion_method" json:"completion_method"`
	CriteriaAddendum string           `db:"addendum" json:"criteria_addendum,omitempty"`
	UseAddendum      bool             `db:"use_addendum" json:"use_addendum"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`

	Items []CriterionItem `db:"-" json:"items,omitempty"`
}

// CriterionItem is one check inside a criterion. Grade and completion-date
// thresholds only apply when set; an absent threshold passes automatically.
type CriterionItem struct {
	ID          int64             `db:"id" json:"id"`
	CriterionID int64             `db:"criterion_id" json:"criterion_id"`
	Kind        CriterionItemKind `db:"criteria_type" json:"kind"`
	CourseID    string            `db:"course_id" json:"course_id,omitempty"`
	MinGrade    *float64          `db:"min_grade" json:"min_grade,omitempty"`
	CompletedBy *time.Time        `db:"completed_by" json:"completed_by,omitempty"`

	// Profile-field check, only for ItemKindProfile.
	ProfileField string `db:"profile_field" json:"profile_field,omitempty"`
	ProfileValue string `db:"profile_value" json:"profile_value,omitempty"`
}

// HasGrade reports whether a minimum grade is configured.
func (i CriterionItem) HasGrade() bool {
	return i.MinGrade != nil && *i.MinGrade > 0
}

// HasCompletionDate reports whether a completion deadline is configured.
func (i CriterionItem) HasCompletionDate() bool {
	return i.CompletedBy != nil && !i.CompletedBy.IsZero()
}

// CriterionMet is the write-once issuance guard: one row per (criterion,
// user) pair. Its existence is the sole "already awarded" check.
type CriterionMet struct {
	ID          int64     `db:"id" json:"id"`
	CriterionID int64     `db:"criterion_id" json:"criterion_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	MetAt       time.Time `db:"met_at" json:"met_at"`
}

// CourseCompletion is a completion fact reported by the host LMS. The
// completed flag must be genuinely set; grade and completion time feed the
// optional thresholds.
type CourseCompletion struct {
	UserID      string     `db:"user_id" json:"user_id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Grade       *float64   `db:"grade" json:"grade,omitempty"`
}
