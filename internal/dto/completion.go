package dto

import (
	"time"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

// CompletionEventRequest is a completion fact pushed by the host platform.
type CompletionEventRequest struct {
	UserID       string     `json:"user_id" binding:"required"`
	CourseID     string     `json:"course_id" binding:"required"`
	CourseName   string     `json:"course_name"`
	ActivityName string     `json:"activity_name"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at"`
	Grade        *float64   `json:"grade"`
}

// ToModel converts the payload into the domain completion fact.
func (r CompletionEventRequest) ToModel() models.CourseCompletion {
	return models.CourseCompletion{
		UserID:      r.UserID,
		CourseID:    r.CourseID,
		Completed:   r.Completed,
		CompletedAt: r.CompletedAt,
		Grade:       r.Grade,
	}
}
