package dto

// IssueBadgeRequest issues a badge to explicit recipients from the admin
// surface.
type IssueBadgeRequest struct {
	ConnectionID     int64    `json:"connection_id" binding:"required"`
	BadgeID          string   `json:"badge_id" binding:"required"`
	Recipients       []string `json:"recipients" binding:"required,min=1,dive,email"`
	CriteriaAddendum string   `json:"criteria_addendum"`
	CourseID         string   `json:"course_id"`
	CourseName       string   `json:"course_name"`
	ActivityName     string   `json:"activity_name"`
}

// RevokeEventRequest revokes an issuance event for the listed recipients.
type RevokeEventRequest struct {
	ConnectionID int64    `json:"connection_id" binding:"required"`
	Emails       []string `json:"emails" binding:"required,min=1,dive,email"`
}
