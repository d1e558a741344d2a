package dto

import (
	"time"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

// CriterionItemRequest is one check inside a new awarding rule.
type CriterionItemRequest struct {
	Kind         string     `json:"kind" binding:"required,oneof=course activity profile"`
	CourseID     string     `json:"course_id"`
	MinGrade     *float64   `json:"min_grade"`
	CompletedBy  *time.Time `json:"completed_by"`
	ProfileField string     `json:"profile_field"`
	ProfileValue string     `json:"profile_value"`
}

// CreateCriterionRequest defines a new awarding rule for a badge.
type CreateCriterionRequest struct {
	BadgeID          string                 `json:"badge_id" binding:"required"`
	ConnectionID     int64                  `json:"connection_id" binding:"required"`
	CompletionMethod int                    `json:"completion_method" binding:"required,oneof=1 2"`
	CriteriaAddendum string                 `json:"criteria_addendum"`
	UseAddendum      bool                   `json:"use_addendum"`
	Items            []CriterionItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToModel converts the payload into the domain criterion.
func (r CreateCriterionRequest) ToModel() models.Criterion {
	items := make([]models.CriterionItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, models.CriterionItem{
			Kind:         models.CriterionItemKind(item.Kind),
			CourseID:     item.CourseID,
			MinGrade:     item.MinGrade,
			CompletedBy:  item.CompletedBy,
			ProfileField: item.ProfileField,
			ProfileValue: item.ProfileValue,
		})
	}
	return models.Criterion{
		BadgeID:          r.BadgeID,
		ConnectionID:     r.ConnectionID,
		CompletionMethod: models.CompletionMethod(r.CompletionMethod),
		CriteriaAddendum: r.CriteriaAddendum,
		UseAddendum:      r.UseAddendum,
		Items:            items,
	}
}
