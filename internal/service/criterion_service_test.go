package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obf-labs/issuer-gateway/internal/models"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

type criterionAdminStoreStub struct {
	created *models.Criterion
	anyMet  bool
	deleted []int64
}

func (s *criterionAdminStoreStub) Create(_ context.Context, criterion *models.Criterion) error {
	criterion.ID = 3
	s.created = criterion
	return nil
}

func (s *criterionAdminStoreStub) GetByID(context.Context, int64) (*models.Criterion, error) {
	return nil, sql.ErrNoRows
}

func (s *criterionAdminStoreStub) List(context.Context) ([]models.Criterion, error) {
	return nil, nil
}

func (s *criterionAdminStoreStub) Delete(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *criterionAdminStoreStub) HasAnyMet(context.Context, int64) (bool, error) {
	return s.anyMet, nil
}

func TestCriterionServiceCreateValidatesItemShape(t *testing.T) {
	store := &criterionAdminStoreStub{}
	svc := NewCriterionService(store, nil, nil)

	tests := []struct {
		name string
		item models.CriterionItem
		ok   bool
	}{
		{
			name: "course item with course id",
			item: models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1"},
			ok:   true,
		},
		{
			name: "course item without course id",
			item: models.CriterionItem{Kind: models.ItemKindCourseCompletion},
			ok:   false,
		},
		{
			name: "profile item with field and value",
			item: models.CriterionItem{Kind: models.ItemKindProfile, ProfileField: "email", ProfileValue: "a@example.org"},
			ok:   true,
		},
		{
			name: "profile item without value",
			item: models.CriterionItem{Kind: models.ItemKindProfile, ProfileField: "email"},
			ok:   false,
		},
		{
			name: "unknown kind",
			item: models.CriterionItem{Kind: "quiz", CourseID: "c1"},
			ok:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			criterion := models.Criterion{
				BadgeID:          "b1",
				ConnectionID:     1,
				CompletionMethod: models.CompletionAll,
				Items:            []models.CriterionItem{tc.item},
			}
			err := svc.Create(context.Background(), &criterion)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCriterionServiceCreateRequiresItems(t *testing.T) {
	svc := NewCriterionService(&criterionAdminStoreStub{}, nil, nil)
	err := svc.Create(context.Background(), &models.Criterion{BadgeID: "b1", CompletionMethod: models.CompletionAll})
	require.Error(t, err)
}

func TestCriterionServiceGetMapsMissingRow(t *testing.T) {
	svc := NewCriterionService(&criterionAdminStoreStub{}, nil, nil)
	_, err := svc.Get(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCriterionServiceDeleteRefusesMetCriterion(t *testing.T) {
	store := &criterionAdminStoreStub{anyMet: true}
	svc := NewCriterionService(store, nil, nil)

	err := svc.Delete(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.deleted)
}
