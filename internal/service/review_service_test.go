package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

type criterionStoreStub struct {
	criteria []models.Criterion
	met      map[int64]map[string]bool
}

func (s *criterionStoreStub) ListByCourse(_ context.Context, courseID string) ([]models.Criterion, error) {
	var out []models.Criterion
	for _, criterion := range s.criteria {
		for _, item := range criterion.Items {
			if item.CourseID == courseID {
				out = append(out, criterion)
				break
			}
		}
	}
	return out, nil
}

func (s *criterionStoreStub) IsMet(_ context.Context, criterionID int64, userID string) (bool, error) {
	return s.met[criterionID][userID], nil
}

type completionSourceStub struct {
	completions map[string]models.CourseCompletion
	users       map[string]models.User
}

func completionKey(userID, courseID string) string { return userID + "/" + courseID }

func (s *completionSourceStub) UpsertCompletion(_ context.Context, completion models.CourseCompletion) error {
	if s.completions == nil {
		s.completions = make(map[string]models.CourseCompletion)
	}
	s.completions[completionKey(completion.UserID, completion.CourseID)] = completion
	return nil
}

func (s *completionSourceStub) GetCompletion(_ context.Context, userID, courseID string) (*models.CourseCompletion, error) {
	completion, ok := s.completions[completionKey(userID, courseID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &completion, nil
}

func (s *completionSourceStub) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

type issuerStub struct {
	calls []issuedCall
	err   error
}

type issuedCall struct {
	criterionID int64
	userIDs     []string
}

func (s *issuerStub) IssueForCriterion(_ context.Context, criterion models.Criterion, userIDs []string, _ CourseContext) error {
	s.calls = append(s.calls, issuedCall{criterionID: criterion.ID, userIDs: userIDs})
	return s.err
}

type markerStub struct {
	busy     bool
	acquired int
	released int
}

func (m *markerStub) TryAcquire(context.Context, int64) (bool, error) {
	if m.busy {
		return false, nil
	}
	m.acquired++
	return true, nil
}

func (m *markerStub) Release(context.Context, int64) { m.released++ }

func float64Ptr(v float64) *float64  { return &v }
func timePtr(t time.Time) *time.Time { return &t }

func courseCriterion(id int64, method models.CompletionMethod, items ...models.CriterionItem) models.Criterion {
	return models.Criterion{ID: id, BadgeID: "b1", ConnectionID: 1, CompletionMethod: method, Items: items}
}

func completedFact(userID, courseID string) models.CourseCompletion {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.CourseCompletion{UserID: userID, CourseID: courseID, Completed: true, CompletedAt: &at, Grade: float64Ptr(80)}
}

func TestHandleCompletionIssuesWhenCriterionPasses(t *testing.T) {
	criteria := &criterionStoreStub{
		criteria: []models.Criterion{
			courseCriterion(7, models.CompletionAll, models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1"}),
		},
	}
	completions := &completionSourceStub{}
	issuer := &issuerStub{}
	svc := NewReviewService(criteria, completions, issuer, nil, nil)

	err := svc.HandleCompletion(context.Background(), completedFact("u1", "c1"), CourseContext{CourseID: "c1"})
	require.NoError(t, err)

	require.Len(t, issuer.calls, 1)
	assert.Equal(t, int64(7), issuer.calls[0].criterionID)
	assert.Equal(t, []string{"u1"}, issuer.calls[0].userIDs)
}

func TestReviewSkipsAlreadyMetCriterion(t *testing.T) {
	criterion := courseCriterion(7, models.CompletionAll, models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1"})
	criteria := &criterionStoreStub{met: map[int64]map[string]bool{7: {"u1": true}}}
	completions := &completionSourceStub{}
	require.NoError(t, completions.UpsertCompletion(context.Background(), completedFact("u1", "c1")))

	svc := NewReviewService(criteria, completions, &issuerStub{}, nil, nil)
	met, err := svc.Review(context.Background(), criterion, "u1")
	require.NoError(t, err)
	assert.False(t, met, "a met criterion must never be reviewed again")
}

func TestReviewSkipsWhenAnotherReviewInFlight(t *testing.T) {
	criterion := courseCriterion(7, models.CompletionAll, models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1"})
	criteria := &criterionStoreStub{}
	completions := &completionSourceStub{}
	require.NoError(t, completions.UpsertCompletion(context.Background(), completedFact("u1", "c1")))

	marker := &markerStub{busy: true}
	svc := NewReviewService(criteria, completions, &issuerStub{}, marker, nil)
	met, err := svc.Review(context.Background(), criterion, "u1")
	require.NoError(t, err)
	assert.False(t, met)
	assert.Zero(t, marker.released)
}

func TestReviewReleasesMarker(t *testing.T) {
	criterion := courseCriterion(7, models.CompletionAll, models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1"})
	completions := &completionSourceStub{}
	require.NoError(t, completions.UpsertCompletion(context.Background(), completedFact("u1", "c1")))

	marker := &markerStub{}
	svc := NewReviewService(&criterionStoreStub{}, completions, &issuerStub{}, marker, nil)
	met, err := svc.Review(context.Background(), criterion, "u1")
	require.NoError(t, err)
	assert.True(t, met)
	assert.Equal(t, 1, marker.acquired)
	assert.Equal(t, 1, marker.released)
}

func TestEvaluateAnyPassesWithSinglePassingItem(t *testing.T) {
	criterion := courseCriterion(7, models.CompletionAny,
		models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1"},
		models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c2"},
	)
	completions := &completionSourceStub{}
	// Only c2 is completed.
	require.NoError(t, completions.UpsertCompletion(context.Background(), completedFact("u1", "c2")))

	svc := NewReviewService(&criterionStoreStub{}, completions, &issuerStub{}, nil, nil)
	met, err := svc.Review(context.Background(), criterion, "u1")
	require.NoError(t, err)
	assert.True(t, met)
}

func TestEvaluateAllFailsWithSingleFailingItem(t *testing.T) {
	criterion := courseCriterion(7, models.CompletionAll,
		models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1"},
		models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c2"},
	)
	completions := &completionSourceStub{}
	require.NoError(t, completions.UpsertCompletion(context.Background(), completedFact("u1", "c1")))

	svc := NewReviewService(&criterionStoreStub{}, completions, &issuerStub{}, nil, nil)
	met, err := svc.Review(context.Background(), criterion, "u1")
	require.NoError(t, err)
	assert.False(t, met)
}

func TestEvaluateEmptyCriterionNeverPasses(t *testing.T) {
	criterion := courseCriterion(7, models.CompletionAll)
	svc := NewReviewService(&criterionStoreStub{}, &completionSourceStub{}, &issuerStub{}, nil, nil)
	met, err := svc.Review(context.Background(), criterion, "u1")
	require.NoError(t, err)
	assert.False(t, met)
}

func TestReviewCompletionItemThresholds(t *testing.T) {
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		item       models.CriterionItem
		completion models.CourseCompletion
		want       bool
	}{
		{
			name:       "completed flag missing fails even with grade",
			item:       models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1"},
			completion: models.CourseCompletion{UserID: "u1", CourseID: "c1", Grade: float64Ptr(95)},
			want:       false,
		},
		{
			name:       "unset thresholds pass automatically",
			item:       models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1"},
			completion: models.CourseCompletion{UserID: "u1", CourseID: "c1", Completed: true},
			want:       true,
		},
		{
			name:       "grade below minimum fails",
			item:       models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1", MinGrade: float64Ptr(75)},
			completion: models.CourseCompletion{UserID: "u1", CourseID: "c1", Completed: true, Grade: float64Ptr(60)},
			want:       false,
		},
		{
			name:       "grade at minimum passes",
			item:       models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1", MinGrade: float64Ptr(75)},
			completion: models.CourseCompletion{UserID: "u1", CourseID: "c1", Completed: true, Grade: float64Ptr(75)},
			want:       true,
		},
		{
			name:       "completion after deadline fails",
			item:       models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1", CompletedBy: timePtr(deadline)},
			completion: models.CourseCompletion{UserID: "u1", CourseID: "c1", Completed: true, CompletedAt: timePtr(deadline.Add(time.Hour))},
			want:       false,
		},
		{
			name:       "completion before deadline passes",
			item:       models.CriterionItem{Kind: models.ItemKindCourseCompletion, CourseID: "c1", CompletedBy: timePtr(deadline)},
			completion: models.CourseCompletion{UserID: "u1", CourseID: "c1", Completed: true, CompletedAt: timePtr(deadline.Add(-time.Hour))},
			want:       true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			completions := &completionSourceStub{}
			require.NoError(t, completions.UpsertCompletion(context.Background(), tc.completion))
			svc := NewReviewService(&criterionStoreStub{}, completions, &issuerStub{}, nil, nil)

			criterion := courseCriterion(7, models.CompletionAll, tc.item)
			met, err := svc.Review(context.Background(), criterion, "u1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, met)
		})
	}
}

func TestReviewProfileItem(t *testing.T) {
	completions := &completionSourceStub{
		users: map[string]models.User{"u1": {ID: "u1", Email: "a@example.org", FirstName: "Ada"}},
	}
	svc := NewReviewService(&criterionStoreStub{}, completions, &issuerStub{}, nil, nil)

	match := courseCriterion(7, models.CompletionAll,
		models.CriterionItem{Kind: models.ItemKindProfile, ProfileField: "first_name", ProfileValue: "Ada"})
	met, err := svc.Review(context.Background(), match, "u1")
	require.NoError(t, err)
	assert.True(t, met)

	mismatch := courseCriterion(8, models.CompletionAll,
		models.CriterionItem{Kind: models.ItemKindProfile, ProfileField: "email", ProfileValue: "other@example.org"})
	met, err = svc.Review(context.Background(), mismatch, "u1")
	require.NoError(t, err)
	assert.False(t, met)
}
