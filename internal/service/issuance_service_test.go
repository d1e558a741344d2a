package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/internal/obf"
)

type recipientStoreStub struct {
	users       map[string]models.User
	blacklisted map[string]bool
	history     []string
}

func (s *recipientStoreStub) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func (s *recipientStoreStub) ListByEmails(_ context.Context, emails []string) ([]models.User, error) {
	var out []models.User
	for _, email := range emails {
		for _, user := range s.users {
			if user.Email == email {
				out = append(out, user)
			}
		}
	}
	return out, nil
}

func (s *recipientStoreStub) RecordEmailHistory(_ context.Context, userID, email string, _ time.Time) error {
	s.history = append(s.history, userID+":"+email)
	return nil
}

func (s *recipientStoreStub) IsBlacklisted(_ context.Context, userID, badgeID string) (bool, error) {
	return s.blacklisted[userID+"/"+badgeID], nil
}

type backpackStoreStub struct {
	packs map[string]models.Backpack
}

func (s *backpackStoreStub) GetByUserID(_ context.Context, userID string) (*models.Backpack, error) {
	pack, ok := s.packs[userID]
	if !ok {
		return nil, nil
	}
	return &pack, nil
}

type metGuardStub struct {
	marked []string
	err    error
}

func (s *metGuardStub) MarkMet(_ context.Context, criterionID int64, userID string, _ time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.marked = append(s.marked, userID)
	return nil
}

type failedQueueStub struct {
	records []models.IssueFailedRecord
	err     error
}

func (s *failedQueueStub) Create(_ context.Context, record *models.IssueFailedRecord) error {
	if s.err != nil {
		return s.err
	}
	record.ID = int64(len(s.records) + 1)
	s.records = append(s.records, *record)
	return nil
}

type connectionListerStub struct {
	conns []models.OAuth2Connection
}

func (s *connectionListerStub) List(context.Context) ([]models.OAuth2Connection, error) {
	return s.conns, nil
}

func (s *connectionListerStub) GetByID(_ context.Context, id int64) (*models.OAuth2Connection, error) {
	for _, conn := range s.conns {
		if conn.ID == id {
			c := conn
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

type notifierStub struct {
	notices []BadgeIssuedNotice
}

func (s *notifierStub) BadgeIssued(badgeName string, recipients []string, course string) {
	s.notices = append(s.notices, BadgeIssuedNotice{BadgeName: badgeName, Recipients: recipients, CourseName: course})
}

// badgeClientStub satisfies BadgeClient for pipeline tests.
type badgeClientStub struct {
	conn       models.OAuth2Connection
	badges     map[string]models.Badge
	assertions []models.Assertion
	issueErr   error
	issued     []obf.IssueRequest
	revoked    [][]string
	testResult int
}

func (s *badgeClientStub) GetBadges(context.Context, []string, string) ([]models.Badge, error) {
	var out []models.Badge
	for _, badge := range s.badges {
		out = append(out, badge)
	}
	return out, nil
}

func (s *badgeClientStub) GetBadge(_ context.Context, badgeID string) (*models.Badge, error) {
	badge, ok := s.badges[badgeID]
	if !ok {
		return nil, errors.New("badge not found")
	}
	return &badge, nil
}

func (s *badgeClientStub) GetCategories(context.Context) ([]string, error) { return nil, nil }

func (s *badgeClientStub) ExportBadge(context.Context, models.Badge) error { return nil }

func (s *badgeClientStub) DeleteBadge(context.Context, string) error { return nil }

func (s *badgeClientStub) IssueBadge(_ context.Context, req obf.IssueRequest) (string, error) {
	if s.issueErr != nil {
		return "", s.issueErr
	}
	s.issued = append(s.issued, req)
	return "evt-1", nil
}

func (s *badgeClientStub) GetAssertions(context.Context, string, string) ([]models.Assertion, error) {
	return s.assertions, nil
}

func (s *badgeClientStub) GetEvent(context.Context, string) (*models.Assertion, error) {
	return nil, errors.New("not implemented")
}

func (s *badgeClientStub) RevokeEvent(_ context.Context, _ string, emails []string) error {
	s.revoked = append(s.revoked, emails)
	return nil
}

func (s *badgeClientStub) TestConnection(context.Context) int { return s.testResult }

func (s *badgeClientStub) Connection() models.OAuth2Connection { return s.conn }

func stubFactory(client *badgeClientStub) ClientFactory {
	return func(conn models.OAuth2Connection) BadgeClient {
		client.conn = conn
		return client
	}
}

func issuanceFixture() (*recipientStoreStub, *backpackStoreStub, *metGuardStub, *failedQueueStub, *connectionListerStub, *badgeClientStub, *notifierStub) {
	users := &recipientStoreStub{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "u1@example.org"},
			"u2": {ID: "u2", Email: "u2@example.org"},
		},
		blacklisted: map[string]bool{},
	}
	packs := &backpackStoreStub{packs: map[string]models.Backpack{}}
	met := &metGuardStub{}
	failed := &failedQueueStub{}
	conns := &connectionListerStub{conns: []models.OAuth2Connection{{ID: 1, ClientID: "client1"}}}
	client := &badgeClientStub{
		badges:     map[string]models.Badge{"b1": {ID: "b1", Name: "Gold Star"}},
		testResult: models.ConnectionOK,
	}
	notify := &notifierStub{}
	return users, packs, met, failed, conns, client, notify
}

func TestIssueForCriterionMarksMetOnSuccess(t *testing.T) {
	users, packs, met, failed, conns, client, notify := issuanceFixture()
	svc := NewIssuanceService(users, packs, met, failed, conns, stubFactory(client), notify, nil, nil, "https://lms.example.org")

	criterion := models.Criterion{ID: 7, BadgeID: "b1", ConnectionID: 1}
	err := svc.IssueForCriterion(context.Background(), criterion, []string{"u1", "u2"}, CourseContext{CourseID: "c1", CourseName: "Intro"})
	require.NoError(t, err)

	require.Len(t, client.issued, 1)
	assert.ElementsMatch(t, []string{"u1@example.org", "u2@example.org"}, client.issued[0].Recipients)
	assert.Equal(t, "https://lms.example.org", client.issued[0].SiteRoot)
	assert.ElementsMatch(t, []string{"u1", "u2"}, met.marked)
	assert.Empty(t, failed.records)
	require.Len(t, notify.notices, 1)
	assert.Equal(t, "Gold Star", notify.notices[0].BadgeName)
	assert.ElementsMatch(t, []string{"u1:u1@example.org", "u2:u2@example.org"}, users.history)
}

func TestIssueForCriterionPrefersVerifiedBackpackEmail(t *testing.T) {
	users, packs, met, failed, conns, client, notify := issuanceFixture()
	packs.packs["u1"] = models.Backpack{ID: 1, UserID: "u1", Email: "pack@example.org", Verified: true}
	packs.packs["u2"] = models.Backpack{ID: 2, UserID: "u2", Email: "unverified@example.org", Verified: false}

	svc := NewIssuanceService(users, packs, met, failed, conns, stubFactory(client), notify, nil, nil, "")
	err := svc.IssueForCriterion(context.Background(), models.Criterion{ID: 7, BadgeID: "b1", ConnectionID: 1}, []string{"u1", "u2"}, CourseContext{})
	require.NoError(t, err)

	require.Len(t, client.issued, 1)
	assert.ElementsMatch(t, []string{"pack@example.org", "u2@example.org"}, client.issued[0].Recipients)
}

func TestIssueForCriterionSkipsBlacklistedUsers(t *testing.T) {
	users, packs, met, failed, conns, client, notify := issuanceFixture()
	users.blacklisted["u1/b1"] = true

	svc := NewIssuanceService(users, packs, met, failed, conns, stubFactory(client), notify, nil, nil, "")
	err := svc.IssueForCriterion(context.Background(), models.Criterion{ID: 7, BadgeID: "b1", ConnectionID: 1}, []string{"u1", "u2"}, CourseContext{})
	require.NoError(t, err)

	require.Len(t, client.issued, 1)
	assert.Equal(t, []string{"u2@example.org"}, client.issued[0].Recipients)
	assert.Equal(t, []string{"u2"}, met.marked)
}

func TestIssueForCriterionAllBlacklistedIsNoOp(t *testing.T) {
	users, packs, met, failed, conns, client, notify := issuanceFixture()
	users.blacklisted["u1/b1"] = true
	users.blacklisted["u2/b1"] = true

	svc := NewIssuanceService(users, packs, met, failed, conns, stubFactory(client), notify, nil, nil, "")
	err := svc.IssueForCriterion(context.Background(), models.Criterion{ID: 7, BadgeID: "b1", ConnectionID: 1}, []string{"u1", "u2"}, CourseContext{})
	require.NoError(t, err)

	assert.Empty(t, client.issued)
	assert.Empty(t, met.marked)
	assert.Empty(t, failed.records)
}

func TestIssueForCriterionQueuesFailureWithoutMarkingMet(t *testing.T) {
	users, packs, met, failed, conns, client, notify := issuanceFixture()
	client.issueErr = errors.New("upstream down")

	svc := NewIssuanceService(users, packs, met, failed, conns, stubFactory(client), notify, nil, nil, "")
	criterion := models.Criterion{
		ID:               7,
		BadgeID:          "b1",
		ConnectionID:     1,
		UseAddendum:      true,
		CriteriaAddendum: "extra work",
	}
	err := svc.IssueForCriterion(context.Background(), criterion, []string{"u1"}, CourseContext{CourseID: "c1", ActivityName: "Final"})
	require.NoError(t, err, "a queued failure is not an error for the caller")

	assert.Empty(t, met.marked, "criterion met must only be written after a confirmed issuance")
	assert.Empty(t, notify.notices)

	require.Len(t, failed.records, 1)
	record := failed.records[0]
	assert.Equal(t, models.FailedStatusPending, record.Status)
	assert.Equal(t, "b1", record.Snapshot.BadgeID)
	assert.Equal(t, "Gold Star", record.Snapshot.BadgeName)
	assert.Equal(t, int64(7), record.Snapshot.CriterionID)
	assert.Equal(t, []string{"u1@example.org"}, record.Snapshot.Recipients)
	assert.Equal(t, "extra work", record.Snapshot.CriteriaAddendum)
	assert.Equal(t, "c1", record.Snapshot.Course)
	assert.Equal(t, "Final", record.Snapshot.Activity)
}

func TestIssueForCriterionNotifiesWithDisplayNames(t *testing.T) {
	users, packs, met, failed, conns, client, notify := issuanceFixture()
	users.users["u1"] = models.User{ID: "u1", Email: "u1@example.org", FirstName: "Ada", LastName: "Lovelace"}

	svc := NewIssuanceService(users, packs, met, failed, conns, stubFactory(client), notify, nil, nil, "")
	err := svc.IssueForCriterion(context.Background(), models.Criterion{ID: 7, BadgeID: "b1", ConnectionID: 1}, []string{"u1", "u2"}, CourseContext{CourseName: "Intro"})
	require.NoError(t, err)

	// The upstream call gets bare addresses, the notice the readable form.
	require.Len(t, client.issued, 1)
	assert.ElementsMatch(t, []string{"u1@example.org", "u2@example.org"}, client.issued[0].Recipients)
	require.Len(t, notify.notices, 1)
	assert.ElementsMatch(t, []string{"Ada Lovelace <u1@example.org>", "u2@example.org"}, notify.notices[0].Recipients)
}

func TestIssueDirectIssuesToExplicitEmails(t *testing.T) {
	users, packs, met, failed, conns, client, notify := issuanceFixture()
	svc := NewIssuanceService(users, packs, met, failed, conns, stubFactory(client), notify, nil, nil, "")

	err := svc.IssueDirect(context.Background(), 1, "b1", []string{"u1@example.org", "outsider@example.org"}, CourseContext{}, "")
	require.NoError(t, err)

	require.Len(t, client.issued, 1)
	assert.Equal(t, []string{"u1@example.org", "outsider@example.org"}, client.issued[0].Recipients)
	// History is only recorded for known accounts.
	assert.Equal(t, []string{"u1:u1@example.org"}, users.history)
}
