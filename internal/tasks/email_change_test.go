package tasks

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

type backpackSweepStoreStub struct {
	packs        []models.Backpack
	disconnected []int64
}

func (s *backpackSweepStoreStub) ListAll(context.Context) ([]models.Backpack, error) {
	return s.packs, nil
}

func (s *backpackSweepStoreStub) Disconnect(_ context.Context, id int64) error {
	s.disconnected = append(s.disconnected, id)
	return nil
}

type accountSourceStub struct {
	users map[string]models.User
}

func (s *accountSourceStub) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func TestEmailChangeSweepDisconnectsStaleLinks(t *testing.T) {
	packs := &backpackSweepStoreStub{packs: []models.Backpack{
		{ID: 1, UserID: "u1", Email: "old@example.org"},
		{ID: 2, UserID: "u2", Email: "current@example.org"},
	}}
	users := &accountSourceStub{users: map[string]models.User{
		"u1": {ID: "u1", Email: "new@example.org"},
		"u2": {ID: "u2", Email: "current@example.org"},
	}}

	sweep := NewEmailChangeSweep(packs, users, nil)
	require.NoError(t, sweep.Run(context.Background()))

	assert.Equal(t, []int64{1}, packs.disconnected)
}

func TestEmailChangeSweepLeavesSelfVerifyingProvidersAlone(t *testing.T) {
	packs := &backpackSweepStoreStub{packs: []models.Backpack{
		{ID: 1, UserID: "u1", Email: "old@example.org", RequiresVerification: true},
	}}
	users := &accountSourceStub{users: map[string]models.User{
		"u1": {ID: "u1", Email: "new@example.org"},
	}}

	sweep := NewEmailChangeSweep(packs, users, nil)
	require.NoError(t, sweep.Run(context.Background()))

	assert.Empty(t, packs.disconnected)
}

func TestEmailChangeSweepSkipsOrphanedLinks(t *testing.T) {
	packs := &backpackSweepStoreStub{packs: []models.Backpack{
		{ID: 1, UserID: "gone", Email: "old@example.org"},
	}}
	users := &accountSourceStub{users: map[string]models.User{}}

	sweep := NewEmailChangeSweep(packs, users, nil)
	require.NoError(t, sweep.Run(context.Background()))

	assert.Empty(t, packs.disconnected)
}
