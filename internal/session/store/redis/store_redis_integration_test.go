//go:build integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carebridge/internal/session/models"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/testutil/containers"
)

type RedisDraftStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
	now   time.Time
}

func TestRedisDraftStoreSuite(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	s := &RedisDraftStoreSuite{}
	s.store = New(rc.Client)
	suite.Run(t, s)
}

func (s *RedisDraftStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
}

func (s *RedisDraftStoreSuite) newID() id.IdentityID {
	identityID, err := id.ParseIdentityID(uuid.NewString())
	s.Require().NoError(err)
	return identityID
}

func (s *RedisDraftStoreSuite) seed(author, recipient id.IdentityID) *models.Draft {
	draft, err := models.NewDraft(author, recipient, "evening walk", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Save(s.ctx, draft))
	return draft
}

func (s *RedisDraftStoreSuite) TestRoundTrip() {
	author, recipient := s.newID(), s.newID()
	draft := s.seed(author, recipient)

	found, err := s.store.FindByID(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(draft.ID, found.ID)
	s.Equal(author, found.AuthorID)
	s.Equal(recipient, found.RecipientID)
}

func (s *RedisDraftStoreSuite) TestListByAuthor() {
	author := s.newID()
	s.seed(author, s.newID())
	s.seed(author, s.newID())
	s.seed(s.newID(), s.newID())

	drafts, err := s.store.ListByAuthor(s.ctx, author)
	s.Require().NoError(err)
	s.Len(drafts, 2)
}

func (s *RedisDraftStoreSuite) TestDeleteCleansIndexes() {
	author := s.newID()
	draft := s.seed(author, s.newID())

	s.Require().NoError(s.store.Delete(s.ctx, draft.ID))

	_, err := s.store.FindByID(s.ctx, draft.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	drafts, err := s.store.ListByAuthor(s.ctx, author)
	s.Require().NoError(err)
	s.Empty(drafts)
}

func (s *RedisDraftStoreSuite) TestDeleteByRecipient() {
	recipient := s.newID()
	author := s.newID()
	s.seed(author, recipient)
	s.seed(author, recipient)
	survivor := s.seed(author, s.newID())

	n, err := s.store.DeleteByRecipient(s.ctx, recipient)
	s.Require().NoError(err)
	s.Equal(2, n)

	drafts, err := s.store.ListByAuthor(s.ctx, author)
	s.Require().NoError(err)
	s.Len(drafts, 1)
	s.Equal(survivor.ID, drafts[0].ID)
}

func (s *RedisDraftStoreSuite) TestDraftsExpire() {
	short := New(s.store.client, WithTTL(time.Second))
	draft, err := models.NewDraft(s.newID(), s.newID(), "short lived", s.now)
	s.Require().NoError(err)
	s.Require().NoError(short.Save(s.ctx, draft))

	s.Eventually(func() bool {
		_, err := short.FindByID(s.ctx, draft.ID)
		return errors.Is(err, sentinel.ErrNotFound)
	}, 5*time.Second, 200*time.Millisecond)
}
