// Package memory provides an in-memory draft store for tests and single-node
// development.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"carebridge/internal/session/models"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

type Store struct {
	mu     sync.RWMutex
	drafts map[uuid.UUID]*models.Draft
}

func New() *Store {
	return &Store{drafts: make(map[uuid.UUID]*models.Draft)}
}

func (s *Store) Save(_ context.Context, draft *models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *draft
	s.drafts[draft.ID] = &cp
	return nil
}

func (s *Store) FindByID(_ context.Context, draftID uuid.UUID) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[draftID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *draft
	return &cp, nil
}

func (s *Store) ListByAuthor(_ context.Context, authorID id.IdentityID) ([]*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Draft
	for _, draft := range s.drafts {
		if draft.AuthorID == authorID {
			cp := *draft
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, draftID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[draftID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.drafts, draftID)
	return nil
}

func (s *Store) DeleteByRecipient(_ context.Context, recipientID id.IdentityID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for draftID, draft := range s.drafts {
		if draft.RecipientID == recipientID {
			delete(s.drafts, draftID)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteByAuthor(_ context.Context, authorID id.IdentityID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for draftID, draft := range s.drafts {
		if draft.AuthorID == authorID {
			delete(s.drafts, draftID)
			n++
		}
	}
	return n, nil
}
