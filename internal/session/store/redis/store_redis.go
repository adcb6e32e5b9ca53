// Package redis provides the production draft store. Drafts carry a TTL so
// abandoned session forms age out on their own.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"carebridge/internal/session/models"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

const (
	draftKeyPrefix     = "draft:id:"
	authorKeyPrefix    = "draft:author:"
	recipientKeyPrefix = "draft:recipient:"

	// DefaultTTL keeps abandoned drafts for a month before they age out.
	DefaultTTL = 30 * 24 * time.Hour
)

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL overrides the draft lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New constructs a redis-backed draft store. The client lifecycle is managed
// by the caller.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func draftKey(draftID uuid.UUID) string    { return draftKeyPrefix + draftID.String() }
func authorKey(owner id.IdentityID) string { return authorKeyPrefix + owner.String() }
func recipKey(owner id.IdentityID) string  { return recipientKeyPrefix + owner.String() }

// Save writes the draft and indexes it by author and recipient. The index
// sets share the draft TTL; they are refreshed on every save.
func (s *Store) Save(ctx context.Context, draft *models.Draft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, draftKey(draft.ID), payload, s.ttl)
	pipe.SAdd(ctx, authorKey(draft.AuthorID), draft.ID.String())
	pipe.Expire(ctx, authorKey(draft.AuthorID), s.ttl)
	pipe.SAdd(ctx, recipKey(draft.RecipientID), draft.ID.String())
	pipe.Expire(ctx, recipKey(draft.RecipientID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) FindByID(ctx context.Context, draftID uuid.UUID) (*models.Draft, error) {
	payload, err := s.client.Get(ctx, draftKey(draftID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var draft models.Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (s *Store) ListByAuthor(ctx context.Context, authorID id.IdentityID) ([]*models.Draft, error) {
	members, err := s.client.SMembers(ctx, authorKey(authorID)).Result()
	if err != nil {
		return nil, err
	}

	var out []*models.Draft
	for _, member := range members {
		draftID, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		draft, err := s.FindByID(ctx, draftID)
		if errors.Is(err, sentinel.ErrNotFound) {
			// The draft aged out; drop the stale index entry.
			s.client.SRem(ctx, authorKey(authorID), member)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, draft)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, draftID uuid.UUID) error {
	draft, err := s.FindByID(ctx, draftID)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, draftKey(draftID))
	pipe.SRem(ctx, authorKey(draft.AuthorID), draftID.String())
	pipe.SRem(ctx, recipKey(draft.RecipientID), draftID.String())
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) DeleteByRecipient(ctx context.Context, recipientID id.IdentityID) (int, error) {
	return s.deleteIndexed(ctx, recipKey(recipientID))
}

func (s *Store) DeleteByAuthor(ctx context.Context, authorID id.IdentityID) (int, error) {
	return s.deleteIndexed(ctx, authorKey(authorID))
}

func (s *Store) deleteIndexed(ctx context.Context, indexKey string) (int, error) {
	members, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, member := range members {
		draftID, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		switch err := s.Delete(ctx, draftID); {
		case errors.Is(err, sentinel.ErrNotFound):
			// Already aged out.
		case err != nil:
			return n, err
		default:
			n++
		}
	}
	if err := s.client.Del(ctx, indexKey).Err(); err != nil {
		return n, err
	}
	return n, nil
}
