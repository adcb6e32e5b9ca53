// Package store defines persistence for session drafts.
package store

import (
	"context"

	"github.com/google/uuid"

	"carebridge/internal/session/models"
	id "carebridge/pkg/domain"
)

// Store persists drafts. Drafts are short-lived working state; the redis
// implementation expires them, the memory implementation keeps them until
// deleted.
type Store interface {
	Save(ctx context.Context, draft *models.Draft) error
	FindByID(ctx context.Context, draftID uuid.UUID) (*models.Draft, error)
	ListByAuthor(ctx context.Context, authorID id.IdentityID) ([]*models.Draft, error)
	Delete(ctx context.Context, draftID uuid.UUID) error

	// DeleteByRecipient removes every draft addressed to the consumer.
	// Runs in the same failure unit as the consumer's delete cascade.
	DeleteByRecipient(ctx context.Context, recipientID id.IdentityID) (int, error)
	// DeleteByAuthor removes every draft the identity authored.
	DeleteByAuthor(ctx context.Context, authorID id.IdentityID) (int, error)
}
