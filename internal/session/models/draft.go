// Package models defines session drafts: partially authored care sessions a
// creator or organization saves before publishing. Drafts are owned records
// hanging off identities, not graph edges, so deleting an identity removes
// its drafts through the store rather than the relation engine.
package models

import (
	"time"

	"github.com/google/uuid"

	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// Authoring steps run 1 through 5; a draft past the last step is published
// and leaves this store.
const (
	StepMin = 1
	StepMax = 5
)

// Draft is an in-progress session form.
type Draft struct {
	ID uuid.UUID `json:"id"`
	// AuthorID is the creator or organization writing the session.
	AuthorID id.IdentityID `json:"authorId"`
	// RecipientID is the consumer the session is for.
	RecipientID id.IdentityID `json:"recipientId"`

	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
	Step  int    `json:"step"`

	CreatedDate time.Time  `json:"createdDate"`
	UpdatedDate *time.Time `json:"updatedDate,omitempty"`
}

// NewDraft constructs a Draft at the first authoring step.
func NewDraft(authorID, recipientID id.IdentityID, title string, now time.Time) (*Draft, error) {
	if authorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "draft author is required")
	}
	if recipientID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "draft recipient is required")
	}
	return &Draft{
		ID:          uuid.New(),
		AuthorID:    authorID,
		RecipientID: recipientID,
		Title:       title,
		Step:        StepMin,
		CreatedDate: now,
	}, nil
}

// Advance moves the draft to step, which must stay within the authoring
// range and never move backwards past validation.
func (d *Draft) Advance(step int, now time.Time) error {
	if step < StepMin || step > StepMax {
		return dErrors.New(dErrors.CodeValidation, "draft step out of range")
	}
	d.Step = step
	d.UpdatedDate = &now
	return nil
}
