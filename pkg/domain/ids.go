// Package domain holds the typed identifiers shared across modules.
//
// Identity ids are assigned by the external identity provider, never locally.
// They are still parsed into a typed UUID at every trust boundary so that a
// raw string from a request or a provider response cannot flow into a store
// call unvalidated.
package domain

import (
	"github.com/google/uuid"

	dErrors "carebridge/pkg/domain-errors"
)

// IdentityID identifies one identity of any role. The value equals the id
// issued by the identity provider.
type IdentityID uuid.UUID

func (i IdentityID) String() string {
	return uuid.UUID(i).String()
}

func (i IdentityID) IsNil() bool {
	return uuid.UUID(i) == uuid.Nil
}

// MarshalText encodes the id in canonical UUID form.
func (i IdentityID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText accepts canonical UUID form. Unlike ParseIdentityID it
// tolerates the nil UUID, so zero-valued optional ids survive a round trip
// through JSON.
func (i *IdentityID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "identity id must be a valid UUID")
	}
	*i = IdentityID(parsed)
	return nil
}

// ParseIdentityID validates and parses a provider-issued id.
// IDs must be valid, non-empty, non-nil UUIDs.
func ParseIdentityID(s string) (IdentityID, error) {
	if s == "" {
		return IdentityID{}, dErrors.New(dErrors.CodeInvalidInput, "identity id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return IdentityID{}, dErrors.New(dErrors.CodeInvalidInput, "identity id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return IdentityID{}, dErrors.New(dErrors.CodeInvalidInput, "identity id must not be the nil UUID")
	}
	return IdentityID(parsed), nil
}
