// Package storage manages the per-consumer media containers that hold
// personal photos and recordings. The blob backend itself lives behind the
// ContainerManager boundary; this package owns only the naming rule and the
// lifecycle calls the account flows make.
package storage

import (
	"context"
	"strings"

	"carebridge/internal/identity/models"
	id "carebridge/pkg/domain"
)

// personalMediaSegment is the fixed middle segment of every container name.
const personalMediaSegment = "personalmedia"

// ContainerManager provisions and removes media containers.
type ContainerManager interface {
	EnsureContainer(ctx context.Context, name string) error
	DeleteContainer(ctx context.Context, name string) error
}

// FormatOrganizationName normalizes an organization's display name for use
// in container names: whitespace stripped, lowercased.
func FormatOrganizationName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}

// ContainerName derives the personal media container name for a consumer:
// the normalized organization name, the fixed media segment and the consumer
// id, dash-separated.
func ContainerName(organization *models.Identity, consumerID id.IdentityID) string {
	return FormatOrganizationName(organization.OrganizationName) +
		"-" + personalMediaSegment +
		"-" + consumerID.String()
}
