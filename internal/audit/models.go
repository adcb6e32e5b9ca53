// Package audit captures structured records of provisioning and relationship
// changes. Events are transport-agnostic so stores and sinks can fan out.
package audit

import (
	"time"

	id "carebridge/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose, which
// drives retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: account
	// lifecycle in a care platform is subject to long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events feeding monitoring and alerting.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// EventType names an auditable action.
type EventType string

const (
	EventIdentityProvisioned      EventType = "identity.provisioned"
	EventIdentityDeleted          EventType = "identity.deleted"
	EventRelationAssigned         EventType = "relation.assigned"
	EventRelationRemoved          EventType = "relation.removed"
	EventCompensationFailed       EventType = "provision.compensation_failed"
	EventSubscriptionRenewed      EventType = "subscription.renewed"
	EventContainerDeleted         EventType = "storage.container_deleted"
	EventSessionDependentsRemoved EventType = "session.dependents_removed"
)

var eventCategories = map[EventType]EventCategory{
	EventIdentityProvisioned: CategoryCompliance,
	EventIdentityDeleted:     CategoryCompliance,

	// A failed compensation leaves an orphaned provider account; someone
	// has to act on it.
	EventCompensationFailed: CategorySecurity,

	EventRelationAssigned:         CategoryOperations,
	EventRelationRemoved:          CategoryOperations,
	EventSubscriptionRenewed:      CategoryOperations,
	EventContainerDeleted:         CategoryOperations,
	EventSessionDependentsRemoved: CategoryOperations,
}

// Category returns the category for the event type. Unknown types default to
// CategoryOperations.
func (t EventType) Category() EventCategory {
	if cat, ok := eventCategories[t]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is one audit record.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SubjectID id.IdentityID  `json:"subjectId"`
	ActorID   id.IdentityID  `json:"actorId,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	Device    string         `json:"device,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}
