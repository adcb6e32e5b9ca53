// Package notify sends templated notifications around the provisioning
// flows. Delivery is best effort: callers log failures and move on, so a
// notification outage can never fail an account operation.
package notify

import "context"

// TemplateID selects a notification template at the mail provider.
type TemplateID string

const (
	TemplateInviteOrganization TemplateID = "invite-organization"
	TemplateInviteCreator      TemplateID = "invite-creator"
	TemplateInviteNextOfKin    TemplateID = "invite-next-of-kin"
	TemplateInviteAdmin        TemplateID = "invite-admin"
)

// Message is one templated notification.
type Message struct {
	Recipient string         `json:"recipient"`
	Template  TemplateID     `json:"template"`
	Data      map[string]any `json:"data,omitempty"`
}

// Notifier delivers messages. Implementations must treat Send as
// fire-and-forget from the caller's perspective.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// InviteData builds the payload invite templates expect: who is invited, who
// invited them, and the credentials to sign in with for the first time.
func InviteData(receiverFirstName, senderFirstName, organizationName, username, initialSecret string) map[string]any {
	return map[string]any{
		"receiver_firstname": receiverFirstName,
		"sender_firstname":   senderFirstName,
		"institution_name":   organizationName,
		"username":           username,
		"password":           initialSecret,
	}
}
