package subscription

import "time"

// The service runs a single Norwegian streaming plan. Every enrollment uses
// the same plan parameters; only the user id and the dates vary.
const (
	Country  = "NO"
	Currency = "NOK"
	PlanCode = "premium-unlimited-streaming"

	statusActive = "active"
)

// timestampLayout is ISO-8601 UTC without milliseconds. The service rejects
// fractional seconds.
const timestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp renders t the way the subscription service expects.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ExpiryFrom returns the subscription expiry for a period starting at start.
// Periods run exactly one calendar month.
func ExpiryFrom(start time.Time) time.Time {
	return start.AddDate(0, 1, 0)
}

// Payload is the create/renew subscription request body.
type Payload struct {
	Country                string  `json:"country"`
	ActivatedAt            string  `json:"activatedAt"`
	CurrentPeriodStartDate string  `json:"currentPeriodStartDate"`
	ExpiryDate             string  `json:"expiryDate"`
	UserID                 string  `json:"userId"`
	Currency               string  `json:"currency"`
	PlanCode               string  `json:"planCode"`
	RecurringFee           float64 `json:"recurringFee"`
	Status                 string  `json:"status"`
}

// NewEnrollment builds the payload for a first-time subscription: activation
// and period start are now, expiry one month out.
func NewEnrollment(userID string, now time.Time) Payload {
	return build(userID, now, now)
}

// NewRenewal builds the payload for renewing an existing subscription whose
// account was activated at activatedAt, with the new period starting at start.
func NewRenewal(userID string, activatedAt, start time.Time) Payload {
	return build(userID, activatedAt, start)
}

func build(userID string, activatedAt, start time.Time) Payload {
	return Payload{
		Country:                Country,
		ActivatedAt:            FormatTimestamp(activatedAt),
		CurrentPeriodStartDate: FormatTimestamp(start),
		ExpiryDate:             FormatTimestamp(ExpiryFrom(start)),
		UserID:                 userID,
		Currency:               Currency,
		PlanCode:               PlanCode,
		RecurringFee:           0,
		Status:                 statusActive,
	}
}
