package billing

import (
	"time"

	"github.com/google/uuid"
)

// Plan identifies a pricing tier.
type Plan string

const (
	PlanFree         Plan = "FREE"
	PlanStarter      Plan = "STARTER"
	PlanProfessional Plan = "PROFESSIONAL"
	PlanEnterprise   Plan = "ENTERPRISE"
)

// Valid reports whether the plan is one of the known tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanProfessional, PlanEnterprise:
		return true
	}
	return false
}

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusTrialing Status = "TRIALING"
	StatusPastDue  Status = "PAST_DUE"
	StatusUnpaid   Status = "UNPAID"
	StatusCanceled Status = "CANCELED"
)

// Subscription is one billing record for an organization. An organization
// has at most one ACTIVE subscription at a time; historical rows keep
// their terminal status.
type Subscription struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Plan           Plan
	Status         Status
	// MonthlyQuota is the number of metered API calls included per month.
	MonthlyQuota int64
	// RateLimit is the per-minute request ceiling.
	RateLimit int64
	// ExternalID is the billing provider's subscription ID. Empty for the
	// FREE subscription created at signup, which has no provider record.
	ExternalID string
	// CustomerID is the billing provider's customer ID.
	CustomerID         string
	PriceID            string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Entitlement is the effective capability set an organization resolves
// to. It is derived from the most recent ACTIVE subscription, falling
// back to the FREE tier when none exists.
type Entitlement struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Plan           Plan      `json:"plan"`
	MonthlyQuota   int64     `json:"monthly_quota"`
	RateLimit      int64     `json:"rate_limit"`
	Status         Status    `json:"status"`
}

// FreeEntitlement returns the fail-safe entitlement for an organization
// with no active subscription.
func FreeEntitlement(orgID uuid.UUID) Entitlement {
	return Entitlement{
		OrganizationID: orgID,
		Plan:           PlanFree,
		MonthlyQuota:   FreeMonthlyQuota,
		RateLimit:      FreeRateLimit,
		Status:         StatusActive,
	}
}

// NewFreeSubscription returns the FREE subscription every organization
// starts with.
func NewFreeSubscription(orgID uuid.UUID) Subscription {
	now := time.Now()
	return Subscription{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Plan:           PlanFree,
		Status:         StatusActive,
		MonthlyQuota:   FreeMonthlyQuota,
		RateLimit:      FreeRateLimit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
