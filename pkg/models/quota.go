package models

import "time"

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// QuotaRecord is the per-owner usage ledger. UsedJobs counts free-tier jobs
// only and is never decremented. Tier and subscription status are mutated by
// the external billing collaborator, not by this service.
type QuotaRecord struct {
	OwnerID            string    `db:"owner_id"            json:"owner_id"`
	UsedJobs           int       `db:"used_jobs"           json:"used_jobs"`
	PlanTier           string    `db:"plan_tier"           json:"plan_tier"`
	SubscriptionActive bool      `db:"subscription_active" json:"subscription_active"`
	CreatedAt          time.Time `db:"created_at"          json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"          json:"updated_at"`
}

// Paid reports whether the owner holds an active paid tier.
func (q *QuotaRecord) Paid() bool {
	return q.PlanTier != PlanFree && q.SubscriptionActive
}
