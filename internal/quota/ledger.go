// Package quota implements the per-owner admission ledger: paid owners are
// always admitted, free-tier owners get a fixed number of jobs.
package quota

import (
	"context"
	"log/slog"

	"github.com/doclens/doclens/internal/store"
)

// Unlimited marks an admission with no credit bound (paid tier).
const Unlimited = -1

// Admission is the answer to "is this owner allowed one more job".
type Admission struct {
	Allowed          bool
	CreditsRemaining int
	RequiresUpgrade  bool
}

// Ledger evaluates and records free-tier usage against the store.
type Ledger struct {
	store     store.Store
	freeLimit int
	log       *slog.Logger
}

func NewLedger(s store.Store, freeLimit int, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{store: s, freeLimit: freeLimit, log: log}
}

// CheckAdmission applies the admission rules in order: active paid tier is
// always allowed, then free credits, then upgrade-required. A missing quota
// row is initialized with zero usage first. A store failure degrades to
// "allow" with a logged warning: quota enforcement is traded for upload
// availability, never the other way around.
func (l *Ledger) CheckAdmission(ctx context.Context, ownerID string) Admission {
	if err := l.store.EnsureQuota(ctx, ownerID); err != nil {
		l.log.Warn("quota init failed, admitting without enforcement", "owner_id", ownerID, "error", err)
		return Admission{Allowed: true, CreditsRemaining: Unlimited}
	}

	rec, err := l.store.GetQuota(ctx, ownerID)
	if err != nil {
		l.log.Warn("quota read failed, admitting without enforcement", "owner_id", ownerID, "error", err)
		return Admission{Allowed: true, CreditsRemaining: Unlimited}
	}

	if rec.Paid() {
		return Admission{Allowed: true, CreditsRemaining: Unlimited}
	}
	if rec.UsedJobs < l.freeLimit {
		return Admission{Allowed: true, CreditsRemaining: l.freeLimit - rec.UsedJobs}
	}
	return Admission{RequiresUpgrade: true}
}

// RecordUsage counts one admitted job against the owner's free credits.
// Paid-tier usage is not tracked. Recording failures are logged and
// swallowed; the job has already been admitted.
func (l *Ledger) RecordUsage(ctx context.Context, ownerID string) {
	rec, err := l.store.GetQuota(ctx, ownerID)
	if err == nil && rec.Paid() {
		return
	}
	if err := l.store.IncrementQuotaUsage(ctx, ownerID); err != nil {
		l.log.Warn("quota usage not recorded", "owner_id", ownerID, "error", err)
	}
}
