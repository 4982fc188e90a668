package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/doclens/doclens/internal/store"
	"github.com/doclens/doclens/pkg/models"
)

// quotaStore stubs the store methods the ledger touches; the rest of the
// interface is inert.
type quotaStore struct {
	rec        *models.QuotaRecord
	ensureErr  error
	getErr     error
	incrErr    error
	ensured    int
	increments int
}

func (m *quotaStore) EnsureQuota(_ context.Context, ownerID string) error {
	m.ensured++
	if m.ensureErr != nil {
		return m.ensureErr
	}
	if m.rec == nil {
		m.rec = &models.QuotaRecord{OwnerID: ownerID, PlanTier: models.PlanFree}
	}
	return nil
}

func (m *quotaStore) GetQuota(_ context.Context, _ string) (*models.QuotaRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.rec == nil {
		return nil, store.ErrNotFound
	}
	return m.rec, nil
}

func (m *quotaStore) IncrementQuotaUsage(_ context.Context, _ string) error {
	if m.incrErr != nil {
		return m.incrErr
	}
	m.increments++
	if m.rec != nil {
		m.rec.UsedJobs++
	}
	return nil
}

func (m *quotaStore) Ping(_ context.Context) error { return nil }
func (m *quotaStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *quotaStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (m *quotaStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (m *quotaStore) CreateJob(_ context.Context, _ *models.Job) error          { return nil }
func (m *quotaStore) GetJob(_ context.Context, _ uuid.UUID, _ string) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (m *quotaStore) GetJobInternal(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (m *quotaStore) TransitionJob(_ context.Context, _ uuid.UUID, _, _ string, _ ...store.TransitionOption) (bool, error) {
	return false, nil
}
func (m *quotaStore) DeleteJob(_ context.Context, _ uuid.UUID, _ string) error { return nil }

func TestAdmitNewOwner(t *testing.T) {
	s := &quotaStore{}
	l := NewLedger(s, 5, nil)

	adm := l.CheckAdmission(context.Background(), "owner-1")
	assert.True(t, adm.Allowed)
	assert.Equal(t, 5, adm.CreditsRemaining)
	assert.False(t, adm.RequiresUpgrade)
	assert.Equal(t, 1, s.ensured)
}

func TestAdmitUntilFreeLimit(t *testing.T) {
	s := &quotaStore{}
	l := NewLedger(s, 2, nil)

	for i := 0; i < 2; i++ {
		adm := l.CheckAdmission(context.Background(), "owner-1")
		assert.True(t, adm.Allowed, "job %d should be admitted", i+1)
		l.RecordUsage(context.Background(), "owner-1")
	}

	adm := l.CheckAdmission(context.Background(), "owner-1")
	assert.False(t, adm.Allowed)
	assert.True(t, adm.RequiresUpgrade)
}

func TestPaidOwnerUnlimited(t *testing.T) {
	s := &quotaStore{rec: &models.QuotaRecord{
		OwnerID:            "owner-1",
		UsedJobs:           1000,
		PlanTier:           models.PlanPro,
		SubscriptionActive: true,
	}}
	l := NewLedger(s, 5, nil)

	adm := l.CheckAdmission(context.Background(), "owner-1")
	assert.True(t, adm.Allowed)
	assert.Equal(t, Unlimited, adm.CreditsRemaining)

	l.RecordUsage(context.Background(), "owner-1")
	assert.Equal(t, 0, s.increments)
}

func TestLapsedSubscriptionCountsAsFree(t *testing.T) {
	s := &quotaStore{rec: &models.QuotaRecord{
		OwnerID:            "owner-1",
		UsedJobs:           5,
		PlanTier:           models.PlanPro,
		SubscriptionActive: false,
	}}
	l := NewLedger(s, 5, nil)

	adm := l.CheckAdmission(context.Background(), "owner-1")
	assert.False(t, adm.Allowed)
	assert.True(t, adm.RequiresUpgrade)
}

func TestFailOpenOnStoreErrors(t *testing.T) {
	t.Run("ensure fails", func(t *testing.T) {
		s := &quotaStore{ensureErr: errors.New("db down")}
		adm := NewLedger(s, 5, nil).CheckAdmission(context.Background(), "owner-1")
		assert.True(t, adm.Allowed)
		assert.Equal(t, Unlimited, adm.CreditsRemaining)
	})

	t.Run("read fails", func(t *testing.T) {
		s := &quotaStore{getErr: errors.New("db down")}
		s.rec = &models.QuotaRecord{OwnerID: "owner-1", PlanTier: models.PlanFree}
		adm := NewLedger(s, 5, nil).CheckAdmission(context.Background(), "owner-1")
		assert.True(t, adm.Allowed)
	})
}

func TestRecordUsageSwallowsErrors(t *testing.T) {
	s := &quotaStore{incrErr: errors.New("db down")}
	s.rec = &models.QuotaRecord{OwnerID: "owner-1", PlanTier: models.PlanFree, CreatedAt: time.Now()}

	// Must not panic or propagate.
	NewLedger(s, 5, nil).RecordUsage(context.Background(), "owner-1")
	assert.Equal(t, 0, s.increments)
}
