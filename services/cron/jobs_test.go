package cron

import (
	"context"
	"testing"
	"time"

	"github.com/classpilot/api/model"
	"github.com/classpilot/api/services/identity"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubIdentity struct {
	deleted   []string
	deleteErr map[string]error
}

func (s *stubIdentity) CreateUser(ctx context.Context, email, password, firstName, lastName string, meta identity.Metadata) (string, error) {
	return "", nil
}

func (s *stubIdentity) DeleteUser(ctx context.Context, id string) error {
	if err, ok := s.deleteErr[id]; ok {
		return err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubIdentity) UpdateUser(ctx context.Context, id string, meta identity.Metadata) error {
	return nil
}

func newTestManager(t *testing.T) (*CronManager, *gorm.DB, *stubIdentity) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&model.ProvisioningOrphan{}, &model.CronJobLog{}, &model.Account{}, &model.RevokedToken{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	idp := &stubIdentity{deleteErr: make(map[string]error)}
	return NewCronManager(db, idp), db, idp
}

func TestSweepResolvesOrphans(t *testing.T) {
	m, db, idp := newTestManager(t)

	orphan := model.ProvisioningOrphan{IdentityID: "idp-1", Reason: model.OrphanLocalWriteFailed}
	if err := db.Create(&orphan).Error; err != nil {
		t.Fatalf("failed to seed orphan: %v", err)
	}

	m.SweepOrphanedIdentities()

	if len(idp.deleted) != 1 || idp.deleted[0] != "idp-1" {
		t.Fatalf("expected provider delete of idp-1, got %v", idp.deleted)
	}

	var after model.ProvisioningOrphan
	if err := db.First(&after, orphan.ID).Error; err != nil {
		t.Fatalf("failed to reload orphan: %v", err)
	}
	if after.ResolvedAt == nil {
		t.Fatal("expected orphan to be marked resolved")
	}
	if after.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", after.Attempts)
	}
}

func TestSweepTreatsNotFoundAsHealed(t *testing.T) {
	m, db, idp := newTestManager(t)
	idp.deleteErr["gone"] = identity.ErrNotFound

	orphan := model.ProvisioningOrphan{IdentityID: "gone", Reason: model.OrphanExternalDeleteFailed}
	if err := db.Create(&orphan).Error; err != nil {
		t.Fatalf("failed to seed orphan: %v", err)
	}

	m.SweepOrphanedIdentities()

	var after model.ProvisioningOrphan
	if err := db.First(&after, orphan.ID).Error; err != nil {
		t.Fatalf("failed to reload orphan: %v", err)
	}
	if after.ResolvedAt == nil {
		t.Fatal("an already-deleted provider user heals the split")
	}
}

func TestSweepSparesAdoptedIdentities(t *testing.T) {
	m, db, idp := newTestManager(t)

	// The orphaned identity got re-attached to an account by a later retry:
	// the sweep must resolve the row without touching the provider.
	identityID := "idp-9"
	account := model.Account{Email: "kept@example.com", Role: model.RoleTeacher, IdentityID: &identityID}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	orphan := model.ProvisioningOrphan{IdentityID: "idp-9", Reason: model.OrphanLocalWriteFailed}
	if err := db.Create(&orphan).Error; err != nil {
		t.Fatalf("failed to seed orphan: %v", err)
	}

	m.SweepOrphanedIdentities()

	if len(idp.deleted) != 0 {
		t.Fatalf("an adopted identity must not be deleted, got %v", idp.deleted)
	}

	var after model.ProvisioningOrphan
	if err := db.First(&after, orphan.ID).Error; err != nil {
		t.Fatalf("failed to reload orphan: %v", err)
	}
	if after.ResolvedAt == nil {
		t.Fatal("expected the adopted orphan to be marked resolved")
	}
}

func TestSweepKeepsFailingOrphans(t *testing.T) {
	m, db, idp := newTestManager(t)
	idp.deleteErr["stuck"] = &identity.ProviderError{StatusCode: 503, Message: "unavailable"}

	orphan := model.ProvisioningOrphan{IdentityID: "stuck", Reason: model.OrphanLocalWriteFailed}
	if err := db.Create(&orphan).Error; err != nil {
		t.Fatalf("failed to seed orphan: %v", err)
	}

	m.SweepOrphanedIdentities()

	var after model.ProvisioningOrphan
	if err := db.First(&after, orphan.ID).Error; err != nil {
		t.Fatalf("failed to reload orphan: %v", err)
	}
	if after.ResolvedAt != nil {
		t.Fatal("failed deletes must stay unresolved")
	}
	if after.Attempts != 1 {
		t.Fatalf("expected attempt count 1, got %d", after.Attempts)
	}
	if after.LastError == "" {
		t.Fatal("expected the provider error to be recorded")
	}
}

func TestSweepSkipsExhaustedOrphans(t *testing.T) {
	m, db, idp := newTestManager(t)

	orphan := model.ProvisioningOrphan{
		IdentityID: "tired",
		Reason:     model.OrphanLocalWriteFailed,
		Attempts:   maxOrphanAttempts,
	}
	if err := db.Create(&orphan).Error; err != nil {
		t.Fatalf("failed to seed orphan: %v", err)
	}

	m.SweepOrphanedIdentities()

	if len(idp.deleted) != 0 {
		t.Fatalf("orphans past the attempt cap must be left alone, got deletes %v", idp.deleted)
	}
}

func TestCleanupRevokedTokens(t *testing.T) {
	m, db, _ := newTestManager(t)

	expired := model.RevokedToken{JTI: "old", ExpiresAt: time.Now().Add(-time.Hour)}
	live := model.RevokedToken{JTI: "live", ExpiresAt: time.Now().Add(time.Hour)}
	if err := db.Create(&expired).Error; err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}
	if err := db.Create(&live).Error; err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}

	m.CleanupRevokedTokens()

	var n int64
	if err := db.Model(&model.RevokedToken{}).Count(&n).Error; err != nil {
		t.Fatalf("failed to count tokens: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the live token to remain, got %d rows", n)
	}
}
