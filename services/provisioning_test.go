package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/classpilot/api/model"
	"github.com/classpilot/api/services/identity"
	"gorm.io/gorm"
)

// fakeIdentity is an in-memory stand-in for the identity provider. It
// records every call so tests can assert on ordering and cleanup.
type fakeIdentity struct {
	mu      sync.Mutex
	nextID  int
	users   map[string]string // identity id -> email
	deleted []string
	updates map[string]identity.Metadata

	createErr error
	deleteErr error
	updateErr error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		users:   make(map[string]string),
		updates: make(map[string]identity.Metadata),
	}
}

func (f *fakeIdentity) CreateUser(ctx context.Context, email, password, firstName, lastName string, meta identity.Metadata) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	for _, existing := range f.users {
		if existing == email {
			return "", identity.ErrConflict
		}
	}
	f.nextID++
	id := fmt.Sprintf("idp-%d", f.nextID)
	f.users[id] = email
	return id, nil
}

func (f *fakeIdentity) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.users[id]; !ok {
		return identity.ErrNotFound
	}
	delete(f.users, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIdentity) UpdateUser(ctx context.Context, id string, meta identity.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = meta
	return nil
}

func newTestService(t *testing.T) (*ProvisioningService, *gorm.DB, *fakeIdentity) {
	t.Helper()
	db := newTestDB(t)
	idp := newFakeIdentity()
	return NewProvisioningService(db, idp), db, idp
}

func seedInstitute(t *testing.T, db *gorm.DB, code string) model.Institute {
	t.Helper()
	institute := model.Institute{Name: "Test Institute " + code, Code: code, Status: model.InstituteActive}
	if err := db.Create(&institute).Error; err != nil {
		t.Fatalf("failed to seed institute: %v", err)
	}
	return institute
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}

func TestRegisterCreatesIdentityAndAccount(t *testing.T) {
	svc, db, idp := newTestService(t)

	account, err := svc.Register(context.Background(), RegisterInput{
		Email:     "jo@example.com",
		Password:  "correct-horse",
		FirstName: "Jo",
		Role:      model.RoleTeacher,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if account.IdentityID == nil {
		t.Fatal("expected account to carry the provider identity id")
	}
	if idp.users[*account.IdentityID] != "jo@example.com" {
		t.Fatalf("identity provider does not know %q", *account.IdentityID)
	}
	if account.OnboardingComplete {
		t.Fatal("registration must not complete onboarding")
	}
	if countRows(t, db, &model.Account{}) != 1 {
		t.Fatal("expected exactly one account")
	}
}

func TestRegisterRejectsSuperAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "root@example.com",
		Password: "correct-horse",
		Role:     model.RoleSuperAdmin,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := RegisterInput{Email: "dup@example.com", Password: "correct-horse", Role: model.RoleStudent}
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), in); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCompleteOnboardingTeacher(t *testing.T) {
	svc, db, idp := newTestService(t)

	account, err := svc.Register(context.Background(), RegisterInput{
		Email:    "t@example.com",
		Password: "correct-horse",
		Role:     model.RoleTeacher,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	updated, err := svc.CompleteOnboarding(context.Background(), OnboardingRequest{
		Email:     "t@example.com",
		FirstName: "Tea",
		Role:      model.RoleTeacher,
		Teacher: &TeacherOnboarding{
			TeacherID:   "T-100",
			SubjectsRaw: "Physics, Maths, physics",
		},
	})
	if err != nil {
		t.Fatalf("CompleteOnboarding failed: %v", err)
	}

	if !updated.OnboardingComplete {
		t.Fatal("expected onboarding to be marked complete")
	}
	if countRows(t, db, &model.Account{}) != 1 {
		t.Fatal("onboarding must not create a second account")
	}

	var profile model.TeacherProfile
	if err := db.Where("account_id = ?", updated.ID).First(&profile).Error; err != nil {
		t.Fatalf("expected one teacher profile: %v", err)
	}
	if string(profile.Subjects) != `["Physics","Maths"]` {
		t.Fatalf("expected normalized subjects, got %s", profile.Subjects)
	}

	meta, ok := idp.updates[*account.IdentityID]
	if !ok {
		t.Fatal("expected provider metadata sync after commit")
	}
	if meta.OnboardingComplete == nil || !*meta.OnboardingComplete {
		t.Fatal("expected onboarding_complete=true in provider metadata")
	}
}

func TestCompleteOnboardingVariantMustMatchRole(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CompleteOnboarding(context.Background(), OnboardingRequest{
		Email: "x@example.com",
		Role:  model.RoleTeacher,
		Student: &StudentOnboarding{
			StudentID:   "S-1",
			InstituteID: 1,
		},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for mismatched variant, got %v", err)
	}
}

func TestCompleteOnboardingRetryConverges(t *testing.T) {
	svc, db, _ := newTestService(t)

	// Simulate a prior run that committed the account and profile but never
	// reported success: the retry must succeed without duplicating rows.
	account := model.Account{
		Email: "retry@example.com",
		Role:  model.RoleTeacher,
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	profile := model.TeacherProfile{AccountID: account.ID, TeacherID: "T-7"}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}

	_, err := svc.CompleteOnboarding(context.Background(), OnboardingRequest{
		Email: "retry@example.com",
		Role:  model.RoleTeacher,
		Teacher: &TeacherOnboarding{
			TeacherID: "T-7",
		},
	})
	if err != nil {
		t.Fatalf("retried onboarding failed: %v", err)
	}

	if n := countRows(t, db, &model.TeacherProfile{}); n != 1 {
		t.Fatalf("expected one profile after retry, got %d", n)
	}
	if n := countRows(t, db, &model.Account{}); n != 1 {
		t.Fatalf("expected one account after retry, got %d", n)
	}
}

func TestCompleteOnboardingTwiceConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := OnboardingRequest{
		Email: "twice@example.com",
		Role:  model.RoleTeacher,
		Teacher: &TeacherOnboarding{
			TeacherID: "T-9",
		},
	}
	if _, err := svc.CompleteOnboarding(context.Background(), req); err != nil {
		t.Fatalf("first onboarding failed: %v", err)
	}
	if _, err := svc.CompleteOnboarding(context.Background(), req); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second onboarding, got %v", err)
	}
}

func TestOnboardingSecondIdentitylessAccount(t *testing.T) {
	svc, db, _ := newTestService(t)

	// A local-only account with no external identity, like the seeded super
	// admin. Further identity-less accounts must be able to coexist with it.
	seeded := model.Account{
		Email: "root@example.com",
		Role:  model.RoleSuperAdmin,
	}
	if err := db.Create(&seeded).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	for i, req := range []OnboardingRequest{
		{
			Email:   "p1@example.com",
			Role:    model.RoleTeacher,
			Teacher: &TeacherOnboarding{TeacherID: "P-1"},
		},
		{
			Email:   "p2@example.com",
			Role:    model.RoleTeacher,
			Teacher: &TeacherOnboarding{TeacherID: "P-2"},
		},
	} {
		account, err := svc.CompleteOnboarding(context.Background(), req)
		if err != nil {
			t.Fatalf("onboarding %d failed: %v", i+1, err)
		}
		if account.IdentityID != nil {
			t.Fatalf("onboarding %d must not invent an identity id", i+1)
		}
	}

	if n := countRows(t, db, &model.Account{}); n != 3 {
		t.Fatalf("expected three accounts, got %d", n)
	}
}

func TestOnboardingTeacherIDTaken(t *testing.T) {
	svc, _, _ := newTestService(t)

	first := OnboardingRequest{
		Email:   "a@example.com",
		Role:    model.RoleTeacher,
		Teacher: &TeacherOnboarding{TeacherID: "T-1"},
	}
	if _, err := svc.CompleteOnboarding(context.Background(), first); err != nil {
		t.Fatalf("first onboarding failed: %v", err)
	}

	second := OnboardingRequest{
		Email:   "b@example.com",
		Role:    model.RoleTeacher,
		Teacher: &TeacherOnboarding{TeacherID: "T-1"},
	}
	if _, err := svc.CompleteOnboarding(context.Background(), second); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for taken teacher id, got %v", err)
	}
}

func TestOnboardingInstituteCreateAndDuplicateCode(t *testing.T) {
	svc, db, _ := newTestService(t)

	first := OnboardingRequest{
		Email: "admin1@example.com",
		Role:  model.RoleInstituteAdmin,
		Institute: &InstituteOnboarding{
			Mode: InstituteModeCreate,
			Name: "Springfield High",
			Code: "SPR-01",
		},
	}
	account, err := svc.CompleteOnboarding(context.Background(), first)
	if err != nil {
		t.Fatalf("institute onboarding failed: %v", err)
	}

	var institute model.Institute
	if err := db.Where("code = ?", "SPR-01").First(&institute).Error; err != nil {
		t.Fatalf("expected institute to exist: %v", err)
	}
	if institute.Status != model.InstitutePendingApproval {
		t.Fatalf("new institutes must start pending approval, got %s", institute.Status)
	}

	var profile model.InstituteAdminProfile
	if err := db.Where("account_id = ?", account.ID).First(&profile).Error; err != nil {
		t.Fatalf("expected admin profile: %v", err)
	}
	if !profile.IsCreator {
		t.Fatal("the creating admin must be flagged as creator")
	}

	second := OnboardingRequest{
		Email: "admin2@example.com",
		Role:  model.RoleInstituteAdmin,
		Institute: &InstituteOnboarding{
			Mode: InstituteModeCreate,
			Name: "Shelbyville High",
			Code: "SPR-01",
		},
	}
	if _, err := svc.CompleteOnboarding(context.Background(), second); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate code, got %v", err)
	}
}

func TestOnboardingInstituteJoin(t *testing.T) {
	svc, db, _ := newTestService(t)
	institute := seedInstitute(t, db, "JOIN-01")

	account, err := svc.CompleteOnboarding(context.Background(), OnboardingRequest{
		Email: "joiner@example.com",
		Role:  model.RoleInstituteAdmin,
		Institute: &InstituteOnboarding{
			Mode:        InstituteModeJoin,
			InstituteID: institute.ID,
		},
	})
	if err != nil {
		t.Fatalf("join onboarding failed: %v", err)
	}

	var profile model.InstituteAdminProfile
	if err := db.Where("account_id = ?", account.ID).First(&profile).Error; err != nil {
		t.Fatalf("expected admin profile: %v", err)
	}
	if profile.IsCreator {
		t.Fatal("joining admins must not be flagged as creator")
	}
	if profile.InstituteID != institute.ID {
		t.Fatalf("expected institute %d, got %d", institute.ID, profile.InstituteID)
	}
}

func TestOnboardingInstituteJoinUnknown(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CompleteOnboarding(context.Background(), OnboardingRequest{
		Email: "joiner@example.com",
		Role:  model.RoleInstituteAdmin,
		Institute: &InstituteOnboarding{
			Mode:        InstituteModeJoin,
			InstituteID: 999,
		},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOnboardingStudentRequiresInstitute(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CompleteOnboarding(context.Background(), OnboardingRequest{
		Email: "s@example.com",
		Role:  model.RoleStudent,
		Student: &StudentOnboarding{
			StudentID: "S-1",
		},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without an institute, got %v", err)
	}
}

func TestCreateTeacherProvisionsIdentityFirst(t *testing.T) {
	svc, db, idp := newTestService(t)
	institute := seedInstitute(t, db, "CT-01")

	profile, err := svc.CreateTeacher(context.Background(), NewAccountInput{
		Email:     "newt@example.com",
		Password:  "correct-horse",
		FirstName: "Newt",
	}, TeacherOnboarding{
		TeacherID:   "T-200",
		InstituteID: &institute.ID,
	})
	if err != nil {
		t.Fatalf("CreateTeacher failed: %v", err)
	}

	var account model.Account
	if err := db.First(&account, profile.AccountID).Error; err != nil {
		t.Fatalf("expected account: %v", err)
	}
	if account.IdentityID == nil {
		t.Fatal("expected the provider id on the account")
	}
	if idp.users[*account.IdentityID] != "newt@example.com" {
		t.Fatal("expected the identity to exist at the provider")
	}
	if !account.OnboardingComplete {
		t.Fatal("admin-created accounts are fully onboarded")
	}
}

func TestCreateTeacherIdentityFailureLeavesNoRows(t *testing.T) {
	svc, db, idp := newTestService(t)
	idp.createErr = identity.ErrConflict

	_, err := svc.CreateTeacher(context.Background(), NewAccountInput{
		Email:    "fail@example.com",
		Password: "correct-horse",
	}, TeacherOnboarding{TeacherID: "T-300"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if countRows(t, db, &model.Account{}) != 0 {
		t.Fatal("no local rows may exist when the identity create failed")
	}
	if countRows(t, db, &model.TeacherProfile{}) != 0 {
		t.Fatal("no profile may exist when the identity create failed")
	}
}

func TestUpdateTeacherReconcilesJoinSets(t *testing.T) {
	svc, db, _ := newTestService(t)
	institute := seedInstitute(t, db, "UT-01")

	profile, err := svc.CreateTeacher(context.Background(), NewAccountInput{
		Email:    "ut@example.com",
		Password: "correct-horse",
	}, TeacherOnboarding{TeacherID: "T-400", InstituteID: &institute.ID})
	if err != nil {
		t.Fatalf("CreateTeacher failed: %v", err)
	}

	classes := &[]uint{1, 2}
	if _, err := svc.UpdateTeacher(context.Background(), profile.ID, TeacherUpdate{ClassIDs: classes}); err != nil {
		t.Fatalf("UpdateTeacher failed: %v", err)
	}

	classes = &[]uint{2, 3}
	if _, err := svc.UpdateTeacher(context.Background(), profile.ID, TeacherUpdate{ClassIDs: classes}); err != nil {
		t.Fatalf("UpdateTeacher failed: %v", err)
	}

	var ids []uint
	if err := db.Model(&model.ClassTeacher{}).Where("teacher_profile_id = ?", profile.ID).
		Order("class_id").Pluck("class_id", &ids).Error; err != nil {
		t.Fatalf("failed to read class set: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("expected class set [2 3], got %v", ids)
	}
}

func TestUpdateTeacherNilSetLeavesRelationsAlone(t *testing.T) {
	svc, db, _ := newTestService(t)

	profile, err := svc.CreateTeacher(context.Background(), NewAccountInput{
		Email:    "nil@example.com",
		Password: "correct-horse",
	}, TeacherOnboarding{TeacherID: "T-500"})
	if err != nil {
		t.Fatalf("CreateTeacher failed: %v", err)
	}

	classes := &[]uint{4}
	if _, err := svc.UpdateTeacher(context.Background(), profile.ID, TeacherUpdate{ClassIDs: classes}); err != nil {
		t.Fatalf("UpdateTeacher failed: %v", err)
	}

	qual := "MSc"
	if _, err := svc.UpdateTeacher(context.Background(), profile.ID, TeacherUpdate{Qualification: &qual}); err != nil {
		t.Fatalf("UpdateTeacher failed: %v", err)
	}

	if n := countRows(t, db, &model.ClassTeacher{}); n != 1 {
		t.Fatalf("expected class assignment untouched, got %d rows", n)
	}
}

func TestDeleteTeacherCleansJoinRowsAndIdentity(t *testing.T) {
	svc, db, idp := newTestService(t)

	profile, err := svc.CreateTeacher(context.Background(), NewAccountInput{
		Email:    "gone@example.com",
		Password: "correct-horse",
	}, TeacherOnboarding{TeacherID: "T-600"})
	if err != nil {
		t.Fatalf("CreateTeacher failed: %v", err)
	}

	var account model.Account
	if err := db.First(&account, profile.AccountID).Error; err != nil {
		t.Fatalf("expected account: %v", err)
	}

	classes := &[]uint{1, 2}
	courses := &[]uint{3}
	if _, err := svc.UpdateTeacher(context.Background(), profile.ID, TeacherUpdate{ClassIDs: classes, CourseIDs: courses}); err != nil {
		t.Fatalf("UpdateTeacher failed: %v", err)
	}

	if err := svc.DeleteTeacher(context.Background(), profile.ID); err != nil {
		t.Fatalf("DeleteTeacher failed: %v", err)
	}

	if n := countRows(t, db, &model.ClassTeacher{}); n != 0 {
		t.Fatalf("expected class assignments removed, got %d", n)
	}
	if n := countRows(t, db, &model.CourseTeacher{}); n != 0 {
		t.Fatalf("expected course assignments removed, got %d", n)
	}
	if n := countRows(t, db, &model.Account{}); n != 0 {
		t.Fatalf("expected account removed, got %d", n)
	}
	if _, ok := idp.users[*account.IdentityID]; ok {
		t.Fatal("expected the provider identity to be deleted")
	}
}

func TestDeleteTeacherExternalFailureRecordsOrphan(t *testing.T) {
	svc, db, idp := newTestService(t)

	profile, err := svc.CreateTeacher(context.Background(), NewAccountInput{
		Email:    "split@example.com",
		Password: "correct-horse",
	}, TeacherOnboarding{TeacherID: "T-700"})
	if err != nil {
		t.Fatalf("CreateTeacher failed: %v", err)
	}

	idp.deleteErr = &identity.ProviderError{StatusCode: 503, Message: "unavailable"}

	// The local delete is committed; the external failure is recorded for
	// the sweep, not surfaced to the caller.
	if err := svc.DeleteTeacher(context.Background(), profile.ID); err != nil {
		t.Fatalf("DeleteTeacher failed: %v", err)
	}

	if n := countRows(t, db, &model.Account{}); n != 0 {
		t.Fatalf("expected local delete to stand, got %d accounts", n)
	}

	var orphan model.ProvisioningOrphan
	if err := db.Where("reason = ?", model.OrphanExternalDeleteFailed).First(&orphan).Error; err != nil {
		t.Fatalf("expected an orphan record for the failed external delete: %v", err)
	}
}

func TestCreateStudentAndInstituteAdmin(t *testing.T) {
	svc, db, _ := newTestService(t)
	institute := seedInstitute(t, db, "CS-01")

	student, err := svc.CreateStudent(context.Background(), NewAccountInput{
		Email:    "stud@example.com",
		Password: "correct-horse",
	}, StudentOnboarding{
		StudentID:   "S-100",
		InstituteID: institute.ID,
		Goals:       []string{"JEE"},
	})
	if err != nil {
		t.Fatalf("CreateStudent failed: %v", err)
	}
	if student.InstituteID == nil || *student.InstituteID != institute.ID {
		t.Fatal("expected the student to belong to the institute")
	}

	admin, err := svc.CreateInstituteAdmin(context.Background(), NewAccountInput{
		Email:    "adm@example.com",
		Password: "correct-horse",
	}, institute.ID)
	if err != nil {
		t.Fatalf("CreateInstituteAdmin failed: %v", err)
	}
	if admin.IsCreator {
		t.Fatal("admin-created institute admins are never the creator")
	}

	if n := countRows(t, db, &model.Account{}); n != 2 {
		t.Fatalf("expected two accounts, got %d", n)
	}
}

func TestCreateStudentUnknownInstitute(t *testing.T) {
	svc, db, idp := newTestService(t)

	_, err := svc.CreateStudent(context.Background(), NewAccountInput{
		Email:    "lost@example.com",
		Password: "correct-horse",
	}, StudentOnboarding{
		StudentID:   "S-404",
		InstituteID: 42,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// The pre-check runs before the identity create, so nothing leaks.
	if len(idp.users) != 0 {
		t.Fatal("no identity may be created for a rejected student")
	}
	if countRows(t, db, &model.Account{}) != 0 {
		t.Fatal("no account may exist for a rejected student")
	}
}
