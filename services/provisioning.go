package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/classpilot/api/model"
	"github.com/classpilot/api/services/identity"
	"github.com/classpilot/api/utils/auth"
	"github.com/classpilot/api/utils/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IdentityProvider is the slice of the external identity provider's account
// lifecycle API the orchestrator needs. None of these calls ever runs inside
// a database transaction; each one is a separately-failable side effect.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password, firstName, lastName string, meta identity.Metadata) (string, error)
	DeleteUser(ctx context.Context, id string) error
	UpdateUser(ctx context.Context, id string, meta identity.Metadata) error
}

// ProvisioningService sequences identity-provider calls and local-store
// transactions for account lifecycle operations. The local half of every
// operation is atomic; the external half is not covered by any transaction,
// and split states are recorded as provisioning orphans for the sweep job.
type ProvisioningService struct {
	db  *gorm.DB
	idp IdentityProvider
}

// NewProvisioningService creates a new provisioning service
func NewProvisioningService(db *gorm.DB, idp IdentityProvider) *ProvisioningService {
	return &ProvisioningService{db: db, idp: idp}
}

// RegisterInput carries a self-service sign-up. Registration only creates
// the identity and the bare Account; the role profile is added later by
// CompleteOnboarding.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      string
}

// Register creates the provider-side identity first, then the local Account
// in its own transaction. The Account is upserted by email, so a retry after
// a partial failure (identity created, local write lost) converges instead
// of duplicating rows.
func (s *ProvisioningService) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	if !model.ValidRole(in.Role) || in.Role == model.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: cannot self-register role %q", ErrInvalidInput, in.Role)
	}

	var existing model.Account
	err := s.db.WithContext(ctx).Where("email = ?", in.Email).First(&existing).Error
	if err == nil && existing.IdentityID != nil {
		return nil, fmt.Errorf("%w: email %q is taken", ErrConflict, in.Email)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	identityID, err := s.idp.CreateUser(ctx, in.Email, in.Password, in.FirstName, in.LastName,
		identity.Metadata{Role: in.Role})
	if err != nil {
		if errors.Is(err, identity.ErrConflict) {
			return nil, fmt.Errorf("%w: email %q already registered at identity provider", ErrConflict, in.Email)
		}
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var account model.Account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("email = ?", in.Email).First(&account).Error
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		account.IdentityID = &identityID
		account.Email = in.Email
		account.PasswordHash = hash
		account.FirstName = in.FirstName
		account.LastName = in.LastName
		account.Phone = in.Phone
		account.Role = in.Role
		account.Status = model.AccountActive

		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return tx.Create(&account).Error
		}
		return tx.Save(&account).Error
	})
	if err != nil {
		s.recordOrphan(ctx, identityID, in.Email, model.OrphanLocalWriteFailed, err)
		return nil, wrapTxError("register", asServiceError(err))
	}

	return &account, nil
}

// Institute onboarding modes.
const (
	InstituteModeCreate = "CREATE"
	InstituteModeJoin   = "JOIN"
)

// InstituteOnboarding carries the INSTITUTE_ADMIN variant fields.
type InstituteOnboarding struct {
	Mode        string // CREATE or JOIN
	Name        string // CREATE only
	Code        string // CREATE only
	InstituteID uint   // JOIN only
}

// TeacherOnboarding carries the TEACHER variant fields.
type TeacherOnboarding struct {
	TeacherID       string
	InstituteID     *uint
	SubjectsRaw     string // delimited string form, e.g. "physics, maths"
	Subjects        []string
	Qualification   string
	ExperienceYears int
}

// StudentOnboarding carries the STUDENT variant fields.
type StudentOnboarding struct {
	StudentID     string
	InstituteID   uint
	DateOfBirth   *time.Time
	GuardianName  string
	GuardianPhone string
	GuardianEmail string
	Goals         []string
}

// OnboardingRequest is dispatched on Role; exactly one variant pointer must
// be set and it must match the role.
type OnboardingRequest struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      string

	Institute *InstituteOnboarding
	Teacher   *TeacherOnboarding
	Student   *StudentOnboarding
}

func (r *OnboardingRequest) variantMatchesRole() bool {
	switch r.Role {
	case model.RoleInstituteAdmin:
		return r.Institute != nil && r.Teacher == nil && r.Student == nil
	case model.RoleTeacher:
		return r.Teacher != nil && r.Institute == nil && r.Student == nil
	case model.RoleStudent:
		return r.Student != nil && r.Institute == nil && r.Teacher == nil
	}
	return false
}

// CompleteOnboarding finishes self-service onboarding for an account that
// signed up through the identity provider. The Account row is upserted by
// email, so re-invoking after a partial prior failure cannot duplicate it;
// profile creation is guarded by the business-key pre-checks. All local
// writes commit atomically, then provider metadata is updated out-of-band.
func (s *ProvisioningService) CompleteOnboarding(ctx context.Context, req OnboardingRequest) (*model.Account, error) {
	if !req.variantMatchesRole() {
		return nil, fmt.Errorf("%w: onboarding payload does not match role %q", ErrInvalidInput, req.Role)
	}

	var account model.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.upsertAccountByEmail(tx, &account, req); err != nil {
			return err
		}

		switch req.Role {
		case model.RoleInstituteAdmin:
			return s.onboardInstituteAdmin(tx, &account, req.Institute)
		case model.RoleTeacher:
			return s.onboardTeacher(tx, &account, req.Teacher)
		case model.RoleStudent:
			return s.onboardStudent(tx, &account, req.Student)
		}
		return fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, req.Role)
	})
	if err != nil {
		return nil, asServiceError(err)
	}

	// Provider metadata update is advisory and non-transactional; the local
	// store is authoritative once the transaction above has committed.
	if account.IdentityID != nil {
		done := true
		meta := identity.Metadata{Role: account.Role, OnboardingComplete: &done, Name: account.FullName()}
		if err := s.idp.UpdateUser(ctx, *account.IdentityID, meta); err != nil {
			log.Printf("provisioning: failed to sync onboarding metadata for account %d: %v", account.ID, err)
		}
	}

	return &account, nil
}

// upsertAccountByEmail finds or creates the Account for a self-service flow.
// The identity provider already knows this user, so the email is the only
// stable key to converge on.
func (s *ProvisioningService) upsertAccountByEmail(tx *gorm.DB, account *model.Account, req OnboardingRequest) error {
	err := tx.Where("email = ?", req.Email).First(account).Error
	if err == nil {
		if account.OnboardingComplete {
			return fmt.Errorf("%w: onboarding already completed", ErrConflict)
		}
		account.FirstName = req.FirstName
		account.LastName = req.LastName
		account.Phone = req.Phone
		account.Role = req.Role
		account.OnboardingComplete = true
		return tx.Save(account).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	*account = model.Account{
		Email:              req.Email,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Phone:              req.Phone,
		Role:               req.Role,
		Status:             model.AccountActive,
		OnboardingComplete: true,
	}
	return tx.Create(account).Error
}

func (s *ProvisioningService) onboardInstituteAdmin(tx *gorm.DB, account *model.Account, in *InstituteOnboarding) error {
	var count int64
	if err := tx.Model(&model.InstituteAdminProfile{}).Where("account_id = ?", account.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: account already has an institute admin profile", ErrConflict)
	}

	switch in.Mode {
	case InstituteModeCreate:
		if err := tx.Model(&model.Institute{}).Where("code = ?", in.Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: institute code %q is taken", ErrConflict, in.Code)
		}

		institute := model.Institute{
			Name:   in.Name,
			Code:   in.Code,
			Status: model.InstitutePendingApproval,
		}
		if err := tx.Create(&institute).Error; err != nil {
			return err
		}

		profile := model.InstituteAdminProfile{
			AccountID:   account.ID,
			InstituteID: institute.ID,
			IsCreator:   true,
		}
		return tx.Create(&profile).Error

	case InstituteModeJoin:
		var institute model.Institute
		if err := tx.First(&institute, in.InstituteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: institute %d", ErrNotFound, in.InstituteID)
			}
			return err
		}

		profile := model.InstituteAdminProfile{
			AccountID:   account.ID,
			InstituteID: institute.ID,
			IsCreator:   false,
		}
		return tx.Create(&profile).Error
	}

	return fmt.Errorf("%w: unknown institute mode %q", ErrInvalidInput, in.Mode)
}

func (s *ProvisioningService) onboardTeacher(tx *gorm.DB, account *model.Account, in *TeacherOnboarding) error {
	var existing model.TeacherProfile
	err := tx.Where("teacher_id = ?", in.TeacherID).First(&existing).Error
	if err == nil {
		if existing.AccountID == account.ID {
			// Retry of an already-committed onboarding; converged, nothing to do.
			return nil
		}
		return fmt.Errorf("%w: teacher id %q is taken", ErrConflict, in.TeacherID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	subjects, err := marshalList(validation.NormalizeList(in.SubjectsRaw, in.Subjects))
	if err != nil {
		return err
	}

	profile := model.TeacherProfile{
		AccountID:       account.ID,
		TeacherID:       in.TeacherID,
		InstituteID:     in.InstituteID,
		Subjects:        subjects,
		Qualification:   in.Qualification,
		ExperienceYears: in.ExperienceYears,
	}
	return tx.Create(&profile).Error
}

func (s *ProvisioningService) onboardStudent(tx *gorm.DB, account *model.Account, in *StudentOnboarding) error {
	if in.InstituteID == 0 {
		return fmt.Errorf("%w: students must select an institute", ErrInvalidInput)
	}

	var existing model.StudentProfile
	err := tx.Where("student_id = ?", in.StudentID).First(&existing).Error
	if err == nil {
		if existing.AccountID == account.ID {
			return nil
		}
		return fmt.Errorf("%w: student id %q is taken", ErrConflict, in.StudentID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var count int64
	if err := tx.Model(&model.Institute{}).Where("id = ?", in.InstituteID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: institute %d", ErrNotFound, in.InstituteID)
	}

	goals, err := marshalList(validation.NormalizeList("", in.Goals))
	if err != nil {
		return err
	}

	instituteID := in.InstituteID
	profile := model.StudentProfile{
		AccountID:     account.ID,
		StudentID:     in.StudentID,
		InstituteID:   &instituteID,
		DateOfBirth:   in.DateOfBirth,
		GuardianName:  in.GuardianName,
		GuardianPhone: in.GuardianPhone,
		GuardianEmail: in.GuardianEmail,
		Goals:         goals,
	}
	return tx.Create(&profile).Error
}

// marshalList encodes a string slice as a JSON column value. nil slices
// become empty arrays so readers never see SQL NULL.
func marshalList(items []string) (datatypes.JSON, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode list: %w", err)
	}
	return datatypes.JSON(data), nil
}

// recordOrphan persists a split-state marker outside any transaction. Losing
// the marker is tolerable (the sweep can also match provider users against
// accounts); failing the operation over it is not.
func (s *ProvisioningService) recordOrphan(ctx context.Context, identityID, email, reason string, cause error) {
	orphan := model.ProvisioningOrphan{
		IdentityID: identityID,
		Email:      email,
		Reason:     reason,
	}
	if cause != nil {
		orphan.LastError = cause.Error()
	}
	if err := s.db.WithContext(ctx).Create(&orphan).Error; err != nil {
		log.Printf("provisioning: failed to record orphan identity %s (%s): %v", identityID, reason, err)
	}
}
