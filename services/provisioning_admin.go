package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/classpilot/api/model"
	"github.com/classpilot/api/services/identity"
	"github.com/classpilot/api/utils/auth"
	"github.com/classpilot/api/utils/validation"
	"gorm.io/gorm"
)

// NewAccountInput carries the Account half of an admin-driven create.
type NewAccountInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// AccountUpdate carries optional Account scalar changes for update flows.
// Nil fields are left untouched.
type AccountUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Status    *string
}

func (u *AccountUpdate) apply(account *model.Account) (identityDirty bool) {
	if u == nil {
		return false
	}
	if u.Email != nil && *u.Email != account.Email {
		account.Email = *u.Email
		identityDirty = true
	}
	if u.FirstName != nil && *u.FirstName != account.FirstName {
		account.FirstName = *u.FirstName
		identityDirty = true
	}
	if u.LastName != nil && *u.LastName != account.LastName {
		account.LastName = *u.LastName
		identityDirty = true
	}
	if u.Phone != nil {
		account.Phone = *u.Phone
	}
	if u.Status != nil {
		account.Status = *u.Status
	}
	return identityDirty
}

// CreateTeacher provisions a teacher end to end: identity first (so the
// provider id seeds Account.IdentityID), then one local transaction for the
// Account and profile. A local failure after the external create leaves an
// orphaned identity, which is recorded for the sweep rather than rolled back.
func (s *ProvisioningService) CreateTeacher(ctx context.Context, acc NewAccountInput, in TeacherOnboarding) (*model.TeacherProfile, error) {
	if err := s.checkEmailFree(ctx, acc.Email); err != nil {
		return nil, err
	}
	if err := s.checkBusinessKeyFree(ctx, &model.TeacherProfile{}, "teacher_id", in.TeacherID); err != nil {
		return nil, err
	}

	identityID, err := s.createIdentity(ctx, acc, model.RoleTeacher)
	if err != nil {
		return nil, err
	}

	var profile model.TeacherProfile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.createAccount(tx, acc, identityID, model.RoleTeacher)
		if err != nil {
			return err
		}

		subjects, err := marshalList(validation.NormalizeList(in.SubjectsRaw, in.Subjects))
		if err != nil {
			return err
		}

		profile = model.TeacherProfile{
			AccountID:       account.ID,
			TeacherID:       in.TeacherID,
			InstituteID:     in.InstituteID,
			Subjects:        subjects,
			Qualification:   in.Qualification,
			ExperienceYears: in.ExperienceYears,
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		s.recordOrphan(ctx, identityID, acc.Email, model.OrphanLocalWriteFailed, err)
		return nil, wrapTxError("create teacher", err)
	}

	return &profile, nil
}

// CreateStudent is the admin-driven counterpart of student onboarding.
func (s *ProvisioningService) CreateStudent(ctx context.Context, acc NewAccountInput, in StudentOnboarding) (*model.StudentProfile, error) {
	if in.InstituteID == 0 {
		return nil, fmt.Errorf("%w: students must be assigned an institute", ErrInvalidInput)
	}
	if err := s.checkEmailFree(ctx, acc.Email); err != nil {
		return nil, err
	}
	if err := s.checkBusinessKeyFree(ctx, &model.StudentProfile{}, "student_id", in.StudentID); err != nil {
		return nil, err
	}
	if err := s.checkInstituteExists(ctx, in.InstituteID); err != nil {
		return nil, err
	}

	identityID, err := s.createIdentity(ctx, acc, model.RoleStudent)
	if err != nil {
		return nil, err
	}

	var profile model.StudentProfile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.createAccount(tx, acc, identityID, model.RoleStudent)
		if err != nil {
			return err
		}

		goals, err := marshalList(validation.NormalizeList("", in.Goals))
		if err != nil {
			return err
		}

		instituteID := in.InstituteID
		profile = model.StudentProfile{
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
	})
	if err != nil {
		s.recordOrphan(ctx, identityID, acc.Email, model.OrphanLocalWriteFailed, err)
		return nil, wrapTxError("create student", err)
	}

	return &profile, nil
}

// CreateInstituteAdmin attaches a new admin account to an existing institute.
func (s *ProvisioningService) CreateInstituteAdmin(ctx context.Context, acc NewAccountInput, instituteID uint) (*model.InstituteAdminProfile, error) {
	if err := s.checkEmailFree(ctx, acc.Email); err != nil {
		return nil, err
	}
	if err := s.checkInstituteExists(ctx, instituteID); err != nil {
		return nil, err
	}

	identityID, err := s.createIdentity(ctx, acc, model.RoleInstituteAdmin)
	if err != nil {
		return nil, err
	}

	var profile model.InstituteAdminProfile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.createAccount(tx, acc, identityID, model.RoleInstituteAdmin)
		if err != nil {
			return err
		}

		profile = model.InstituteAdminProfile{
			AccountID:   account.ID,
			InstituteID: instituteID,
			IsCreator:   false,
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		s.recordOrphan(ctx, identityID, acc.Email, model.OrphanLocalWriteFailed, err)
		return nil, wrapTxError("create institute admin", err)
	}

	return &profile, nil
}

// TeacherUpdate carries the update flow's inputs for a teacher. Relation
// fields are desired end-state sets, not deltas; nil means "leave as is".
type TeacherUpdate struct {
	Account         *AccountUpdate
	InstituteID     *uint
	Subjects        []string
	SubjectsRaw     string
	Qualification   *string
	ExperienceYears *int
	ClassIDs        *[]uint
	CourseIDs       *[]uint
}

// UpdateTeacher applies account scalars, profile scalars and join-set
// reconciliation in one transaction, then mirrors name/email changes to the
// identity provider outside it.
func (s *ProvisioningService) UpdateTeacher(ctx context.Context, profileID uint, in TeacherUpdate) (*model.TeacherProfile, error) {
	var profile model.TeacherProfile
	var account model.Account
	identityDirty := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&profile, profileID).Error; err != nil {
			return asServiceError(err)
		}
		if err := tx.First(&account, profile.AccountID).Error; err != nil {
			return err
		}

		if dirty := in.Account.apply(&account); dirty || in.Account != nil {
			identityDirty = dirty
			if err := tx.Save(&account).Error; err != nil {
				return asServiceError(err)
			}
		}

		if in.InstituteID != nil {
			profile.InstituteID = in.InstituteID
		}
		if in.Qualification != nil {
			profile.Qualification = *in.Qualification
		}
		if in.ExperienceYears != nil {
			profile.ExperienceYears = *in.ExperienceYears
		}
		if in.Subjects != nil || in.SubjectsRaw != "" {
			subjects, err := marshalList(validation.NormalizeList(in.SubjectsRaw, in.Subjects))
			if err != nil {
				return err
			}
			profile.Subjects = subjects
		}
		if err := tx.Save(&profile).Error; err != nil {
			return asServiceError(err)
		}

		if in.ClassIDs != nil {
			if _, _, err := Reconcile(tx, TeacherClasses, profile.ID, *in.ClassIDs); err != nil {
				return err
			}
		}
		if in.CourseIDs != nil {
			if _, _, err := Reconcile(tx, TeacherCourses, profile.ID, *in.CourseIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.syncIdentityMetadata(ctx, &account, identityDirty)
	return &profile, nil
}

// StudentUpdate mirrors TeacherUpdate for students.
type StudentUpdate struct {
	Account       *AccountUpdate
	InstituteID   *uint
	GuardianName  *string
	GuardianPhone *string
	GuardianEmail *string
	Goals         []string
	ClassIDs      *[]uint
}

// UpdateStudent applies account scalars, profile scalars and the class set
// in one transaction.
func (s *ProvisioningService) UpdateStudent(ctx context.Context, profileID uint, in StudentUpdate) (*model.StudentProfile, error) {
	var profile model.StudentProfile
	var account model.Account
	identityDirty := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&profile, profileID).Error; err != nil {
			return asServiceError(err)
		}
		if err := tx.First(&account, profile.AccountID).Error; err != nil {
			return err
		}

		if dirty := in.Account.apply(&account); dirty || in.Account != nil {
			identityDirty = dirty
			if err := tx.Save(&account).Error; err != nil {
				return asServiceError(err)
			}
		}

		if in.InstituteID != nil {
			profile.InstituteID = in.InstituteID
		}
		if in.GuardianName != nil {
			profile.GuardianName = *in.GuardianName
		}
		if in.GuardianPhone != nil {
			profile.GuardianPhone = *in.GuardianPhone
		}
		if in.GuardianEmail != nil {
			profile.GuardianEmail = *in.GuardianEmail
		}
		if in.Goals != nil {
			goals, err := marshalList(validation.NormalizeList("", in.Goals))
			if err != nil {
				return err
			}
			profile.Goals = goals
		}
		if err := tx.Save(&profile).Error; err != nil {
			return asServiceError(err)
		}

		if in.ClassIDs != nil {
			if _, _, err := Reconcile(tx, StudentClasses, profile.ID, *in.ClassIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.syncIdentityMetadata(ctx, &account, identityDirty)
	return &profile, nil
}

// DeleteTeacher removes the profile, its join rows and the owning Account in
// one transaction, then deletes the external identity. If the external
// delete fails after the commit, the local store stays authoritative and the
// leftover identity is recorded for the sweep.
func (s *ProvisioningService) DeleteTeacher(ctx context.Context, profileID uint) error {
	var account model.Account

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile model.TeacherProfile
		if err := tx.First(&profile, profileID).Error; err != nil {
			return asServiceError(err)
		}
		if err := tx.First(&account, profile.AccountID).Error; err != nil {
			return err
		}

		if err := tx.Where("teacher_profile_id = ?", profile.ID).Delete(&model.ClassTeacher{}).Error; err != nil {
			return err
		}
		if err := tx.Where("teacher_profile_id = ?", profile.ID).Delete(&model.CourseTeacher{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&profile).Error; err != nil {
			return err
		}
		return tx.Delete(&account).Error
	})
	if err != nil {
		return err
	}

	s.deleteIdentity(ctx, &account)
	return nil
}

// DeleteStudent removes the student profile, class memberships and Account.
func (s *ProvisioningService) DeleteStudent(ctx context.Context, profileID uint) error {
	var account model.Account

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile model.StudentProfile
		if err := tx.First(&profile, profileID).Error; err != nil {
			return asServiceError(err)
		}
		if err := tx.First(&account, profile.AccountID).Error; err != nil {
			return err
		}

		if err := tx.Where("student_profile_id = ?", profile.ID).Delete(&model.ClassStudent{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&profile).Error; err != nil {
			return err
		}
		return tx.Delete(&account).Error
	})
	if err != nil {
		return err
	}

	s.deleteIdentity(ctx, &account)
	return nil
}

// DeleteInstituteAdmin removes the admin profile and its Account.
func (s *ProvisioningService) DeleteInstituteAdmin(ctx context.Context, profileID uint) error {
	var account model.Account

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile model.InstituteAdminProfile
		if err := tx.First(&profile, profileID).Error; err != nil {
			return asServiceError(err)
		}
		if err := tx.First(&account, profile.AccountID).Error; err != nil {
			return err
		}

		if err := tx.Delete(&profile).Error; err != nil {
			return err
		}
		return tx.Delete(&account).Error
	})
	if err != nil {
		return err
	}

	s.deleteIdentity(ctx, &account)
	return nil
}

// --- shared steps ---

func (s *ProvisioningService) checkEmailFree(ctx context.Context, email string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: email %q is taken", ErrConflict, email)
	}
	return nil
}

func (s *ProvisioningService) checkBusinessKeyFree(ctx context.Context, m interface{}, column, value string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(m).Where(column+" = ?", value).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s %q is taken", ErrConflict, column, value)
	}
	return nil
}

func (s *ProvisioningService) checkInstituteExists(ctx context.Context, id uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Institute{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: institute %d", ErrNotFound, id)
	}
	return nil
}

// createIdentity provisions the provider-side user before any local write,
// so a provider failure aborts the operation with zero local side effects.
func (s *ProvisioningService) createIdentity(ctx context.Context, acc NewAccountInput, role string) (string, error) {
	identityID, err := s.idp.CreateUser(ctx, acc.Email, acc.Password, acc.FirstName, acc.LastName, identity.Metadata{Role: role})
	if err != nil {
		if errors.Is(err, identity.ErrConflict) {
			return "", fmt.Errorf("%w: email %q already registered at identity provider", ErrConflict, acc.Email)
		}
		return "", err
	}
	return identityID, nil
}

func (s *ProvisioningService) createAccount(tx *gorm.DB, acc NewAccountInput, identityID, role string) (*model.Account, error) {
	hash, err := auth.HashPassword(acc.Password)
	if err != nil {
		return nil, err
	}

	account := model.Account{
		IdentityID:         &identityID,
		Email:              acc.Email,
		PasswordHash:       hash,
		FirstName:          acc.FirstName,
		LastName:           acc.LastName,
		Phone:              acc.Phone,
		Role:               role,
		Status:             model.AccountActive,
		OnboardingComplete: true,
	}
	if err := tx.Create(&account).Error; err != nil {
		return nil, asServiceError(err)
	}
	return &account, nil
}

// syncIdentityMetadata mirrors changed name/email to the provider. Failures
// are logged only: the local transaction has already committed and is
// authoritative.
func (s *ProvisioningService) syncIdentityMetadata(ctx context.Context, account *model.Account, dirty bool) {
	if !dirty || account.IdentityID == nil {
		return
	}
	meta := identity.Metadata{Name: account.FullName(), Email: account.Email}
	if err := s.idp.UpdateUser(ctx, *account.IdentityID, meta); err != nil {
		log.Printf("provisioning: failed to sync identity metadata for account %d: %v", account.ID, err)
	}
}

// deleteIdentity removes the provider-side user after a committed local
// delete. On failure the identity is orphaned by design; it is logged and
// recorded for the sweep, never compensated by re-creating local rows.
func (s *ProvisioningService) deleteIdentity(ctx context.Context, account *model.Account) {
	if account.IdentityID == nil {
		return
	}
	identityID := *account.IdentityID
	err := s.idp.DeleteUser(ctx, identityID)
	if err == nil || errors.Is(err, identity.ErrNotFound) {
		return
	}
	log.Printf("provisioning: external identity delete failed for account %d (identity %s): %v",
		account.ID, identityID, err)
	s.recordOrphan(ctx, identityID, account.Email, model.OrphanExternalDeleteFailed, err)
}

func wrapTxError(op string, err error) error {
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}
