package database

import (
	"fmt"
	"log"
	"os"

	"github.com/classpilot/api/model"
	"github.com/classpilot/api/utils/auth"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// RunSeeds runs all seed functions.
func RunSeeds(db *gorm.DB) error {
	return NewSeeder(db).SeedAll()
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("Starting database seeding...")

	if err := s.SeedSuperAdmin(); err != nil {
		return fmt.Errorf("failed to seed super admin: %w", err)
	}

	log.Println("Database seeding completed.")
	return nil
}

// SeedSuperAdmin creates the platform super admin from ADMIN_EMAIL and
// ADMIN_PASSWORD. Skipped when the variables are not set or the account
// already exists. The super admin is local-only: it is not provisioned at
// the identity provider and signs in with its password directly.
func (s *Seeder) SeedSuperAdmin() error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Println("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping super admin seed")
		return nil
	}

	var count int64
	if err := s.db.Model(&model.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Super admin already exists, skipping")
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		account := model.Account{
			Email:              email,
			PasswordHash:       hash,
			FirstName:          "Platform",
			LastName:           "Admin",
			Role:               model.RoleSuperAdmin,
			Status:             model.AccountActive,
			EmailVerified:      true,
			OnboardingComplete: true,
		}
		if err := tx.Create(&account).Error; err != nil {
			return err
		}

		profile := model.SuperAdminProfile{
			AccountID:       account.ID,
			DashboardAccess: true,
		}
		return tx.Create(&profile).Error
	})
}
