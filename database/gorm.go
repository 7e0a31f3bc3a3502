package database

import (
	"fmt"
	"log"
	"time"

	"github.com/classpilot/api/config"
	"github.com/classpilot/api/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GORMStore struct {
	db *gorm.DB
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM() (*GORMStore, error) {
	getEnv, err := config.Get()
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		getEnv.DB_HOST,
		getEnv.DB_USER_NAME,
		getEnv.DB_PASSWORD,
		getEnv.DB_NAME,
		getEnv.DB_PORT,
		getEnv.DB_SSL_MODE,
	)

	gormLogger := logger.Default.LogMode(logger.Info)
	if getEnv.GO_ENV == "production" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: false,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		log.Println("Unable to connect to PostgreSQL with GORM:", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Successfully connected to PostgreSQL Database with GORM.")

	return &GORMStore{db: db}, nil
}

// Init runs AutoMigrate for all models.
func (s *GORMStore) Init() error {
	log.Println("Running GORM AutoMigrate for all models...")

	err := s.db.AutoMigrate(Models()...)
	if err != nil {
		log.Println("AutoMigrate failed:", err)
		return err
	}

	log.Println("AutoMigrate completed.")
	return nil
}

// Models lists every model migrated on boot, parents before children so
// foreign keys resolve.
func Models() []interface{} {
	return []interface{}{
		// Identity
		&model.Account{},
		&model.RevokedToken{},

		// Tenant hierarchy
		&model.Institute{},
		&model.Class{},
		&model.Course{},
		&model.Assessment{},

		// Role profiles
		&model.SuperAdminProfile{},
		&model.InstituteAdminProfile{},
		&model.TeacherProfile{},
		&model.StudentProfile{},

		// Join tables (composite unique pairs)
		&model.ClassStudent{},
		&model.ClassCourse{},
		&model.ClassTeacher{},
		&model.CourseTeacher{},

		// Operational
		&model.ProvisioningOrphan{},
		&model.CronJobLog{},
	}
}

func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (s *GORMStore) GetDB() interface{} {
	return s.db
}
