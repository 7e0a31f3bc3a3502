package services

import (
	"testing"

	"github.com/classpilot/api/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection keeps every session on the same in-memory store.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.Account{},
		&model.Institute{},
		&model.InstituteAdminProfile{},
		&model.SuperAdminProfile{},
		&model.TeacherProfile{},
		&model.StudentProfile{},
		&model.Class{},
		&model.Course{},
		&model.ClassStudent{},
		&model.ClassTeacher{},
		&model.ClassCourse{},
		&model.CourseTeacher{},
		&model.Assessment{},
		&model.ProvisioningOrphan{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func classStudentIDs(t *testing.T, db *gorm.DB, classID uint) []uint {
	t.Helper()
	var ids []uint
	if err := db.Model(&model.ClassStudent{}).Where("class_id = ?", classID).
		Order("student_profile_id").Pluck("student_profile_id", &ids).Error; err != nil {
		t.Fatalf("failed to read class students: %v", err)
	}
	return ids
}

func TestReconcileAddsAndRemoves(t *testing.T) {
	db := newTestDB(t)

	added, removed, err := Reconcile(db, ClassStudents, 1, []uint{10, 11})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if added != 2 || removed != 0 {
		t.Fatalf("expected added=2 removed=0, got added=%d removed=%d", added, removed)
	}

	// {10,11} -> {11,12}: 10 goes, 12 comes, 11 is left alone.
	added, removed, err = Reconcile(db, ClassStudents, 1, []uint{11, 12})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if added != 1 || removed != 1 {
		t.Fatalf("expected added=1 removed=1, got added=%d removed=%d", added, removed)
	}

	ids := classStudentIDs(t, db, 1)
	if len(ids) != 2 || ids[0] != 11 || ids[1] != 12 {
		t.Fatalf("expected members [11 12], got %v", ids)
	}
}

func TestReconcileSecondCallIsNoop(t *testing.T) {
	db := newTestDB(t)

	if _, _, err := Reconcile(db, ClassStudents, 1, []uint{10, 11, 12}); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	added, removed, err := Reconcile(db, ClassStudents, 1, []uint{10, 11, 12})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if added != 0 || removed != 0 {
		t.Fatalf("expected zero writes on repeat call, got added=%d removed=%d", added, removed)
	}
}

func TestReconcileDeduplicatesDesired(t *testing.T) {
	db := newTestDB(t)

	added, removed, err := Reconcile(db, ClassStudents, 1, []uint{10, 10, 10})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if added != 1 || removed != 0 {
		t.Fatalf("expected added=1 removed=0, got added=%d removed=%d", added, removed)
	}

	ids := classStudentIDs(t, db, 1)
	if len(ids) != 1 || ids[0] != 10 {
		t.Fatalf("expected members [10], got %v", ids)
	}
}

func TestReconcileEmptyDesiredClearsAll(t *testing.T) {
	db := newTestDB(t)

	if _, _, err := Reconcile(db, ClassStudents, 1, []uint{10, 11}); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	added, removed, err := Reconcile(db, ClassStudents, 1, nil)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if added != 0 || removed != 2 {
		t.Fatalf("expected added=0 removed=2, got added=%d removed=%d", added, removed)
	}
	if ids := classStudentIDs(t, db, 1); len(ids) != 0 {
		t.Fatalf("expected no members, got %v", ids)
	}
}

func TestReconcileScopedToOwner(t *testing.T) {
	db := newTestDB(t)

	if _, _, err := Reconcile(db, ClassStudents, 1, []uint{10, 11}); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if _, _, err := Reconcile(db, ClassStudents, 2, []uint{10}); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	// Clearing class 2 must not touch class 1.
	if _, _, err := Reconcile(db, ClassStudents, 2, nil); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if ids := classStudentIDs(t, db, 1); len(ids) != 2 {
		t.Fatalf("expected class 1 untouched, got %v", ids)
	}
}

func TestReconcileReverseDirection(t *testing.T) {
	db := newTestDB(t)

	// Assign classes from the student's side, read from the class side.
	if _, _, err := Reconcile(db, StudentClasses, 7, []uint{1, 2}); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if ids := classStudentIDs(t, db, 1); len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("expected class 1 members [7], got %v", ids)
	}
	if ids := classStudentIDs(t, db, 2); len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("expected class 2 members [7], got %v", ids)
	}
}
