package services

import (
	"fmt"

	"github.com/classpilot/api/model"
	"gorm.io/gorm"
)

// Relation describes one direction over a many-to-many join table: rows are
// read and written with Owner fixed and the related ids as the varying side.
// The same table appears twice (once per direction) so both sides can be
// converged with the same routine.
type Relation struct {
	Name        string
	Model       interface{}
	OwnerColumn string
	ItemColumn  string
	// NewRows builds the insert batch for the missing pairs.
	NewRows func(ownerID uint, itemIDs []uint) interface{}
}

var (
	// ClassStudents converges the student set of a class.
	ClassStudents = Relation{
		Name:        "class_students",
		Model:       &model.ClassStudent{},
		OwnerColumn: "class_id",
		ItemColumn:  "student_profile_id",
		NewRows: func(ownerID uint, itemIDs []uint) interface{} {
			rows := make([]model.ClassStudent, 0, len(itemIDs))
			for _, id := range itemIDs {
				rows = append(rows, model.ClassStudent{ClassID: ownerID, StudentProfileID: id})
			}
			return rows
		},
	}

	// StudentClasses converges the class set of a student.
	StudentClasses = Relation{
		Name:        "student_classes",
		Model:       &model.ClassStudent{},
		OwnerColumn: "student_profile_id",
		ItemColumn:  "class_id",
		NewRows: func(ownerID uint, itemIDs []uint) interface{} {
			rows := make([]model.ClassStudent, 0, len(itemIDs))
			for _, id := range itemIDs {
				rows = append(rows, model.ClassStudent{ClassID: id, StudentProfileID: ownerID})
			}
			return rows
		},
	}

	// ClassCourses converges the course set of a class.
	ClassCourses = Relation{
		Name:        "class_courses",
		Model:       &model.ClassCourse{},
		OwnerColumn: "class_id",
		ItemColumn:  "course_id",
		NewRows: func(ownerID uint, itemIDs []uint) interface{} {
			rows := make([]model.ClassCourse, 0, len(itemIDs))
			for _, id := range itemIDs {
				rows = append(rows, model.ClassCourse{ClassID: ownerID, CourseID: id})
			}
			return rows
		},
	}

	// ClassTeachers converges the teacher set of a class.
	ClassTeachers = Relation{
		Name:        "class_teachers",
		Model:       &model.ClassTeacher{},
		OwnerColumn: "class_id",
		ItemColumn:  "teacher_profile_id",
		NewRows: func(ownerID uint, itemIDs []uint) interface{} {
			rows := make([]model.ClassTeacher, 0, len(itemIDs))
			for _, id := range itemIDs {
				rows = append(rows, model.ClassTeacher{ClassID: ownerID, TeacherProfileID: id})
			}
			return rows
		},
	}

	// TeacherClasses converges the class set of a teacher.
	TeacherClasses = Relation{
		Name:        "teacher_classes",
		Model:       &model.ClassTeacher{},
		OwnerColumn: "teacher_profile_id",
		ItemColumn:  "class_id",
		NewRows: func(ownerID uint, itemIDs []uint) interface{} {
			rows := make([]model.ClassTeacher, 0, len(itemIDs))
			for _, id := range itemIDs {
				rows = append(rows, model.ClassTeacher{ClassID: id, TeacherProfileID: ownerID})
			}
			return rows
		},
	}

	// CourseTeachers converges the teacher set of a course.
	CourseTeachers = Relation{
		Name:        "course_teachers",
		Model:       &model.CourseTeacher{},
		OwnerColumn: "course_id",
		ItemColumn:  "teacher_profile_id",
		NewRows: func(ownerID uint, itemIDs []uint) interface{} {
			rows := make([]model.CourseTeacher, 0, len(itemIDs))
			for _, id := range itemIDs {
				rows = append(rows, model.CourseTeacher{CourseID: ownerID, TeacherProfileID: id})
			}
			return rows
		},
	}

	// TeacherCourses converges the course set of a teacher.
	TeacherCourses = Relation{
		Name:        "teacher_courses",
		Model:       &model.CourseTeacher{},
		OwnerColumn: "teacher_profile_id",
		ItemColumn:  "course_id",
		NewRows: func(ownerID uint, itemIDs []uint) interface{} {
			rows := make([]model.CourseTeacher, 0, len(itemIDs))
			for _, id := range itemIDs {
				rows = append(rows, model.CourseTeacher{CourseID: id, TeacherProfileID: ownerID})
			}
			return rows
		},
	}
)

// Reconcile converges the join rows owned by ownerID to exactly the desired
// id set. Rows already in the desired set are left untouched; calling this
// twice with the same desired set performs zero writes the second time.
// Runs on whatever handle it is given, so callers compose it into their own
// transaction. Two concurrent calls for the same owner race read-then-write:
// the last transaction to commit wins, there is no merge.
func Reconcile(tx *gorm.DB, rel Relation, ownerID uint, desired []uint) (added, removed int, err error) {
	var current []uint
	err = tx.Model(rel.Model).
		Where(rel.OwnerColumn+" = ?", ownerID).
		Pluck(rel.ItemColumn, &current).Error
	if err != nil {
		return 0, 0, fmt.Errorf("reconcile %s: read current set: %w", rel.Name, err)
	}

	desiredSet := make(map[uint]bool, len(desired))
	for _, id := range desired {
		desiredSet[id] = true
	}
	currentSet := make(map[uint]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}

	toRemove := make([]uint, 0)
	for _, id := range current {
		if !desiredSet[id] {
			toRemove = append(toRemove, id)
		}
	}

	toAdd := make([]uint, 0)
	for _, id := range desired {
		if !currentSet[id] && desiredSet[id] {
			// Guard against duplicate ids in the desired input.
			desiredSet[id] = false
			toAdd = append(toAdd, id)
		}
	}

	// toRemove and toAdd are disjoint, so ordering between the delete and
	// the insert only affects write volume, not the result.
	if len(toRemove) > 0 {
		err = tx.Where(rel.OwnerColumn+" = ? AND "+rel.ItemColumn+" IN ?", ownerID, toRemove).
			Delete(rel.Model).Error
		if err != nil {
			return 0, 0, fmt.Errorf("reconcile %s: delete stale rows: %w", rel.Name, err)
		}
	}

	if len(toAdd) > 0 {
		if err = tx.Create(rel.NewRows(ownerID, toAdd)).Error; err != nil {
			return 0, 0, fmt.Errorf("reconcile %s: insert new rows: %w", rel.Name, asServiceError(err))
		}
	}

	return len(toAdd), len(toRemove), nil
}
