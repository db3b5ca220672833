package storage

import (
	"context"

	"subject-eval-scraper/models"
)

// Tables is the durable home of the ledger: the course table and the
// instructor table, always read and written whole.
type Tables interface {
	Load() ([]models.CourseRecord, []models.TeacherAggregate, error)
	Save(courses []models.CourseRecord, teachers []models.TeacherAggregate) error
}

// Mirror receives every row changed since the previous flush. It is a
// write-only copy; the ledger never reads it back.
type Mirror interface {
	UpsertCourses(ctx context.Context, courses []models.CourseRecord) error
	UpsertTeachers(ctx context.Context, teachers []models.TeacherAggregate) error
	Close() error
}
