package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subject-eval-scraper/models"
	"subject-eval-scraper/stats"
	"subject-eval-scraper/utils"
)

func openTestMirror(t *testing.T) *SQLMirror {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "mirror.db")
	m, err := OpenSQLMirror(context.Background(), "sqlite", dsn, utils.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSQLMirrorUpsertCourses(t *testing.T) {
	m := openTestMirror(t)
	ctx := context.Background()

	rec := sampleRecord("2.001", models.TermFall, 2022)
	require.NoError(t, m.UpsertCourses(ctx, []models.CourseRecord{rec}))

	rec.Description = "Introduction to statics."
	require.NoError(t, m.UpsertCourses(ctx, []models.CourseRecord{rec, sampleRecord("2.01", models.TermFall, 2022)}))

	var count int
	require.NoError(t, m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM course_evaluations`).Scan(&count))
	assert.Equal(t, 2, count)

	var desc, teachers string
	var rating, pace stats.Num
	require.NoError(t, m.db.QueryRowContext(ctx,
		`SELECT description, teachers, subject_rating_avg, pace_avg FROM course_evaluations WHERE course_number = ?`, "2.001",
	).Scan(&desc, &teachers, &rating, &pace))
	assert.Equal(t, "Introduction to statics.", desc)
	assert.Equal(t, "John Smith; Jane Doe", teachers)
	assert.Equal(t, stats.Known(5.6), rating)
	assert.False(t, pace.Valid, "unknown values are stored as NULL")
}

func TestSQLMirrorUpsertTeachers(t *testing.T) {
	m := openTestMirror(t)
	ctx := context.Background()

	agg := models.NewTeacherAggregate(models.TeacherRating{Name: "Jane Doe", Rating: stats.Known(6), Votes: 3})
	require.NoError(t, m.UpsertTeachers(ctx, []models.TeacherAggregate{agg}))
	agg.Merge(models.TeacherRating{Name: "Jane Doe", Rating: stats.Known(7), Votes: 1})
	require.NoError(t, m.UpsertTeachers(ctx, []models.TeacherAggregate{agg}))

	var classes, ratings int
	var avg, help stats.Num
	require.NoError(t, m.db.QueryRowContext(ctx,
		`SELECT num_classes, num_ratings, rating_avg, helpfulness_avg FROM teacher_ratings WHERE name = ?`, "Jane Doe",
	).Scan(&classes, &ratings, &avg, &help))
	assert.Equal(t, 2, classes)
	assert.Equal(t, 4, ratings)
	assert.InDelta(t, 6.25, avg.V, 1e-9)
	assert.False(t, help.Valid)
}

func TestSQLMirrorRejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQLMirror(context.Background(), "mysql", "dsn", utils.RetryConfig{MaxAttempts: 1})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "INSERT INTO t (a, b) VALUES (?, ?)"
	assert.Equal(t, q, rebind("sqlite", q))
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", rebind("postgres", q))
}

func TestLedgerWithSQLiteMirror(t *testing.T) {
	m := openTestMirror(t)
	l := openTestLedger(t, t.TempDir(), m)

	require.NoError(t, l.Insert(sampleRecord("2.001", models.TermFall, 2022)))
	l.MergeTeacher(models.TeacherRating{Name: "John Smith", Rating: stats.Known(5.8), Votes: 18})
	require.NoError(t, l.Flush(context.Background()))

	var count int
	require.NoError(t, m.db.QueryRow(`SELECT COUNT(*) FROM teacher_ratings`).Scan(&count))
	assert.Equal(t, 1, count)
}
