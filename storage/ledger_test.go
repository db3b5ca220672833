package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subject-eval-scraper/models"
	"subject-eval-scraper/stats"
	"subject-eval-scraper/utils"
)

func sampleRecord(number string, term models.Term, year int) models.CourseRecord {
	return models.CourseRecord{
		Year:             year,
		Term:             term,
		CourseNumber:     number,
		SubjectName:      "Mechanics and Materials I",
		Description:      models.UnknownDescription,
		Level:            models.LevelUnknown,
		Teachers:         models.Names{"John Smith", "Jane Doe"},
		TeacherRatingAvg: stats.Known(6.1),
		Respondents:      stats.Known(45),
		ResponseRate:     stats.Known(0.375),
		SubjectRatingAvg: stats.Known(5.6),
		SubjectRatingStd: stats.Known(1.1),
		Link:             "https://example.test/report?subjectId=" + number,
	}
}

func openTestLedger(t *testing.T, dir string, mirror Mirror) *Ledger {
	t.Helper()
	l, err := OpenLedger(NewCSVTables(dir, "2"), mirror, utils.NewNopLogger())
	require.NoError(t, err)
	return l
}

func TestLedgerEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	l := openTestLedger(t, dir, nil)
	assert.Empty(t, l.Courses())
	assert.Empty(t, l.Teachers())

	require.NoError(t, l.Flush(context.Background()))

	// headers are written even with no rows
	data, err := os.ReadFile(filepath.Join(dir, "subject_2.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Year,Term,Course Number,Subject Name,Description,Level (U or G),Teachers,"))
	data, err = os.ReadFile(filepath.Join(dir, TeacherFileName))
	require.NoError(t, err)
	assert.Equal(t, "Teacher Name,Teacher Rating (Avg),Teacher Rating (STD),Teacher Helpfulness (Avg),Teacher Helpfulness (STD),Number of Ratings,Number of Classes\n", string(data))

	reopened := openTestLedger(t, dir, nil)
	assert.Empty(t, reopened.Courses())
}

func TestLedgerInsertRejectsDuplicates(t *testing.T) {
	l := openTestLedger(t, t.TempDir(), nil)
	rec := sampleRecord("2.001", models.TermFall, 2022)

	require.NoError(t, l.Insert(rec))
	assert.True(t, l.Exists(rec.Key()))
	assert.True(t, l.HasLink(rec.Link))
	assert.False(t, l.Exists(models.Key{CourseNumber: "2.001", Term: models.TermSpring, Year: 2022}))

	err := l.Insert(rec)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Len(t, l.Courses(), 1)
}

func TestLedgerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := openTestLedger(t, dir, nil)

	rec := sampleRecord("2.001", models.TermFall, 2022)
	sparse := models.CourseRecord{
		Year: 2005, Term: models.TermSpring, CourseNumber: "2.010",
		Description: models.UnknownDescription, Level: models.LevelUnknown,
	}
	require.NoError(t, l.Insert(rec))
	require.NoError(t, l.Insert(sparse))
	assert.True(t, l.MergeTeacher(models.TeacherRating{Name: "John Smith", Rating: stats.Known(5.8), Helpfulness: stats.Known(5.2), Votes: 18}))
	assert.False(t, l.MergeTeacher(models.TeacherRating{Name: "John Smith", Rating: stats.Known(6.8), Helpfulness: stats.Unknown, Votes: 2}))
	require.NoError(t, l.Flush(context.Background()))

	reopened := openTestLedger(t, dir, nil)
	courses := reopened.Courses()
	require.Len(t, courses, 2)
	assert.Equal(t, rec, courses[0])
	assert.Equal(t, "2.010", courses[1].CourseNumber, "leading and trailing zeros are kept")
	assert.False(t, courses[1].SubjectRatingAvg.Valid)
	assert.Empty(t, courses[1].Teachers)
	assert.True(t, reopened.Exists(rec.Key()))
	assert.True(t, reopened.HasLink(rec.Link))

	teacher, ok := reopened.Teacher("John Smith")
	require.True(t, ok)
	assert.InDelta(t, 5.9, teacher.RatingAvg.V, 1e-9)
	assert.InDelta(t, 0.3, teacher.RatingStd.V, 1e-9)
	assert.Equal(t, stats.Known(5.2), teacher.HelpfulnessAvg)
	assert.Equal(t, 20, teacher.NumRatings)
	assert.Equal(t, 2, teacher.NumClasses)
}

func TestLedgerLoadsNaNCells(t *testing.T) {
	dir := t.TempDir()
	csvData := "Year,Term,Course Number,Subject Name,Description,Level (U or G),Number of Units,Teachers,Subject Rating (Avg),Webpage Link\n" +
		"2019,Fall,2.001,Mechanics,unknown,U,12,Smith; Doe,nan,http://x\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subject_2.csv"), []byte(csvData), 0o644))

	l := openTestLedger(t, dir, nil)
	courses := l.Courses()
	require.Len(t, courses, 1)
	assert.False(t, courses[0].SubjectRatingAvg.Valid)
	assert.Equal(t, models.Names{"Smith", "Doe"}, courses[0].Teachers)
	assert.Equal(t, models.LevelUndergraduate, courses[0].Level)
	assert.True(t, l.Exists(models.Key{CourseNumber: "2.001", Term: models.TermFall, Year: 2019}))
}

func TestLedgerFlushSkipsWhenClean(t *testing.T) {
	tables := &countingTables{}
	l, err := OpenLedger(tables, nil, nil)
	require.NoError(t, err)

	require.NoError(t, l.Flush(context.Background()))
	require.NoError(t, l.Flush(context.Background()))
	assert.Equal(t, 1, tables.saves)

	require.NoError(t, l.Insert(sampleRecord("2.001", models.TermFall, 2022)))
	require.NoError(t, l.Flush(context.Background()))
	assert.Equal(t, 2, tables.saves)
}

func TestLedgerFlushFailure(t *testing.T) {
	tables := &countingTables{err: errors.New("disk full")}
	l, err := OpenLedger(tables, nil, nil)
	require.NoError(t, err)
	require.NoError(t, l.Insert(sampleRecord("2.001", models.TermFall, 2022)))
	assert.Error(t, l.Flush(context.Background()))
}

func TestLedgerMirrorReceivesPendingRows(t *testing.T) {
	mirror := &recordingMirror{fail: true}
	l := openTestLedger(t, t.TempDir(), mirror)

	require.NoError(t, l.Insert(sampleRecord("2.001", models.TermFall, 2022)))
	l.MergeTeacher(models.TeacherRating{Name: "Jane Doe", Rating: stats.Known(6), Votes: 3})

	// a failing mirror does not fail the flush; rows stay pending
	require.NoError(t, l.Flush(context.Background()))
	assert.Empty(t, mirror.courses)

	mirror.fail = false
	require.NoError(t, l.Insert(sampleRecord("2.01", models.TermFall, 2022)))
	require.NoError(t, l.Flush(context.Background()))
	assert.Len(t, mirror.courses, 2)
	require.Len(t, mirror.teachers, 1)
	assert.Equal(t, "Jane Doe", mirror.teachers[0].Name)

	require.NoError(t, l.Flush(context.Background()))
	assert.Len(t, mirror.courses, 2, "nothing new to mirror")
}

type countingTables struct {
	saves int
	err   error
}

func (c *countingTables) Load() ([]models.CourseRecord, []models.TeacherAggregate, error) {
	return nil, nil, nil
}

func (c *countingTables) Save([]models.CourseRecord, []models.TeacherAggregate) error {
	if c.err != nil {
		return c.err
	}
	c.saves++
	return nil
}

type recordingMirror struct {
	fail     bool
	courses  []models.CourseRecord
	teachers []models.TeacherAggregate
}

func (m *recordingMirror) UpsertCourses(_ context.Context, rows []models.CourseRecord) error {
	if m.fail {
		return errors.New("mirror down")
	}
	m.courses = append(m.courses, rows...)
	return nil
}

func (m *recordingMirror) UpsertTeachers(_ context.Context, rows []models.TeacherAggregate) error {
	if m.fail {
		return errors.New("mirror down")
	}
	m.teachers = append(m.teachers, rows...)
	return nil
}

func (m *recordingMirror) Close() error { return nil }
