package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"subject-eval-scraper/models"
	"subject-eval-scraper/utils"
)

// SQLMirror copies ledger rows into PostgreSQL or SQLite. Rows are keyed
// exactly like the CSV tables, so replaying a flush is harmless.
type SQLMirror struct {
	db     *sql.DB
	driver string
}

// OpenSQLMirror connects to the database, waiting for it to come up with the
// given retry policy, and creates the tables if needed. driver is
// "postgres" or "sqlite".
func OpenSQLMirror(ctx context.Context, driver, dsn string, retry utils.RetryConfig) (*SQLMirror, error) {
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, eris.Errorf("mirror: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "mirror: open %s", driver)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	err = retry.Do("mirror ping", func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m := &SQLMirror{db: db, driver: driver}
	if err := m.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "mirror: migrate")
	}
	return m, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS course_evaluations (
		course_number          TEXT    NOT NULL,
		term                   TEXT    NOT NULL,
		year                   INTEGER NOT NULL,
		subject_name           TEXT    NOT NULL DEFAULT '',
		description            TEXT    NOT NULL DEFAULT '',
		level                  TEXT    NOT NULL DEFAULT '',
		teachers               TEXT    NOT NULL DEFAULT '',
		teacher_rating_avg     DOUBLE PRECISION,
		teacher_rating_std     DOUBLE PRECISION,
		teacher_help_avg       DOUBLE PRECISION,
		teacher_help_std       DOUBLE PRECISION,
		respondents            DOUBLE PRECISION,
		response_rate          DOUBLE PRECISION,
		subject_rating_avg     DOUBLE PRECISION,
		subject_rating_std     DOUBLE PRECISION,
		pace_avg               DOUBLE PRECISION,
		pace_std               DOUBLE PRECISION,
		weekly_hours_avg       DOUBLE PRECISION,
		weekly_hours_std       DOUBLE PRECISION,
		assignment_quality_avg DOUBLE PRECISION,
		assignment_quality_std DOUBLE PRECISION,
		grading_fairness_avg   DOUBLE PRECISION,
		grading_fairness_std   DOUBLE PRECISION,
		link                   TEXT    NOT NULL DEFAULT '',
		PRIMARY KEY (course_number, term, year)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_course_evaluations_year ON course_evaluations(year)`,
	`CREATE TABLE IF NOT EXISTS teacher_ratings (
		name            TEXT PRIMARY KEY,
		rating_avg      DOUBLE PRECISION,
		rating_std      DOUBLE PRECISION,
		helpfulness_avg DOUBLE PRECISION,
		helpfulness_std DOUBLE PRECISION,
		num_ratings     INTEGER NOT NULL DEFAULT 0,
		num_classes     INTEGER NOT NULL DEFAULT 0
	)`,
}

func (m *SQLMirror) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var courseColumns = []string{
	"course_number", "term", "year", "subject_name", "description", "level", "teachers",
	"teacher_rating_avg", "teacher_rating_std", "teacher_help_avg", "teacher_help_std",
	"respondents", "response_rate", "subject_rating_avg", "subject_rating_std",
	"pace_avg", "pace_std", "weekly_hours_avg", "weekly_hours_std",
	"assignment_quality_avg", "assignment_quality_std", "grading_fairness_avg", "grading_fairness_std",
	"link",
}

var teacherColumns = []string{
	"name", "rating_avg", "rating_std", "helpfulness_avg", "helpfulness_std", "num_ratings", "num_classes",
}

// UpsertCourses inserts or refreshes the given course rows in one
// transaction.
func (m *SQLMirror) UpsertCourses(ctx context.Context, courses []models.CourseRecord) error {
	query := m.upsertQuery("course_evaluations", courseColumns, 3)
	return m.execBatch(ctx, query, len(courses), func(i int) []any {
		r := courses[i]
		teachers, _ := r.Teachers.MarshalText()
		return []any{
			r.CourseNumber, string(r.Term), r.Year, r.SubjectName, r.Description, string(r.Level), string(teachers),
			r.TeacherRatingAvg, r.TeacherRatingStd, r.TeacherHelpfulnessAvg, r.TeacherHelpfulnessStd,
			r.Respondents, r.ResponseRate, r.SubjectRatingAvg, r.SubjectRatingStd,
			r.PaceAvg, r.PaceStd, r.WeeklyHoursAvg, r.WeeklyHoursStd,
			r.AssignmentQualityAvg, r.AssignmentQualityStd, r.GradingFairnessAvg, r.GradingFairnessStd,
			r.Link,
		}
	})
}

// UpsertTeachers inserts or refreshes the given instructor aggregates.
func (m *SQLMirror) UpsertTeachers(ctx context.Context, teachers []models.TeacherAggregate) error {
	query := m.upsertQuery("teacher_ratings", teacherColumns, 1)
	return m.execBatch(ctx, query, len(teachers), func(i int) []any {
		t := teachers[i]
		return []any{
			t.Name, t.RatingAvg, t.RatingStd, t.HelpfulnessAvg, t.HelpfulnessStd, t.NumRatings, t.NumClasses,
		}
	})
}

func (m *SQLMirror) execBatch(ctx context.Context, query string, n int, args func(int) []any) error {
	if n == 0 {
		return nil
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "mirror: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrap(err, "mirror: prepare upsert")
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return eris.Wrapf(err, "mirror: upsert row %d", i)
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "mirror: commit")
	}
	return nil
}

// upsertQuery builds an INSERT ... ON CONFLICT DO UPDATE statement whose
// first keyCols columns form the conflict target. Both supported databases
// accept the same syntax; only the placeholders differ.
func (m *SQLMirror) upsertQuery(table string, cols []string, keyCols int) string {
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "?"
	}
	updates := make([]string, 0, len(cols)-keyCols)
	for _, c := range cols[keyCols:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(cols[:keyCols], ", "),
		strings.Join(updates, ", "),
	)
	return rebind(m.driver, query)
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (m *SQLMirror) Close() error {
	return m.db.Close()
}
