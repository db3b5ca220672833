package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subject-eval-scraper/models"
	"subject-eval-scraper/scraper/crawl"
	"subject-eval-scraper/stats"
	"subject-eval-scraper/storage"
)

func seedTables(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	k := stats.Known
	courses := []models.CourseRecord{
		{Year: 2020, Term: models.TermFall, Level: models.LevelGraduate, CourseNumber: "2.001", Respondents: k(10), SubjectRatingAvg: k(5)},
		{Year: 2020, Term: models.TermSpring, Level: models.LevelGraduate, CourseNumber: "2.002", Respondents: k(30), SubjectRatingAvg: k(6)},
		{Year: 2021, Term: models.TermFall, Level: models.LevelUndergraduate, CourseNumber: "2.003", Respondents: k(20), SubjectRatingAvg: k(4)},
	}
	teachers := []models.TeacherAggregate{
		{Name: "Jane Doe", RatingAvg: k(6.4), RatingStd: k(0), NumRatings: 25, NumClasses: 2},
		{Name: "John Smith", RatingAvg: k(5.8), RatingStd: k(0.2), NumRatings: 40, NumClasses: 3},
		{Name: "Rare Visitor", RatingAvg: k(7), RatingStd: k(0), NumRatings: 2, NumClasses: 1},
	}
	require.NoError(t, storage.NewCSVTables(dir, "2").Save(courses, teachers))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestReportCommand(t *testing.T) {
	dir := seedTables(t)

	out, err := execute(t, "report", "-o", dir, "-s", "2", "--level", "G")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "subject rating (avg)")
	assert.Contains(t, out, "2020")
	assert.Contains(t, out, "5.75")
	assert.NotContains(t, out, "2021")
}

func TestReportCommandTermsAndYears(t *testing.T) {
	dir := seedTables(t)

	out, err := execute(t, "report", "-o", dir, "-s", "2", "--terms", "fall", "--min-year", "2021")
	require.NoError(t, err)
	assert.Contains(t, out, "2021")
	assert.Contains(t, out, "4.00")
	assert.NotContains(t, out, "5.75")
}

func TestReportCommandRejectsBadInput(t *testing.T) {
	dir := seedTables(t)

	_, err := execute(t, "report", "-o", dir, "--level", "postdoc")
	assert.Error(t, err)

	_, err = execute(t, "report", "-o", dir, "--terms", "winter")
	assert.Error(t, err)

	_, err = execute(t, "report", "-o", dir, "--variable", "Vibes")
	assert.Error(t, err)
}

func TestReportCommandEmptyDirectory(t *testing.T) {
	out, err := execute(t, "report", "-o", t.TempDir(), "-s", "2")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "all")
}

func TestTeachersCommand(t *testing.T) {
	dir := seedTables(t)

	out, err := execute(t, "teachers", "-o", dir, "-s", "2", "--min-ratings", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "John Smith")
	assert.NotContains(t, out, "Rare Visitor")
	assert.Less(t, strings.Index(out, "Jane Doe"), strings.Index(out, "John Smith"))

	out, err = execute(t, "teachers", "-o", dir, "--min-ratings", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "No instructors match")
}

func TestAcquireLedgerLock(t *testing.T) {
	dir := t.TempDir()

	first, err := acquireLedgerLock(dir)
	require.NoError(t, err)

	_, err = acquireLedgerLock(dir)
	assert.Error(t, err, "a second run must not share the tables")

	require.NoError(t, first.Unlock())
	again, err := acquireLedgerLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]models.Level{
		"":         "",
		"u":        models.LevelUndergraduate,
		"Graduate": models.LevelGraduate,
		" G ":      models.LevelGraduate,
	}
	for in, want := range tests {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestRenderSummary(t *testing.T) {
	out := renderSummary(crawl.Summary{
		Discovered: 4, Skipped: 1, Fetched: 3, Inserted: 2, Errored: 1, TeachersMerged: 2,
		Failures: []*crawl.LinkError{{
			URL: "https://eval.test/ose-rpt/subjectEvaluationReport.htm?surveyId=9", Stage: crawl.StageClassifying,
			Err: errors.New("unrecognized page"),
		}},
	})
	assert.Contains(t, out, "Inserted")
	assert.Contains(t, out, "surveyId=9")
	assert.Contains(t, out, "unrecognized page")

	assert.NotContains(t, strings.ToLower(renderSummary(crawl.Summary{})), "failed links")
}
