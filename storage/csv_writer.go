package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"subject-eval-scraper/models"
)

// TeacherFileName is shared by every subject scraped into the same
// directory.
const TeacherFileName = "professor_ratings.csv"

// CourseFileName returns the course table file name for a subject code.
func CourseFileName(subject string) string {
	return fmt.Sprintf("subject_%s.csv", subject)
}

// CSVTables keeps the ledger in two CSV files. Column names come from the
// csv tags on the model types.
type CSVTables struct {
	CoursePath  string
	TeacherPath string
}

// NewCSVTables places the tables for subject inside dir.
func NewCSVTables(dir, subject string) *CSVTables {
	return &CSVTables{
		CoursePath:  filepath.Join(dir, CourseFileName(subject)),
		TeacherPath: filepath.Join(dir, TeacherFileName),
	}
}

// Load reads both tables. Missing or empty files are empty tables.
func (t *CSVTables) Load() ([]models.CourseRecord, []models.TeacherAggregate, error) {
	courses, err := readCSV[models.CourseRecord](t.CoursePath)
	if err != nil {
		return nil, nil, err
	}
	teachers, err := readCSV[models.TeacherAggregate](t.TeacherPath)
	if err != nil {
		return nil, nil, err
	}
	return courses, teachers, nil
}

// Save rewrites both tables. Each file is replaced atomically so an
// interrupted run leaves the previous version readable.
func (t *CSVTables) Save(courses []models.CourseRecord, teachers []models.TeacherAggregate) error {
	if err := writeCSV(t.CoursePath, courses); err != nil {
		return err
	}
	return writeCSV(t.TeacherPath, teachers)
}

func readCSV[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "csv: read header of %s", path)
	}

	var rows []T
	for {
		var row T
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: decode %s line %d", path, len(rows)+2)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeCSV[T any](path string, rows []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "csv: create output dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "csv: create temp file for %s", path)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	enc := csvutil.NewEncoder(w)

	var zero T
	if err := enc.EncodeHeader(zero); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "csv: write header of %s", path)
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			_ = tmp.Close()
			return eris.Wrapf(err, "csv: write row of %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "csv: flush %s", path)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "csv: chmod %s", path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "csv: sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "csv: close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "csv: replace %s", path)
	}
	return nil
}
