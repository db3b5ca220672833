package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"subject-eval-scraper/models"
	"subject-eval-scraper/utils"
)

// ErrConflict is returned when a record with the same identity key is
// already in the course table.
var ErrConflict = eris.New("ledger: course record already exists")

// Ledger is the in-memory view of the course and instructor tables. It is
// loaded once, mutated per record and flushed after every processed link.
// Records are append-only; aggregates are merged in place.
type Ledger struct {
	mu     sync.Mutex
	tables Tables
	mirror Mirror
	log    *utils.Logger

	courses  []models.CourseRecord
	keys     map[models.Key]struct{}
	links    map[string]struct{}
	teachers []models.TeacherAggregate
	byName   map[string]int

	pendingCourses  []int
	pendingTeachers map[string]struct{}
	saved           bool
}

// OpenLedger loads both tables. mirror may be nil.
func OpenLedger(tables Tables, mirror Mirror, logger *utils.Logger) (*Ledger, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	courses, teachers, err := tables.Load()
	if err != nil {
		return nil, eris.Wrap(err, "ledger: load tables")
	}

	l := &Ledger{
		tables:          tables,
		mirror:          mirror,
		log:             logger,
		keys:            make(map[models.Key]struct{}, len(courses)),
		links:           make(map[string]struct{}, len(courses)),
		byName:          make(map[string]int, len(teachers)),
		pendingTeachers: make(map[string]struct{}),
	}
	for _, rec := range courses {
		if _, dup := l.keys[rec.Key()]; dup {
			logger.Warn("[ledger] Dropping duplicate row for %s", rec.Key())
			continue
		}
		l.keys[rec.Key()] = struct{}{}
		if rec.Link != "" {
			l.links[rec.Link] = struct{}{}
		}
		l.courses = append(l.courses, rec)
	}
	for _, t := range teachers {
		if _, dup := l.byName[t.Name]; dup || t.Name == "" {
			continue
		}
		l.byName[t.Name] = len(l.teachers)
		l.teachers = append(l.teachers, t)
	}

	logger.Info("[ledger] Loaded %d course records and %d instructors", len(l.courses), len(l.teachers))
	return l, nil
}

// Exists reports whether the offering is already recorded.
func (l *Ledger) Exists(key models.Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.keys[key]
	return ok
}

// HasLink reports whether any stored record was extracted from url.
func (l *Ledger) HasLink(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.links[url]
	return ok
}

// Insert appends a new record. It never overwrites.
func (l *Ledger) Insert(rec models.CourseRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := rec.Key()
	if _, ok := l.keys[key]; ok {
		return eris.Wrapf(ErrConflict, "insert %s", key)
	}
	l.keys[key] = struct{}{}
	if rec.Link != "" {
		l.links[rec.Link] = struct{}{}
	}
	l.courses = append(l.courses, rec)
	l.pendingCourses = append(l.pendingCourses, len(l.courses)-1)
	return nil
}

// MergeTeacher folds one instructor rating into the instructor table and
// reports whether a new row was created.
func (l *Ledger) MergeTeacher(r models.TeacherRating) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pendingTeachers[r.Name] = struct{}{}
	if i, ok := l.byName[r.Name]; ok {
		l.teachers[i].Merge(r)
		return false
	}
	l.byName[r.Name] = len(l.teachers)
	l.teachers = append(l.teachers, models.NewTeacherAggregate(r))
	return true
}

// Flush persists both tables when anything changed since the last flush
// (or nothing was ever written), then upserts the changed rows into the
// mirror. A mirror failure is logged and the rows stay pending.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dirty := len(l.pendingCourses) > 0 || len(l.pendingTeachers) > 0
	if !dirty && l.saved {
		return nil
	}
	if err := l.tables.Save(l.courses, l.teachers); err != nil {
		return eris.Wrap(err, "ledger: flush")
	}
	l.saved = true

	if l.mirror == nil {
		l.clearPending()
		return nil
	}
	if err := l.flushMirror(ctx); err != nil {
		l.log.Warn("[ledger] Mirror update failed, will retry on next flush: %v", err)
		return nil
	}
	l.clearPending()
	return nil
}

func (l *Ledger) flushMirror(ctx context.Context) error {
	if len(l.pendingCourses) > 0 {
		rows := make([]models.CourseRecord, 0, len(l.pendingCourses))
		for _, i := range l.pendingCourses {
			rows = append(rows, l.courses[i])
		}
		if err := l.mirror.UpsertCourses(ctx, rows); err != nil {
			return err
		}
	}
	if len(l.pendingTeachers) > 0 {
		names := make([]string, 0, len(l.pendingTeachers))
		for name := range l.pendingTeachers {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([]models.TeacherAggregate, 0, len(names))
		for _, name := range names {
			rows = append(rows, l.teachers[l.byName[name]])
		}
		if err := l.mirror.UpsertTeachers(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) clearPending() {
	l.pendingCourses = nil
	l.pendingTeachers = make(map[string]struct{})
}

// Courses returns a copy of the course table in insertion order.
func (l *Ledger) Courses() []models.CourseRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.CourseRecord(nil), l.courses...)
}

// Teachers returns a copy of the instructor table in first-seen order.
func (l *Ledger) Teachers() []models.TeacherAggregate {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.TeacherAggregate(nil), l.teachers...)
}

// Teacher returns the aggregate for name.
func (l *Ledger) Teacher(name string) (models.TeacherAggregate, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.byName[name]
	if !ok {
		return models.TeacherAggregate{}, false
	}
	return l.teachers[i], true
}

// Close releases the mirror, if any.
func (l *Ledger) Close() error {
	if l.mirror == nil {
		return nil
	}
	return l.mirror.Close()
}
