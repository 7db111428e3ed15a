// Package crashlog persists fatal-error reports to a SQLite database,
// using modernc.org/sqlite the way the example corpus reaches for a
// pure-Go SQLite driver rather than a cgo one.
package crashlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/flan-lang/flanvm/vm"
)

// Store appends one crash report row per FatalError reaching the
// reporter, keyed by a fresh run ID (spec §6, §7).
type Store struct {
	db    *sql.DB
	runID string
}

// Open creates (if needed) the crash_reports table in the SQLite
// database at path and returns a Store bound to a new run ID.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open crash log %s: %w", path, err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS crash_reports (
	run_id     TEXT NOT NULL,
	ts         TEXT NOT NULL,
	message    TEXT NOT NULL,
	line       INTEGER NOT NULL,
	line_text  TEXT NOT NULL,
	stack_trace TEXT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot migrate crash log %s: %w", path, err)
	}

	return &Store{db: db, runID: uuid.NewString()}, nil
}

// RunID returns this store's run identifier, printed alongside a fatal
// error so a crash report row can be located later.
func (s *Store) RunID() string { return s.runID }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts one row for err, with the rendered stack trace frames
// and, when available, the offending source line.
func (s *Store) Record(err *vm.FatalError, errorInfo []vm.ErrorInfo, trace []string) error {
	line, lineText := 0, ""
	if err.ErrInfoIdx >= 0 && err.ErrInfoIdx < len(errorInfo) {
		info := errorInfo[err.ErrInfoIdx]
		line, lineText = info.Line, info.Text
	}

	stackTrace := ""
	for i, frame := range trace {
		if i > 0 {
			stackTrace += "\n"
		}
		stackTrace += frame
	}

	_, execErr := s.db.Exec(
		`INSERT INTO crash_reports (run_id, ts, message, line, line_text, stack_trace) VALUES (?, ?, ?, ?, ?, ?)`,
		s.runID, time.Now().UTC().Format(time.RFC3339Nano), err.Message, line, lineText, stackTrace,
	)
	return execErr
}
