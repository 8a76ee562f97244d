// Package session implements query sessions: one unit of user work
// holding a SQL buffer, a connection ref, the cached result of the last
// execution, and per-column filter/sort state. The executor in this
// package runs a session's SQL off the caller's goroutine with
// cooperative cancellation.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sort is a column's sort direction.
type Sort int

const (
	SortNone Sort = iota
	SortAsc
	SortDesc
)

// ColumnState holds the filter and sort applied to one result column.
type ColumnState struct {
	Filter string
	Sort   Sort
}

// Status describes where a session is in its execution cycle. All
// states except StatusRunning are idle: a new run may start.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Session is one user-visible unit of SQL editing and result viewing.
// All state is guarded by the session's own mutex; methods may be
// called from any goroutine.
type Session struct {
	ID string

	mu       sync.Mutex
	sql      string
	ref      string
	columns  []string
	rows     [][]any
	colState map[int]*ColumnState
	status   Status
	duration time.Duration

	// token identifies the execution currently allowed to mutate the
	// result cache; zero means none outstanding. seq only grows, so a
	// superseded run can never collide with a fresh token.
	token uint64
	seq   uint64
}

// New creates an idle session bound to the given connection ref
// ("default" for the embedded engine).
func New(ref string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		ref:      ref,
		colState: make(map[int]*ColumnState),
	}
}

// SetSQL replaces the session's SQL buffer.
func (s *Session) SetSQL(sql string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sql = sql
}

// SQL returns the session's SQL buffer.
func (s *Session) SQL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sql
}

// SetConnectionRef rebinds the session to another connection.
func (s *Session) SetConnectionRef(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ref = ref
}

// ConnectionRef returns the bound connection ref.
func (s *Session) ConnectionRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref
}

// Status returns the session's current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Executing reports whether an execution is in flight.
func (s *Session) Executing() bool {
	return s.OutstandingToken() != 0
}

// OutstandingToken returns the token of the in-flight execution, or
// zero when none is outstanding. Callers use it to refuse a second run.
func (s *Session) OutstandingToken() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Duration returns the wall time of the last successful execution.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Result returns the cached column names and rows. The returned slices
// are the cache itself; callers must treat them as read-only and use
// Project for display.
func (s *Session) Result() ([]string, [][]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.columns, s.rows
}

// ColumnState returns a copy of the state for one column.
func (s *Session) ColumnState(col int) (ColumnState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.colState[col]
	if !ok {
		return ColumnState{}, false
	}
	return *st, true
}

// SetFilter sets the filter text for a column of the current result.
func (s *Session) SetFilter(col int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.colState[col]
	if !ok {
		return fmt.Errorf("no column %d in current result", col)
	}
	st.Filter = text
	return nil
}

// SetSort sets the sort direction for a column of the current result.
// At most one column sorts at a time: any other active sort is cleared.
func (s *Session) SetSort(col int, sort Sort) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.colState[col]
	if !ok {
		return fmt.Errorf("no column %d in current result", col)
	}
	for _, other := range s.colState {
		other.Sort = SortNone
	}
	st.Sort = sort
	return nil
}

// Project returns the session's display projection: decorated column
// labels and the filtered/sorted rows. The cache is not mutated.
func (s *Session) Project() ([]string, [][]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Project(s.columns, s.rows, s.colState)
}

// begin transitions Idle → Running and hands out a fresh token.
func (s *Session) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning {
		return 0, ErrBusy
	}
	s.seq++
	s.token = s.seq
	s.status = StatusRunning
	return s.token, nil
}

// abort returns a session to Idle when a run could not be dispatched
// (e.g. the history append failed). The cache is untouched.
func (s *Session) abort(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != token {
		return
	}
	s.token = 0
	s.status = StatusIdle
}

// completeSuccess installs a new result cache if token still owns the
// session. Column state is fully reset: one fresh entry per new column,
// so state from a stale schema never leaks into a new one.
func (s *Session) completeSuccess(token uint64, columns []string, rows [][]any, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != token {
		return false
	}
	s.token = 0
	s.status = StatusSucceeded
	if len(columns) == 0 {
		// Statement produced no result set; show an informational row.
		columns = []string{"Info"}
		rows = [][]any{{"Success"}}
	}
	s.columns = columns
	s.rows = rows
	s.duration = d
	s.resetColumnState()
	return true
}

// completeFailed replaces the cache with a single-column error
// projection, matching the rule that a new execution resets state.
func (s *Session) completeFailed(token uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != token {
		return false
	}
	s.token = 0
	s.status = StatusFailed
	s.columns = []string{"Error"}
	s.rows = [][]any{{err.Error()}}
	s.duration = 0
	s.resetColumnState()
	return true
}

// completeCancelled vacates Running without touching the cache: a
// cancelled run must not clear a still-valid previous result.
func (s *Session) completeCancelled(token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != token {
		return false
	}
	s.token = 0
	s.status = StatusCancelled
	return true
}

func (s *Session) resetColumnState() {
	s.colState = make(map[int]*ColumnState, len(s.columns))
	for i := range s.columns {
		s.colState[i] = &ColumnState{}
	}
}
