package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/openduck/internal/registry"
)

// ErrBusy is returned when a run is requested while the session still
// has an execution in flight. Within one session executions are
// strictly sequential.
var ErrBusy = errors.New("session already has an execution in flight")

// Backend routes SQL execution. Satisfied by *registry.Registry.
type Backend interface {
	Resolve(ref string) error
	Execute(ctx context.Context, ref, sql string) (*registry.Result, error)
}

// History records executed query attempts. Satisfied by *store.Store.
type History interface {
	AppendHistory(sql string) error
}

// Executor runs session SQL off the caller's goroutine, producing a
// typed outcome, with at most one in-flight execution per session and
// cooperative cancellation.
type Executor struct {
	backend Backend
	history History
	logger  *slog.Logger
}

// NewExecutor creates an executor over the given backend and history.
// If logger is nil, a discard logger is used.
func NewExecutor(backend Backend, history History, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{backend: backend, history: history, logger: logger}
}

// Execution is the handle for one in-flight run.
type Execution struct {
	session *Session
	token   uint64
	cancel  context.CancelFunc
	done    chan struct{}

	// set by the worker before done is closed
	result *registry.Result
	err    error
}

// Run starts executing the session's SQL.
//
// An empty (after trim) buffer is a no-op and returns (nil, nil). A ref
// with no live connection returns a *registry.RoutingError before any
// history or session mutation. A session with an outstanding execution
// returns ErrBusy. Otherwise the attempt is appended to history, the
// session transitions to Running, and the backend call is dispatched on
// its own goroutine.
func (e *Executor) Run(ctx context.Context, s *Session) (*Execution, error) {
	sqlText := strings.TrimSpace(s.SQL())
	if sqlText == "" {
		return nil, nil
	}

	ref := s.ConnectionRef()
	if err := e.backend.Resolve(ref); err != nil {
		return nil, err
	}

	token, err := s.begin()
	if err != nil {
		return nil, err
	}

	// History records attempts, not just successes.
	if err := e.history.AppendHistory(sqlText); err != nil {
		s.abort(token)
		return nil, fmt.Errorf("failed to record history: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	exec := &Execution{
		session: s,
		token:   token,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	e.logger.Debug("executing",
		slog.String("session", s.ID),
		slog.String("ref", ref),
		slog.Uint64("token", token))

	go e.work(runCtx, exec, ref, sqlText)
	return exec, nil
}

// work performs the blocking backend call and applies the outcome. The
// token check inside the complete* methods is authoritative: a late
// result from a since-cancelled or superseded run is discarded and can
// never overwrite newer state.
func (e *Executor) work(ctx context.Context, exec *Execution, ref, sqlText string) {
	defer exec.cancel()
	defer close(exec.done)

	result, err := e.backend.Execute(ctx, ref, sqlText)
	exec.result = result
	exec.err = err

	s := exec.session
	switch {
	case err != nil && ctx.Err() != nil:
		// The cancel signal usually claims the token first; this path
		// covers a backend that noticed the context on its own.
		s.completeCancelled(exec.token)
		e.logger.Debug("execution cancelled", slog.String("session", s.ID))
	case err != nil:
		if applied := s.completeFailed(exec.token, err); applied {
			e.logger.Debug("execution failed", slog.String("session", s.ID), slog.Any("error", err))
		}
	default:
		if applied := s.completeSuccess(exec.token, result.Columns, result.Rows, result.Duration); applied {
			e.logger.Debug("execution finished",
				slog.String("session", s.ID),
				slog.Int("rows", len(result.Rows)),
				slog.Duration("duration", result.Duration))
		}
	}
}

// Cancel invalidates the outstanding token and signals the in-flight
// call. Cancellation is cooperative: the blocking backend call may
// still run to completion in the background, but its late result is
// discarded by the token check.
func (x *Execution) Cancel() {
	if x == nil {
		return
	}
	x.session.completeCancelled(x.token)
	x.cancel()
}

// Wait blocks until the run's worker has finished or ctx is done, and
// returns the session's resulting status.
func (x *Execution) Wait(ctx context.Context) (Status, error) {
	if x == nil {
		return StatusIdle, nil
	}
	select {
	case <-x.done:
		return x.session.Status(), x.err
	case <-ctx.Done():
		return x.session.Status(), ctx.Err()
	}
}

// Done exposes completion of the background worker.
func (x *Execution) Done() <-chan struct{} {
	if x == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return x.done
}
