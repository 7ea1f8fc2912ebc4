package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"amdash/internal/catalog"
	"amdash/internal/debounce"
	"amdash/internal/source"

	"go.uber.org/zap"
)

// Session drives one view: coarse filter changes are debounced into
// fetches, fetch results are reduced into the state, and only the newest
// fetch is ever shown.
type Session struct {
	ds  catalog.Dataset
	log *zap.Logger
	ctl *source.Controller
	deb *debounce.Debouncer[source.CoarseFilter]

	mu        sync.Mutex
	state     State
	deriver   Deriver
	changed   chan struct{}
	requested bool
}

// ErrNotRequested is returned by Wait on a session that was never asked to
// fetch.
var ErrNotRequested = errors.New("view: wait before any fetch was requested")

func NewSession(ds catalog.Dataset, src source.Source, wait time.Duration, log *zap.Logger) *Session {
	s := &Session{
		ds:      ds,
		log:     log,
		state:   Initial(ds),
		changed: make(chan struct{}),
	}
	s.ctl = source.NewController(src, s.onResult)
	s.deb = debounce.New(wait, s.fetch)
	return s
}

// SetCoarse schedules a fetch for c once input settles.
func (s *Session) SetCoarse(c source.CoarseFilter) {
	s.markRequested()
	s.deb.Trigger(c)
}

func (s *Session) markRequested() {
	s.mu.Lock()
	s.requested = true
	s.mu.Unlock()
}

// Refresh fetches now: a pending coarse change is flushed, otherwise the
// current coarse filter is fetched again.
func (s *Session) Refresh() {
	s.markRequested()
	if s.deb.Flush() {
		return
	}
	s.mu.Lock()
	c := s.state.Coarse
	s.mu.Unlock()
	s.fetch(c)
}

func (s *Session) fetch(c source.CoarseFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.ctl.Request(source.Query{Dataset: s.ds, Coarse: c})
	if seq == 0 {
		return
	}
	s.log.Debug("fetch issued", zap.String("dataset", s.ds.Name), zap.Uint64("seq", seq), zap.String("coarse", c.Key()))
	s.apply(SetCoarse{Coarse: c, Seq: seq})
}

func (s *Session) onResult(r source.Result) {
	if r.Err != nil {
		s.Dispatch(FetchFailed{Seq: r.Seq, Err: r.Err})
		return
	}
	s.Dispatch(FetchSucceeded{Seq: r.Seq, Records: r.Records})
}

// Dispatch reduces e into the session state.
func (s *Session) Dispatch(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(e)
}

func (s *Session) apply(e Event) {
	s.state = Reduce(s.state, e)
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deriver.Derive(s.state)
}

// Wait blocks until no coarse change is pending and the newest fetch has
// either succeeded or failed. It returns ErrNotRequested at once if neither
// SetCoarse nor Refresh has been called.
func (s *Session) Wait(ctx context.Context) (State, error) {
	for {
		s.mu.Lock()
		st, ch, requested := s.state, s.changed, s.requested
		settled := (st.Status == Ready || st.Status == Failed) && !s.deb.Pending()
		s.mu.Unlock()
		if !requested {
			return st, ErrNotRequested
		}
		if settled {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Close stops pending and in-flight fetches.
func (s *Session) Close() {
	s.deb.Stop()
	s.ctl.Close()
}
