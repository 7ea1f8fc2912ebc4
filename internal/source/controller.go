package source

import (
	"context"
	"sync"

	"amdash/internal/metrics"
	"amdash/internal/models"
)

// Result is the outcome of one fetch issued by a Controller.
type Result struct {
	Seq     uint64
	Query   Query
	Records *models.RecordSet
	Err     error
}

// Controller issues fetches for one consumer and delivers only the result of
// the most recent request. Issuing a request cancels the one in flight; a
// result that arrives after a newer request was issued is dropped.
type Controller struct {
	src     Source
	deliver func(Result)

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	closed bool
}

// NewController calls deliver from the fetch goroutine. A delivery may
// still race a Request issued just after its staleness check, so consumers
// compare Result.Seq against the newest sequence they have seen.
func NewController(src Source, deliver func(Result)) *Controller {
	ctx, stop := context.WithCancel(context.Background())
	return &Controller{src: src, deliver: deliver, ctx: ctx, stop: stop}
}

// Request starts a fetch for q and returns its sequence number. It returns
// 0 once the controller is closed.
func (c *Controller) Request(q Query) uint64 {
	seq, ctx, cancel, ok := c.begin(c.ctx)
	if !ok {
		return 0
	}
	go func() {
		defer c.wg.Done()
		defer cancel()
		rs, err := c.src.Fetch(ctx, q)
		c.finish(Result{Seq: seq, Query: q, Records: rs, Err: err})
	}()
	return seq
}

// Do fetches q on the calling goroutine under the same rules as Request:
// it supersedes the fetch in flight and can itself be superseded. It
// reports whether the result was delivered.
func (c *Controller) Do(ctx context.Context, q Query) (Result, bool) {
	seq, ctx, cancel, ok := c.begin(ctx)
	if !ok {
		return Result{Query: q, Err: fetchErr(q, c.src.Backend(), 0, context.Canceled)}, false
	}
	defer c.wg.Done()
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	rs, err := c.src.Fetch(ctx, q)
	r := Result{Seq: seq, Query: q, Records: rs, Err: err}
	return r, c.finish(r)
}

// begin cancels the fetch in flight and registers a new one derived from
// parent. The caller owns one wg slot when ok is true.
func (c *Controller) begin(parent context.Context) (uint64, context.Context, context.CancelFunc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, nil, false
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.wg.Add(1)
	return c.seq, ctx, cancel, true
}

func (c *Controller) finish(r Result) bool {
	c.mu.Lock()
	stale := c.closed || r.Seq != c.seq
	if !stale {
		c.cancel = nil
	}
	c.mu.Unlock()
	if stale {
		metrics.StaleDropped(r.Query.Dataset.Name)
		return false
	}
	c.deliver(r)
	return true
}

// Latest is the sequence number of the newest request.
func (c *Controller) Latest() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Wait blocks until no fetch is in flight.
func (c *Controller) Wait() { c.wg.Wait() }

// Close cancels the fetch in flight and waits for its goroutine to exit.
// Nothing is delivered after Close returns.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stop()
	c.wg.Wait()
}
