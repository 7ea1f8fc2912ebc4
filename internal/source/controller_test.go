package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"amdash/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// funcSource adapts a function to Source.
type funcSource func(ctx context.Context, q Query) (*models.RecordSet, error)

func (f funcSource) Fetch(ctx context.Context, q Query) (*models.RecordSet, error) { return f(ctx, q) }
func (f funcSource) Backend() string                                               { return "func" }

type collector struct {
	mu      sync.Mutex
	results []Result
	got     chan struct{}
}

func newCollector() *collector { return &collector{got: make(chan struct{}, 16)} }

func (c *collector) deliver(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) seqs() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, len(c.results))
	for i, r := range c.results {
		out[i] = r.Seq
	}
	return out
}

func waitDelivery(t *testing.T, c *collector) {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(5 * time.Second):
		t.Fatal("no result delivered")
	}
}

func TestController_DropsSupersededResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	slow := make(chan struct{})
	src := funcSource(func(ctx context.Context, q Query) (*models.RecordSet, error) {
		if q.Limit == 1 {
			<-slow // ignores cancellation and answers late
		}
		return &models.RecordSet{Dataset: q.Dataset.Name, Records: []models.Record{}}, nil
	})
	col := newCollector()
	ctl := NewController(src, col.deliver)
	defer ctl.Close()

	ds := companies(t)
	first := ctl.Request(Query{Dataset: ds, Limit: 1})
	second := ctl.Request(Query{Dataset: ds, Limit: 2})
	require.Greater(t, second, first)
	assert.Equal(t, second, ctl.Latest())

	waitDelivery(t, col)
	close(slow)
	ctl.Wait()

	assert.Equal(t, []uint64{second}, col.seqs())
}

func TestController_CancelsPreviousFetch(t *testing.T) {
	defer goleak.VerifyNone(t)

	cancelled := make(chan struct{})
	src := funcSource(func(ctx context.Context, q Query) (*models.RecordSet, error) {
		if q.Limit == 1 {
			<-ctx.Done()
			close(cancelled)
			return nil, fetchErr(q, "func", 0, ctx.Err())
		}
		return &models.RecordSet{Dataset: q.Dataset.Name}, nil
	})
	col := newCollector()
	ctl := NewController(src, col.deliver)
	defer ctl.Close()

	ds := companies(t)
	ctl.Request(Query{Dataset: ds, Limit: 1})
	second := ctl.Request(Query{Dataset: ds, Limit: 2})

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("first fetch was not cancelled")
	}
	waitDelivery(t, col)
	ctl.Wait()

	require.Equal(t, []uint64{second}, col.seqs())
	assert.NoError(t, col.results[0].Err)
}

func TestController_DeliversErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := funcSource(func(ctx context.Context, q Query) (*models.RecordSet, error) {
		return nil, fetchErr(q, "func", 503, context.DeadlineExceeded)
	})
	col := newCollector()
	ctl := NewController(src, col.deliver)
	defer ctl.Close()

	ctl.Request(Query{Dataset: companies(t)})
	waitDelivery(t, col)

	var fe *FetchError
	require.ErrorAs(t, col.results[0].Err, &fe)
	assert.Equal(t, 503, fe.Status)
}

func TestController_CloseStopsDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	src := funcSource(func(ctx context.Context, q Query) (*models.RecordSet, error) {
		close(started)
		<-ctx.Done()
		return nil, fetchErr(q, "func", 0, ctx.Err())
	})
	col := newCollector()
	ctl := NewController(src, col.deliver)

	ctl.Request(Query{Dataset: companies(t)})
	<-started
	ctl.Close()

	assert.Empty(t, col.seqs())
	assert.Zero(t, ctl.Request(Query{Dataset: companies(t)}))
}

func TestController_Do(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	src := funcSource(func(ctx context.Context, q Query) (*models.RecordSet, error) {
		if q.Limit == 1 {
			<-release
		}
		return &models.RecordSet{Dataset: q.Dataset.Name, Records: []models.Record{{}}}, nil
	})
	col := newCollector()
	ctl := NewController(src, col.deliver)
	defer ctl.Close()
	ds := companies(t)

	r, delivered := ctl.Do(context.Background(), Query{Dataset: ds, Limit: 2})
	require.True(t, delivered)
	assert.Equal(t, 1, r.Records.Len())
	waitDelivery(t, col)

	done := make(chan bool)
	go func() {
		_, ok := ctl.Do(context.Background(), Query{Dataset: ds, Limit: 1})
		done <- ok
	}()
	require.Eventually(t, func() bool { return ctl.Latest() == 2 }, 5*time.Second, time.Millisecond)
	ctl.Request(Query{Dataset: ds, Limit: 3})
	waitDelivery(t, col)
	close(release)

	assert.False(t, <-done, "a superseded Do must not deliver")
	assert.Equal(t, []uint64{1, 3}, col.seqs())
}
