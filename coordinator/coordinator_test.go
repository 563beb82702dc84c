package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/infinitepdf/viewer-core/cache"
	"github.com/infinitepdf/viewer-core/session"
)

type fakeBitmap struct{ w, h int }

func (f *fakeBitmap) Close()      {}
func (f *fakeBitmap) Width() int  { return f.w }
func (f *fakeBitmap) Height() int { return f.h }

type countingBackend struct {
	mu       sync.Mutex
	calls    int32
	delay    time.Duration
	gate     chan struct{} // if non-nil, Render blocks until closed
	fail     bool
	recorded []Identity
}

func (b *countingBackend) Render(ctx context.Context, req Request) (cache.Bitmap, error) {
	atomic.AddInt32(&b.calls, 1)
	b.mu.Lock()
	b.recorded = append(b.recorded, req.Identity)
	b.mu.Unlock()
	if b.gate != nil {
		<-b.gate
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.fail {
		return nil, context.DeadlineExceeded
	}
	return &fakeBitmap{w: 256, h: 256}, nil
}

func newTestCoordinator(backend Backend, phase PhaseSource) (*Coordinator, *cache.Cache, *session.Manager) {
	c := cache.New(cache.DefaultConfig())
	sess := session.New()
	cfg := DefaultConfig(4)
	co := New(cfg, backend, c, sess, phase, nil)
	return co, c, sess
}

func TestRequestRenderCacheHitSkipsBackend(t *testing.T) {
	backend := &countingBackend{}
	co, c, _ := newTestCoordinator(backend, nil)
	defer co.Close()

	id := Identity{DocumentID: "doc", Page: 0, TileX: 0, TileY: 0, Scale: 2}
	c.Put(cacheKey(id), &fakeBitmap{w: 10, h: 10}, 1)

	res := co.RequestRender(context.Background(), Request{Identity: id, Priority: Critical, ScaleEpoch: 1})
	if !res.Success {
		t.Fatalf("expected success, got err %v", res.Err)
	}
	if atomic.LoadInt32(&backend.calls) != 0 {
		t.Fatalf("expected 0 backend calls for cache hit, got %d", backend.calls)
	}
}

func TestRequestRenderDispatchesAndCaches(t *testing.T) {
	backend := &countingBackend{}
	co, c, _ := newTestCoordinator(backend, nil)
	defer co.Close()

	id := Identity{DocumentID: "doc", Page: 1, TileX: 0, TileY: 0, Scale: 4}
	res := co.RequestRender(context.Background(), Request{Identity: id, Priority: Critical, ScaleEpoch: 3})
	if !res.Success {
		t.Fatalf("expected success, got err %v", res.Err)
	}
	if res.ScaleEpoch != 3 {
		t.Fatalf("expected scale epoch 3, got %d", res.ScaleEpoch)
	}
	if _, ok := c.Get(cacheKey(id)); !ok {
		t.Fatal("expected result cached after successful render")
	}
}

func TestDuplicateRequestsDedupToOneBackendCall(t *testing.T) {
	gate := make(chan struct{})
	backend := &countingBackend{gate: gate}
	co, _, _ := newTestCoordinator(backend, nil)
	defer co.Close()

	id := Identity{DocumentID: "doc", Page: 2, TileX: 1, TileY: 1, Scale: 8}
	req := Request{Identity: id, Priority: Critical, ScaleEpoch: 1}

	var wg sync.WaitGroup
	results := make([]Result, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = co.RequestRender(context.Background(), req)
		}(i)
	}

	// give all three goroutines a chance to reach the dedup/queue path
	// before the backend call is allowed to complete.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if atomic.LoadInt32(&backend.calls) != 1 {
		t.Fatalf("expected exactly 1 backend call for deduplicated requests, got %d", backend.calls)
	}
	for i, r := range results {
		if !r.Success {
			t.Errorf("result %d: expected success, got err %v", i, r.Err)
		}
	}
}

func TestPerPageCapRejectsAndFallsBackToCachedBitmap(t *testing.T) {
	gate := make(chan struct{})
	backend := &countingBackend{gate: gate}
	cfg := DefaultConfig(1)
	cfg.MaxQueuedPerPage = 1
	cfg.MaxQueuedGlobal = 10
	c := cache.New(cache.DefaultConfig())
	sess := session.New()
	co := New(cfg, backend, c, sess, nil, nil)
	defer co.Close()

	// prime the cache with an older scale so the rejected request has a
	// fallback to fall back to.
	stale := Identity{DocumentID: "doc", Page: 5, TileX: 0, TileY: 0, Scale: 2}
	c.Put(cacheKey(stale), &fakeBitmap{w: 10, h: 10}, 1)

	blocking := Identity{DocumentID: "doc", Page: 5, TileX: 9, TileY: 9, Scale: 2}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		co.RequestRender(context.Background(), Request{Identity: blocking, Priority: Critical, ScaleEpoch: 1})
	}()
	time.Sleep(20 * time.Millisecond) // let it occupy the only queue slot

	overflow := Identity{DocumentID: "doc", Page: 5, TileX: 0, TileY: 0, Scale: 4}
	res := co.RequestRender(context.Background(), Request{Identity: overflow, Priority: Critical, ScaleEpoch: 1})
	if !res.Success {
		t.Fatalf("expected fallback success, got err %v", res.Err)
	}
	if res.FallbackTile == nil {
		t.Fatal("expected a fallback tile identity")
	}
	if res.CSSStretch == 1.0 {
		t.Fatal("expected a non-exact cssStretch for a fallback result")
	}
	close(gate)
	wg.Wait()
}

func TestActivePhaseDropsMediumAndLowPriority(t *testing.T) {
	backend := &countingBackend{}
	active := true
	co, _, _ := newTestCoordinator(backend, func() bool { return active })
	defer co.Close()

	id := Identity{DocumentID: "doc", Page: 9, TileX: 0, TileY: 0, Scale: 2}
	for _, pr := range []Priority{Medium, Low} {
		res := co.RequestRender(context.Background(), Request{Identity: id, Priority: pr, ScaleEpoch: 1})
		if res.Success {
			t.Fatalf("expected priority %v to be dropped during active gesture", pr)
		}
		if res.Err != ErrQueueFull {
			t.Fatalf("expected ErrQueueFull, got %v", res.Err)
		}
	}
}

func TestActivePhaseAdmitsCriticalPriority(t *testing.T) {
	backend := &countingBackend{}
	active := true
	co, _, _ := newTestCoordinator(backend, func() bool { return active })
	defer co.Close()

	id := Identity{DocumentID: "doc", Page: 9, TileX: 0, TileY: 0, Scale: 2}
	res := co.RequestRender(context.Background(), Request{Identity: id, Priority: Critical, ScaleEpoch: 1})
	if !res.Success {
		t.Fatalf("expected Critical priority admitted during active gesture, got err %v", res.Err)
	}
}

func TestOnTileReadyFiresAfterSuccess(t *testing.T) {
	backend := &countingBackend{}
	co, _, _ := newTestCoordinator(backend, nil)
	defer co.Close()

	done := make(chan int, 1)
	co.OnTileReady(func(page int, priority Priority, epoch int64) {
		done <- page
	})

	id := Identity{DocumentID: "doc", Page: 7, TileX: 0, TileY: 0, Scale: 2}
	co.RequestRender(context.Background(), Request{Identity: id, Priority: Critical, ScaleEpoch: 1})

	select {
	case page := <-done:
		if page != 7 {
			t.Fatalf("expected page 7, got %d", page)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnTileReady")
	}
}

func TestAbortAllPendingDeliversAbortedForQueuedWork(t *testing.T) {
	gate := make(chan struct{})
	backend := &countingBackend{gate: gate}
	co, _, _ := newTestCoordinator(backend, nil)
	defer func() { close(gate); co.Close() }()

	// occupy all worker slots so subsequent requests stay queued.
	for i := 0; i < 4; i++ {
		id := Identity{DocumentID: "doc", Page: 100 + i, Scale: 2}
		go co.RequestRender(context.Background(), Request{Identity: id, Priority: Critical, ScaleEpoch: 1})
	}
	time.Sleep(20 * time.Millisecond)

	queuedID := Identity{DocumentID: "doc", Page: 200, Scale: 2}
	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- co.RequestRender(context.Background(), Request{Identity: queuedID, Priority: Critical, ScaleEpoch: 1})
	}()
	time.Sleep(20 * time.Millisecond)

	co.AbortAllPending()

	select {
	case res := <-resultCh:
		if res.Success || res.Err != ErrAborted {
			t.Fatalf("expected ErrAborted, got success=%v err=%v", res.Success, res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for aborted result")
	}
}

func TestAbortStaleSessionsDropsQueuedRequestsForDeadSessions(t *testing.T) {
	gate := make(chan struct{})
	backend := &countingBackend{gate: gate}
	co, _, sess := newTestCoordinator(backend, nil)
	defer func() { close(gate); co.Close() }()

	for i := 0; i < 4; i++ {
		id := Identity{DocumentID: "doc", Page: 300 + i, Scale: 2}
		go co.RequestRender(context.Background(), Request{Identity: id, Priority: Critical, ScaleEpoch: 1})
	}
	time.Sleep(20 * time.Millisecond)

	staleSession := sess.Next()
	id := Identity{DocumentID: "doc", Page: 400, Scale: 2}
	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- co.RequestRender(context.Background(), Request{Identity: id, SessionID: staleSession, Priority: Critical, ScaleEpoch: 1})
	}()
	time.Sleep(20 * time.Millisecond)

	co.AbortStaleSessions(0) // keep none: every live session is stale

	select {
	case res := <-resultCh:
		if res.Success || res.Err != ErrAborted {
			t.Fatalf("expected ErrAborted, got success=%v err=%v", res.Success, res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for aborted result")
	}
}

func TestAbortStaleScaleTilesDropsOnlyOldScale(t *testing.T) {
	gate := make(chan struct{})
	backend := &countingBackend{gate: gate}
	co, _, _ := newTestCoordinator(backend, nil)
	defer co.Close()

	for i := 0; i < 4; i++ {
		id := Identity{DocumentID: "doc", Page: 500 + i, Scale: 2}
		go co.RequestRender(context.Background(), Request{Identity: id, Priority: Critical, ScaleEpoch: 1})
	}
	time.Sleep(20 * time.Millisecond)

	staleID := Identity{DocumentID: "doc", Page: 600, Scale: 2}
	freshID := Identity{DocumentID: "doc", Page: 601, Scale: 8}
	staleCh := make(chan Result, 1)
	freshCh := make(chan Result, 1)
	go func() {
		staleCh <- co.RequestRender(context.Background(), Request{Identity: staleID, Priority: Critical, ScaleEpoch: 1})
	}()
	go func() {
		freshCh <- co.RequestRender(context.Background(), Request{Identity: freshID, Priority: Critical, ScaleEpoch: 1})
	}()
	time.Sleep(20 * time.Millisecond)

	co.AbortStaleScaleTiles(8, 2)

	select {
	case res := <-staleCh:
		if res.Success || res.Err != ErrAborted {
			t.Fatalf("expected stale-scale request aborted, got success=%v err=%v", res.Success, res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stale-scale abort")
	}

	close(gate)
	select {
	case res := <-freshCh:
		if !res.Success {
			t.Fatalf("expected fresh-scale request to still complete, got err %v", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fresh-scale completion")
	}
}
