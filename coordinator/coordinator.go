// Package coordinator implements the render coordinator described in
// spec §4.4: accepts tile/full-page requests, deduplicates in flight,
// enforces per-page and global queue caps, dispatches to rasterization
// workers bounded by a semaphore, and returns bitmaps tagged with
// scale-epoch metadata.
package coordinator

import (
	"container/heap"
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/infinitepdf/viewer-core/cache"
	"github.com/infinitepdf/viewer-core/session"
)

// Priority is one of the four queue bands (spec §3: RenderRequest,
// §4.4: "four bands").
type Priority int

const (
	Critical Priority = iota
	High
	Medium
	Low
)

// RequestKind distinguishes a tile request from a full-page request.
type RequestKind int

const (
	TileKind RequestKind = iota
	PageKind
)

// Identity is the dedup/cache key (spec §4.4: "Identity-deduplicates
// in-flight requests on (documentId, page, tileX, tileY, scale)").
type Identity struct {
	DocumentID string
	Page       int
	TileX      int
	TileY      int
	Scale      int
}

// Request is one render request (spec §3: RenderRequest).
type Request struct {
	Kind           RequestKind
	Identity       Identity
	Priority       Priority
	SessionID      session.ID
	ScaleEpoch     int64
	RenderParamsID string
	// Zoom is the camera zoom the request was submitted under, used
	// only to evaluate Config.MaxStretch against a fallback bitmap
	// (spec §4.4: "accept any cssStretch <= maxStretch(zoom)"); it is
	// not part of Identity and plays no role in caching or dedup.
	Zoom float64
}

// Result is what requestRender resolves to (spec §4.4).
type Result struct {
	Success        bool
	Data           cache.Bitmap
	ScaleEpoch     int64
	RenderParamsID string
	CSSStretch     float64
	FallbackTile   *Identity
	Err            error
}

// Backend renders a single request. Implementations talk to the
// out-of-scope PDF rasterization backend (spec §1, §6); this package
// only sequences and bounds concurrent calls into it.
type Backend interface {
	Render(ctx context.Context, req Request) (cache.Bitmap, error)
}

// ErrAborted is returned (wrapped) when a request is canceled by session
// abort, queue-clearing, or coordinator shutdown. Treated as ordinary
// control flow, never logged as an error (spec §7: AbortError).
var ErrAborted = errors.New("coordinator: request aborted")

// ErrQueueFull is returned when admission is refused because a per-page
// or global cap (or the active-gesture aggressive-drop policy) rejects
// the request.
var ErrQueueFull = errors.New("coordinator: queue full or request dropped under backpressure")

// Config holds the coordinator's tunables (spec §4.4, §5).
type Config struct {
	MaxConcurrentRenders int64
	MaxQueuedPerPage     int
	MaxQueuedGlobal      int
	// MaxStretch maps a zoom bucket to the maximum acceptable
	// cssStretch for a fallback bitmap (spec §4.4: "accept any
	// cssStretch <= maxStretch(zoom)").
	MaxStretch func(zoom float64) float64
}

// DefaultConfig returns the concurrency cap from spec §5 ("≈2x logical
// cores, cap 12") using numWorkers as the caller's chosen worker count,
// and the fallback-acceptance tiers from spec §4.4.
func DefaultConfig(numWorkers int64) Config {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if numWorkers > 12 {
		numWorkers = 12
	}
	return Config{
		MaxConcurrentRenders: numWorkers,
		MaxQueuedPerPage:     32,
		MaxQueuedGlobal:      256,
		MaxStretch: func(zoom float64) float64 {
			switch {
			case zoom >= 32:
				return 32
			case zoom >= 16:
				return 16
			default:
				return 8
			}
		},
	}
}

// PhaseSource reports whether the gesture is currently active, so the
// coordinator can apply the aggressive drop policy (spec §4.4: "During
// active gesture phase... only critical/high tiles are accepted").
// Passed as a function rather than a concrete zoomstate.Machine so this
// package does not import zoomstate, keeping the dependency direction
// one-way (controller wires both together).
type PhaseSource func() (active bool)

// Coordinator is the render coordinator.
type Coordinator struct {
	cfg     Config
	backend Backend
	cache   *cache.Cache
	sess    *session.Manager
	phase   PhaseSource
	sem     *semaphore.Weighted
	logger  *log.Logger

	onTileReady func(page int, priority Priority, epoch int64)

	mu          sync.Mutex
	inFlight    map[Identity][]chan Result
	queue       *priorityQueue
	perPage     map[int]int
	globalCount int
	wake        chan struct{}
	closed      bool
	closeCh     chan struct{}
	runCtx      context.Context
	runCancel   context.CancelFunc
}

// New constructs a Coordinator. cache and sess must be non-nil; phase may
// be nil, in which case the aggressive active-gesture drop policy never
// triggers.
func New(cfg Config, backend Backend, c *cache.Cache, sess *session.Manager, phase PhaseSource, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	if phase == nil {
		phase = func() bool { return false }
	}
	runCtx, runCancel := context.WithCancel(context.Background())
	co := &Coordinator{
		cfg:       cfg,
		backend:   backend,
		cache:     c,
		sess:      sess,
		phase:     phase,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrentRenders),
		logger:    logger,
		inFlight:  make(map[Identity][]chan Result),
		queue:     newPriorityQueue(),
		perPage:   make(map[int]int),
		wake:      make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	go co.dispatchLoop()
	return co
}

// OnTileReady registers a callback fired after a tile completes
// successfully, so consumers can re-composite without re-requesting
// (spec §4.4).
func (co *Coordinator) OnTileReady(fn func(page int, priority Priority, epoch int64)) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.onTileReady = fn
}

// RequestRender submits req and blocks until it resolves: from cache,
// from a shared in-flight result, from a fresh dispatch, or from
// rejection under backpressure (spec §4.4: requestRender(req) ->
// Promise<...>).
func (co *Coordinator) RequestRender(ctx context.Context, req Request) Result {
	if b, ok := co.cache.Get(cacheKey(req.Identity)); ok {
		return Result{Success: true, Data: b, ScaleEpoch: req.ScaleEpoch, RenderParamsID: req.RenderParamsID, CSSStretch: 1.0}
	}

	co.mu.Lock()
	if co.closed {
		co.mu.Unlock()
		return Result{Success: false, Err: ErrAborted}
	}
	if subs, ok := co.inFlight[req.Identity]; ok {
		ch := make(chan Result, 1)
		co.inFlight[req.Identity] = append(subs, ch)
		co.mu.Unlock()
		return co.waitFor(ctx, ch)
	}

	if !co.admitLocked(req) {
		co.mu.Unlock()
		return co.fallbackOrReject(req)
	}

	ch := make(chan Result, 1)
	co.inFlight[req.Identity] = []chan Result{ch}
	co.perPage[req.Identity.Page]++
	co.globalCount++
	heap.Push(co.queue, &queuedRequest{req: req})
	co.mu.Unlock()
	co.signalWake()

	return co.waitFor(ctx, ch)
}

// admitLocked decides whether req may be queued. Caller must hold co.mu.
func (co *Coordinator) admitLocked(req Request) bool {
	if co.phase() && req.Priority > High {
		return false // active-gesture aggressive drop (spec §4.4)
	}
	if co.cfg.MaxQueuedGlobal > 0 && co.globalCount >= co.cfg.MaxQueuedGlobal {
		return false
	}
	if co.cfg.MaxQueuedPerPage > 0 && co.perPage[req.Identity.Page] >= co.cfg.MaxQueuedPerPage {
		return false
	}
	return true
}

// fallbackOrReject returns a cached lower/higher-scale bitmap if the
// call-site's stretch tolerance allows it, otherwise a plain rejection
// (spec §4.4: "a blurry visible tile strictly beats a blank gap" —
// but only up to "accept any cssStretch <= maxStretch(zoom)"; beyond
// that cap a blurry tile is worse than waiting for the real one).
func (co *Coordinator) fallbackOrReject(req Request) Result {
	fb, ok := co.cache.GetBestAvailableBitmap(cacheKey(req.Identity), req.Identity.Scale)
	if !ok {
		return Result{Success: false, Err: ErrQueueFull}
	}
	if co.cfg.MaxStretch != nil && fb.CSSStretch > co.cfg.MaxStretch(req.Zoom) {
		return Result{Success: false, Err: ErrQueueFull}
	}
	return Result{
		Success:    true,
		Data:       fb.Bitmap,
		ScaleEpoch: req.ScaleEpoch,
		CSSStretch: fb.CSSStretch,
		FallbackTile: &Identity{
			DocumentID: fb.Tile.DocumentID, Page: fb.Tile.Page,
			TileX: fb.Tile.TileX, TileY: fb.Tile.TileY, Scale: fb.Tile.Scale,
		},
	}
}

func (co *Coordinator) waitFor(ctx context.Context, ch chan Result) Result {
	select {
	case r := <-ch:
		return r
	case <-ctx.Done():
		return Result{Success: false, Err: ctx.Err()}
	}
}

func (co *Coordinator) signalWake() {
	select {
	case co.wake <- struct{}{}:
	default:
	}
}

// dispatchLoop waits for a free worker-pool slot before taking the
// highest-priority admitted request off the queue, so a request sitting
// in the queue (rather than already handed to a worker) stays reachable
// by AbortAllPending/AbortStaleSessions/AbortStaleScaleTiles until a
// worker actually starts on it. Modeled on the teacher's worker-pool-
// over-a-channel (map.go: startWorkerPool/tileDownloader), replacing the
// unbounded channel with a priority heap and a semaphore in place of a
// fixed goroutine count, so priority order is honored instead of FIFO.
func (co *Coordinator) dispatchLoop() {
	for {
		select {
		case <-co.closeCh:
			return
		default:
		}
		if err := co.sem.Acquire(co.runCtx, 1); err != nil {
			return
		}
		item, ok := co.popNext()
		if !ok {
			co.sem.Release(1)
			select {
			case <-co.wake:
				continue
			case <-co.closeCh:
				return
			}
		}
		go co.execute(item)
	}
}

func (co *Coordinator) popNext() (*queuedRequest, bool) {
	co.mu.Lock()
	defer co.mu.Unlock()
	if co.closed || co.queue.Len() == 0 {
		return nil, false
	}
	item := heap.Pop(co.queue).(*queuedRequest)
	return item, true
}

// execute calls the backend (the caller has already reserved a
// worker-pool slot), caches the result, and fans it out to every
// subscriber that deduplicated onto this request (spec §4.4, §5: bounded
// worker pool).
func (co *Coordinator) execute(item *queuedRequest) {
	ctx := context.Background()
	defer co.sem.Release(1)

	bmp, err := co.backend.Render(ctx, item.req)
	if err != nil {
		co.logger.Printf("coordinator: render failed for %+v: %v", item.req.Identity, err)
		co.finish(item.req, Result{Success: false, Err: err})
		return
	}
	co.cache.Put(cacheKey(item.req.Identity), bmp, item.req.ScaleEpoch)

	co.mu.Lock()
	cb := co.onTileReady
	co.mu.Unlock()
	if cb != nil {
		cb(item.req.Identity.Page, item.req.Priority, item.req.ScaleEpoch)
	}

	co.finish(item.req, Result{
		Success: true, Data: bmp, ScaleEpoch: item.req.ScaleEpoch,
		RenderParamsID: item.req.RenderParamsID, CSSStretch: 1.0,
	})
}

// finish delivers a result to every subscriber of req's identity and
// clears bookkeeping. Safe to call with either a success or abort
// result.
func (co *Coordinator) finish(req Request, res Result) {
	co.mu.Lock()
	subs := co.inFlight[req.Identity]
	delete(co.inFlight, req.Identity)
	if co.perPage[req.Identity.Page] > 0 {
		co.perPage[req.Identity.Page]--
	}
	if co.globalCount > 0 {
		co.globalCount--
	}
	co.mu.Unlock()

	for _, ch := range subs {
		ch <- res
	}
}

// AbortAllPending cancels every queued and in-flight request (spec
// §4.4). Queued items are dropped outright; in-flight backend calls are
// not interrupted (spec §5: "canceled in-flight rasterizations still
// deliver into the cache if they complete") but their waiters are told
// ErrAborted immediately rather than waiting for the real result.
func (co *Coordinator) AbortAllPending() {
	co.mu.Lock()
	for co.queue.Len() > 0 {
		item := heap.Pop(co.queue).(*queuedRequest)
		co.deliverAbortLocked(item.req)
	}
	// In-flight entries stay registered so finish still clears their
	// bookkeeping; only their current waiters are released.
	for id, subs := range co.inFlight {
		for _, ch := range subs {
			ch <- Result{Success: false, Err: ErrAborted}
		}
		co.inFlight[id] = nil
	}
	co.mu.Unlock()
}

// deliverAbortLocked removes req's bookkeeping and sends ErrAborted to
// its subscribers without waiting for the backend. Caller must hold
// co.mu; the sends happen under the lock, which is safe because every
// subscriber channel is buffered (capacity 1) and receives one result.
func (co *Coordinator) deliverAbortLocked(req Request) {
	subs := co.inFlight[req.Identity]
	delete(co.inFlight, req.Identity)
	if co.perPage[req.Identity.Page] > 0 {
		co.perPage[req.Identity.Page]--
	}
	if co.globalCount > 0 {
		co.globalCount--
	}
	for _, ch := range subs {
		ch <- Result{Success: false, Err: ErrAborted}
	}
}

// AbortStaleSessions drops every queued request whose session is no
// longer live per sess, keeping the coordinator's queue free of work for
// viewports the user has already scrolled past (spec §4.4).
func (co *Coordinator) AbortStaleSessions(keepRecent int) {
	co.sess.AbortStale(keepRecent)
	co.mu.Lock()
	defer co.mu.Unlock()
	co.queue.filter(func(req Request) bool {
		if co.sess.IsLive(req.SessionID) {
			return true
		}
		co.deliverAbortLocked(req)
		return false
	})
}

// AbortStaleScaleTiles drops every queued tile request whose scale is
// staleScale rather than currentScale (spec §4.4), used after a scale
// tier change makes in-flight requests at the old tier pointless.
func (co *Coordinator) AbortStaleScaleTiles(currentScale, staleScale int) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.queue.filter(func(req Request) bool {
		if req.Kind != TileKind || req.Identity.Scale != staleScale || req.Identity.Scale == currentScale {
			return true
		}
		co.deliverAbortLocked(req)
		return false
	})
}

// Close stops the dispatch loop and aborts all pending work. After
// Close, RequestRender returns ErrAborted for any request not already in
// the cache; a cache hit is still returned as a success.
func (co *Coordinator) Close() {
	co.mu.Lock()
	co.closed = true
	co.mu.Unlock()
	close(co.closeCh)
	co.runCancel()
	co.AbortAllPending()
	co.signalWake()
}

func cacheKey(id Identity) cache.Key {
	return cache.Key{DocumentID: id.DocumentID, Page: id.Page, TileX: id.TileX, TileY: id.TileY, Scale: id.Scale}
}
