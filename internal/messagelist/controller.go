// Package messagelist incrementally loads a feed into an append-only cache
// for a scrolling list.
//
// A Controller owns one goroutine that is the only writer of the cache, the
// offset and the loading flags. Page fetches run on their own goroutines and
// hand their results back to the owner, which discards results that belong
// to a superseded load.
package messagelist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planetary-social/planetary-cli/internal/crashreport"
	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/ssb"
)

const (
	DefaultPageSize         = 50
	DefaultFetchTimeout     = 30 * time.Second
	DefaultPrefetchDistance = 0
)

// State is a snapshot of a controller. Messages is nil until the first load
// finishes.
type State struct {
	Messages      []ssb.Message
	Offset        int
	Exhausted     bool
	IsLoading     bool
	IsLoadingMore bool
	ErrorMessage  string
	Strategy      feed.Strategy
	Generation    uint64
}

// Loaded reports whether a scratch load has completed.
func (s State) Loaded() bool { return s.Messages != nil }

// Metrics observes page fetches.
type Metrics interface {
	ObservePageFetch(strategy, kind string, count int, d time.Duration, err error)
}

type nopMetrics struct{}

func (nopMetrics) ObservePageFetch(string, string, int, time.Duration, error) {}

type Option func(*Controller)

func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

func WithReporter(r crashreport.Reporter) Option {
	return func(c *Controller) {
		if r != nil {
			c.reporter = r
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithPrefetchDistance makes ItemAppeared trigger a load when the item is
// within n positions of the end of the cache.
func WithPrefetchDistance(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.prefetchDistance = n
		}
	}
}

type loadKind int

const (
	loadScratch loadKind = iota
	loadMore
)

func (k loadKind) String() string {
	if k == loadScratch {
		return "scratch"
	}
	return "more"
}

type requestKind int

const (
	reqScratch requestKind = iota
	reqMore
	reqPrefetch
	reqSetStrategy
	reqClearError
)

type request struct {
	kind     requestKind
	index    int
	strategy feed.Strategy
	reply    chan reply
}

type reply struct {
	started bool
	done    <-chan struct{}
}

type fetch struct {
	kind       loadKind
	generation uint64
	offset     int
	strategy   feed.Strategy
	done       chan struct{}
	cancel     context.CancelFunc
}

type fetchResult struct {
	fetch    *fetch
	messages []ssb.Message
	err      error
	duration time.Duration
}

// Controller is the state holder behind a paginated message list.
type Controller struct {
	store            feed.Store
	pageSize         int
	prefetchDistance int
	fetchTimeout     time.Duration
	log              *zap.Logger
	reporter         crashreport.Reporter
	metrics          Metrics

	baseCtx    context.Context
	baseCancel context.CancelFunc
	requests   chan request
	results    chan fetchResult
	quit       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once

	// Owned by the loop goroutine.
	state    State
	inflight *fetch

	mu          sync.RWMutex
	snapshot    State
	subscribers map[int]chan State
	nextSubID   int
	closed      bool
}

// New creates a controller for strategy and starts its owning goroutine.
// Call Close to release it.
func New(store feed.Store, strategy feed.Strategy, opts ...Option) *Controller {
	c := &Controller{
		store:            store,
		pageSize:         DefaultPageSize,
		prefetchDistance: DefaultPrefetchDistance,
		fetchTimeout:     DefaultFetchTimeout,
		log:              zap.NewNop(),
		reporter:         crashreport.Nop{},
		metrics:          nopMetrics{},
		requests:         make(chan request),
		results:          make(chan fetchResult),
		quit:             make(chan struct{}),
		stopped:          make(chan struct{}),
		subscribers:      make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("session", uuid.NewString()))
	c.baseCtx, c.baseCancel = context.WithCancel(context.Background())
	c.state.Strategy = strategy
	c.snapshot = c.state

	go c.loop()
	return c
}

func (c *Controller) PageSize() int { return c.pageSize }

// State returns the latest published snapshot.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Subscribe returns a channel that receives the current snapshot and every
// later one. Updates coalesce: a slow reader only sees the newest state. The
// returned function unsubscribes; the channel is closed then or on Close.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	ch <- c.snapshot
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
			}
		})
	}
}

// LoadFromScratch drops the cache and loads the first page. It returns false
// without fetching when a scratch load is already in flight. Otherwise it
// waits for the page (or ctx) and returns true. A LoadMore in flight is
// superseded and its result discarded.
func (c *Controller) LoadFromScratch(ctx context.Context) bool {
	return c.do(ctx, request{kind: reqScratch})
}

// LoadMore fetches the next page. It is a no-op returning false while any
// load is in flight, once the feed is exhausted, or before the first scratch
// load.
func (c *Controller) LoadMore(ctx context.Context) bool {
	return c.do(ctx, request{kind: reqMore})
}

// SetStrategy switches the feed strategy and reloads from scratch,
// superseding any load in flight.
func (c *Controller) SetStrategy(ctx context.Context, strategy feed.Strategy) bool {
	return c.do(ctx, request{kind: reqSetStrategy, strategy: strategy})
}

// ItemAppeared is the prefetch hook: a list calls it when it renders the item
// at index. Loading the next page happens in the background.
func (c *Controller) ItemAppeared(index int) {
	_, _ = c.send(context.Background(), request{kind: reqPrefetch, index: index})
}

// ClearError dismisses the current error message.
func (c *Controller) ClearError() {
	_, _ = c.send(context.Background(), request{kind: reqClearError})
}

// Close stops the controller. Loads in flight are cancelled and waiters
// released. Close is idempotent.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		c.baseCancel()
	})
	<-c.stopped
}

func (c *Controller) do(ctx context.Context, req request) bool {
	r, ok := c.send(ctx, req)
	if !ok || !r.started {
		return false
	}
	select {
	case <-r.done:
	case <-ctx.Done():
	}
	return true
}

func (c *Controller) send(ctx context.Context, req request) (reply, bool) {
	req.reply = make(chan reply, 1)
	select {
	case c.requests <- req:
	case <-c.quit:
		return reply{}, false
	case <-ctx.Done():
		return reply{}, false
	}
	return <-req.reply, true
}

func (c *Controller) loop() {
	defer close(c.stopped)
	defer c.shutdown()

	for {
		select {
		case req := <-c.requests:
			req.reply <- c.handle(req)
		case res := <-c.results:
			c.apply(res)
		case <-c.quit:
			return
		}
	}
}

func (c *Controller) handle(req request) reply {
	switch req.kind {
	case reqScratch:
		if c.inflight != nil && c.inflight.kind == loadScratch {
			c.log.Debug("load from scratch ignored, already loading")
			return reply{}
		}
		return c.start(loadScratch)
	case reqSetStrategy:
		c.state.Strategy = req.strategy
		return c.start(loadScratch)
	case reqMore:
		if !c.canLoadMore() {
			return reply{}
		}
		return c.start(loadMore)
	case reqPrefetch:
		if !c.canLoadMore() || req.index < len(c.state.Messages)-1-c.prefetchDistance {
			return reply{}
		}
		return c.start(loadMore)
	case reqClearError:
		if c.state.ErrorMessage != "" {
			c.state.ErrorMessage = ""
			c.publish()
		}
	}
	return reply{}
}

func (c *Controller) canLoadMore() bool {
	return c.inflight == nil && !c.state.Exhausted && c.state.Messages != nil
}

// start begins a fetch on behalf of the loop. A scratch load supersedes any
// fetch in flight.
func (c *Controller) start(kind loadKind) reply {
	if c.inflight != nil {
		c.log.Debug("superseding load in flight",
			zap.Stringer("kind", c.inflight.kind),
			zap.Uint64("generation", c.inflight.generation))
		c.inflight.cancel()
		close(c.inflight.done)
		c.inflight = nil
	}

	offset := c.state.Offset
	if kind == loadScratch {
		c.state.Generation++
		c.state.Messages = nil
		c.state.Offset = 0
		c.state.Exhausted = false
		c.state.IsLoading = true
		c.state.IsLoadingMore = false
		offset = 0
	} else {
		c.state.IsLoadingMore = true
	}

	ctx, cancel := context.WithTimeout(c.baseCtx, c.fetchTimeout)
	f := &fetch{
		kind:       kind,
		generation: c.state.Generation,
		offset:     offset,
		strategy:   c.state.Strategy,
		done:       make(chan struct{}),
		cancel:     cancel,
	}
	c.inflight = f
	c.publish()

	go c.run(ctx, f)
	return reply{started: true, done: f.done}
}

func (c *Controller) run(ctx context.Context, f *fetch) {
	defer f.cancel()
	began := time.Now()
	msgs, err := c.store.Feed(ctx, f.strategy, c.pageSize, f.offset)
	res := fetchResult{fetch: f, messages: msgs, err: err, duration: time.Since(began)}
	select {
	case c.results <- res:
	case <-c.quit:
	}
}

func (c *Controller) apply(res fetchResult) {
	f := res.fetch
	c.metrics.ObservePageFetch(string(f.strategy.Kind), f.kind.String(), len(res.messages), res.duration, res.err)

	if f != c.inflight {
		c.log.Debug("discarding stale page",
			zap.Stringer("kind", f.kind),
			zap.Uint64("generation", f.generation),
			zap.Uint64("current_generation", c.state.Generation))
		return
	}
	c.inflight = nil
	defer close(f.done)

	log := c.log.With(
		zap.Stringer("strategy", f.strategy),
		zap.Stringer("kind", f.kind),
		zap.Int("offset", f.offset),
		zap.Duration("duration", res.duration),
	)

	if res.err != nil {
		log.Error("failed to load feed page", zap.Error(res.err))
		c.reporter.ReportIfNeeded(res.err)
		if f.kind == loadScratch {
			c.state.Messages = []ssb.Message{}
			c.state.Offset = 0
			c.state.Exhausted = true
			c.state.ErrorMessage = errorMessage(res.err)
		}
		c.state.IsLoading = false
		c.state.IsLoadingMore = false
		c.publish()
		return
	}

	count := len(res.messages)
	if f.kind == loadScratch {
		c.state.Messages = make([]ssb.Message, 0, count)
		c.state.ErrorMessage = ""
	}
	c.state.Messages = append(c.state.Messages, res.messages...)
	c.state.Offset += count
	c.state.Exhausted = count < c.pageSize
	c.state.IsLoading = false
	c.state.IsLoadingMore = false

	log.Debug("loaded feed page",
		zap.Int("count", count),
		zap.Int("cached", len(c.state.Messages)),
		zap.Bool("exhausted", c.state.Exhausted))
	c.publish()
}

// publish copies the loop state into the shared snapshot and notifies
// subscribers. The snapshot slice is capped so readers appending to it
// never write into the cache.
func (c *Controller) publish() {
	s := c.state
	if s.Messages != nil {
		s.Messages = s.Messages[:len(s.Messages):len(s.Messages)]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = s
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (c *Controller) shutdown() {
	if c.inflight != nil {
		c.inflight.cancel()
		close(c.inflight.done)
		c.inflight = nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Loading the feed timed out. Pull to refresh to try again."
	case errors.Is(err, context.Canceled):
		return "Loading the feed was cancelled."
	}
	return err.Error()
}
