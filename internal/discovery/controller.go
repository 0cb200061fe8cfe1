// Package discovery owns the paginated fetch state of a result list: the
// current query, the page cursor and the accumulated results.
package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"popcorn-grinder-service/internal/model"

	"github.com/rs/zerolog/log"
)

// Settlement outcomes reported to a Recorder
const (
	OutcomeOK         = "ok"
	OutcomeExhausted  = "exhausted"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// ErrEmptyPayload is reported when the upstream answers without a page
var ErrEmptyPayload = errors.New("empty response payload")

// PageFetcher fetches one page of results for a query
type PageFetcher interface {
	FetchPage(ctx context.Context, query model.Query, page int) (*model.MoviePage, error)
}

// Recorder receives the outcome of every settled page request
type Recorder interface {
	RecordFetch(ctx context.Context, outcome string, latencyMs float64) error
}

// Options configures a Controller
type Options struct {
	// OnUpdate is called after each applied state change, in order, with the
	// controller lock held. It must not call back into the Controller.
	OnUpdate func(Snapshot)
	Recorder Recorder
	// Name tags log lines, usually the session id.
	Name string
}

// Snapshot is a consistent copy of the controller state
type Snapshot struct {
	Query   model.Query   `json:"query"`
	Page    int           `json:"page"`
	HasMore bool          `json:"has_more"`
	Loading bool          `json:"loading"`
	Stalled bool          `json:"stalled"`
	Error   string        `json:"error,omitempty"`
	Results []model.Movie `json:"results"`
}

// Controller turns (query, page) into one authoritative result list.
// At most one page request is in flight; issuing a new one cancels the
// previous one and its settlement is discarded.
type Controller struct {
	fetcher PageFetcher
	opts    Options

	mu      sync.Mutex
	query   model.Query
	started bool
	closed  bool
	page    int
	hasMore bool
	loading bool
	stalled bool
	lastErr error
	results []model.Movie

	gen    uint64
	cancel context.CancelFunc
}

// NewController creates an idle controller. Nothing is fetched until the
// first SetQuery.
func NewController(fetcher PageFetcher, opts Options) *Controller {
	return &Controller{
		fetcher: fetcher,
		opts:    opts,
		page:    1,
		hasMore: true,
	}
}

// SetQuery switches to a new query: page 1, empty results, has_more reset,
// fresh request. It returns false and does nothing when the query equals the
// current one.
func (c *Controller) SetQuery(query model.Query) bool {
	c.mu.Lock()
	if c.closed || (c.started && c.query.Equal(query)) {
		c.mu.Unlock()
		return false
	}
	c.started = true
	c.query = query
	c.page = 1
	c.results = nil
	c.hasMore = true
	c.stalled = false
	c.lastErr = nil
	c.issueLocked()
	c.notifyLocked()
	c.mu.Unlock()
	return true
}

// AdvancePage requests the next page of the current query. It is a no-op
// returning false when there is nothing more to load or a request is still
// in flight.
func (c *Controller) AdvancePage() bool {
	c.mu.Lock()
	if c.closed || !c.started || !c.hasMore || c.loading {
		c.mu.Unlock()
		return false
	}
	c.page++
	c.issueLocked()
	c.notifyLocked()
	c.mu.Unlock()
	return true
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close cancels the in-flight request. Later calls are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.loading = false
}

// issueLocked cancels any pending request and starts one for the current
// (query, page). Callers hold c.mu.
func (c *Controller) issueLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.loading = true

	go c.fetch(ctx, c.gen, c.query, c.page)
}

func (c *Controller) fetch(ctx context.Context, gen uint64, query model.Query, page int) {
	start := time.Now()
	resp, err := c.fetcher.FetchPage(ctx, query, page)
	if err == nil && resp == nil {
		err = ErrEmptyPayload
	}
	latency := float64(time.Since(start).Milliseconds())

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		log.Debug().
			Str("session", c.opts.Name).
			Int("page", page).
			Msg("Discarding superseded page")
		c.record(OutcomeSuperseded, latency)
		return
	}

	c.loading = false
	release := c.cancel
	c.cancel = nil

	var outcome string
	switch {
	case err != nil:
		c.hasMore = false
		c.stalled = true
		c.lastErr = err
		outcome = OutcomeFailed
	case len(resp.Results) == 0:
		c.hasMore = false
		outcome = OutcomeExhausted
	default:
		if page == 1 {
			c.results = append([]model.Movie(nil), resp.Results...)
		} else {
			c.results = append(c.results, resp.Results...)
		}
		c.hasMore = resp.Page < resp.TotalPages
		outcome = OutcomeOK
	}
	c.notifyLocked()
	c.mu.Unlock()
	if release != nil {
		release()
	}

	if err != nil {
		log.Warn().
			Err(err).
			Str("session", c.opts.Name).
			Str("mode", string(query.Mode())).
			Int("page", page).
			Msg("Loading stalled")
	}
	c.record(outcome, latency)
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Query:   c.query,
		Page:    c.page,
		HasMore: c.hasMore,
		Loading: c.loading,
		Stalled: c.stalled,
		Results: make([]model.Movie, len(c.results)),
	}
	copy(snap.Results, c.results)
	if c.lastErr != nil {
		snap.Error = c.lastErr.Error()
	}
	return snap
}

func (c *Controller) notifyLocked() {
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(c.snapshotLocked())
	}
}

func (c *Controller) record(outcome string, latencyMs float64) {
	if c.opts.Recorder == nil {
		return
	}
	if err := c.opts.Recorder.RecordFetch(context.Background(), outcome, latencyMs); err != nil {
		log.Debug().Err(err).Msg("Failed to record fetch outcome")
	}
}
