// Package search keeps one outstanding search fetch per query value and
// exposes a loading / error / results view of it.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"popcorn/internal/metrics"
	"popcorn/models"
	"popcorn/services/omdb"
)

// Messages surfaced to consumers.
const (
	MessageNotFound = "Movie not found"
	MessageFailed   = "Something went wrong"
)

// Searcher performs a single search request. It must honour ctx cancellation
// on a best-effort basis; late results are discarded regardless.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResultItem, error)
}

// State is a snapshot of the controller. Consumers render loading first,
// then error, then results.
type State struct {
	Query     string                    `json:"query"`
	Results   []models.SearchResultItem `json:"results"`
	IsLoading bool                      `json:"isLoading"`
	Error     string                    `json:"error,omitempty"`
	Version   uint64                    `json:"version"`
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for failed fetches.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller owns the search state for a single consumer.
type Controller struct {
	searcher Searcher
	logger   *slog.Logger

	mu           sync.Mutex
	state        State
	token        uint64 // generation of the latest request; settlements for older tokens are dropped
	cancel       context.CancelFunc
	listeners    map[uint64]func(State)
	nextListener uint64
	closed       bool

	wg sync.WaitGroup
}

func NewController(searcher Searcher, opts ...Option) *Controller {
	c := &Controller{
		searcher:  searcher,
		logger:    slog.Default(),
		state:     State{Results: []models.SearchResultItem{}},
		listeners: make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetQuery re-runs the search when query differs from the current one.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || query == c.state.Query {
		return
	}
	c.runLocked(query)
}

// Refresh re-runs the current query even though it has not changed.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.runLocked(c.state.Query)
}

func (c *Controller) runLocked(query string) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.token++
	token := c.token
	c.state.Query = query

	if strings.TrimSpace(query) == "" {
		c.state.Results = []models.SearchResultItem{}
		c.state.Error = ""
		c.state.IsLoading = false
		c.publishLocked()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state.IsLoading = true
	c.state.Error = ""
	c.publishLocked()

	metrics.SearchInFlight.Inc()
	c.wg.Add(1)
	go c.fetch(ctx, cancel, token, query)
}

func (c *Controller) fetch(ctx context.Context, cancel context.CancelFunc, token uint64, query string) {
	defer c.wg.Done()
	defer metrics.SearchInFlight.Dec()
	defer cancel()

	results, err := c.searcher.Search(ctx, query)
	c.settle(token, query, results, err)
}

func (c *Controller) settle(token uint64, query string, results []models.SearchResultItem, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		metrics.SearchRequestsTotal.WithLabelValues(metrics.OutcomeSuperseded).Inc()
		c.logger.Debug("dropping superseded search result", "query", query)
		return
	}
	c.cancel = nil
	c.state.IsLoading = false

	switch {
	case err == nil:
		if results == nil {
			results = []models.SearchResultItem{}
		}
		c.state.Results = results
		c.state.Error = ""
		metrics.SearchRequestsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	case errors.Is(err, omdb.ErrNotFound):
		c.state.Results = []models.SearchResultItem{}
		c.state.Error = MessageNotFound
		metrics.SearchRequestsTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
	default:
		c.state.Results = []models.SearchResultItem{}
		c.state.Error = MessageFailed
		metrics.SearchRequestsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		c.logger.Warn("search failed", "query", query, "error", err)
	}
	c.publishLocked()
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	st := c.state
	st.Results = append([]models.SearchResultItem(nil), c.state.Results...)
	if st.Results == nil {
		st.Results = []models.SearchResultItem{}
	}
	return st
}

// Subscribe registers fn to receive every new state. fn runs while the
// controller lock is held and must not call back into the controller.
// The returned function releases the subscription.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) publishLocked() {
	c.state.Version++
	if len(c.listeners) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, fn := range c.listeners {
		fn(snap)
	}
}

// Wait blocks until every fetch goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels any in-flight fetch and waits for it to return.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.token++
	if c.state.IsLoading {
		c.state.IsLoading = false
		c.publishLocked()
	}
	c.listeners = make(map[uint64]func(State))
	c.mu.Unlock()

	c.wg.Wait()
}
