// Package session hosts one user's search box, result selection, detail
// view and rating flow. A Session is either Browsing or Viewing a single
// title; entering Viewing always starts a fresh detail fetch.
package session

//go:generate mockgen -destination=mock_detail_fetcher_test.go -package=session popcorn/services/session DetailFetcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"popcorn/internal/metrics"
	"popcorn/models"
	"popcorn/services/omdb"
	"popcorn/services/search"
	"popcorn/services/watched"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrClosed         = errors.New("session closed")
	ErrIDRequired     = errors.New("id is required")
	ErrNotViewing     = errors.New("no title selected")
	ErrDetailNotReady = errors.New("movie detail not loaded")
	ErrNoRating       = errors.New("no rating chosen")
)

// DefaultAppTitle is the document title while no detail is shown.
const DefaultAppTitle = "usePopcorn"

type Phase string

const (
	PhaseBrowsing Phase = "browsing"
	PhaseViewing  Phase = "viewing"
)

// DetailFetcher loads the full record for one title.
type DetailFetcher interface {
	Details(ctx context.Context, id string) (*models.MovieDetail, error)
}

// WatchedList is the part of the watched service a session needs.
type WatchedList interface {
	Get(id string) (models.WatchedEntry, bool)
	Add(ctx context.Context, input models.WatchedAdd) (models.WatchedEntry, error)
}

// State is a snapshot of a session.
type State struct {
	ID             string              `json:"id"`
	Search         search.State        `json:"search"`
	SearchFocused  bool                `json:"searchFocused"`
	Phase          Phase               `json:"phase"`
	SelectedID     string              `json:"selectedId,omitempty"`
	Detail         *models.MovieDetail `json:"detail,omitempty"`
	DetailLoading  bool                `json:"detailLoading"`
	DetailError    string              `json:"detailError,omitempty"`
	AlreadyWatched bool                `json:"alreadyWatched"`
	ExistingRating int                 `json:"existingRating,omitempty"`
	Rating         RatingState         `json:"rating"`
	DocumentTitle  string              `json:"documentTitle"`
	Version        uint64              `json:"version"`
}

// Config tunes new sessions.
type Config struct {
	AppTitle       string
	MaxRating      int
	RatingMessages []string
	Logger         *slog.Logger
	Clock          func() time.Time
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.AppTitle) == "" {
		c.AppTitle = DefaultAppTitle
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

type Session struct {
	id       string
	details  DetailFetcher
	watched  WatchedList
	search   *search.Controller
	keys     *KeyBus
	appTitle string
	clock    func() time.Time
	logger   *slog.Logger

	mu             sync.Mutex
	closed         bool
	phase          Phase
	selectedID     string
	detail         *models.MovieDetail
	detailLoading  bool
	detailError    string
	alreadyWatched bool
	existingRating int
	rating         *RatingControl
	searchFocused  bool
	searchState    search.State
	lastActive     time.Time
	version        uint64

	detailToken   uint64
	cancelDetail  context.CancelFunc
	releaseEscape func()
	releaseEnter  func()
	releaseSearch func()

	listeners    map[uint64]func(State)
	nextListener uint64
	done         chan struct{}

	wg sync.WaitGroup
}

func New(id string, searcher search.Searcher, details DetailFetcher, list WatchedList, cfg Config) *Session {
	cfg = cfg.withDefaults()
	logger := cfg.Logger.With("session", id)

	s := &Session{
		id:         id,
		details:    details,
		watched:    list,
		search:     search.NewController(searcher, search.WithLogger(logger)),
		keys:       NewKeyBus(),
		appTitle:   cfg.AppTitle,
		clock:      cfg.Clock,
		logger:     logger,
		phase:      PhaseBrowsing,
		rating:     NewRatingControl(cfg.MaxRating, cfg.RatingMessages),
		lastActive: cfg.Clock(),
		listeners:  make(map[uint64]func(State)),
		done:       make(chan struct{}),
	}
	s.searchState = s.search.State()
	s.releaseSearch = s.search.Subscribe(s.onSearch)
	s.releaseEnter = s.keys.Acquire(KeyEnter, s.onEnter)
	return s
}

func (s *Session) ID() string { return s.id }

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Keys exposes the session's key bus.
func (s *Session) Keys() *KeyBus { return s.keys }

// LastActive is the time of the most recent user operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// SetQuery forwards the search box value to the search controller.
func (s *Session) SetQuery(query string) error {
	if err := s.touch(); err != nil {
		return err
	}
	s.search.SetQuery(query)
	return nil
}

// Refresh re-runs the current search.
func (s *Session) Refresh() error {
	if err := s.touch(); err != nil {
		return err
	}
	s.search.Refresh()
	return nil
}

func (s *Session) SetSearchFocus(focused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lastActive = s.clock()
	if s.searchFocused != focused {
		s.searchFocused = focused
		s.publishLocked()
	}
	return nil
}

// PressKey dispatches a key press and reports whether anything handled it.
func (s *Session) PressKey(key string) (bool, error) {
	if err := s.touch(); err != nil {
		return false, err
	}
	return s.keys.Dispatch(key), nil
}

// Select toggles the selection: the selected title again returns to
// Browsing, any other title switches to it.
func (s *Session) Select(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lastActive = s.clock()

	if s.phase == PhaseViewing && s.selectedID == id {
		s.leaveViewingLocked()
	} else {
		s.enterViewingLocked(id)
	}
	s.publishLocked()
	return nil
}

// Close returns to Browsing. Closing while Browsing is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lastActive = s.clock()

	if s.phase == PhaseBrowsing {
		return nil
	}
	s.leaveViewingLocked()
	s.publishLocked()
	return nil
}

// Rate chooses a star value for the loaded title.
func (s *Session) Rate(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rateableLocked(); err != nil {
		return err
	}
	s.lastActive = s.clock()

	if err := s.rating.Set(n); err != nil {
		return err
	}
	s.publishLocked()
	return nil
}

// Confirm adds the loaded title with the chosen rating to the watched list
// and returns to Browsing.
func (s *Session) Confirm(ctx context.Context) (models.WatchedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rateableLocked(); err != nil {
		return models.WatchedEntry{}, err
	}
	s.lastActive = s.clock()

	rating := s.rating.State()
	if rating.Value == 0 {
		return models.WatchedEntry{}, ErrNoRating
	}

	entry, err := s.watched.Add(ctx, models.WatchedAdd{
		ID:              s.selectedID,
		Title:           s.detail.Title,
		Year:            s.detail.Year,
		PosterURL:       s.detail.PosterURL,
		CriticRating:    s.detail.CriticRating,
		RuntimeMinutes:  s.detail.RuntimeMinutes,
		UserRating:      rating.Value,
		RatingDecisions: rating.Decisions,
	})
	if err != nil {
		return models.WatchedEntry{}, err
	}

	s.leaveViewingLocked()
	s.publishLocked()
	return entry, nil
}

func (s *Session) rateableLocked() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.phase != PhaseViewing:
		return ErrNotViewing
	case s.detail == nil:
		return ErrDetailNotReady
	case s.alreadyWatched:
		return watched.ErrAlreadyWatched
	}
	return nil
}

func (s *Session) enterViewingLocked(id string) {
	s.stopDetailLocked()
	token := s.detailToken

	s.phase = PhaseViewing
	s.selectedID = id
	s.detail = nil
	s.detailLoading = true
	s.detailError = ""
	s.rating.Reset()

	entry, ok := s.watched.Get(id)
	s.alreadyWatched = ok
	s.existingRating = 0
	if ok {
		s.existingRating = entry.UserRating
	}

	if s.releaseEscape == nil {
		s.releaseEscape = s.keys.Acquire(KeyEscape, s.onEscape)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelDetail = cancel
	s.wg.Add(1)
	go s.fetchDetail(ctx, cancel, token, id)
}

func (s *Session) leaveViewingLocked() {
	s.stopDetailLocked()

	s.phase = PhaseBrowsing
	s.selectedID = ""
	s.detail = nil
	s.detailLoading = false
	s.detailError = ""
	s.alreadyWatched = false
	s.existingRating = 0
	s.rating.Reset()

	if s.releaseEscape != nil {
		s.releaseEscape()
		s.releaseEscape = nil
	}
}

// stopDetailLocked cancels any running detail fetch and invalidates its result.
func (s *Session) stopDetailLocked() {
	if s.cancelDetail != nil {
		s.cancelDetail()
		s.cancelDetail = nil
	}
	s.detailToken++
}

func (s *Session) fetchDetail(ctx context.Context, cancel context.CancelFunc, token uint64, id string) {
	defer s.wg.Done()
	defer cancel()

	detail, err := s.details.Details(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.detailToken {
		metrics.DetailRequestsTotal.WithLabelValues(metrics.OutcomeSuperseded).Inc()
		return
	}
	s.cancelDetail = nil
	s.detailLoading = false

	switch {
	case err == nil && detail != nil:
		s.detail = detail
		metrics.DetailRequestsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	case errors.Is(err, omdb.ErrNotFound):
		s.detailError = search.MessageNotFound
		metrics.DetailRequestsTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
	default:
		s.detailError = search.MessageFailed
		metrics.DetailRequestsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.logger.Warn("detail fetch failed", "id", id, "error", err)
	}
	s.publishLocked()
}

func (s *Session) onSearch(st search.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.searchState = st
	s.publishLocked()
}

func (s *Session) onEscape() {
	_ = s.Close()
}

// onEnter focuses the search box and clears it unless it already has focus.
func (s *Session) onEnter() {
	s.mu.Lock()
	if s.closed || s.searchFocused {
		s.mu.Unlock()
		return
	}
	s.searchFocused = true
	s.publishLocked()
	s.mu.Unlock()

	s.search.SetQuery("")
}

func (s *Session) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lastActive = s.clock()
	return nil
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	st := State{
		ID:             s.id,
		Search:         s.searchState,
		SearchFocused:  s.searchFocused,
		Phase:          s.phase,
		SelectedID:     s.selectedID,
		DetailLoading:  s.detailLoading,
		DetailError:    s.detailError,
		AlreadyWatched: s.alreadyWatched,
		ExistingRating: s.existingRating,
		Rating:         s.rating.State(),
		DocumentTitle:  s.appTitle,
		Version:        s.version,
	}
	if s.detail != nil {
		detail := *s.detail
		st.Detail = &detail
		if s.phase == PhaseViewing && detail.Title != "" {
			st.DocumentTitle = "Movie | " + detail.Title
		}
	}
	return st
}

// Subscribe registers fn for every new state. fn runs with the session lock
// held and must not call back into the session.
func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) publishLocked() {
	s.version++
	if len(s.listeners) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, fn := range s.listeners {
		fn(snap)
	}
}

// Wait blocks until in-flight search and detail fetches have returned.
func (s *Session) Wait() {
	s.search.Wait()
	s.wg.Wait()
}

// Teardown cancels all in-flight work, releases every key subscription and
// waits for background goroutines. The session is unusable afterwards.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.Wait()
		return
	}
	s.closed = true
	close(s.done)
	s.stopDetailLocked()
	if s.releaseEscape != nil {
		s.releaseEscape()
		s.releaseEscape = nil
	}
	if s.releaseEnter != nil {
		s.releaseEnter()
		s.releaseEnter = nil
	}
	releaseSearch := s.releaseSearch
	s.releaseSearch = nil
	s.listeners = make(map[uint64]func(State))
	s.mu.Unlock()

	if releaseSearch != nil {
		releaseSearch()
	}
	s.search.Close()
	s.wg.Wait()
}
