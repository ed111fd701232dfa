package watched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"popcorn/internal/metrics"
	"popcorn/internal/validation"
	"popcorn/models"
	"popcorn/services/durable"
	"popcorn/services/stats"
	"popcorn/utils/similarity"
)

var (
	ErrIDRequired     = errors.New("id is required")
	ErrInvalidRating  = errors.New("user rating must be between 1 and 10")
	ErrAlreadyWatched = errors.New("title is already in the watched list")
	ErrNotWatched     = errors.New("title is not in the watched list")
)

// Rating bounds accepted by Add.
const (
	MinRating = 1
	MaxRating = 10
)

// Service manages the user's watched list. Every change is written through
// to the durable slot before it returns.
type Service struct {
	store    *durable.Store[[]models.WatchedEntry]
	validate *validation.Validator
	logger   *slog.Logger
	now      func() time.Time
}

// Open loads the watched list from slot, starting empty when the slot is
// absent or unreadable.
func Open(ctx context.Context, slot durable.Slot, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := durable.Open(ctx, slot, []models.WatchedEntry{}, logger)
	if err != nil {
		return nil, fmt.Errorf("open watched list: %w", err)
	}

	svc := &Service{
		store:    store,
		validate: validation.New(),
		logger:   logger.With("component", "watched"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	metrics.WatchedEntries.Set(float64(len(store.Get())))
	return svc, nil
}

// List returns the entries in insertion order.
func (s *Service) List() []models.WatchedEntry {
	entries := slices.Clone(s.store.Get())
	if entries == nil {
		entries = []models.WatchedEntry{}
	}
	return entries
}

func (s *Service) Get(id string) (models.WatchedEntry, bool) {
	id = strings.TrimSpace(id)
	for _, e := range s.store.Get() {
		if e.ID == id {
			return e, true
		}
	}
	return models.WatchedEntry{}, false
}

func (s *Service) Contains(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Add appends a rated title. Ids are unique within the list.
func (s *Service) Add(ctx context.Context, input models.WatchedAdd) (models.WatchedEntry, error) {
	input.ID = strings.TrimSpace(input.ID)
	if input.ID == "" {
		return models.WatchedEntry{}, ErrIDRequired
	}
	if input.UserRating < MinRating || input.UserRating > MaxRating {
		return models.WatchedEntry{}, ErrInvalidRating
	}
	if err := s.validate.Validate(input); err != nil {
		return models.WatchedEntry{}, err
	}

	entry := input.Entry(s.now())
	next, err := s.store.Update(ctx, func(prev []models.WatchedEntry) ([]models.WatchedEntry, error) {
		if slices.ContainsFunc(prev, func(e models.WatchedEntry) bool { return e.ID == entry.ID }) {
			return nil, ErrAlreadyWatched
		}
		out := make([]models.WatchedEntry, 0, len(prev)+1)
		out = append(out, prev...)
		return append(out, entry), nil
	})
	if err != nil {
		return models.WatchedEntry{}, err
	}

	metrics.WatchedEntries.Set(float64(len(next)))
	s.logger.Info("added watched title", "id", entry.ID, "userRating", entry.UserRating)
	return entry, nil
}

// Remove drops the entry with id, keeping the order of the rest.
func (s *Service) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrIDRequired
	}

	next, err := s.store.Update(ctx, func(prev []models.WatchedEntry) ([]models.WatchedEntry, error) {
		out := make([]models.WatchedEntry, 0, len(prev))
		for _, e := range prev {
			if e.ID != id {
				out = append(out, e)
			}
		}
		if len(out) == len(prev) {
			return nil, ErrNotWatched
		}
		return out, nil
	})
	if err != nil {
		return err
	}

	metrics.WatchedEntries.Set(float64(len(next)))
	s.logger.Info("removed watched title", "id", id)
	return nil
}

// Filter returns entries whose title matches query; an empty query returns everything.
func (s *Service) Filter(query string) []models.WatchedEntry {
	if strings.TrimSpace(query) == "" {
		return s.List()
	}
	out := make([]models.WatchedEntry, 0)
	for _, e := range s.store.Get() {
		if similarity.Matches(query, e.Title, similarity.DefaultThreshold) {
			out = append(out, e)
		}
	}
	return out
}

// Summary is recomputed from the current list on every call.
func (s *Service) Summary() stats.Summary {
	return stats.Summarize(s.store.Get())
}
