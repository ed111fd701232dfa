// Package durable keeps an in-memory value synchronized with a named
// durable slot. The slot is read once on Open; every mutation is written
// through in full before it becomes visible.
package durable

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"popcorn/internal/metrics"
)

// Slot is a single named value in durable storage.
type Slot interface {
	// Load returns the stored bytes. ok is false when the slot has never been written.
	Load(ctx context.Context) (data []byte, ok bool, err error)
	// Save replaces the stored bytes.
	Save(ctx context.Context, data []byte) error
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Store is a value of type T mirrored to a Slot as JSON.
type Store[T any] struct {
	mu     sync.RWMutex
	slot   Slot
	value  T
	logger *slog.Logger
}

// Open reads the slot once. An absent or unparseable slot yields def;
// a failing slot read is returned as an error.
func Open[T any](ctx context.Context, slot Slot, def T, logger *slog.Logger) (*Store[T], error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store[T]{
		slot:   slot,
		value:  def,
		logger: logger.With("component", "durable", "backend", slot.Name()),
	}

	data, ok, err := slot.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s slot: %w", slot.Name(), err)
	}
	if !ok || len(data) == 0 {
		return s, nil
	}

	var loaded T
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("stored value is unreadable, starting from default", "error", err)
		return s, nil
	}
	s.value = loaded
	return s, nil
}

// Get returns the current value. Callers must treat it as read-only.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value.
func (s *Store[T]) Set(ctx context.Context, next T) error {
	_, err := s.Update(ctx, func(T) (T, error) { return next, nil })
	return err
}

// Update computes the next value from the previous one and writes it through.
// If fn or the write fails the current value is left unchanged.
func (s *Store[T]) Update(ctx context.Context, fn func(prev T) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.value)
	if err != nil {
		return s.value, err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return s.value, fmt.Errorf("encode %s slot: %w", s.slot.Name(), err)
	}

	if err := s.slot.Save(ctx, data); err != nil {
		metrics.SlotWritesTotal.WithLabelValues(s.slot.Name(), "error").Inc()
		return s.value, fmt.Errorf("save %s slot: %w", s.slot.Name(), err)
	}
	metrics.SlotWritesTotal.WithLabelValues(s.slot.Name(), "ok").Inc()

	s.value = next
	return next, nil
}
