package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(testSearcher, NewMockDetailFetcher(gomock.NewController(t)), newWatched(t), Config{})
	t.Cleanup(m.Close)

	s := m.Create()
	_, err := uuid.Parse(s.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Delete(s.ID()))
	assert.ErrorIs(t, m.Delete(s.ID()), ErrNotFound)
	assert.Zero(t, m.Len())
	assert.ErrorIs(t, s.Select("tt1"), ErrClosed)
}

func TestManagerPrunesIdleSessions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	m := NewManager(testSearcher, NewMockDetailFetcher(gomock.NewController(t)), newWatched(t), Config{Clock: clock})
	t.Cleanup(m.Close)

	idle := m.Create()
	now = now.Add(10 * time.Minute)
	active := m.Create()
	now = now.Add(time.Minute)
	require.NoError(t, active.SetSearchFocus(true))

	assert.Equal(t, 1, m.PruneIdle(5*time.Minute))

	_, err := m.Get(idle.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(active.ID())
	assert.NoError(t, err)
}

func TestManagerCloseTearsDownAll(t *testing.T) {
	m := NewManager(testSearcher, NewMockDetailFetcher(gomock.NewController(t)), newWatched(t), Config{})
	a, b := m.Create(), m.Create()

	m.Close()
	assert.Zero(t, m.Len())
	assert.ErrorIs(t, a.Close(), ErrClosed)
	assert.ErrorIs(t, b.Close(), ErrClosed)
}
