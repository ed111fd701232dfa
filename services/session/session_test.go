package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"popcorn/models"
	"popcorn/services/durable"
	"popcorn/services/omdb"
	"popcorn/services/search"
	"popcorn/services/watched"
)

type staticSearcher map[string][]models.SearchResultItem

func (s staticSearcher) Search(ctx context.Context, query string) ([]models.SearchResultItem, error) {
	results, ok := s[query]
	if !ok {
		return nil, omdb.ErrNotFound
	}
	return results, nil
}

type searcherFunc func(ctx context.Context, query string) ([]models.SearchResultItem, error)

func (f searcherFunc) Search(ctx context.Context, query string) ([]models.SearchResultItem, error) {
	return f(ctx, query)
}

var testSearcher = staticSearcher{
	"matrix": {
		{ID: "tt0133093", Title: "The Matrix", Year: "1999"},
		{ID: "tt0234215", Title: "The Matrix Reloaded", Year: "2003"},
	},
}

func newWatched(t *testing.T) *watched.Service {
	t.Helper()
	slot, err := durable.NewFileSlot(afero.NewMemMapFs(), "/data", "watched")
	require.NoError(t, err)
	svc, err := watched.Open(context.Background(), slot, nil)
	require.NoError(t, err)
	return svc
}

func newTestSession(t *testing.T, fetcher DetailFetcher, list WatchedList) *Session {
	t.Helper()
	s := New("test", testSearcher, fetcher, list, Config{})
	t.Cleanup(s.Teardown)
	return s
}

func detail(id, title string) *models.MovieDetail {
	return &models.MovieDetail{
		ID:             id,
		Title:          title,
		Year:           "1999",
		Runtime:        "136 min",
		RuntimeMinutes: 136,
		CriticRating:   8.7,
	}
}

func waitFor(t *testing.T, s *Session, pred func(State) bool) State {
	t.Helper()
	var st State
	require.Eventually(t, func() bool {
		st = s.State()
		return pred(st)
	}, time.Second, 5*time.Millisecond)
	return st
}

func detailLoaded(st State) bool { return st.Detail != nil && !st.DetailLoading }

func blockingDetails(release <-chan struct{}, d *models.MovieDetail) func(context.Context, string) (*models.MovieDetail, error) {
	return func(context.Context, string) (*models.MovieDetail, error) {
		<-release
		return d, nil
	}
}

func TestSelectTransitions(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockDetailFetcher(ctrl)
	fetcher.EXPECT().Details(gomock.Any(), "tt1").Return(detail("tt1", "The Matrix"), nil).Times(2)
	fetcher.EXPECT().Details(gomock.Any(), "tt2").Return(detail("tt2", "Inception"), nil).Times(1)

	s := newTestSession(t, fetcher, newWatched(t))
	assert.Equal(t, PhaseBrowsing, s.State().Phase)

	require.NoError(t, s.Select("tt1"))
	st := s.State()
	assert.Equal(t, PhaseViewing, st.Phase)
	assert.Equal(t, "tt1", st.SelectedID)
	s.Wait()

	require.NoError(t, s.Select("tt1"))
	st = s.State()
	assert.Equal(t, PhaseBrowsing, st.Phase)
	assert.Empty(t, st.SelectedID)
	assert.Nil(t, st.Detail)

	// Re-entering the same title fetches again.
	require.NoError(t, s.Select("tt1"))
	s.Wait()
	assert.Equal(t, "The Matrix", s.State().Detail.Title)

	require.NoError(t, s.Select("tt2"))
	s.Wait()
	st = s.State()
	assert.Equal(t, PhaseViewing, st.Phase)
	assert.Equal(t, "tt2", st.SelectedID)
	require.NotNil(t, st.Detail)
	assert.Equal(t, "Inception", st.Detail.Title)
}

func TestSelectRequiresID(t *testing.T) {
	s := newTestSession(t, NewMockDetailFetcher(gomock.NewController(t)), newWatched(t))
	assert.ErrorIs(t, s.Select("  "), ErrIDRequired)
}

func TestStaleDetailIsIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockDetailFetcher(ctrl)
	release := make(chan struct{})
	fetcher.EXPECT().Details(gomock.Any(), "tt1").DoAndReturn(blockingDetails(release, detail("tt1", "Stale")))
	fetcher.EXPECT().Details(gomock.Any(), "tt2").Return(detail("tt2", "Fresh"), nil)

	s := newTestSession(t, fetcher, newWatched(t))

	require.NoError(t, s.Select("tt1"))
	require.NoError(t, s.Select("tt2"))
	waitFor(t, s, detailLoaded)

	close(release)
	s.Wait()

	st := s.State()
	assert.Equal(t, "tt2", st.SelectedID)
	assert.Equal(t, "Fresh", st.Detail.Title)
	assert.False(t, st.DetailLoading)
}

func TestDetailErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", omdb.ErrNotFound, search.MessageNotFound},
		{"unavailable", omdb.ErrUnavailable, search.MessageFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			fetcher := NewMockDetailFetcher(ctrl)
			fetcher.EXPECT().Details(gomock.Any(), "tt1").Return(nil, tt.err)

			s := newTestSession(t, fetcher, newWatched(t))
			require.NoError(t, s.Select("tt1"))
			s.Wait()

			st := s.State()
			assert.False(t, st.DetailLoading)
			assert.Equal(t, tt.want, st.DetailError)
			assert.Nil(t, st.Detail)
			assert.ErrorIs(t, s.Rate(5), ErrDetailNotReady)
		})
	}
}

func TestEscapeIsScopedToViewing(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockDetailFetcher(ctrl)
	fetcher.EXPECT().Details(gomock.Any(), gomock.Any()).Return(detail("tt1", "The Matrix"), nil).AnyTimes()

	s := newTestSession(t, fetcher, newWatched(t))
	assert.Zero(t, s.Keys().Active(KeyEscape))
	assert.Equal(t, 1, s.Keys().Active(KeyEnter))

	require.NoError(t, s.Select("tt1"))
	require.NoError(t, s.Select("tt2"))
	assert.Equal(t, 1, s.Keys().Active(KeyEscape))

	handled, err := s.PressKey("escape")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, PhaseBrowsing, s.State().Phase)
	assert.Zero(t, s.Keys().Active(KeyEscape))

	handled, err = s.PressKey("Escape")
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestEnterFocusesAndClearsSearch(t *testing.T) {
	s := newTestSession(t, NewMockDetailFetcher(gomock.NewController(t)), newWatched(t))

	require.NoError(t, s.SetQuery("matrix"))
	waitFor(t, s, func(st State) bool { return len(st.Search.Results) == 2 })

	require.NoError(t, s.SetSearchFocus(true))
	_, err := s.PressKey("Enter")
	require.NoError(t, err)
	assert.Equal(t, "matrix", s.State().Search.Query, "focused search box is left alone")

	require.NoError(t, s.SetSearchFocus(false))
	handled, err := s.PressKey("ENTER")
	require.NoError(t, err)
	assert.True(t, handled)

	st := s.State()
	assert.True(t, st.SearchFocused)
	assert.Empty(t, st.Search.Query)
	assert.Empty(t, st.Search.Results)
	assert.Empty(t, st.Search.Error)
}

func TestSearchErrorsSurfaceInState(t *testing.T) {
	s := newTestSession(t, NewMockDetailFetcher(gomock.NewController(t)), newWatched(t))

	require.NoError(t, s.SetQuery("zzzz"))
	st := waitFor(t, s, func(st State) bool { return !st.Search.IsLoading && st.Search.Query == "zzzz" })
	assert.Equal(t, search.MessageNotFound, st.Search.Error)

	require.NoError(t, s.SetQuery(""))
	st = s.State()
	assert.Empty(t, st.Search.Error)
	assert.Empty(t, st.Search.Results)
}

func TestRateAndConfirm(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockDetailFetcher(ctrl)
	fetcher.EXPECT().Details(gomock.Any(), "tt0133093").Return(detail("tt0133093", "The Matrix"), nil).Times(2)

	list := newWatched(t)
	s := newTestSession(t, fetcher, list)
	ctx := context.Background()

	_, err := s.Confirm(ctx)
	assert.ErrorIs(t, err, ErrNotViewing)
	assert.ErrorIs(t, s.Rate(5), ErrNotViewing)

	require.NoError(t, s.Select("tt0133093"))
	waitFor(t, s, detailLoaded)

	_, err = s.Confirm(ctx)
	assert.ErrorIs(t, err, ErrNoRating)
	assert.ErrorIs(t, s.Rate(11), watched.ErrInvalidRating)
	assert.ErrorIs(t, s.Rate(0), watched.ErrInvalidRating)

	require.NoError(t, s.Rate(5))
	require.NoError(t, s.Rate(5))
	require.NoError(t, s.Rate(9))

	rating := s.State().Rating
	assert.Equal(t, 9, rating.Value)
	assert.Equal(t, 10, rating.Max)
	assert.Equal(t, 2, rating.Decisions)
	assert.Equal(t, "9", rating.Message)

	entry, err := s.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, entry.UserRating)
	assert.Equal(t, 136, entry.RuntimeMinutes)
	assert.InDelta(t, 8.7, entry.CriticRating, 1e-9)
	assert.Equal(t, 2, entry.RatingDecisions)

	assert.Equal(t, PhaseBrowsing, s.State().Phase)
	require.Len(t, list.List(), 1)

	// Selecting a watched title shows the stored rating and refuses a new one.
	require.NoError(t, s.Select("tt0133093"))
	st := s.State()
	assert.True(t, st.AlreadyWatched)
	assert.Equal(t, 9, st.ExistingRating)
	waitFor(t, s, detailLoaded)
	assert.ErrorIs(t, s.Rate(3), watched.ErrAlreadyWatched)
	_, err = s.Confirm(ctx)
	assert.ErrorIs(t, err, watched.ErrAlreadyWatched)
}

func TestRateBeforeDetailLoads(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockDetailFetcher(ctrl)
	release := make(chan struct{})
	fetcher.EXPECT().Details(gomock.Any(), "tt1").DoAndReturn(blockingDetails(release, detail("tt1", "The Matrix")))

	s := newTestSession(t, fetcher, newWatched(t))
	require.NoError(t, s.Select("tt1"))
	assert.True(t, s.State().DetailLoading)
	assert.ErrorIs(t, s.Rate(5), ErrDetailNotReady)

	close(release)
	waitFor(t, s, detailLoaded)
	assert.NoError(t, s.Rate(5))
}

func TestDocumentTitle(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockDetailFetcher(ctrl)
	release := make(chan struct{})
	fetcher.EXPECT().Details(gomock.Any(), "tt1").DoAndReturn(blockingDetails(release, detail("tt1", "The Matrix")))

	s := newTestSession(t, fetcher, newWatched(t))
	assert.Equal(t, DefaultAppTitle, s.State().DocumentTitle)

	require.NoError(t, s.Select("tt1"))
	assert.Equal(t, DefaultAppTitle, s.State().DocumentTitle)

	close(release)
	st := waitFor(t, s, detailLoaded)
	assert.Equal(t, "Movie | The Matrix", st.DocumentTitle)

	require.NoError(t, s.Close())
	assert.Equal(t, DefaultAppTitle, s.State().DocumentTitle)
	assert.NoError(t, s.Close(), "closing while browsing is a no-op")
}

func TestCustomAppTitle(t *testing.T) {
	s := New("custom", testSearcher, NewMockDetailFetcher(gomock.NewController(t)), newWatched(t), Config{AppTitle: "Popcorn Night"})
	defer s.Teardown()
	assert.Equal(t, "Popcorn Night", s.State().DocumentTitle)
}

func TestSubscribeSeesIncreasingVersions(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockDetailFetcher(ctrl)
	fetcher.EXPECT().Details(gomock.Any(), "tt1").Return(detail("tt1", "The Matrix"), nil)

	s := newTestSession(t, fetcher, newWatched(t))

	var mu sync.Mutex
	var versions []uint64
	release := s.Subscribe(func(st State) {
		mu.Lock()
		versions = append(versions, st.Version)
		mu.Unlock()
	})

	require.NoError(t, s.SetQuery("matrix"))
	require.NoError(t, s.Select("tt1"))
	s.Wait()
	release()
	require.NoError(t, s.Close())

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(versions), 3)
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestTeardownCancelsWork(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctrl := gomock.NewController(t)
	fetcher := NewMockDetailFetcher(ctrl)
	fetcher.EXPECT().Details(gomock.Any(), "tt1").DoAndReturn(func(ctx context.Context, id string) (*models.MovieDetail, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	blocking := searcherFunc(func(ctx context.Context, query string) ([]models.SearchResultItem, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	s := New("teardown", blocking, fetcher, newWatched(t), Config{})
	require.NoError(t, s.SetQuery("matrix"))
	require.NoError(t, s.Select("tt1"))

	s.Teardown()
	s.Teardown()

	assert.ErrorIs(t, s.Select("tt2"), ErrClosed)
	assert.ErrorIs(t, s.SetQuery("x"), ErrClosed)
	_, err := s.PressKey("Enter")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, s.Keys().Active(KeyEnter))
	assert.Zero(t, s.Keys().Active(KeyEscape))
}
