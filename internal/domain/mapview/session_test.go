package mapview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/idstore"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/location"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/statistics"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

type MockStatistics struct {
	mock.Mock
}

func (m *MockStatistics) GetDistrictSummaries(ctx context.Context) ([]types.DistrictSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.DistrictSummary), args.Error(1)
}

func (m *MockStatistics) GetReport(ctx context.Context, opts statistics.ReportOptions) (*statistics.Report, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*statistics.Report), args.Error(1)
}

func (m *MockStatistics) GetMergeSuggestions(ctx context.Context, minPubs int, maxRangeKm float64) ([]statistics.MergeSuggestion, []statistics.SkippedArea, error) {
	args := m.Called(ctx, minPubs, maxRangeKm)
	var suggestions []statistics.MergeSuggestion
	if v := args.Get(0); v != nil {
		suggestions = v.([]statistics.MergeSuggestion)
	}
	var skipped []statistics.SkippedArea
	if v := args.Get(1); v != nil {
		skipped = v.([]statistics.SkippedArea)
	}
	return suggestions, skipped, args.Error(2)
}

type managerFixture struct {
	manager *Manager
	repo    *MockRepository
	stats   *MockStatistics
	stores  map[string]*idstore.MemoryStore
	clock   fakeClock
}

func newManagerFixture(t *testing.T, ttl time.Duration) *managerFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	f := &managerFixture{
		repo:   new(MockRepository),
		stats:  new(MockStatistics),
		stores: make(map[string]*idstore.MemoryStore),
		clock:  clock,
	}
	opts := DefaultOptions()
	opts.Clock = clock
	f.manager = NewManager(ManagerDeps{
		Repo:       f.repo,
		Statistics: f.stats,
		Stores: func(userID string) idstore.Store {
			s, ok := f.stores[userID]
			if !ok {
				s = idstore.NewMemoryStore()
				f.stores[userID] = s
			}
			return s
		},
		Logger: testLogger(),
	}, opts, ttl)
	t.Cleanup(f.manager.Shutdown)
	return f
}

func westminsterSummary() types.DistrictSummary {
	return types.DistrictSummary{Name: "Westminster", Canonical: true, Total: 40}
}

func TestManager_OpenHydratesAndSeedsDistricts(t *testing.T) {
	f := newManagerFixture(t, time.Minute)
	store := idstore.NewMemoryStore()
	require.NoError(t, idstore.Save(context.Background(), store, idstore.VisitedKey, []string{"p1", "p2"}))
	f.stores["alice"] = store
	f.stats.On("GetDistrictSummaries", mock.Anything).Return([]types.DistrictSummary{westminsterSummary()}, nil)
	f.repo.On("FetchEntities", mock.Anything, mock.Anything).Return(sohoPatches(), nil)

	sess, err := f.manager.Open(context.Background(), " alice ")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "alice", sess.UserID)
	assert.Equal(t, f.clock.Now(), sess.CreatedAt)
	assert.Equal(t, 1, f.manager.Count())

	_, _, err = sess.Engine.OnRegionChange(sohoRegion)
	require.NoError(t, err)
	f.clock.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool { return sess.Pubs.Dataset().Len() == 3 }, time.Second, 5*time.Millisecond)

	v := sess.Engine.View()
	require.Len(t, v.Districts, 1)
	assert.Equal(t, 40, v.Districts[0].Total)
	assert.Equal(t, 2, v.Districts[0].Visited)
	assert.Equal(t, 5, v.Districts[0].Completion)

	got, err := f.manager.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
}

func TestManager_OpenWithoutDistrictSummaries(t *testing.T) {
	f := newManagerFixture(t, time.Minute)
	f.stats.On("GetDistrictSummaries", mock.Anything).Return(nil, errors.New("db down"))

	sess, err := f.manager.Open(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, sess.Engine.View().Districts)
}

func TestManager_Close(t *testing.T) {
	f := newManagerFixture(t, time.Minute)
	f.stats.On("GetDistrictSummaries", mock.Anything).Return([]types.DistrictSummary{}, nil)

	sess, err := f.manager.Open(context.Background(), "")
	require.NoError(t, err)
	sess.Engine.View()

	require.NoError(t, f.manager.Close(sess.ID))
	assert.Equal(t, 0, f.manager.Count())

	_, _, err = sess.Engine.OnRegionChange(sohoRegion)
	assert.ErrorIs(t, err, types.ErrClosed)
	_, ok := sess.Engine.Stats().Get()
	assert.False(t, ok)

	_, err = f.manager.Get(sess.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, f.manager.Close(sess.ID), types.ErrNotFound)
}

func TestManager_ExpiredSessionsAreClosed(t *testing.T) {
	f := newManagerFixture(t, 10*time.Millisecond)
	f.stats.On("GetDistrictSummaries", mock.Anything).Return([]types.DistrictSummary{}, nil)

	sess, err := f.manager.Open(context.Background(), "")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	f.manager.sessions.DeleteExpired()

	_, err = f.manager.Get(sess.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, sess.Engine.NavigateTo(sohoRegion), types.ErrClosed)
}

func TestManager_PushedLocationReachesEngine(t *testing.T) {
	f := newManagerFixture(t, time.Minute)
	f.stats.On("GetDistrictSummaries", mock.Anything).Return([]types.DistrictSummary{}, nil)
	f.repo.On("FetchEntities", mock.Anything, mock.Anything).Return(sohoPatches(), nil)

	sess, err := f.manager.Open(context.Background(), "")
	require.NoError(t, err)
	_, _, err = sess.Engine.OnRegionChange(sohoRegion)
	require.NoError(t, err)
	f.clock.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool { return sess.Pubs.Dataset().Len() == 3 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_ = sess.Location.Push(location.Update{Coordinate: types.Coordinate{Latitude: 51.5141, Longitude: -0.1320}})
		ms := sess.Engine.View().Markers
		return len(ms) == 3 && ms[0].DistanceKm != nil
	}, time.Second, 10*time.Millisecond)

	sess.Location.SetPermission(false)
	err = sess.Location.Push(location.Update{Coordinate: types.Coordinate{Latitude: 51.5, Longitude: -0.1}})
	assert.ErrorIs(t, err, location.ErrPermissionDenied)
}
