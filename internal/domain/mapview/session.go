package mapview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/geocode"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/idstore"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/location"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/poi"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/search"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/statistics"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
	"github.com/FACorreiaa/loci-pubmap/pkg/observability"
)

// Session is one open map screen.
type Session struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Engine    *Engine                `json:"-"`
	Pubs      poi.Service            `json:"-"`
	Location  *location.PushProvider `json:"-"`
}

// StoreFactory returns the id list store of a user. An empty user id is an anonymous
// session.
type StoreFactory func(userID string) idstore.Store

type ManagerDeps struct {
	Repo       poi.Repository
	Statistics statistics.Service
	Refs       *statistics.References
	Geocoder   geocode.Geocoder
	Stores     StoreFactory
	Logger     *slog.Logger
}

// Manager owns the open sessions. Idle sessions expire after the TTL and their engine
// is closed on eviction.
type Manager struct {
	deps     ManagerDeps
	opts     Options
	sessions *cache.Cache
	logger   *slog.Logger
}

func NewManager(deps ManagerDeps, opts Options, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	m := &Manager{
		deps:     deps,
		opts:     opts,
		sessions: cache.New(ttl, time.Minute),
		logger:   deps.Logger,
	}
	m.sessions.OnEvicted(func(id string, v any) {
		sess, ok := v.(*Session)
		if !ok {
			return
		}
		sess.Engine.Close()
		observability.ActiveSessions.Dec()
		m.logger.Info("Map session closed", slog.String("session_id", id))
	})
	return m
}

// Open creates a session: id lists and district summaries are loaded in parallel, then
// the engine starts following the pushed location.
func (m *Manager) Open(ctx context.Context, userID string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	l := m.logger.With(slog.String("method", "Open"), slog.String("user_id", userID))

	pubs := poi.NewService(m.deps.Repo, m.deps.Stores(userID), m.logger)

	var districts []types.DistrictSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pubs.Hydrate(gctx)
		return gctx.Err()
	})
	g.Go(func() error {
		if m.deps.Statistics == nil {
			return nil
		}
		summaries, err := m.deps.Statistics.GetDistrictSummaries(gctx)
		if err != nil {
			// the map still works on summaries derived from loaded pubs
			l.WarnContext(gctx, "District summaries unavailable", slog.Any("error", err))
			return nil
		}
		districts = summaries
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to open map session: %w", err)
	}

	engine := NewEngine(Deps{
		Pubs:      pubs,
		Fetcher:   m.deps.Repo,
		Searcher:  search.NewSearcher(pubs, m.deps.Geocoder, m.logger),
		Districts: districts,
		Refs:      m.deps.Refs,
		Logger:    m.logger,
	}, m.opts)

	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: m.opts.Clock.Now(),
		Engine:    engine,
		Pubs:      pubs,
		Location:  location.NewPushProvider(m.opts.Clock),
	}
	engine.FollowLocation(sess.Location)

	m.sessions.Set(sess.ID, sess, cache.DefaultExpiration)
	observability.ActiveSessions.Inc()
	l.InfoContext(ctx, "Map session opened", slog.String("session_id", sess.ID))
	return sess, nil
}

// Get returns an open session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, error) {
	v, found := m.sessions.Get(id)
	if !found {
		return nil, fmt.Errorf("%w: session %q", types.ErrNotFound, id)
	}
	sess := v.(*Session)
	m.sessions.Set(id, sess, cache.DefaultExpiration)
	return sess, nil
}

// Close ends a session: the engine stops and its statistics context is cleared.
func (m *Manager) Close(id string) error {
	if _, found := m.sessions.Get(id); !found {
		return fmt.Errorf("%w: session %q", types.ErrNotFound, id)
	}
	m.sessions.Delete(id)
	return nil
}

func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// Shutdown closes every session and waits for pending toggle commits.
func (m *Manager) Shutdown() {
	for id, item := range m.sessions.Items() {
		m.sessions.Delete(id)
		if sess, ok := item.Object.(*Session); ok {
			sess.Pubs.Wait()
		}
	}
}
