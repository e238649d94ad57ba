package poi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/idstore"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
	"github.com/FACorreiaa/loci-pubmap/pkg/observability"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// Hydrate loads the visited and favorite id lists and mirrors them onto loaded pubs.
	Hydrate(ctx context.Context)
	// Merge upserts fetched pubs, deriving their flags from the id lists.
	Merge(patches []types.PubPatch) bool
	// Toggle flips a flag optimistically. The returned channel yields the commit result.
	Toggle(ctx context.Context, pubID string, flag Flag) (bool, <-chan error, error)
	// FindByName looks a pub up by exact name, first in memory and then in the repository.
	FindByName(ctx context.Context, name string) (*types.Pub, error)
	Dataset() *Dataset
	// Wait blocks until background commits have finished.
	Wait()
}

type ServiceImpl struct {
	repo    Repository
	store   idstore.Store
	dataset *Dataset
	logger  *slog.Logger

	visited   *flagState
	favorites *flagState
	commits   sync.WaitGroup
}

func NewService(repo Repository, store idstore.Store, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		repo:      repo,
		store:     store,
		dataset:   NewDataset(),
		logger:    logger,
		visited:   newFlagState(FlagVisited),
		favorites: newFlagState(FlagFavorite),
	}
}

func (s *ServiceImpl) Dataset() *Dataset {
	return s.dataset
}

func (s *ServiceImpl) Hydrate(ctx context.Context) {
	l := s.logger.With(slog.String("method", "Hydrate"))

	s.visited.reset(idstore.Load(ctx, s.store, idstore.VisitedKey, s.logger))
	s.favorites.reset(idstore.Load(ctx, s.store, idstore.FavoriteKey, s.logger))

	pubs, _ := s.dataset.Snapshot()
	patches := make([]types.PubPatch, 0, len(pubs))
	for _, p := range pubs {
		patches = append(patches, s.withFlags(types.PubPatch{ID: p.ID}))
	}
	s.dataset.Merge(patches)

	l.InfoContext(ctx, "Hydrated id lists",
		slog.Int("visited", s.visited.ids.Len()),
		slog.Int("favorites", s.favorites.ids.Len()))
}

func (s *ServiceImpl) Merge(patches []types.PubPatch) bool {
	withFlags := make([]types.PubPatch, 0, len(patches))
	for _, p := range patches {
		withFlags = append(withFlags, s.withFlags(p))
	}
	changed := s.dataset.Merge(withFlags)
	if changed {
		observability.DatasetMergeTotal.WithLabelValues("changed").Inc()
	} else {
		observability.DatasetMergeTotal.WithLabelValues("unchanged").Inc()
	}
	return changed
}

func (s *ServiceImpl) withFlags(p types.PubPatch) types.PubPatch {
	visited := s.visited.ids.Has(p.ID)
	favorite := s.favorites.ids.Has(p.ID)
	p.Visited = &visited
	p.Favorite = &favorite
	return p
}

func (s *ServiceImpl) Toggle(ctx context.Context, pubID string, flag Flag) (bool, <-chan error, error) {
	l := s.logger.With(slog.String("method", "Toggle"), slog.String("pub_id", pubID), slog.String("flag", string(flag)))

	if !flag.Valid() {
		return false, nil, fmt.Errorf("%w: unknown flag %q", types.ErrBadRequest, flag)
	}
	state := s.visited
	if flag == FlagFavorite {
		state = s.favorites
	}

	cmd := newToggleCommand(s.dataset, state, s.store, pubID)
	value, err := cmd.Apply()
	if err != nil {
		return false, nil, err
	}

	done := make(chan error, 1)
	s.commits.Add(1)
	go func() {
		defer s.commits.Done()
		// the request context may end before the write does
		err := cmd.Commit(context.WithoutCancel(ctx))
		if err != nil {
			l.ErrorContext(ctx, "Failed to persist toggle, rolled back", slog.Any("error", err))
			observability.ToggleRollbacksTotal.WithLabelValues(string(flag)).Inc()
		}
		done <- err
	}()

	l.DebugContext(ctx, "Toggle applied", slog.Bool("value", value))
	return value, done, nil
}

func (s *ServiceImpl) FindByName(ctx context.Context, name string) (*types.Pub, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", types.ErrBadRequest)
	}

	pubs, _ := s.dataset.Snapshot()
	for _, p := range pubs {
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return &p, nil
		}
	}

	patches, err := s.repo.FindPubsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find pub %q: %w", name, err)
	}
	if len(patches) == 0 {
		return nil, fmt.Errorf("%w: pub %q", types.ErrNotFound, name)
	}
	s.Merge(patches[:1])
	p, ok := s.dataset.Get(patches[0].ID)
	if !ok {
		return nil, fmt.Errorf("%w: pub %q", types.ErrNotFound, name)
	}
	return &p, nil
}

func (s *ServiceImpl) Wait() {
	s.commits.Wait()
}
