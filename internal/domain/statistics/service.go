package statistics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	GetDistrictSummaries(ctx context.Context) ([]types.DistrictSummary, error)
	GetReport(ctx context.Context, opts ReportOptions) (*Report, error)
	GetMergeSuggestions(ctx context.Context, minPubs int, maxRangeKm float64) ([]MergeSuggestion, []SkippedArea, error)
}

// PubSource lists pubs for the catalogue reports.
type PubSource interface {
	FetchEntities(ctx context.Context, query types.PubQuery) ([]types.PubPatch, error)
}

const summariesCacheKey = "district_summaries"

type ServiceImpl struct {
	repo   Repository
	pubs   PubSource
	refs   *References
	cache  *cache.Cache
	logger *slog.Logger
}

func NewService(repo Repository, pubs PubSource, refs *References, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		repo:   repo,
		pubs:   pubs,
		refs:   refs,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

// GetDistrictSummaries serves the repository summaries from a short lived cache. They
// are the same for every session.
func (s *ServiceImpl) GetDistrictSummaries(ctx context.Context) ([]types.DistrictSummary, error) {
	l := s.logger.With(slog.String("method", "GetDistrictSummaries"))

	if cached, found := s.cache.Get(summariesCacheKey); found {
		if summaries, ok := cached.([]types.DistrictSummary); ok {
			l.DebugContext(ctx, "Serving district summaries from cache")
			return summaries, nil
		}
	}

	summaries, err := s.repo.FetchSummaries(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to get district summaries", slog.Any("error", err))
		return nil, err
	}
	s.cache.Set(summariesCacheKey, summaries, cache.DefaultExpiration)

	l.InfoContext(ctx, "Successfully retrieved district summaries", slog.Int("count", len(summaries)))
	return summaries, nil
}

func (s *ServiceImpl) GetReport(ctx context.Context, opts ReportOptions) (*Report, error) {
	l := s.logger.With(slog.String("method", "GetReport"))

	pubs, err := s.allPubs(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load pubs for report", slog.Any("error", err))
		return nil, err
	}
	report := BuildReport(pubs, s.refs, opts)

	l.InfoContext(ctx, "Built area report",
		slog.Int("districts", report.TotalDistricts),
		slog.Int("areas", report.TotalAreas))
	return &report, nil
}

func (s *ServiceImpl) GetMergeSuggestions(ctx context.Context, minPubs int, maxRangeKm float64) ([]MergeSuggestion, []SkippedArea, error) {
	l := s.logger.With(slog.String("method", "GetMergeSuggestions"))

	pubs, err := s.allPubs(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load pubs for merge suggestions", slog.Any("error", err))
		return nil, nil, err
	}
	suggestions, skipped := SuggestMerges(pubs, minPubs, maxRangeKm)

	l.InfoContext(ctx, "Computed merge suggestions",
		slog.Int("suggestions", len(suggestions)),
		slog.Int("skipped", len(skipped)))
	return suggestions, skipped, nil
}

func (s *ServiceImpl) allPubs(ctx context.Context) ([]types.Pub, error) {
	patches, err := s.pubs.FetchEntities(ctx, types.PubQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pubs: %w", err)
	}
	pubs := make([]types.Pub, 0, len(patches))
	for _, patch := range patches {
		var p types.Pub
		patch.ApplyTo(&p)
		pubs = append(pubs, p)
	}
	return pubs, nil
}
