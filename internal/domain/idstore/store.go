package idstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// Record names of the two id lists kept per user.
const (
	VisitedKey  = "visited_ids"
	FavoriteKey = "favorite_ids"
)

// Store is a small key/value store holding raw serialized id lists. Get returns nil
// without error for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Parse decodes a stored id list. Blank ids are dropped and duplicates collapsed while
// keeping first-seen order.
func Parse(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCorruptState, err)
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// Load reads an id list and never fails. Malformed content is logged and reset to an
// empty list; read errors are logged and yield an empty list.
func Load(ctx context.Context, s Store, key string, logger *slog.Logger) []string {
	l := logger.With(slog.String("method", "Load"), slog.String("key", key))

	raw, err := s.Get(ctx, key)
	if err != nil {
		l.WarnContext(ctx, "Failed to read id list, using empty list", slog.Any("error", err))
		return []string{}
	}
	ids, err := Parse(raw)
	if err != nil {
		l.WarnContext(ctx, "Resetting corrupt id list", slog.Any("error", err))
		if err := Save(ctx, s, key, nil); err != nil {
			l.ErrorContext(ctx, "Failed to reset corrupt id list", slog.Any("error", err))
		}
		return []string{}
	}
	return ids
}

func Save(ctx context.Context, s Store, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode id list: %w", err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write id list %s: %w", key, err)
	}
	return nil
}

// Set is an in-memory id set with stable iteration order.
type Set struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewSet(ids []string) *Set {
	s := &Set{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Replace swaps the whole membership.
func (s *Set) Replace(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	s.mu.Lock()
	s.ids = next
	s.mu.Unlock()
}

func (s *Set) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Put adds or removes id and returns the previous membership.
func (s *Set) Put(id string, member bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, had := s.ids[id]
	if member {
		s.ids[id] = struct{}{}
	} else {
		delete(s.ids, id)
	}
	return had
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Slice returns the ids sorted.
func (s *Set) Slice() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}
