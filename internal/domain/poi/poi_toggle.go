package poi

import (
	"context"
	"fmt"
	"sync"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/idstore"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// Flag names one of the user flags mirrored from the id lists.
type Flag string

const (
	FlagVisited  Flag = "visited"
	FlagFavorite Flag = "favorite"
)

func (f Flag) Valid() bool {
	return f == FlagVisited || f == FlagFavorite
}

// StoreKey is the id list record backing the flag.
func (f Flag) StoreKey() string {
	if f == FlagFavorite {
		return idstore.FavoriteKey
	}
	return idstore.VisitedKey
}

// flagState is the in-memory id list of one flag next to the last list the store
// accepted. Toggles of the same pub are numbered so a failed write only reverts the
// newest one.
type flagState struct {
	flag      Flag
	ids       *idstore.Set
	persisted *idstore.Set

	// mu orders Apply against the resolution of a failed write
	mu   sync.Mutex
	gens map[string]uint64

	// saveMu serializes writes of the list together with their resolution
	saveMu sync.Mutex
}

func newFlagState(flag Flag) *flagState {
	return &flagState{
		flag:      flag,
		ids:       idstore.NewSet(nil),
		persisted: idstore.NewSet(nil),
		gens:      make(map[string]uint64),
	}
}

// reset replaces both lists with what was read from the store.
func (f *flagState) reset(ids []string) {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids.Replace(ids)
	f.persisted.Replace(ids)
}

// ToggleCommand flips one flag optimistically. Apply changes memory, Commit persists the
// id list and Rollback puts the pub back to its last persisted value.
type ToggleCommand struct {
	dataset *Dataset
	state   *flagState
	store   idstore.Store
	pubID   string

	applied bool
	gen     uint64
	next    bool
}

func newToggleCommand(dataset *Dataset, state *flagState, store idstore.Store, pubID string) *ToggleCommand {
	return &ToggleCommand{
		dataset: dataset,
		state:   state,
		store:   store,
		pubID:   pubID,
	}
}

// Apply flips the flag in the dataset and the id set and returns the new value.
func (c *ToggleCommand) Apply() (bool, error) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	if c.applied {
		return c.next, nil
	}
	pub, ok := c.dataset.Get(c.pubID)
	if !ok {
		return false, fmt.Errorf("%w: pub %s", types.ErrNotFound, c.pubID)
	}
	prev := pub.Visited
	if c.state.flag == FlagFavorite {
		prev = pub.Favorite
	}
	c.next = !prev

	c.dataset.SetFlag(c.pubID, c.state.flag, c.next)
	c.state.ids.Put(c.pubID, c.next)
	c.state.gens[c.pubID]++
	c.gen = c.state.gens[c.pubID]
	c.applied = true
	return c.next, nil
}

// Commit writes the current id list. Writes are serialized so a later toggle never gets
// overwritten by an earlier, slower one. A failed write is rolled back before the next
// write starts.
func (c *ToggleCommand) Commit(ctx context.Context) error {
	c.state.mu.Lock()
	applied := c.applied
	c.state.mu.Unlock()
	if !applied {
		return fmt.Errorf("%w: toggle not applied", types.ErrBadRequest)
	}

	c.state.saveMu.Lock()
	defer c.state.saveMu.Unlock()

	snapshot := c.state.ids.Slice()
	if err := idstore.Save(ctx, c.store, c.state.flag.StoreKey(), snapshot); err != nil {
		c.rollbackLocked()
		return err
	}
	c.state.persisted.Replace(snapshot)
	return nil
}

// Rollback restores the last persisted value of the pub, unless a newer toggle of the
// same pub is still pending. That toggle's write settles the value instead.
func (c *ToggleCommand) Rollback() {
	c.state.saveMu.Lock()
	defer c.state.saveMu.Unlock()
	c.rollbackLocked()
}

func (c *ToggleCommand) rollbackLocked() {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	if !c.applied {
		return
	}
	c.applied = false
	if c.state.gens[c.pubID] != c.gen {
		return
	}
	value := c.state.persisted.Has(c.pubID)
	c.dataset.SetFlag(c.pubID, c.state.flag, value)
	c.state.ids.Put(c.pubID, value)
}
