package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/FACorreiaa/loci-pubmap/internal/geo"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

var ErrPermissionDenied = errors.New("location permission denied")

// Update is one position fix.
type Update struct {
	Coordinate types.Coordinate `json:"coordinate"`
	Heading    *float64         `json:"heading,omitempty"`
	At         time.Time        `json:"at"`
}

// WatchOptions throttles a subscription. Zero values deliver every update.
type WatchOptions struct {
	MinDistanceMeters float64
	MinInterval       time.Duration
}

// Provider is the source of the user position.
type Provider interface {
	RequestPermission(ctx context.Context) (bool, error)
	// CurrentPosition is a one-shot, low accuracy fix.
	CurrentPosition(ctx context.Context) (types.Coordinate, error)
	// Watch streams updates until ctx is done, then closes the channel.
	Watch(ctx context.Context, opts WatchOptions) (<-chan Update, error)
}

var _ Provider = (*PushProvider)(nil)

type subscriber struct {
	ch   chan Update
	opts WatchOptions
	last *Update

	// pending is the newest update held back by MinInterval, sent when timer fires
	pending *Update
	timer   clockwork.Timer
	closed  bool
}

// PushProvider is fed by position reports sent by the client.
type PushProvider struct {
	clock clockwork.Clock

	mu      sync.Mutex
	granted bool
	last    *Update
	subs    map[int]*subscriber
	nextID  int
}

func NewPushProvider(clock clockwork.Clock) *PushProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PushProvider{clock: clock, granted: true, subs: make(map[int]*subscriber)}
}

// SetPermission records the permission answer reported by the client.
func (p *PushProvider) SetPermission(granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = granted
}

func (p *PushProvider) RequestPermission(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted, nil
}

func (p *PushProvider) CurrentPosition(context.Context) (types.Coordinate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.granted {
		return types.Coordinate{}, ErrPermissionDenied
	}
	if p.last == nil {
		return types.Coordinate{}, fmt.Errorf("%w: no position reported yet", types.ErrNotFound)
	}
	return p.last.Coordinate, nil
}

// Push records a report and relays it to every subscriber whose throttle allows it. A
// subscriber that has not consumed its previous update gets the newer one instead. An
// update that only arrives too soon is held and delivered once MinInterval has passed,
// unless a newer one replaces it first.
func (p *PushProvider) Push(u Update) error {
	if !u.Coordinate.Valid() {
		return fmt.Errorf("%w: invalid coordinate", types.ErrBadRequest)
	}
	if u.At.IsZero() {
		u.At = p.clock.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.granted {
		return ErrPermissionDenied
	}
	p.last = &u
	for _, sub := range p.subs {
		if sub.last != nil && !sub.farEnough(u) {
			continue
		}
		if wait := sub.tooSoon(u); wait > 0 {
			p.hold(sub, u, wait)
			continue
		}
		sub.deliver(u)
	}
	return nil
}

// hold keeps u as the subscriber's pending update. Callers hold p.mu.
func (p *PushProvider) hold(sub *subscriber, u Update, wait time.Duration) {
	sub.pending = &u
	if sub.timer != nil {
		sub.timer.Stop()
	}
	sub.timer = p.clock.AfterFunc(wait, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub.closed || sub.pending != &u {
			return
		}
		sub.deliver(u)
	})
}

func (s *subscriber) deliver(u Update) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	select {
	case <-s.ch:
	default:
	}
	s.ch <- u
	s.last = &u
}

// tooSoon returns how long u must wait before MinInterval allows it.
func (s *subscriber) tooSoon(u Update) time.Duration {
	if s.last == nil || s.opts.MinInterval <= 0 {
		return 0
	}
	return s.opts.MinInterval - u.At.Sub(s.last.At)
}

func (s *subscriber) farEnough(u Update) bool {
	if s.opts.MinDistanceMeters <= 0 {
		return true
	}
	return geo.DistanceKm(s.last.Coordinate, u.Coordinate)*1000 >= s.opts.MinDistanceMeters
}

func (p *PushProvider) Watch(ctx context.Context, opts WatchOptions) (<-chan Update, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.granted {
		return nil, ErrPermissionDenied
	}

	id := p.nextID
	p.nextID++
	sub := &subscriber{ch: make(chan Update, 1), opts: opts}
	p.subs[id] = sub

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs, id)
		sub.closed = true
		if sub.timer != nil {
			sub.timer.Stop()
		}
		close(sub.ch)
		p.mu.Unlock()
	}()
	return sub.ch, nil
}

// Follow asks for permission, applies the initial fix and relays watched updates to
// onUpdate until ctx is done. It blocks for the lifetime of the subscription.
func Follow(ctx context.Context, provider Provider, opts WatchOptions, onUpdate func(Update), logger *slog.Logger) error {
	l := logger.With(slog.String("method", "Follow"))

	granted, err := provider.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("failed to request location permission: %w", err)
	}
	if !granted {
		l.InfoContext(ctx, "Location permission not granted")
		return ErrPermissionDenied
	}

	if initial, err := provider.CurrentPosition(ctx); err == nil {
		onUpdate(Update{Coordinate: initial})
	} else {
		l.DebugContext(ctx, "No initial position", slog.Any("error", err))
	}

	updates, err := provider.Watch(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to watch location: %w", err)
	}
	for u := range updates {
		onUpdate(u)
	}
	return nil
}
