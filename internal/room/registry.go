package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"cardtable/internal/holdem"
	"cardtable/internal/roomid"
	"cardtable/internal/trick"
)

// Config carries the game settings new rooms are created with.
type Config struct {
	Trick  trick.Config
	Holdem holdem.Config
}

// Summary is the lightweight room listing sent to clients browsing for
// a seat.
type Summary struct {
	RoomID  string `json:"roomId"`
	Kind    Kind   `json:"kind"`
	Host    string `json:"host"`
	Players int    `json:"players"`
}

// snapshot is the persisted room state blob.
type snapshot struct {
	Members []*Member    `json:"members"`
	Trick   *trick.Game  `json:"trick,omitempty"`
	Holdem  *holdem.Game `json:"holdem,omitempty"`
}

// Registry maps room identifiers to live rooms, owns their lifecycle
// and serializes all per-room mutation. It is the only component that
// writes to the store, and it writes synchronously under the room lock
// so action N+1 can never observe pre-N state.
type Registry struct {
	store  Store
	cfg    Config
	logger *log.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry backed by the given store.
func NewRegistry(store Store, cfg Config, logger *log.Logger) *Registry {
	return &Registry{
		store:  store,
		cfg:    cfg,
		logger: logger.WithPrefix("registry"),
		rooms:  make(map[string]*Room),
	}
}

// Create allocates a new empty room of the given kind.
func (reg *Registry) Create(ctx context.Context, kind Kind) (*Room, error) {
	r := &Room{
		ID:   roomid.New(),
		Kind: kind,
	}
	switch kind {
	case KindHoldem:
		r.Holdem = holdem.New(reg.cfg.Holdem)
	case KindTrick:
		r.Trick = trick.New(reg.cfg.Trick)
	default:
		return nil, fmt.Errorf("unknown game kind %q", kind)
	}

	rec, err := recordOf(r)
	if err != nil {
		return nil, err
	}
	if err := reg.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	reg.mu.Lock()
	reg.rooms[r.ID] = r
	reg.mu.Unlock()

	reg.logger.Info("room created", "room", r.ID, "kind", kind)
	return r, nil
}

// Get returns the live room for an ID.
func (reg *Registry) Get(id string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// With runs fn with exclusive ownership of the room's state. If fn
// succeeds the new state is persisted before the lock is released; a
// failed fn must leave the room untouched and nothing is written.
func (reg *Registry) With(ctx context.Context, id string, fn func(*Room) error) error {
	r, err := reg.Get(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := fn(r); err != nil {
		return err
	}
	return reg.persistLocked(ctx, r)
}

// persistLocked writes the room snapshot under the room lock. The
// version bump plus the store's conditional update guarantee writes
// land in action order.
func (reg *Registry) persistLocked(ctx context.Context, r *Room) error {
	r.Version++
	rec, err := recordOf(r)
	if err != nil {
		r.Version--
		return err
	}
	if err := reg.store.Update(ctx, rec); err != nil {
		r.Version--
		return fmt.Errorf("persist room %s: %w", r.ID, err)
	}
	return nil
}

// ListOpen returns rooms still waiting for players.
func (reg *Registry) ListOpen(ctx context.Context) ([]Summary, error) {
	recs, err := reg.store.ListByStatus(ctx, StatusWaiting)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, Summary{
			RoomID:  rec.ID,
			Kind:    rec.Kind,
			Host:    rec.Host,
			Players: rec.Players,
		})
	}
	return summaries, nil
}

// DropConnection flips the liveness flag for every seat bound to the
// connection and returns the affected rooms. Disconnects are
// asynchronous; they never touch hand, score or turn state.
func (reg *Registry) DropConnection(connID string) []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var affected []*Room
	for _, r := range reg.rooms {
		r.mu.Lock()
		if r.DropConn(connID) {
			affected = append(affected, r)
		}
		r.mu.Unlock()
	}
	return affected
}

func recordOf(r *Room) (*Record, error) {
	state, err := json.Marshal(snapshot{
		Members: r.Members,
		Trick:   r.Trick,
		Holdem:  r.Holdem,
	})
	if err != nil {
		return nil, err
	}

	host := ""
	if len(r.Members) > 0 {
		host = r.Members[HostSeat].Name
	}

	return &Record{
		ID:      r.ID,
		Kind:    r.Kind,
		Status:  r.Status(),
		Host:    host,
		Players: len(r.Members),
		Version: r.Version,
		State:   state,
	}, nil
}
