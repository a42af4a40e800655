package room

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardtable/internal/deck"
	"cardtable/internal/randutil"
	"cardtable/internal/roomid"
)

func testRegistry(t *testing.T) (*Registry, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewRegistry(store, Config{}, log.New(io.Discard)), store
}

func TestRegistryCreate(t *testing.T) {
	ctx := context.Background()
	reg, store := testRegistry(t)

	r, err := reg.Create(ctx, KindTrick)
	require.NoError(t, err)
	require.NoError(t, roomid.Validate(r.ID))
	require.NotNil(t, r.Trick)
	assert.Nil(t, r.Holdem)

	rec, err := store.Find(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, KindTrick, rec.Kind)
	assert.Equal(t, StatusWaiting, rec.Status)

	got, err := reg.Get(r.ID)
	require.NoError(t, err)
	assert.Same(t, r, got)
}

func TestRegistryGetUnknownRoom(t *testing.T) {
	reg, _ := testRegistry(t)
	_, err := reg.Get("nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	err = reg.With(context.Background(), "nope", func(*Room) error { return nil })
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestWithPersistsOnSuccess(t *testing.T) {
	ctx := context.Background()
	reg, store := testRegistry(t)

	r, err := reg.Create(ctx, KindHoldem)
	require.NoError(t, err)

	err = reg.With(ctx, r.ID, func(r *Room) error {
		_, _, err := r.Admit("alice", "Alice", "conn-a")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Version)

	rec, err := store.Find(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Version)
	assert.Equal(t, 1, rec.Players)
	assert.Equal(t, "Alice", rec.Host)
}

func TestWithSkipsPersistOnError(t *testing.T) {
	ctx := context.Background()
	reg, store := testRegistry(t)

	r, err := reg.Create(ctx, KindTrick)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = reg.With(ctx, r.ID, func(*Room) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(0), r.Version)

	rec, err := store.Find(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rec.Version)
}

func TestListOpenOnlyShowsWaitingRooms(t *testing.T) {
	ctx := context.Background()
	reg, _ := testRegistry(t)

	open, err := reg.Create(ctx, KindTrick)
	require.NoError(t, err)

	started, err := reg.Create(ctx, KindTrick)
	require.NoError(t, err)
	err = reg.With(ctx, started.ID, func(r *Room) error {
		if _, _, err := r.Admit("alice", "Alice", "a"); err != nil {
			return err
		}
		if _, _, err := r.Admit("bob", "Bob", "b"); err != nil {
			return err
		}
		return r.Trick.Start(deck.NewShuffled(randutil.New(1)))
	})
	require.NoError(t, err)

	summaries, err := reg.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, open.ID, summaries[0].RoomID)
}

func TestDropConnectionAcrossRooms(t *testing.T) {
	ctx := context.Background()
	reg, _ := testRegistry(t)

	r1, err := reg.Create(ctx, KindTrick)
	require.NoError(t, err)
	r2, err := reg.Create(ctx, KindHoldem)
	require.NoError(t, err)

	for _, id := range []string{r1.ID, r2.ID} {
		err = reg.With(ctx, id, func(r *Room) error {
			_, _, err := r.Admit("alice", "Alice", "conn-a")
			return err
		})
		require.NoError(t, err)
	}

	affected := reg.DropConnection("conn-a")
	assert.Len(t, affected, 2)
	assert.Equal(t, "", r1.Members[0].ConnID)
	assert.Equal(t, "", r2.Members[0].ConnID)
	assert.Equal(t, "alice", r1.Members[0].UserID)

	assert.Empty(t, reg.DropConnection("conn-a"), "already unbound")
}
