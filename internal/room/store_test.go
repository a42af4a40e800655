package room

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(id string, version uint64) *Record {
	return &Record{
		ID:      id,
		Kind:    KindTrick,
		Status:  StatusWaiting,
		Host:    "Alice",
		Players: 1,
		Version: version,
		State:   json.RawMessage(`{}`),
	}
}

func TestMemoryStoreCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, testRecord("r1", 0)))

	rec, err := s.Find(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, "Alice", rec.Host)

	_, err = s.Find(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMemoryStoreRejectsDuplicateCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, testRecord("r1", 0)))
	assert.ErrorIs(t, s.Create(ctx, testRecord("r1", 0)), ErrRoomExists)
}

func TestMemoryStoreConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, testRecord("r1", 0)))

	require.NoError(t, s.Update(ctx, testRecord("r1", 1)))
	require.NoError(t, s.Update(ctx, testRecord("r1", 2)))

	// Replays and skips both fail
	assert.ErrorIs(t, s.Update(ctx, testRecord("r1", 2)), ErrStaleWrite)
	assert.ErrorIs(t, s.Update(ctx, testRecord("r1", 1)), ErrStaleWrite)
	assert.ErrorIs(t, s.Update(ctx, testRecord("r1", 4)), ErrStaleWrite)

	assert.ErrorIs(t, s.Update(ctx, testRecord("missing", 1)), ErrRoomNotFound)

	rec, err := s.Find(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Version)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, testRecord("r1", 0)))

	rec, err := s.Find(ctx, "r1")
	require.NoError(t, err)
	rec.Host = "mutated"
	rec.State[0] = 'X'

	fresh, err := s.Find(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", fresh.Host)
	assert.Equal(t, json.RawMessage(`{}`), fresh.State)
}

func TestMemoryStoreListByStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, testRecord("r1", 0)))
	require.NoError(t, s.Create(ctx, testRecord("r2", 0)))

	playing := testRecord("r3", 0)
	playing.Status = StatusPlaying
	require.NoError(t, s.Create(ctx, playing))

	waiting, err := s.ListByStatus(ctx, StatusWaiting)
	require.NoError(t, err)
	assert.Len(t, waiting, 2)

	finished, err := s.ListByStatus(ctx, StatusFinished)
	require.NoError(t, err)
	assert.Empty(t, finished)
}
