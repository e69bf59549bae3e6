package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEngine_CRUD(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()

	stored, err := e.Insert(ctx, "things", Document{"name": "lamp", "count": 2})
	require.NoError(t, err)
	id, ok := stored["_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	got, err := e.Select(ctx, "things", Filter{"_id": id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stored, got[0])

	require.NoError(t, e.Update(ctx, "things", Filter{"_id": id}, Document{"count": 5}))
	got, err = e.Select(ctx, "things", Filter{"_id": id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 5, got[0]["count"])
	assert.Equal(t, "lamp", got[0]["name"])

	deleted, err := e.Delete(ctx, "things", Filter{"_id": id})
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = e.Select(ctx, "things", Filter{"_id": id})
	require.NoError(t, err)
	assert.Empty(t, got)

	deleted, err = e.Delete(ctx, "things", Filter{"_id": id})
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryEngine_SelectFiltersAndClones(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()

	_, err := e.Insert(ctx, "things", Document{"_id": "a", "kind": "x"})
	require.NoError(t, err)
	_, err = e.Insert(ctx, "things", Document{"_id": "b", "kind": "y"})
	require.NoError(t, err)
	_, err = e.Insert(ctx, "things", Document{"_id": "c", "kind": "x"})
	require.NoError(t, err)

	got, err := e.Select(ctx, "things", Filter{"kind": "x"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["_id"])
	assert.Equal(t, "c", got[1]["_id"])

	got[0]["kind"] = "mutated"
	again, err := e.Select(ctx, "things", Filter{"_id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "x", again[0]["kind"])

	all, err := e.Select(ctx, "things", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := e.Select(ctx, "missing", nil)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryEngine_RejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()

	_, err := e.Insert(ctx, "things", Document{"_id": "a"})
	require.NoError(t, err)
	_, err = e.Insert(ctx, "things", Document{"_id": "a"})
	assert.Error(t, err)
}

func TestMemoryEngine_UpdateIgnoresID(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()

	_, err := e.Insert(ctx, "things", Document{"_id": "a", "v": 1})
	require.NoError(t, err)
	require.NoError(t, e.Update(ctx, "things", Filter{"_id": "a"}, Document{"_id": "b", "v": 2}))

	got, err := e.Select(ctx, "things", Filter{"_id": "a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0]["v"])
}
