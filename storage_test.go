package mapty

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorage(t *testing.T, store Storage) {
	a := assert.New(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "workouts")
	a.ErrorIs(err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "workouts", []byte(`[1]`)))
	require.NoError(t, store.Set(ctx, "workouts", []byte(`[1,2]`)))
	val, err := store.Get(ctx, "workouts")
	require.NoError(t, err)
	a.Equal(`[1,2]`, string(val))

	require.NoError(t, store.Remove(ctx, "workouts"))
	require.NoError(t, store.Remove(ctx, "workouts"))
	_, err = store.Get(ctx, "workouts")
	a.ErrorIs(err, ErrNotFound)
}

func TestMemoryStorage(t *testing.T) {
	testStorage(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStorage(dir)
	require.NoError(t, err)
	testStorage(t, store)

	require.NoError(t, store.Set(context.Background(), "a/b", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "a%2Fb.json"))
	assert.NoError(t, err)
}

func TestOpenStorage(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	store, closer, err := OpenStorage(ctx, "memory:")
	require.NoError(t, err)
	defer closer()
	a.IsType(&MemoryStorage{}, store)

	dir := filepath.Join(t.TempDir(), "data")
	store, closer, err = OpenStorage(ctx, "file:"+dir)
	require.NoError(t, err)
	defer closer()
	a.IsType(&FileStorage{}, store)
	a.DirExists(dir)
}
