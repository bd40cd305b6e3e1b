package mirror

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/storage/memory"
)

func TestPutObjectCopiesToBoth(t *testing.T) {
	t.Parallel()

	primary, secondary := memory.NewBlobStore(), memory.NewBlobStore()
	store, err := New(primary, secondary, zap.NewNop())
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "data/1.json", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	require.Equal(t, "memory://data/1.json", uri)

	got, ok := primary.Get("data/1.json")
	require.True(t, ok)
	require.Equal(t, "{}", string(got))
	got, ok = secondary.Get("data/1.json")
	require.True(t, ok)
	require.Equal(t, "{}", string(got))
}

func TestSecondaryFailureIsIgnored(t *testing.T) {
	t.Parallel()

	primary, secondary := memory.NewBlobStore(), memory.NewBlobStore()
	secondary.FailWith(errors.New("bucket gone"))
	store, err := New(primary, secondary, nil)
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "audio/1_0.mp3", "audio/mpeg", strings.NewReader("mp3"))
	require.NoError(t, err)
	ok, err := store.Exists(context.Background(), "audio/1_0.mp3")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPrimaryFailureSurfaces(t *testing.T) {
	t.Parallel()

	primary, secondary := memory.NewBlobStore(), memory.NewBlobStore()
	primary.FailWith(errors.New("disk full"))
	store, err := New(primary, secondary, nil)
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "x", "", strings.NewReader("x"))
	require.Error(t, err)
	require.Empty(t, secondary.Paths())

	_, err = New(nil, nil, nil)
	require.Error(t, err)
}

func TestNilSecondaryPassesThrough(t *testing.T) {
	t.Parallel()

	primary := memory.NewBlobStore()
	store, err := New(primary, nil, nil)
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "images/1/img_0.jpg", "image/jpeg", strings.NewReader("jpg"))
	require.NoError(t, err)
	require.Equal(t, []string{"images/1/img_0.jpg"}, primary.Paths())
}
