package blobstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBlobStorePutGetPresign(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	payload := "archive bytes"
	require.NoError(t, store.Put(ctx, "pkg/1.0.0.zip", strings.NewReader(payload), int64(len(payload)), true))

	data, ok := store.Get("pkg/1.0.0.zip")
	require.True(t, ok)
	assert.Equal(t, payload, string(data))

	url, err := store.PresignGet(ctx, "pkg/1.0.0.zip", true, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "pkg/1.0.0.zip")

	require.NoError(t, store.Delete(ctx, "pkg/1.0.0.zip"))
	_, ok = store.Get("pkg/1.0.0.zip")
	assert.False(t, ok)

	_, err = store.PresignGet(ctx, "missing", true, time.Minute)
	assert.Error(t, err)
}
