package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/cuemby/pkgforge/pkg/archive"
	"github.com/cuemby/pkgforge/pkg/blobstore"
	"github.com/cuemby/pkgforge/pkg/storage"
	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/cuemby/pkgforge/pkg/version"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestPipeline(t *testing.T) (*Pipeline, storage.Store, *blobstore.MemoryBlobStore) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	blobs := blobstore.NewMemory()
	archiver := archive.New(t.TempDir())

	p := New(Config{
		Store:       store,
		Blobs:       blobs,
		Archiver:    archiver,
		Concurrency: 2,
		Log:         zerolog.Nop(),
	})
	return p, store, blobs
}

func TestSubmitSucceeds(t *testing.T) {
	p, store, blobs := newTestPipeline(t)

	require.NoError(t, store.CreateAuthor(&types.Author{ID: "a1", Name: "Flyer", TotalStorage: 1 << 20}))
	require.NoError(t, store.CreatePackage(&types.Package{ID: "pkg-1", AuthorID: "a1", Name: "cool-jet-x1"}))

	v, _ := version.Parse("1.0.0")
	data := buildZip(t, map[string]string{"cool-jet-x1/readme.txt": "hi"})

	job := Job{
		JobID:       "job-1",
		AuthorID:    "a1",
		PackageID:   "pkg-1",
		Version:     v,
		Archive:     bytes.NewReader(data),
		ArchiveSize: int64(len(data)),
		IsPublic:    true,
	}

	require.NoError(t, p.Submit(context.Background(), job))

	vr, err := store.GetVersion("pkg-1", v)
	require.NoError(t, err)
	assert.Equal(t, types.VersionStatusProcessed, vr.Status)
	assert.NotEmpty(t, vr.Hash)

	_, ok := blobs.Get(vr.Location)
	assert.True(t, ok)

	author, err := store.GetAuthor("a1")
	require.NoError(t, err)
	assert.Equal(t, vr.StoredSize, author.UsedStorage)
}

func TestSubmitFreesStorageOnValidationFailure(t *testing.T) {
	p, store, _ := newTestPipeline(t)

	require.NoError(t, store.CreateAuthor(&types.Author{ID: "a1", Name: "Flyer", TotalStorage: 1 << 20}))
	require.NoError(t, store.CreatePackage(&types.Package{ID: "pkg-1", AuthorID: "a1", Name: "cool-jet-x1"}))

	v, _ := version.Parse("1.0.0")
	data := buildZip(t, map[string]string{"wrong-dir/readme.txt": "hi"})

	job := Job{
		JobID:       "job-2",
		AuthorID:    "a1",
		PackageID:   "pkg-1",
		Version:     v,
		Archive:     bytes.NewReader(data),
		ArchiveSize: int64(len(data)),
	}

	err := p.Submit(context.Background(), job)
	assert.Error(t, err)

	vr, getErr := store.GetVersion("pkg-1", v)
	require.NoError(t, getErr)
	assert.Equal(t, types.VersionStatusFailedNoFileDir, vr.Status)

	author, authorErr := store.GetAuthor("a1")
	require.NoError(t, authorErr)
	assert.EqualValues(t, 0, author.UsedStorage)
}

func TestRetryResubmitsFailedVersion(t *testing.T) {
	p, store, _ := newTestPipeline(t)

	require.NoError(t, store.CreateAuthor(&types.Author{ID: "a1", Name: "Flyer", TotalStorage: 1 << 20}))
	require.NoError(t, store.CreatePackage(&types.Package{ID: "pkg-1", AuthorID: "a1", Name: "cool-jet-x1"}))

	v, _ := version.Parse("1.0.0")
	badData := buildZip(t, map[string]string{"wrong-dir/readme.txt": "hi"})

	job := Job{
		JobID:       "job-3",
		AuthorID:    "a1",
		PackageID:   "pkg-1",
		Version:     v,
		Archive:     bytes.NewReader(badData),
		ArchiveSize: int64(len(badData)),
	}
	require.Error(t, p.Submit(context.Background(), job))

	goodData := buildZip(t, map[string]string{"cool-jet-x1/readme.txt": "hi"})
	job.Archive = bytes.NewReader(goodData)
	job.ArchiveSize = int64(len(goodData))

	require.NoError(t, p.Retry(context.Background(), "a1", job))

	vr, err := store.GetVersion("pkg-1", v)
	require.NoError(t, err)
	assert.Equal(t, types.VersionStatusProcessed, vr.Status)
}

// TestSubmitPrivateStoredVersion covers spec §8 scenario 4: a version
// that is not public but whose author asked to retain the blob still
// gets it written to the (private) blob store and a generated
// PrivateKey, but Location stays NOT_STORED since it is never
// publicly addressable.
func TestSubmitPrivateStoredVersion(t *testing.T) {
	p, store, blobs := newTestPipeline(t)

	require.NoError(t, store.CreateAuthor(&types.Author{ID: "a1", Name: "Flyer", TotalStorage: 1 << 20}))
	require.NoError(t, store.CreatePackage(&types.Package{ID: "pkg-1", AuthorID: "a1", Name: "cool-jet-x1"}))

	v, _ := version.Parse("1.0.0")
	data := buildZip(t, map[string]string{"cool-jet-x1/readme.txt": "hi"})

	job := Job{
		JobID:       "job-4",
		AuthorID:    "a1",
		PackageID:   "pkg-1",
		Version:     v,
		Archive:     bytes.NewReader(data),
		ArchiveSize: int64(len(data)),
		IsPublic:    false,
		IsStored:    true,
	}

	require.NoError(t, p.Submit(context.Background(), job))

	vr, err := store.GetVersion("pkg-1", v)
	require.NoError(t, err)
	assert.Equal(t, types.VersionStatusProcessed, vr.Status)
	assert.Equal(t, types.NotStored, vr.Location)
	assert.Len(t, vr.PrivateKey, 32)

	key := blobKey("pkg-1", v)
	_, ok := blobs.Get(key)
	assert.True(t, ok)
}

// TestSubmitNotStoredVersion covers the remaining §8 case: neither
// public nor stored. No blob is written and no PrivateKey generated.
func TestSubmitNotStoredVersion(t *testing.T) {
	p, store, blobs := newTestPipeline(t)

	require.NoError(t, store.CreateAuthor(&types.Author{ID: "a1", Name: "Flyer", TotalStorage: 1 << 20}))
	require.NoError(t, store.CreatePackage(&types.Package{ID: "pkg-1", AuthorID: "a1", Name: "cool-jet-x1"}))

	v, _ := version.Parse("1.0.0")
	data := buildZip(t, map[string]string{"cool-jet-x1/readme.txt": "hi"})

	job := Job{
		JobID:       "job-5",
		AuthorID:    "a1",
		PackageID:   "pkg-1",
		Version:     v,
		Archive:     bytes.NewReader(data),
		ArchiveSize: int64(len(data)),
		IsPublic:    false,
		IsStored:    false,
	}

	require.NoError(t, p.Submit(context.Background(), job))

	vr, err := store.GetVersion("pkg-1", v)
	require.NoError(t, err)
	assert.Equal(t, types.VersionStatusProcessed, vr.Status)
	assert.Equal(t, types.NotStored, vr.Location)
	assert.Empty(t, vr.PrivateKey)

	key := blobKey("pkg-1", v)
	_, ok := blobs.Get(key)
	assert.False(t, ok)
}
