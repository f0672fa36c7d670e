package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/pkgforge/pkg/storage"
	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/cuemby/pkgforge/pkg/version"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotWritesOnlyProcessedPublic(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.CreateAuthor(&types.Author{ID: "a1", Name: "Flyer"}))
	require.NoError(t, store.CreatePackage(&types.Package{ID: "p1", AuthorID: "a1", Name: "cool-jet", Description: "a cool jet", Type: types.PackageTypeAircraft}))

	v1, _ := version.Parse("1.0.0")
	v2, _ := version.Parse("2.0.0")
	require.NoError(t, store.InsertVersion("p1", &types.VersionRecord{
		PackageID: "p1", Version: v1, Status: types.VersionStatusProcessed, IsPublic: true, Hash: "abc",
		Dependencies: []types.Dependency{{PackageID: "base-pkg", Constraint: ">=1.0.0"}},
	}))
	require.NoError(t, store.InsertVersion("p1", &types.VersionRecord{PackageID: "p1", Version: v2, Status: types.VersionStatusProcessing, IsPublic: true}))

	outPath := filepath.Join(t.TempDir(), "catalog.json")
	snapper := New(store, outPath, 0, zerolog.Nop())
	require.NoError(t, snapper.snapshot())

	latest := snapper.Latest()
	require.Len(t, latest.Packages, 1)
	pkgEntry := latest.Packages[0]
	assert.Equal(t, "p1", pkgEntry.PackageID)
	assert.Equal(t, "cool-jet", pkgEntry.PackageName)
	assert.Equal(t, "a1", pkgEntry.AuthorID)
	assert.Equal(t, "Flyer", pkgEntry.AuthorName)
	assert.Equal(t, "a cool jet", pkgEntry.Description)
	assert.Equal(t, types.PackageTypeAircraft, pkgEntry.PackageType)
	require.Len(t, pkgEntry.Versions, 1)
	assert.Equal(t, "1.0.0", pkgEntry.Versions[0].Version)
	assert.Equal(t, [][2]string{{"base-pkg", ">=1.0.0"}}, pkgEntry.Versions[0].Dependencies)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var onDisk Snapshot
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Len(t, onDisk.Packages, 1)
	assert.Equal(t, "p1", onDisk.Packages[0].PackageID)

	var rawOrder map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &rawOrder))
	assert.Contains(t, rawOrder, "generated")
	assert.Contains(t, rawOrder, "packages")
}
