package ingestionapi

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/cuemby/pkgforge/pkg/admission"
	"github.com/cuemby/pkgforge/pkg/archive"
	"github.com/cuemby/pkgforge/pkg/authz"
	"github.com/cuemby/pkgforge/pkg/blobstore"
	"github.com/cuemby/pkgforge/pkg/catalog"
	"github.com/cuemby/pkgforge/pkg/ingestion"
	"github.com/cuemby/pkgforge/pkg/storage"
	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, storage.Store, *authz.Issuer) {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	secret, err := authz.GenerateSecret()
	require.NoError(t, err)
	issuer := authz.NewIssuer(secret)

	guard := admission.NewGuard(0, 100)

	pipeline := ingestion.New(ingestion.Config{
		Store:       store,
		Blobs:       blobstore.NewMemory(),
		Archiver:    archive.New(t.TempDir()),
		Concurrency: 4,
		Log:         zerolog.Nop(),
	})

	cat := catalog.New(store, "", 0, zerolog.Nop())

	return New(store, guard, pipeline, cat), store, issuer
}

func authorWithToken(t *testing.T, store storage.Store, issuer *authz.Issuer, perms types.Permission, descPkgs, uploadPkgs, updatePkgs []string) (*authz.Authorized, string) {
	t.Helper()

	td, err := authz.NewTokenDescriptor("ci", "ci token", perms, descPkgs, uploadPkgs, updatePkgs)
	require.NoError(t, err)

	authorSession, err := authz.NewAuthorSession()
	require.NoError(t, err)

	author := &types.Author{
		ID:           "a1",
		Name:         "Flyer",
		Email:        "flyer@example.com",
		Session:      authorSession,
		TotalStorage: 10 << 20,
		Tokens:       []*types.TokenDescriptor{td},
	}
	require.NoError(t, store.CreateAuthor(author))

	claims := authz.Claims{AuthorID: author.ID, Session: author.Session, TokenSession: td.TokenSession}
	token, err := issuer.Issue(claims)
	require.NoError(t, err)

	auth, err := authz.Resolve(author, claims)
	require.NoError(t, err)

	return auth, token
}

func buildTestArchive(t *testing.T, packageID string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	dir, err := zw.Create(packageID + "/")
	require.NoError(t, err)
	_ = dir

	f, err := zw.Create(packageID + "/readme.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestCreatePackage(t *testing.T) {
	svc, _, issuer := newTestService(t)
	auth, _ := authorWithToken(t, svc.store, issuer, 0, nil, nil, nil)

	pkg, err := svc.CreatePackage(context.Background(), auth, CreatePackageRequest{
		AuthorID:    "a1",
		Name:        "cool-jet-x1",
		Description: "A cool jet.",
		Type:        types.PackageTypeAircraft,
	})
	require.NoError(t, err)
	require.Equal(t, "a1", pkg.AuthorID)

	got, err := svc.store.GetPackage(pkg.ID)
	require.NoError(t, err)
	require.Equal(t, "cool-jet-x1", got.Name)
}

func TestCreatePackageRejectsInvalidID(t *testing.T) {
	svc, _, issuer := newTestService(t)
	auth, _ := authorWithToken(t, svc.store, issuer, 0, nil, nil, nil)

	_, err := svc.CreatePackage(context.Background(), auth, CreatePackageRequest{
		AuthorID:    "a1",
		Name:        "X",
		Description: "bad id",
		Type:        types.PackageTypeAircraft,
	})
	require.Error(t, err)
}

func TestUploadVersionEndToEnd(t *testing.T) {
	svc, store, issuer := newTestService(t)
	auth, _ := authorWithToken(t, svc.store, issuer, types.PermUploadVersionAnyPackage, nil, nil, nil)

	pkg := &types.Package{ID: "p1", AuthorID: "a1", Name: "cool-jet-x1", Type: types.PackageTypeAircraft}
	require.NoError(t, store.CreatePackage(pkg))

	data := buildTestArchive(t, "p1")

	vr, err := svc.UploadVersion(context.Background(), auth, UploadVersionRequest{
		AuthorID:    "a1",
		PackageID:   "p1",
		Version:     "1.0.0",
		Archive:     bytes.NewReader(data),
		ArchiveSize: int64(len(data)),
		IsPublic:    true,
	})
	require.NoError(t, err)
	require.Equal(t, types.VersionStatusProcessed, vr.Status)
}

func TestUploadVersionForbiddenWithoutPermission(t *testing.T) {
	svc, store, issuer := newTestService(t)
	auth, _ := authorWithToken(t, svc.store, issuer, 0, nil, nil, nil)

	pkg := &types.Package{ID: "p1", AuthorID: "a1", Name: "cool-jet-x1", Type: types.PackageTypeAircraft}
	require.NoError(t, store.CreatePackage(pkg))

	data := buildTestArchive(t, "p1")
	_, err := svc.UploadVersion(context.Background(), auth, UploadVersionRequest{
		AuthorID:    "a1",
		PackageID:   "p1",
		Version:     "1.0.0",
		Archive:     bytes.NewReader(data),
		ArchiveSize: int64(len(data)),
	})
	require.Error(t, err)
}

func TestUpdateDescription(t *testing.T) {
	svc, store, issuer := newTestService(t)
	auth, _ := authorWithToken(t, svc.store, issuer, types.PermUpdateDescriptionAnyPackage, nil, nil, nil)

	pkg := &types.Package{ID: "p1", AuthorID: "a1", Name: "cool-jet-x1", Type: types.PackageTypeAircraft}
	require.NoError(t, store.CreatePackage(pkg))

	updated, err := svc.UpdateDescription(context.Background(), auth, UpdateDescriptionRequest{
		PackageID:   "p1",
		Description: "A much cooler jet.",
	})
	require.NoError(t, err)
	require.Equal(t, "A much cooler jet.", updated.Description)
}

func TestGetCatalogBeforeStartReturnsNil(t *testing.T) {
	svc, _, _ := newTestService(t)
	require.Nil(t, svc.GetCatalog())
}
