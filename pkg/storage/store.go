package storage

import (
	"time"

	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/cuemby/pkgforge/pkg/version"
)

// Store is the registry's persistence boundary: Author and Package
// state, plus the atomic quota and status-transition operations that
// must never observe a half-applied write.
type Store interface {
	// Authors
	CreateAuthor(author *types.Author) error
	GetAuthor(id string) (*types.Author, error)
	GetAuthorByName(name string) (*types.Author, error)
	GetAuthorByEmail(email string) (*types.Author, error)
	ListAuthors() ([]*types.Author, error)
	UpdateAuthor(author *types.Author) error

	// TryConsumeStorage atomically debits amount from an author's
	// UsedStorage if doing so would not exceed TotalStorage, returning
	// registryerrors.ErrQuotaExceeded otherwise. The check and the
	// write happen in one transaction.
	TryConsumeStorage(authorID string, amount int64) error

	// FreeStorage atomically credits amount back to UsedStorage,
	// floored at zero.
	FreeStorage(authorID string, amount int64) error

	// RecordNameChange renames an author, enforcing the cooldown
	// invariant (spec §5) inside the same transaction as the write.
	RecordNameChange(authorID, newName string, at time.Time) error

	// Packages
	CreatePackage(pkg *types.Package) error
	GetPackage(id string) (*types.Package, error)
	GetPackageByAuthorAndName(authorID, name string) (*types.Package, error)
	ListPackages() ([]*types.Package, error)
	ListPackagesByAuthor(authorID string) ([]*types.Package, error)
	UpdatePackage(pkg *types.Package) error

	// InsertVersion appends a VersionRecord to a package, rejecting a
	// duplicate (packageID, Version) pair.
	InsertVersion(packageID string, record *types.VersionRecord) error

	// GetVersion looks up one VersionRecord by its natural key.
	GetVersion(packageID string, v version.Version) (*types.VersionRecord, error)

	// UpdateStatus moves a VersionRecord from Processing to a terminal
	// Failed*/Aborted status, rejecting any other transition with
	// registryerrors.ErrInvalidTransition (spec §4.4, §4.8 failure
	// path). It also clears Location back to NotStored and
	// ConsumedStorage, matching the failure-path invariant.
	UpdateStatus(packageID string, v version.Version, newStatus types.VersionStatus, errMsg string) error

	// ResolveVersion moves a VersionRecord from Processing to Processed,
	// recording the blob's hash/location/sizes and, for the
	// private-stored case, the generated privateKey (empty otherwise).
	// It is callable at most once per record; a second call fails with
	// registryerrors.ErrNotProcessing (spec §4.4, §8 idempotence).
	ResolveVersion(packageID string, v version.Version, hash, location, privateKey string, size, installedSize int64) error

	// RetryVersion resets a terminal Failed*/Aborted VersionRecord back
	// to Processing, clearing ErrorMessage, for Pipeline.Retry (spec
	// §4.8 Retry).
	RetryVersion(packageID string, v version.Version) error

	// ListProcessedPublic returns every VersionRecord across every
	// package that is Processed and IsPublic, for CatalogSnapshotter.
	ListProcessedPublic() ([]*types.VersionRecord, error)

	Close() error
}
