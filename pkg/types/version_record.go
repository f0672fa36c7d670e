package types

import (
	"time"

	"github.com/cuemby/pkgforge/pkg/version"
)

// VersionStatus is the terminal or in-flight state of one VersionRecord.
// Processing is the only non-terminal value; every Failed* value and
// Aborted are terminal failures, Processed and Removed are terminal
// successes (Removed reachable only from Processed, spec §3).
type VersionStatus string

const (
	VersionStatusProcessing             VersionStatus = "processing"
	VersionStatusProcessed              VersionStatus = "processed"
	VersionStatusRemoved                VersionStatus = "removed"
	VersionStatusFailedMACOSX           VersionStatus = "failed_macosx"
	VersionStatusFailedNoFileDir        VersionStatus = "failed_no_file_dir"
	VersionStatusFailedManifestExists   VersionStatus = "failed_manifest_exists"
	VersionStatusFailedInvalidFileTypes VersionStatus = "failed_invalid_file_types"
	VersionStatusFailedFileTooLarge     VersionStatus = "failed_file_too_large"
	VersionStatusFailedNotEnoughSpace   VersionStatus = "failed_not_enough_space"
	VersionStatusFailedServer           VersionStatus = "failed_server"
	VersionStatusAborted                VersionStatus = "aborted"
)

// IsTerminal reports whether s admits no further transition other than
// Processed -> Removed.
func (s VersionStatus) IsTerminal() bool {
	return s != VersionStatusProcessing
}

// IsFailure reports whether s is one of the Failed* values or Aborted.
func (s VersionStatus) IsFailure() bool {
	switch s {
	case VersionStatusFailedMACOSX, VersionStatusFailedNoFileDir, VersionStatusFailedManifestExists,
		VersionStatusFailedInvalidFileTypes, VersionStatusFailedFileTooLarge, VersionStatusFailedNotEnoughSpace,
		VersionStatusFailedServer, VersionStatusAborted:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to target is one of
// the transitions the lifecycle in spec §3 allows: Processing to any
// terminal Failed*/Aborted status, Processing to Processed (only via
// resolveVersion, not this check — callers route that through
// ResolveVersion instead of UpdateStatus), Processed to Removed, or a
// terminal Failed*/Aborted status back to Processing (retry only).
func (s VersionStatus) CanTransitionTo(target VersionStatus) bool {
	switch {
	case s == VersionStatusProcessing && target.IsFailure():
		return true
	case s == VersionStatusProcessed && target == VersionStatusRemoved:
		return true
	case s.IsFailure() && target == VersionStatusProcessing:
		return true
	default:
		return false
	}
}

// Dependency is one entry of a VersionRecord's dependency or
// incompatibility list: a package id paired with a selection
// expression text (spec §4.2, pkg/selection).
type Dependency struct {
	PackageID  string
	Constraint string
}

// VersionRecord is one uploaded version of a Package and the ingestion
// metadata that tracks it from upload through processing (spec §3).
// Only one VersionRecord per Package may hold a given Version.
type VersionRecord struct {
	PackageID string
	Version   version.Version

	Status       VersionStatus
	IsPublic     bool
	IsStored     bool   // whether the blob is retained at all (isPublic implies IsStored)
	PrivateKey   string // 32-char uppercase alphanumeric, set iff !IsPublic && IsStored
	StoredSize   int64
	InstalledSize int64  // uncompressed size re-measured from the re-archived blob (spec §4.7 step 11)
	Location     string // CDN URL when IsPublic && IsStored, else NotStored
	Hash         string // sha256 hex of the re-archived blob
	ErrorMessage string

	Dependencies     []Dependency
	Incompatibles    []Dependency
	XPlaneSelector   string // selection expression text (spec §4.2)
	InstallScript    string
	UninstallScript  string
	UpgradeScript    string

	ConsumedStorage bool // true once UsedStorage has been debited for this record

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt time.Time
}
