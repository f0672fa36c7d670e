package types

import (
	"regexp"
	"time"

	"github.com/cuemby/pkgforge/pkg/version"
)

// PackageType partitions packages into the content categories the
// registry serves (spec §3). Validation and catalog grouping both key
// off this.
type PackageType string

const (
	PackageTypeAircraft   PackageType = "aircraft"
	PackageTypeExecutable PackageType = "executable"
	PackageTypeScenery    PackageType = "scenery"
	PackageTypePlugin     PackageType = "plugin"
	PackageTypeLivery     PackageType = "livery"
	PackageTypeOther      PackageType = "other"
)

// ValidPackageType reports whether t is one of the recognized types.
func ValidPackageType(t PackageType) bool {
	switch t {
	case PackageTypeAircraft, PackageTypeExecutable, PackageTypeScenery, PackageTypePlugin, PackageTypeLivery, PackageTypeOther:
		return true
	default:
		return false
	}
}

// packageIDPattern enforces the package id grammar: lowercase start,
// 6-32 characters, lowercase alphanumerics plus '_', '-', '.' (spec §3).
var packageIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_\-.]{5,31}$`)

// ValidPackageID reports whether id satisfies the package id grammar.
func ValidPackageID(id string) bool {
	return packageIDPattern.MatchString(id)
}

// Package is one author's named package: the parent of its
// VersionRecord history. AuthorID is immutable once created.
type Package struct {
	ID          string
	AuthorID    string
	Name        string
	Description string
	Type        PackageType

	Versions []*VersionRecord

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LatestProcessed returns the highest-versioned VersionRecord in
// Processed status, or nil if none exist. Ties never occur because two
// VersionRecords for the same Package may not share a version (spec §3).
func (p *Package) LatestProcessed() *VersionRecord {
	var latest *VersionRecord
	for _, vr := range p.Versions {
		if vr.Status != VersionStatusProcessed {
			continue
		}
		if latest == nil || version.Compare(vr.Version, latest.Version) > 0 {
			latest = vr
		}
	}
	return latest
}
