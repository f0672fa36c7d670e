package archive

import "github.com/cuemby/pkgforge/pkg/types"

// manifestName is the file synthesized at the package root of every
// stored archive. Uploaded archives must not already carry one —
// the registry is the sole author of this file (spec §4.7).
const manifestName = "manifest.json"

// manifestVersion is the fixed value of the synthesized manifest's
// manifestVersion field (spec §6).
const manifestVersion = 1

// manifest is the JSON document ArchiveProcessor writes into the
// validated tree before re-archiving it. Field order matches spec §6
// exactly: manifestVersion, packageName, packageId, packageVersion,
// authorId, dependencies, incompatibilities, xpSelection.
type manifest struct {
	ManifestVersion   int         `json:"manifestVersion"`
	PackageName       string      `json:"packageName"`
	PackageID         string      `json:"packageId"`
	PackageVersion    string      `json:"packageVersion"`
	AuthorID          string      `json:"authorId"`
	Dependencies      [][2]string `json:"dependencies"`
	Incompatibilities [][2]string `json:"incompatibilities"`
	XPSelection       string      `json:"xpSelection"`
}

// toManifestPairs renders deps as the [packageId, selectionExpr]
// two-element arrays the manifest format requires (spec §6). A plain
// [2]string marshals to a JSON array with no custom codec needed.
func toManifestPairs(deps []types.Dependency) [][2]string {
	out := make([][2]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, [2]string{d.PackageID, d.Constraint})
	}
	return out
}

// Default lifecycle script names installed when the uploaded archive
// does not already provide its own (spec §4.7). These live alongside
// manifest.json in the archive but are not part of its JSON fields.
const (
	defaultInstallScript   = "install.ska"
	defaultUninstallScript = "uninstall.ska"
	defaultUpgradeScript   = "upgrade.ska"
)

// defaultScriptBody is the no-op lifecycle script body written for
// any of the three defaults that the archive doesn't supply.
const defaultScriptBody = "#!/bin/sh\nexit 0\n"
