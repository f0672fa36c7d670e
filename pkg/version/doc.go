// Package version implements the package-version triple used across the
// registry: parsing, canonical formatting, and the total order that
// CatalogSnapshotter and the dependency/incompatibility checks rely on.
package version
