/*
Package types defines the registry's domain model: Author, Package,
Version, VersionRecord and TokenDescriptor, plus the enums and
invariants spec §3 states must always hold.

Split by entity across author.go, packagemeta.go, version_record.go and
permission.go, the same way the teacher splits its domain model by
concern rather than keeping one flat file.
*/
package types
