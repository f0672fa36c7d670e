/*
Package ingestionapi is the registry's boundary operations: the
handful of calls an HTTP (or any other transport) layer invokes after
authenticating a caller (spec §4.10). Each operation runs its
admission checks, then either touches storage directly (package
metadata, description updates) or hands an upload to
pkg/ingestion.Pipeline.

This package plays the role the teacher's pkg/api does for cluster
operations: a thin layer translating external requests into calls
against the manager/storage/scheduler triad, here the
authz/admission/storage/ingestion triad instead.
*/
package ingestionapi
