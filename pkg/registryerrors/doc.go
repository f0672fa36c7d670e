// Package registryerrors defines the registry's closed set of error
// classes and maps them to the machine codes the ingestion API surfaces
// to callers (spec §7). Every error returned across a package boundary
// in this module is wrapped in one of these classes.
package registryerrors
