/*
Package log provides structured logging for the registry using
zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Usage

Initializing the logger:

	import "github.com/cuemby/pkgforge/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("registry starting")
	log.Debug("checking author quota")
	log.Warn("job broker reconnecting")
	log.Error("failed to write catalog snapshot")
	log.Fatal("cannot open storage directory")

Component loggers:

	ingestLog := log.WithComponent("ingestion")
	ingestLog.Info().Str("job_id", job.JobID).Msg("starting upload")

Context logger helpers:

	authorLog := log.WithAuthorID("a1")
	pkgLog := log.WithPackageID("cool-jet-x1")
	jobLog := log.WithJobID("job-9")

# Integration Points

This package integrates with every other package in this module:
pkg/ingestion, pkg/jobbroker, pkg/catalog, pkg/storage, and
pkg/ingestionapi all take a zerolog.Logger (or fall back to the global
Logger) and derive a component-scoped child logger from it.
*/
package log
