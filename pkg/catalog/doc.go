/*
Package catalog implements CatalogSnapshotter: a ticker-driven loop
that periodically renders every Processed, public VersionRecord into a
single JSON document the public catalog endpoint serves (spec §4.9).

The loop itself is grounded on the teacher's Scheduler.Start/run
(a ticker in a goroutine, select against a stopCh, log-and-continue on
a failed cycle); the write itself is grounded on WarrenSnapshot.Persist
— except a snapshot file has no raft.SnapshotSink to hand atomicity to,
so this package writes to a temp file in the same directory and
renames it into place, the usual way to make a single-file write
atomic on POSIX filesystems.
*/
package catalog
