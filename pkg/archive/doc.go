/*
Package archive implements ArchiveProcessor, the validation and
re-archival pipeline an uploaded package version goes through before
it can be stored (spec §4.7): size ceiling, __MACOSX detection, root
resolution, the package-id directory and manifest checks, a recursive
file-type walk, manifest synthesis, default lifecycle script
installation, and re-archival with a fresh SHA-256 hash.

Extraction reads with the standard library's archive/zip, the same
choice the pack's charmstore archive handler makes for entity blobs;
re-archival writes through klauspost/compress's flate implementation
registered as zip's deflate compressor, so the final blob is a
conventional zip file that just happens to have been compressed by a
faster implementation than stdlib's. Each Process call gets its own
per-job temp directory, cleaned up unconditionally on return, mirroring
the teacher's stage-by-stage container setup in
Worker.executeContainer where each step either advances or the whole
job unwinds.
*/
package archive
