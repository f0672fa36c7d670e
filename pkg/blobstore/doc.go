/*
Package blobstore stores the re-archived, hashed package blobs
ArchiveProcessor produces and hands callers a presigned GET URL to
retrieve them (spec §4.3, §4.7). The interface mirrors the teacher's
Store interface in shape — one small interface, one concrete
implementation — but its backend is S3-compatible object storage via
minio-go rather than bbolt, grounded on the storage-interface split
(PutObject/PresignedGetObject as distinct lifecycle steps) seen in the
pack's upload-service reference.
*/
package blobstore
