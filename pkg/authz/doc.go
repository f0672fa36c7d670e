/*
Package authz issues and verifies the bearer tokens clients present to
the ingestion API. A token is a compact, HMAC-SHA256-signed envelope
naming an AuthorID and a TokenSession; it carries no permission bits
itself, so the bits stay revocable from storage without reissuing
every outstanding token. Signing follows the random-token idiom in the
teacher's TokenManager, replacing the in-memory map with an HMAC so
verification needs no lookup before storage is consulted.
*/
package authz
