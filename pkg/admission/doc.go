/*
Package admission is the ingestion API's boundary guard: permission and
ownership checks, field validation, existence pre-checks, and per-route
rate limiting (spec §4.8). It runs before pkg/ingestionapi touches
storage, the same role Warren's scheduler's pre-filtering plays before
a container is ever placed, here applied to requests instead of
containers.

Rate limiting buckets on (route, identity) using golang.org/x/time/rate
token buckets kept in a map, mirroring the teacher's
TokenManager map-plus-mutex shape (pkg/manager/token.go) rather than
anything rate-limit-specific in the teacher, since nothing in Warren
rate-limits.
*/
package admission
