/*
Package jobbroker is the persistent client connection IngestionPipeline
uses to get per-job authorization from the external job broker before
it is allowed to validate and store an uploaded archive (spec §4.4).

The connection lifecycle — dial, register, heartbeat loop, reconnect
with backoff, a background read loop dispatching inbound frames to
whichever in-flight request is waiting on them — is grounded on the
teacher's Worker: the same shape as Worker.Start's certificate-then-
connect-then-heartbeat-then-executor-loop sequence, with gRPC replaced
by a gorilla/websocket connection since the broker protocol here is a
small bidirectional JSON frame exchange rather than a generated RPC
service.
*/
package jobbroker
