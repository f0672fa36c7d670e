package jobbroker

// frameType enumerates the broker wire protocol's message kinds
// (spec §4.4): a handshake request per job, the broker's authorization
// verdict, the job payload exchange that follows authorization, and
// the terminal outcome notifications.
type frameType string

const (
	frameHandshake       frameType = "handshake"
	frameAuthorized      frameType = "authorized"
	frameDenied          frameType = "denied"
	frameJobData         frameType = "job_data"
	frameJobDataReceived frameType = "job_data_received"
	frameAbort           frameType = "abort"
	frameDone            frameType = "done"
	frameHeartbeat       frameType = "heartbeat"
	frameGoodbye         frameType = "goodbye"
)

// frame is the single JSON envelope exchanged in both directions.
// Not every field is meaningful for every Type.
type frame struct {
	Type      frameType `json:"type"`
	JobID     string    `json:"job_id,omitempty"`
	PackageID string    `json:"package_id,omitempty"`
	AuthorID  string    `json:"author_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Payload   []byte    `json:"payload,omitempty"`
}
