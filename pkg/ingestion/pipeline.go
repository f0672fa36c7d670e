package ingestion

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cuemby/pkgforge/pkg/archive"
	"github.com/cuemby/pkgforge/pkg/blobstore"
	"github.com/cuemby/pkgforge/pkg/events"
	"github.com/cuemby/pkgforge/pkg/jobbroker"
	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"github.com/cuemby/pkgforge/pkg/storage"
	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/cuemby/pkgforge/pkg/version"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// presignedURLTTL is the lifetime of the presigned GET URL generated
// for a private-but-stored version's author notification (spec §4.5,
// §4.8: "a 24-hour presigned URL").
const presignedURLTTL = 24 * time.Hour

// privateKeyAlphabet is the character set VersionRecord.PrivateKey is
// drawn from (spec §3, §8 scenario 4: "32-char alphanumeric uppercase").
const privateKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// State is one stage of the ingestion state machine.
type State string

const (
	StateReserving     State = "reserving"
	StateWaitingJobAuth State = "waiting_job_auth"
	StateValidating    State = "validating"
	StateUploading     State = "uploading"
	StateFinalizing    State = "finalizing"
	StateDone          State = "done"
)

// Job describes one version upload to run through the pipeline.
type Job struct {
	JobID          string
	AuthorID       string
	PackageID      string
	Version        version.Version
	Archive        io.Reader
	ArchiveSize    int64
	Dependencies   []types.Dependency
	Incompatibles  []types.Dependency
	XPlaneSelector string
	IsPublic       bool
	// IsStored is the author's request to retain the blob at all.
	// IsPublic implies IsStored regardless of this field (spec §3:
	// "isPublic ⇒ isStored").
	IsStored bool
	// PackageName is copied into the synthesized manifest.json
	// (spec §6).
	PackageName string

	// IsRetry is true when resubmitting a VersionRecord that already
	// exists in a Failed* status, so Submit skips InsertVersion.
	IsRetry bool
}

// Config wires a Pipeline's collaborators.
type Config struct {
	Store         storage.Store
	Blobs         blobstore.BlobStore
	Broker        *jobbroker.Client
	Archiver      *archive.Processor
	Concurrency   int64
	JobAuthWindow time.Duration
	Log           zerolog.Logger

	// Events is optional. When set, terminal job outcomes are
	// published for anything subscribed (metrics, audit logging);
	// a nil Broker is a no-op.
	Events *events.Broker
}

// Pipeline runs uploaded versions through validation and storage,
// bounded by a weighted semaphore sized by Concurrency.
type Pipeline struct {
	store         storage.Store
	blobs         blobstore.BlobStore
	broker        *jobbroker.Client
	archiver      *archive.Processor
	sem           *semaphore.Weighted
	jobAuthWindow time.Duration
	log           zerolog.Logger
	events        *events.Broker
}

// New builds a Pipeline. Concurrency must be positive.
func New(cfg Config) *Pipeline {
	window := cfg.JobAuthWindow
	if window <= 0 {
		window = 30 * time.Second
	}
	return &Pipeline{
		store:         cfg.Store,
		blobs:         cfg.Blobs,
		broker:        cfg.Broker,
		archiver:      cfg.Archiver,
		sem:           semaphore.NewWeighted(cfg.Concurrency),
		jobAuthWindow: window,
		log:           cfg.Log.With().Str("component", "ingestion").Logger(),
		events:        cfg.Events,
	}
}

// publish is a nil-safe wrapper around p.events.Publish.
func (p *Pipeline) publish(typ events.EventType, message string, meta map[string]string) {
	if p.events == nil {
		return
	}
	p.events.Publish(&events.Event{Type: typ, Message: message, Metadata: meta})
}

// Submit blocks until a worker slot is free, then runs job to
// completion (or terminal failure). It returns once the VersionRecord
// has reached a terminal state.
func (p *Pipeline) Submit(ctx context.Context, job Job) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return registryerrors.Aborted.Wrap(err)
	}
	defer p.sem.Release(1)

	return p.run(ctx, job)
}

func (p *Pipeline) run(ctx context.Context, job Job) error {
	log := p.log.With().Str("job_id", job.JobID).Str("package_id", job.PackageID).Logger()

	isStored := job.IsStored || job.IsPublic

	if !job.IsRetry {
		record := &types.VersionRecord{
			PackageID:      job.PackageID,
			Version:        job.Version,
			Status:         types.VersionStatusProcessing,
			IsPublic:       job.IsPublic,
			IsStored:       isStored,
			Location:       types.NotStored,
			Dependencies:   job.Dependencies,
			Incompatibles:  job.Incompatibles,
			XPlaneSelector: job.XPlaneSelector,
		}
		if err := p.store.InsertVersion(job.PackageID, record); err != nil {
			return err
		}
	}

	state := StateReserving
	consumedStorage := false

	fail := func(status types.VersionStatus, errMsg string) error {
		if consumedStorage {
			if err := p.store.FreeStorage(job.AuthorID, job.ArchiveSize); err != nil {
				log.Warn().Err(err).Msg("failed to free reserved storage after failure")
			}
		}
		updateErr := p.store.UpdateStatus(job.PackageID, job.Version, status, errMsg)
		if updateErr != nil {
			log.Error().Err(updateErr).Msg("failed to record failure status")
		}
		if p.broker != nil {
			_ = p.broker.NotifyAbort(job.JobID, errMsg)
		}
		log.Warn().Str("state", string(state)).Str("status", string(status)).Msg("ingestion job failed")
		p.publish(events.EventVersionFailed, errMsg, map[string]string{
			"package_id": job.PackageID,
			"job_id":     job.JobID,
			"status":     string(status),
		})
		return &archive.FailureError{Status: status, Message: errMsg}
	}

	// Reserving: optimistic debit against the uploaded archive size,
	// reconciled once the re-archived blob's real size is known.
	state = StateReserving
	author, err := p.store.GetAuthor(job.AuthorID)
	if err != nil {
		return err
	}
	remainingQuota := author.TotalStorage - author.UsedStorage

	if err := p.store.TryConsumeStorage(job.AuthorID, job.ArchiveSize); err != nil {
		return fail(types.VersionStatusFailedNotEnoughSpace, err.Error())
	}
	consumedStorage = true

	// WaitingJobAuth: the broker-level trust-key handshake must already
	// have authorized this connection (spec §4.6 steps 1-3, performed
	// once at Client.Start/reconnect); per job the client still must
	// send job_data and wait for job_data_received before any
	// validation work begins (spec §4.6 steps 3-4).
	state = StateWaitingJobAuth
	if p.broker != nil {
		authCtx, cancel := context.WithTimeout(ctx, p.jobAuthWindow)
		err := p.broker.WaitForAuthorization(authCtx)
		if err != nil {
			cancel()
			return fail(types.VersionStatusAborted, err.Error())
		}

		payload, err := json.Marshal(jobDataPayload{
			JobType: "package_version",
			Info:    jobDataInfo{PackageID: job.PackageID, Version: job.Version.Format()},
		})
		if err != nil {
			cancel()
			return fail(types.VersionStatusFailedServer, err.Error())
		}

		err = p.broker.SendJobData(authCtx, job.JobID, payload)
		cancel()
		if err != nil {
			return fail(types.VersionStatusAborted, err.Error())
		}
	}

	// Validating: extract, check, synthesize manifest, re-archive.
	state = StateValidating
	result, err := p.archiver.Process(archive.Request{
		JobID:          job.JobID,
		PackageID:      job.PackageID,
		PackageName:    job.PackageName,
		AuthorID:       job.AuthorID,
		Version:        job.Version,
		Dependencies:   job.Dependencies,
		Incompatibles:  job.Incompatibles,
		XPlaneSelector: job.XPlaneSelector,
		Archive:        job.Archive,
		ArchiveSize:    job.ArchiveSize,
		AvailableQuota: remainingQuota,
	})
	if err != nil {
		var fe *archive.FailureError
		if ok := asFailureError(err, &fe); ok {
			return fail(fe.Status, fe.Message)
		}
		return fail(types.VersionStatusFailedServer, err.Error())
	}

	// Reconcile the reservation against the archive's actual stored
	// size now that re-archival is done.
	if delta := result.Size - job.ArchiveSize; delta > 0 {
		if err := p.store.TryConsumeStorage(job.AuthorID, delta); err != nil {
			return fail(types.VersionStatusFailedNotEnoughSpace, err.Error())
		}
	} else if delta < 0 {
		if err := p.store.FreeStorage(job.AuthorID, -delta); err != nil {
			log.Warn().Err(err).Msg("failed to reconcile storage after re-archival")
		}
	}

	// Uploading: store the validated blob, unless the author opted out
	// of retention entirely (spec §4.8: "attempt tryConsumeStorage...
	// then BlobStore.put. If private-and-stored, also produce a
	// presigned 24h URL").
	state = StateUploading
	key := blobKey(job.PackageID, job.Version)
	var presignedURL string
	if isStored {
		if err := p.blobs.Put(ctx, key, bytes.NewReader(result.Data), result.Size, job.IsPublic); err != nil {
			return fail(types.VersionStatusFailedServer, err.Error())
		}
		if !job.IsPublic {
			url, err := p.blobs.PresignGet(ctx, key, false, presignedURLTTL)
			if err != nil {
				return fail(types.VersionStatusFailedServer, err.Error())
			}
			presignedURL = url
		}
	}

	// Finalizing: the location is the CDN URL only when public and
	// stored; private-stored and not-stored versions both record
	// NOT_STORED, with the presigned URL (if any) sent only to the
	// author, never persisted as Location (spec §4.8).
	state = StateFinalizing
	location := types.NotStored
	if job.IsPublic && isStored {
		location = key
	}

	var privateKey string
	if !job.IsPublic && isStored {
		privateKey, err = generatePrivateKey()
		if err != nil {
			return fail(types.VersionStatusFailedServer, err.Error())
		}
	}

	if err := p.store.ResolveVersion(job.PackageID, job.Version, result.Hash, location, privateKey, result.Size, result.InstalledSize); err != nil {
		return fail(types.VersionStatusFailedServer, err.Error())
	}
	if presignedURL != "" {
		log.Info().Str("presigned_url", presignedURL).Msg("private version stored; presigned URL ready for author notification")
	}

	if p.broker != nil {
		if err := p.broker.NotifyDone(job.JobID); err != nil {
			log.Warn().Err(err).Msg("failed to notify job broker of completion")
		}
	}

	state = StateDone
	log.Info().Str("state", string(state)).Msg("ingestion job completed")
	p.publish(events.EventVersionUploaded, "version processed", map[string]string{
		"package_id": job.PackageID,
		"job_id":     job.JobID,
	})
	return nil
}

// Retry resubmits a VersionRecord that is currently in a Failed*
// status, using a freshly supplied archive reader (the original upload
// is not retained once a job fails).
func (p *Pipeline) Retry(ctx context.Context, authorID string, job Job) error {
	existing, err := p.store.GetVersion(job.PackageID, job.Version)
	if err != nil {
		return err
	}
	if !existing.Status.IsFailure() {
		return registryerrors.Conflict.New("version is not in a failed state")
	}

	job.AuthorID = authorID
	job.IsRetry = true

	if err := p.store.RetryVersion(job.PackageID, job.Version); err != nil {
		return err
	}

	p.publish(events.EventVersionRetried, "version retry submitted", map[string]string{
		"package_id": job.PackageID,
		"job_id":     job.JobID,
	})

	return p.Submit(ctx, job)
}

func blobKey(packageID string, v version.Version) string {
	return fmt.Sprintf("%s/%s.zip", packageID, v.Format())
}

// jobDataPayload is the job_data frame body sent to the job broker
// once the connection is authorized (spec §4.6 step 3).
type jobDataPayload struct {
	JobType string      `json:"jobType"`
	Info    jobDataInfo `json:"info"`
}

// jobDataInfo carries the (packageId, version) pair the broker needs
// to track this packaging job.
type jobDataInfo struct {
	PackageID string `json:"packageId"`
	Version   string `json:"version"`
}

// generatePrivateKey returns a fresh 32-char uppercase alphanumeric
// key for a private-but-stored VersionRecord (spec §3, §8 scenario 4).
func generatePrivateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", registryerrors.Internal.Wrap(err)
	}
	out := make([]byte, 32)
	for i, b := range buf {
		out[i] = privateKeyAlphabet[int(b)%len(privateKeyAlphabet)]
	}
	return string(out), nil
}

func asFailureError(err error, target **archive.FailureError) bool {
	fe, ok := err.(*archive.FailureError)
	if !ok {
		return false
	}
	*target = fe
	return true
}
