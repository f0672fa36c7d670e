/*
Package ingestion implements IngestionPipeline, the state machine an
uploaded package version moves through from admission to either a
stored, Processed VersionRecord or a terminal failure (spec §4.5):

	Reserving -> WaitingJobAuth -> Validating -> Uploading -> Finalizing -> Done

Any state can instead resolve to Aborted or one of the Failed* outcomes,
at which point any storage already reserved for the job is freed. A
bounded worker pool (golang.org/x/sync/semaphore, sized by
JOB_CONCURRENCY) gates how many pipelines run at once, the same role
the teacher's Scheduler plays for container placement — except here the
unit of work runs the state machine to completion inline rather than
being dispatched to a remote worker.
*/
package ingestion
