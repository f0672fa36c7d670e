package archive

import (
	"fmt"

	"github.com/cuemby/pkgforge/pkg/types"
)

// FailureError tags a validation failure with the VersionStatus
// IngestionPipeline should record, so the caller never has to
// reverse-engineer a status from an error string.
type FailureError struct {
	Status  types.VersionStatus
	Message string
}

func (e *FailureError) Error() string { return e.Message }

func fail(status types.VersionStatus, format string, args ...interface{}) error {
	return &FailureError{Status: status, Message: fmt.Sprintf(format, args...)}
}
