package registryerrors

import (
	"errors"

	"github.com/zeebo/errs"
)

// Error classes. Every error that crosses a package boundary in this
// module is wrapped with exactly one of these via .Wrap.
var (
	Validation      = errs.Class("validation")
	Unauthorized    = errs.Class("unauthorized")
	Forbidden       = errs.Class("forbidden")
	NotFound        = errs.Class("not found")
	Conflict        = errs.Class("conflict")
	QuotaExceeded   = errs.Class("quota exceeded")
	InvalidArtifact = errs.Class("invalid artifact")
	Aborted         = errs.Class("aborted")
	Internal        = errs.Class("internal")
)

// Sentinel instances for the specific conditions pkg/ingestionapi and
// pkg/admission need to distinguish by identity, not just by class.
var (
	ErrNoSuchAccount      = NotFound.New("no such account")
	ErrNoSuchPackage      = NotFound.New("no such package")
	ErrNoSuchVersion      = NotFound.New("no such version")
	ErrDuplicateAccount   = Conflict.New("account already exists")
	ErrDuplicatePackage   = Conflict.New("package already exists")
	ErrVersionExists      = Conflict.New("version already exists for this package")
	ErrInvalidTransition  = Conflict.New("invalid state transition")
	ErrNotProcessing      = Conflict.New("version is not in the processing state")
	ErrNameChangeTooSoon  = Conflict.New("name was changed too recently")
	ErrQuotaExceeded      = QuotaExceeded.New("author storage quota exceeded")
	ErrRateLimited        = Unauthorized.New("rate limit exceeded")
	ErrTokenExpired       = Unauthorized.New("token has expired")
)

// Code is the closed enumeration of machine-readable codes the
// ingestion API maps every error onto (spec §7). New error classes
// must extend this mapping, not bypass it.
type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeQuotaExceeded   Code = "QUOTA_EXCEEDED"
	CodeInvalidArtifact Code = "INVALID_ARTIFACT"
	CodeAborted         Code = "ABORTED"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus returns the status code the ingestion API's HTTP surface
// uses for c.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation, CodeInvalidArtifact:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeForbidden:
		return 403
	case CodeNotFound:
		return 404
	case CodeConflict, CodeQuotaExceeded:
		return 409
	case CodeAborted:
		return 499
	default:
		return 500
	}
}

// ClassifyError walks err's class chain and returns the matching Code,
// defaulting to CodeInternal for anything not wrapped in one of the
// classes above.
func ClassifyError(err error) Code {
	switch {
	case Validation.Has(err):
		return CodeValidation
	case Unauthorized.Has(err):
		return CodeUnauthorized
	case Forbidden.Has(err):
		return CodeForbidden
	case NotFound.Has(err):
		return CodeNotFound
	case Conflict.Has(err):
		return CodeConflict
	case QuotaExceeded.Has(err):
		return CodeQuotaExceeded
	case InvalidArtifact.Has(err):
		return CodeInvalidArtifact
	case Aborted.Has(err):
		return CodeAborted
	default:
		return CodeInternal
	}
}

// Is is a thin re-export of errors.Is so callers comparing against the
// sentinels above don't need a second import.
func Is(err, target error) bool { return errors.Is(err, target) }
