package registryerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{Validation.New("bad field"), CodeValidation},
		{Unauthorized.New("no token"), CodeUnauthorized},
		{Forbidden.New("wrong scope"), CodeForbidden},
		{ErrNoSuchPackage, CodeNotFound},
		{ErrVersionExists, CodeConflict},
		{ErrQuotaExceeded, CodeQuotaExceeded},
		{InvalidArtifact.New("bad archive"), CodeInvalidArtifact},
		{Aborted.New("client aborted"), CodeAborted},
		{assertErr{}, CodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyError(tt.err))
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, CodeValidation.HTTPStatus())
	assert.Equal(t, 404, CodeNotFound.HTTPStatus())
	assert.Equal(t, 409, CodeConflict.HTTPStatus())
	assert.Equal(t, 500, CodeInternal.HTTPStatus())
}

type assertErr struct{}

func (assertErr) Error() string { return "plain error" }
