package admission

import (
	"testing"

	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerRouteIdentity(t *testing.T) {
	l := NewRateLimiter(0, 2)

	assert.True(t, l.Allow("upload", "author-1"))
	assert.True(t, l.Allow("upload", "author-1"))
	assert.False(t, l.Allow("upload", "author-1"))

	// A different identity gets its own bucket.
	assert.True(t, l.Allow("upload", "author-2"))
}

func TestValidatePackageID(t *testing.T) {
	assert.NoError(t, ValidatePackageID("cool-jet-x1"))
	assert.Error(t, ValidatePackageID("X"))
	assert.Error(t, ValidatePackageID("short"))
}

func TestCheckOwnership(t *testing.T) {
	pkg := &types.Package{AuthorID: "a1"}
	assert.NoError(t, CheckOwnership(pkg, "a1"))
	assert.Error(t, CheckOwnership(pkg, "a2"))
}
