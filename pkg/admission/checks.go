package admission

import (
	"net/mail"

	"github.com/cuemby/pkgforge/pkg/authz"
	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"github.com/cuemby/pkgforge/pkg/types"
)

// Guard is the admission boundary pkg/ingestionapi's handlers call
// into before touching storage.
type Guard struct {
	limiter *RateLimiter
}

// NewGuard builds a Guard with the given per-route rate limit.
func NewGuard(rps float64, burst int) *Guard {
	return &Guard{limiter: NewRateLimiter(rps, burst)}
}

// CheckRateLimit returns registryerrors.ErrRateLimited if route+identity
// has exhausted its bucket.
func (g *Guard) CheckRateLimit(route, identity string) error {
	if !g.limiter.Allow(route, identity) {
		return registryerrors.ErrRateLimited
	}
	return nil
}

// CheckPermission wraps authz.Authorized.RequirePermission so callers
// get a consistent Forbidden error across every handler.
func (g *Guard) CheckPermission(auth *authz.Authorized, bit types.Permission, packageID string) error {
	return auth.RequirePermission(bit, packageID)
}

// CheckOwnership returns registryerrors.Forbidden unless pkg belongs to
// authorID — used anywhere a route is scoped to "my own packages"
// regardless of the any/specific permission split.
func CheckOwnership(pkg *types.Package, authorID string) error {
	if pkg.AuthorID != authorID {
		return registryerrors.Forbidden.New("package does not belong to this author")
	}
	return nil
}

// ValidatePackageID checks the package id grammar (spec §3).
func ValidatePackageID(id string) error {
	if !types.ValidPackageID(id) {
		return registryerrors.Validation.New("invalid package id: %s", id)
	}
	return nil
}

// ValidatePackageType checks that t is one of the recognized enum
// values.
func ValidatePackageType(t types.PackageType) error {
	if !types.ValidPackageType(t) {
		return registryerrors.Validation.New("invalid package type: %s", t)
	}
	return nil
}

// ValidateDescription enforces a simple non-empty, bounded-length rule
// shared by package and token descriptions.
func ValidateDescription(desc string) error {
	if len(desc) == 0 {
		return registryerrors.Validation.New("description must not be empty")
	}
	if len(desc) > 4096 {
		return registryerrors.Validation.New("description exceeds maximum length")
	}
	return nil
}

// ValidateEmail checks that email is a single well-formed RFC 5322
// address, rejecting anything with display-name or multi-address
// syntax (an author's email is a login credential, not a mail header).
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return registryerrors.Validation.New("invalid email address: %s", email)
	}
	return nil
}
