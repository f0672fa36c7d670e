package authz

import (
	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"github.com/cuemby/pkgforge/pkg/types"
)

// Authorized is the result of resolving a verified token's Claims
// against the issuing Author's live record: the Author plus the
// specific TokenDescriptor the caller authenticated as.
type Authorized struct {
	Author *types.Author
	Token  *types.TokenDescriptor
}

// Resolve finds the TokenDescriptor named by claims on author and
// confirms the author's Session still matches. Session is rotated on
// every credential change (spec §3 invariant 5), so a stale token
// fails here even though its signature still verifies: "after any
// password or email change on author A, no previously issued token
// for A verifies" (spec §8).
func Resolve(author *types.Author, claims Claims) (*Authorized, error) {
	if author == nil {
		return nil, registryerrors.ErrNoSuchAccount
	}

	if author.Session == "" || claims.Session != author.Session {
		return nil, registryerrors.Unauthorized.New("author session revoked")
	}

	for _, td := range author.Tokens {
		if td.TokenSession == claims.TokenSession {
			return &Authorized{Author: author, Token: td}, nil
		}
	}

	return nil, registryerrors.Unauthorized.New("token session revoked")
}

// RequirePermission returns registryerrors.Forbidden unless a.Token
// carries bit for packageID. packageID is ignored for bits that have
// no any/specific split (e.g. PermAdmin, PermReadAuthorData).
func (a *Authorized) RequirePermission(bit types.Permission, packageID string) error {
	if a.Token.PermitsPackage(bit, packageID) {
		return nil
	}
	return registryerrors.Forbidden.New("token lacks required permission")
}

// NewTokenDescriptor builds a TokenDescriptor for issuance, rejecting
// the Admin bit unconditionally — the registry never issues
// admin-capable tokens through this path, closing the admin-bit
// issuance gap noted in spec §6 (Open Questions).
func NewTokenDescriptor(name, description string, perms types.Permission, descPkgs, uploadPkgs, updatePkgs []string) (*types.TokenDescriptor, error) {
	if perms.Has(types.PermAdmin) {
		return nil, registryerrors.Validation.New("admin permission cannot be issued")
	}

	session, err := NewTokenSession()
	if err != nil {
		return nil, registryerrors.Internal.Wrap(err)
	}

	td := &types.TokenDescriptor{
		TokenSession:              session,
		Name:                      name,
		Description:               description,
		Permissions:               perms,
		DescriptionUpdatePackages: descPkgs,
		VersionUploadPackages:     uploadPkgs,
		UpdateVersionDataPackages: updatePkgs,
	}

	if err := types.ValidateTokenPermissions(td); err != nil {
		return nil, registryerrors.Validation.Wrap(err)
	}

	return td, nil
}
