package authz

import (
	"testing"
	"time"

	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)
	iss := NewIssuer(secret)

	session, err := NewTokenSession()
	require.NoError(t, err)
	authorSession, err := NewAuthorSession()
	require.NoError(t, err)

	claims := Claims{AuthorID: "author-1", Session: authorSession, TokenSession: session, Permissions: types.PermViewPackages}
	tok, err := iss.Issue(claims)
	require.NoError(t, err)

	got, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, claims.AuthorID, got.AuthorID)
	assert.Equal(t, claims.Session, got.Session)
	assert.Equal(t, claims.TokenSession, got.TokenSession)
	assert.Equal(t, claims.Permissions, got.Permissions)
	assert.NotZero(t, got.IssuedAt)
	assert.NotZero(t, got.ExpireAt)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	secret, _ := GenerateSecret()
	iss := NewIssuer(secret)

	session, _ := NewTokenSession()
	authorSession, _ := NewAuthorSession()
	tok, err := iss.Issue(Claims{AuthorID: "a", Session: authorSession, TokenSession: session})
	require.NoError(t, err)

	tampered := tok + "x"
	_, err = iss.Verify(tampered)
	assert.Error(t, err)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	secretA, _ := GenerateSecret()
	secretB, _ := GenerateSecret()

	session, _ := NewTokenSession()
	authorSession, _ := NewAuthorSession()
	tok, err := NewIssuer(secretA).Issue(Claims{AuthorID: "a", Session: authorSession, TokenSession: session})
	require.NoError(t, err)

	_, err = NewIssuer(secretB).Verify(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	secret, _ := GenerateSecret()
	iss := NewIssuer(secret)

	authorSession, _ := NewAuthorSession()
	claims := Claims{AuthorID: "a", Session: authorSession, ExpireAt: time.Now().Add(-time.Minute).Unix()}
	tok, err := iss.Issue(claims)
	require.NoError(t, err)

	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, registryerrors.ErrTokenExpired)
}

func TestResolveRejectsRevokedAuthorSession(t *testing.T) {
	author := &types.Author{ID: "a1", Session: "live-author-session", Tokens: []*types.TokenDescriptor{
		{TokenSession: "live-session", Permissions: types.PermViewPackages},
	}}

	_, err := Resolve(author, Claims{AuthorID: "a1", Session: "live-author-session", TokenSession: "live-session"})
	require.NoError(t, err)

	// A token signed before a password/email change carries the old
	// author session and must no longer verify (spec §3 invariant 5).
	_, err = Resolve(author, Claims{AuthorID: "a1", Session: "stale-author-session", TokenSession: "live-session"})
	assert.Error(t, err)
}

func TestResolveRejectsRevokedTokenSession(t *testing.T) {
	author := &types.Author{ID: "a1", Session: "live-author-session", Tokens: []*types.TokenDescriptor{
		{TokenSession: "live-session", Permissions: types.PermViewPackages},
	}}

	_, err := Resolve(author, Claims{AuthorID: "a1", Session: "live-author-session", TokenSession: "stale-session"})
	assert.Error(t, err)
}

func TestNewTokenDescriptorRejectsAdminBit(t *testing.T) {
	_, err := NewTokenDescriptor("name", "desc", types.PermAdmin, nil, nil, nil)
	assert.Error(t, err)
}

func TestNewTokenDescriptorRequiresAllowlistForSpecificBit(t *testing.T) {
	_, err := NewTokenDescriptor("name", "desc", types.PermUploadVersionSpecificPackages, nil, nil, nil)
	assert.Error(t, err)

	td, err := NewTokenDescriptor("name", "desc", types.PermUploadVersionSpecificPackages, nil, []string{"pkg-one"}, nil)
	require.NoError(t, err)
	assert.True(t, td.PermitsPackage(types.PermUploadVersionSpecificPackages, "pkg-one"))
	assert.False(t, td.PermitsPackage(types.PermUploadVersionSpecificPackages, "pkg-two"))
}
