package authz

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"github.com/cuemby/pkgforge/pkg/types"
)

// DefaultTokenTTL is the absolute expiry window Issue applies when the
// caller does not request a specific one (spec §4.3: "an explicit
// absolute expiry").
const DefaultTokenTTL = 30 * 24 * time.Hour

// Claims is the signed payload of a bearer token (spec §6: id, name,
// session, optional tokenSession, permissions, optional per-scope
// package lists, iat, exp). Session is the author-level session
// Resolve checks against Author.Session — rotating it invalidates
// every previously issued token in one write, independent of
// TokenSession which names one specific TokenDescriptor.
type Claims struct {
	AuthorID     string           `json:"author_id"`
	Session      string           `json:"session"`
	TokenSession string           `json:"token_session"`
	Permissions  types.Permission `json:"permissions"`

	DescriptionUpdatePackages []string `json:"description_update_packages,omitempty"`
	VersionUploadPackages     []string `json:"version_upload_packages,omitempty"`
	UpdateVersionDataPackages []string `json:"update_version_data_packages,omitempty"`

	IssuedAt int64 `json:"iat"`
	ExpireAt int64 `json:"exp"`
}

// Expired reports whether now is at or past the claims' exp.
func (c Claims) Expired(now time.Time) bool {
	return now.Unix() >= c.ExpireAt
}

// Issuer signs and verifies bearer tokens with a single shared secret.
// Swapping the secret invalidates every outstanding token at once;
// that is a deliberate, coarse revocation path distinct from the
// per-author Session rotation Verify checks against.
type Issuer struct {
	secret []byte
}

// NewIssuer builds an Issuer from a secret key. The secret should be
// at least 32 bytes; callers generating one fresh can use
// GenerateSecret.
func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret}
}

// GenerateSecret returns a fresh random 32-byte signing secret.
func GenerateSecret() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}
	return buf, nil
}

// NewTokenSession returns a fresh random hex session identifier, used
// both as the TokenDescriptor's lookup key and embedded in every token
// minted for it.
func NewTokenSession() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token session: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewAuthorSession returns a fresh random hex author-level session
// identifier. Rotating Author.Session to a new value invalidates every
// token previously issued for that author in one write (spec §3).
func NewAuthorSession() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate author session: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Issue signs claims into a bearer token string of the form
// "<payload>.<signature>", both base64url-encoded. If claims.ExpireAt
// is unset, it defaults to now+DefaultTokenTTL (spec §4.3).
func (iss *Issuer) Issue(claims Claims) (string, error) {
	now := time.Now()
	claims.IssuedAt = now.Unix()
	if claims.ExpireAt == 0 {
		claims.ExpireAt = now.Add(DefaultTokenTTL).Unix()
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", registryerrors.Internal.Wrap(err)
	}

	sig := iss.sign(payload)
	return encode(payload) + "." + encode(sig), nil
}

// Verify checks the token's signature and returns its claims. It does
// not consult storage — callers must still confirm the TokenSession
// matches a live TokenDescriptor and that the owning Author's Session
// has not since been rotated.
func (iss *Issuer) Verify(token string) (Claims, error) {
	payloadB64, sigB64, ok := splitToken(token)
	if !ok {
		return Claims{}, registryerrors.Unauthorized.New("malformed token")
	}

	payload, err := decode(payloadB64)
	if err != nil {
		return Claims{}, registryerrors.Unauthorized.New("malformed token payload")
	}
	sig, err := decode(sigB64)
	if err != nil {
		return Claims{}, registryerrors.Unauthorized.New("malformed token signature")
	}

	expected := iss.sign(payload)
	if subtle.ConstantTimeCompare(sig, expected) != 1 {
		return Claims{}, registryerrors.Unauthorized.New("token signature mismatch")
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, registryerrors.Unauthorized.New("malformed token claims")
	}
	if claims.AuthorID == "" || claims.Session == "" {
		return Claims{}, registryerrors.Unauthorized.New("token missing claims")
	}
	if claims.Expired(time.Now()) {
		return Claims{}, registryerrors.ErrTokenExpired
	}

	return claims, nil
}

func (iss *Issuer) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, iss.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

func splitToken(token string) (payload, sig string, ok bool) {
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			return token[:i], token[i+1:], true
		}
	}
	return "", "", false
}

func encode(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }
func decode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
