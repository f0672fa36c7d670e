package types

import "time"

// Author is a registered package author. Name uniqueness is
// case-insensitive though the name itself is case-preserving; email is
// stored lowercase and unique. Authors are never deleted (spec §3).
type Author struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Verified       bool
	Session        string // invalidated (rotated) on any credential change
	UsedStorage    int64
	TotalStorage   int64
	LastNameChange time.Time
	Tokens         []*TokenDescriptor
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TokenDescriptor is one capability-scoped bearer credential issued to
// an Author. The bitmask must never carry the Admin bit (enforced by
// pkg/authz.Issue, not here) and specific-package bits require a
// non-empty allowlist (spec §3).
type TokenDescriptor struct {
	TokenSession string
	Name         string
	Description  string
	Permissions  Permission

	DescriptionUpdatePackages []string
	VersionUploadPackages     []string
	UpdateVersionDataPackages []string

	CreatedAt time.Time
}
