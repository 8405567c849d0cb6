package identity

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Role is a bitmask describing how a principal participates in the
// marketplace.
type Role uint8

const (
	RoleClient Role = 1 << iota
	RoleFreelancer

	roleMask = RoleClient | RoleFreelancer
)

// Valid reports whether the role set is non-empty and only carries known bits.
func (r Role) Valid() bool {
	return r != 0 && r&^roleMask == 0
}

// Has reports whether every bit of want is present.
func (r Role) Has(want Role) bool {
	return want != 0 && r&want == want
}

func (r Role) String() string {
	parts := make([]string, 0, 2)
	if r&RoleClient != 0 {
		parts = append(parts, "client")
	}
	if r&RoleFreelancer != 0 {
		parts = append(parts, "freelancer")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// ParseRoles converts textual role names into a Role bitmask.
func ParseRoles(names []string) (Role, error) {
	var out Role
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "client":
			out |= RoleClient
		case "freelancer":
			out |= RoleFreelancer
		default:
			return 0, fmt.Errorf("unknown role %q", name)
		}
	}
	if !out.Valid() {
		return 0, fmt.Errorf("at least one role required")
	}
	return out, nil
}

// Profile is the directory entry for a registered principal.
type Profile struct {
	Address      [20]byte
	Name         string
	Roles        Role
	ProfileRef   string
	Active       bool
	RegisteredAt uint64
	UpdatedAt    uint64
}

// Clone returns a copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

const (
	nameMaxLength = 64
	refMaxLength  = 256
)

// NormalizeName folds the display name to NFKC, trims it and validates its
// length and character set.
func NormalizeName(name string) (string, error) {
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("name is not valid UTF-8")
	}
	trimmed := strings.TrimSpace(norm.NFKC.String(name))
	if trimmed == "" {
		return "", fmt.Errorf("name required")
	}
	if len(trimmed) > nameMaxLength {
		return "", fmt.Errorf("name exceeds %d bytes", nameMaxLength)
	}
	for _, r := range trimmed {
		if !unicode.IsPrint(r) {
			return "", fmt.Errorf("name contains non-printable characters")
		}
	}
	return trimmed, nil
}

// NormalizeRef trims an opaque content reference (e.g. an IPFS CID). Empty
// references are allowed.
func NormalizeRef(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if len(trimmed) > refMaxLength {
		return "", fmt.Errorf("reference exceeds %d bytes", refMaxLength)
	}
	return trimmed, nil
}
