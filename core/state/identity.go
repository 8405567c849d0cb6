package state

import (
	"fmt"

	"gigchain/native/identity"
)

var identityProfilePrefix = []byte("identity/profile/")

func identityProfileKey(addr [20]byte) []byte {
	buf := make([]byte, len(identityProfilePrefix)+len(addr))
	copy(buf, identityProfilePrefix)
	copy(buf[len(identityProfilePrefix):], addr[:])
	return buf
}

type storedProfile struct {
	Address      [20]byte
	Name         string
	Roles        uint8
	ProfileRef   string
	Active       bool
	RegisteredAt uint64
	UpdatedAt    uint64
}

// IdentityPut persists the principal profile.
func (m *Manager) IdentityPut(p *identity.Profile) error {
	if p == nil {
		return fmt.Errorf("identity: nil profile")
	}
	record := storedProfile{
		Address:      p.Address,
		Name:         p.Name,
		Roles:        uint8(p.Roles),
		ProfileRef:   p.ProfileRef,
		Active:       p.Active,
		RegisteredAt: p.RegisteredAt,
		UpdatedAt:    p.UpdatedAt,
	}
	return m.KVPut(identityProfileKey(p.Address), record)
}

// IdentityGet loads the profile registered for addr.
func (m *Manager) IdentityGet(addr [20]byte) (*identity.Profile, bool, error) {
	var record storedProfile
	ok, err := m.KVGet(identityProfileKey(addr), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &identity.Profile{
		Address:      record.Address,
		Name:         record.Name,
		Roles:        identity.Role(record.Roles),
		ProfileRef:   record.ProfileRef,
		Active:       record.Active,
		RegisteredAt: record.RegisteredAt,
		UpdatedAt:    record.UpdatedAt,
	}, true, nil
}
