package stable

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Role identifies a single operator permission bit.
type Role uint8

const (
	RoleAdmin Role = iota
	RolePeriodManager
	RoleGlobalDisabler
	RoleVaultManager
	RoleVaultDisabler
	RoleBenefactorManager
	RoleBenefactorDisabler
	RolePegManager
	RoleCollateralManager
	numRoles
)

var roleNames = [numRoles]string{
	"Admin",
	"PeriodManager",
	"GlobalDisabler",
	"VaultManager",
	"VaultDisabler",
	"BenefactorManager",
	"BenefactorDisabler",
	"PegManager",
	"CollateralManager",
}

// knownRoleMask covers every named role bit.
const knownRoleMask RoleSet = 1<<numRoles - 1

// AllRoles is granted to the operator created at initialisation.
const AllRoles RoleSet = ^RoleSet(0)

// String returns the role name.
func (r Role) String() string {
	if r < numRoles {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// Valid reports whether r is one of the named roles.
func (r Role) Valid() bool { return r < numRoles }

// ParseRole resolves a role by name, case-insensitively.
func ParseRole(name string) (Role, error) {
	trimmed := strings.TrimSpace(name)
	for i, candidate := range roleNames {
		if strings.EqualFold(candidate, trimmed) {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RoleSet is a set of role flags. Bits outside the named roles are retained verbatim so
// that roles introduced later are never silently revoked.
type RoleSet uint64

// NewRoleSet builds a set from individual roles.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.With(r)
	}
	return s
}

// Has reports whether the role bit is set.
func (s RoleSet) Has(r Role) bool {
	if r >= 64 {
		return false
	}
	return s&(1<<r) != 0
}

// With returns the set with r added.
func (s RoleSet) With(r Role) RoleSet {
	if r >= 64 {
		return s
	}
	return s | 1<<r
}

// Without returns the set with r removed.
func (s RoleSet) Without(r Role) RoleSet {
	if r >= 64 {
		return s
	}
	return s &^ (1 << r)
}

// Roles lists the named roles in bit order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, bits.OnesCount64(uint64(s&knownRoleMask)))
	for r := Role(0); r < numRoles; r++ {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// UnknownMask returns the bits that do not correspond to a named role.
func (s RoleSet) UnknownMask() uint64 {
	return uint64(s &^ knownRoleMask)
}

// String renders the named roles joined by '|' followed by an unknown_mask component when
// unnamed bits are present.
func (s RoleSet) String() string {
	parts := make([]string, 0, numRoles+1)
	for _, r := range s.Roles() {
		parts = append(parts, r.String())
	}
	if unknown := s.UnknownMask(); unknown != 0 {
		parts = append(parts, "unknown_mask=0x"+strconv.FormatUint(unknown, 16))
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "|")
}

// ParseRoleSet accepts the String form, a bare integer mask, or "None".
func ParseRoleSet(raw string) (RoleSet, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "None") {
		return 0, nil
	}
	if mask, err := strconv.ParseUint(trimmed, 0, 64); err == nil {
		return RoleSet(mask), nil
	}
	var s RoleSet
	for _, part := range strings.Split(trimmed, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if hex, ok := strings.CutPrefix(part, "unknown_mask="); ok {
			mask, err := strconv.ParseUint(hex, 0, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: unknown mask %q", ErrInvalidInput, hex)
			}
			s |= RoleSet(mask)
			continue
		}
		r, err := ParseRole(part)
		if err != nil {
			return 0, err
		}
		s = s.With(r)
	}
	return s, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s RoleSet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *RoleSet) UnmarshalText(text []byte) error {
	parsed, err := ParseRoleSet(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
