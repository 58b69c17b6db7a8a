package stable

import (
	"fmt"
	"strings"

	"pegvault/crypto"
)

// OperatorStatus gates every management action an operator may take.
type OperatorStatus uint8

const (
	OperatorDisabled OperatorStatus = iota
	OperatorEnabled
)

func (s OperatorStatus) String() string {
	switch s {
	case OperatorDisabled:
		return "Disabled"
	case OperatorEnabled:
		return "Enabled"
	default:
		return fmt.Sprintf("OperatorStatus(%d)", uint8(s))
	}
}

// ParseOperatorStatus resolves a status by name.
func ParseOperatorStatus(raw string) (OperatorStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "disabled":
		return OperatorDisabled, nil
	case "enabled":
		return OperatorEnabled, nil
	default:
		return 0, fmt.Errorf("%w: operator status %q", ErrUnknownStatus, raw)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s OperatorStatus) MarshalText() ([]byte, error) {
	if s > OperatorEnabled {
		return nil, fmt.Errorf("%w: operator status %d", ErrUnknownStatus, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OperatorStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOperatorStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Operator is a management identity holding a role set.
type Operator struct {
	Authority crypto.Address `json:"authority"`
	Role      RoleSet        `json:"role"`
	Status    OperatorStatus `json:"status"`
}

// NewOperator creates an enabled operator.
func NewOperator(authority crypto.Address, roles RoleSet) (Operator, error) {
	if authority.IsZero() {
		return Operator{}, fmt.Errorf("%w: operator authority required", ErrInvalidInput)
	}
	return Operator{Authority: authority, Role: roles, Status: OperatorEnabled}, nil
}

// Authorize succeeds when the operator is enabled and holds role.
func (o Operator) Authorize(role Role) error {
	if o.Status != OperatorEnabled {
		return fmt.Errorf("%w: %s", ErrOperatorDisabled, o.Authority)
	}
	if !o.Role.Has(role) {
		return fmt.Errorf("%w: %s needs %s", ErrMissingRole, o.Authority, role)
	}
	return nil
}

// SetStatus switches status.
func (o *Operator) SetStatus(status OperatorStatus) error {
	if status > OperatorEnabled {
		return fmt.Errorf("%w: operator status %d", ErrUnknownStatus, uint8(status))
	}
	o.Status = status
	return nil
}

// SetRole replaces the role set wholesale, unknown bits included.
func (o *Operator) SetRole(roles RoleSet) { o.Role = roles }

// GrantRole adds a single named role.
func (o *Operator) GrantRole(role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownRole, uint8(role))
	}
	o.Role = o.Role.With(role)
	return nil
}

// RevokeRole clears a single named role.
func (o *Operator) RevokeRole(role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownRole, uint8(role))
	}
	o.Role = o.Role.Without(role)
	return nil
}
