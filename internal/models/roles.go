package models

import (
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
)

var allRoles = []Role{RoleBuyer, RoleSeller}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBuyer, RoleSeller:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) bit() RoleSet {
	switch r {
	case RoleBuyer:
		return 1 << 0
	case RoleSeller:
		return 1 << 1
	}
	return 0
}

// RoleSet is the capability set of a user. It encodes as a JSON array of
// role names; order carries no meaning.
type RoleSet uint8

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= r.bit()
	}
	return s
}

func AllRoles() RoleSet {
	return NewRoleSet(allRoles...)
}

func (s RoleSet) Has(r Role) bool {
	b := r.bit()
	return b != 0 && s&b == b
}

func (s RoleSet) With(r Role) RoleSet {
	return s | r.bit()
}

func (s RoleSet) Without(r Role) RoleSet {
	return s &^ r.bit()
}

func (s RoleSet) Empty() bool {
	return s == 0
}

func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(allRoles))
	for _, r := range allRoles {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Roles())
}

func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("decode roles: %w", err)
	}

	var out RoleSet
	for _, name := range names {
		r, err := ParseRole(name)
		if err != nil {
			return err
		}
		out = out.With(r)
	}
	*s = out
	return nil
}
