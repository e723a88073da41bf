package domain

import (
	"fmt"
	"time"
)

// Actions a permission grant may name. Unknown actions are rejected when a
// role is created or updated, so stored grants are always drawn from this set.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

var knownActions = map[string]struct{}{
	ActionCreate: {},
	ActionRead:   {},
	ActionUpdate: {},
	ActionDelete: {},
}

// Permissions maps a module name (e.g. "users") to the actions granted on it.
// The zero value grants nothing.
type Permissions map[string][]string

// Can reports whether the action is granted on the module. Absent modules and
// absent actions deny.
func (p Permissions) Can(module, action string) bool {
	for _, a := range p[module] {
		if a == action {
			return true
		}
	}
	return false
}

// Validate checks that every module name is non-empty and every action is one
// of the known actions. Duplicate actions within a module are rejected.
func (p Permissions) Validate() error {
	for module, actions := range p {
		if module == "" {
			return fmt.Errorf("permissions: empty module name")
		}
		seen := make(map[string]struct{}, len(actions))
		for _, a := range actions {
			if _, ok := knownActions[a]; !ok {
				return fmt.Errorf("permissions: unknown action %q for module %q", a, module)
			}
			if _, dup := seen[a]; dup {
				return fmt.Errorf("permissions: duplicate action %q for module %q", a, module)
			}
			seen[a] = struct{}{}
		}
	}
	return nil
}

// Role groups identities under a named set of permission grants.
type Role struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Permissions Permissions `json:"permissions"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
