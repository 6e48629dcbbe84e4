// Package access resolves a caller identity against mutable role
// assignments. Role holders are plain principals stored in each component's
// settings record; the checks here are pure predicates so they can run inside
// a store's atomic section without side effects.
package access

import "agritrust/pkg/domain"

// Holds reports whether caller currently holds the role assigned to holder.
// An unassigned role (zero principal) is held by nobody.
func Holds(holder, caller domain.Principal) bool {
	return !holder.IsNil() && holder == caller
}
