// Package policy decides what an authenticated principal may do based on
// its role and its relationship to a resource.
package policy

import (
	"errors"

	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/pkg/metrics"
)

// ErrForbidden is returned for every denied decision.
var ErrForbidden = errors.New("policy: forbidden")

// Access is the kind of operation requested on a resource.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
)

func (a Access) String() string {
	if a == AccessWrite {
		return "write"
	}
	return "read"
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   models.Role
}

// SharedResource is anything owned by one user and optionally shared with others.
type SharedResource interface {
	OwnerID() string
	IsSharedWith(userID string) bool
}

// Capability describes what a role may do with resources.
type Capability struct {
	// OwnsResources allows creating resources and full access to one's own.
	OwnsResources bool
	// ReadsShared allows reading resources explicitly shared with the caller.
	ReadsShared bool
	// BypassesOwnership grants full access to every resource.
	BypassesOwnership bool
}

var capabilities = map[models.Role]Capability{
	models.RoleExporter: {OwnsResources: true},
	models.RoleLocal:    {ReadsShared: true},
	models.RoleAdmin:    {OwnsResources: true, BypassesOwnership: true},
}

// Capabilities returns the capability set of role. Unknown roles get none.
func Capabilities(role models.Role) Capability {
	return capabilities[role]
}

// RequireRole allows the principal when its role is one of allowed.
func RequireRole(principal Principal, allowed ...models.Role) error {
	for _, role := range allowed {
		if principal.Role == role && role.Valid() {
			record("role", true)
			return nil
		}
	}
	record("role", false)
	return ErrForbidden
}

// RequireOwnResource checks access to a single resource. Admins bypass the
// check, exporters need ownership, local users may only read resources that
// were shared with them.
func RequireOwnResource(principal Principal, resource SharedResource, access Access) error {
	allowed := Allows(principal, resource, access)
	record("resource_"+access.String(), allowed)
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// Allows reports the decision of RequireOwnResource without recording it.
func Allows(principal Principal, resource SharedResource, access Access) bool {
	if resource == nil || principal.UserID == "" {
		return false
	}

	capability := Capabilities(principal.Role)
	switch {
	case capability.BypassesOwnership:
		return true
	case capability.OwnsResources && resource.OwnerID() == principal.UserID:
		return true
	case capability.ReadsShared && access == AccessRead && resource.IsSharedWith(principal.UserID):
		return true
	default:
		return false
	}
}

func record(check string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	metrics.PolicyChecks.WithLabelValues(check, result).Inc()
}
