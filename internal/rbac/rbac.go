package rbac

import "strings"

type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleOdontologist Role = "ODONT"
	RoleReception    Role = "RECEP"
)

type Permission string

const (
	AppointmentRead       Permission = "appointment:read"
	AppointmentCreate     Permission = "appointment:create"
	AppointmentReschedule Permission = "appointment:reschedule"
	AppointmentCancel     Permission = "appointment:cancel"
	AppointmentStatus     Permission = "appointment:status"
	PlanRead              Permission = "plan:read"
	AuditRead             Permission = "audit:read"
)

var permissions = map[Role]map[Permission]bool{
	RoleAdmin: set(
		AppointmentRead, AppointmentCreate, AppointmentReschedule, AppointmentCancel,
		AppointmentStatus, PlanRead, AuditRead,
	),
	RoleOdontologist: set(
		AppointmentRead, AppointmentCreate, AppointmentReschedule, AppointmentCancel,
		AppointmentStatus, PlanRead,
	),
	RoleReception: set(
		AppointmentRead, AppointmentCreate, AppointmentReschedule, AppointmentCancel, PlanRead,
	),
}

func set(perms ...Permission) map[Permission]bool {
	m := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		m[p] = true
	}
	return m
}

// long spellings accepted in tokens and configuration
var aliases = map[string]Role{
	"ADMINISTRATOR": RoleAdmin,
	"ODONTOLOGIST":  RoleOdontologist,
	"ODONTOLOGO":    RoleOdontologist,
	"DENTIST":       RoleOdontologist,
	"RECEPTION":     RoleReception,
	"RECEPTIONIST":  RoleReception,
	"RECEPCIONISTA": RoleReception,
}

// ParseRole accepts the short role codes and their long spellings, in any case.
func ParseRole(s string) (Role, bool) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if r, ok := aliases[name]; ok {
		return r, true
	}
	r := Role(name)
	_, ok := permissions[r]
	return r, ok
}

// Can reports whether the role holds the permission.
func Can(role Role, perm Permission) bool {
	return permissions[role][perm]
}

// Policy carries the configurable parts of access control.
type Policy struct {
	leadTimeOverride map[Role]bool
}

// NewPolicy builds a policy whose lead-time override is limited to the
// given roles. Unknown role names are ignored.
func NewPolicy(overrideRoles []string) Policy {
	p := Policy{leadTimeOverride: make(map[Role]bool)}
	for _, name := range overrideRoles {
		if r, ok := ParseRole(name); ok {
			p.leadTimeOverride[r] = true
		}
	}
	return p
}

// CanOverrideLeadTime reports whether the role may book inside the minimum
// lead time. Eligibility comes from configuration, not from the table.
func (p Policy) CanOverrideLeadTime(role Role) bool {
	return p.leadTimeOverride[role]
}
