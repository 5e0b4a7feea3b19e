package pipeline

import "fmt"

// Role is the closed set of actor roles. Adding a role without extending
// Scope panics at the first authorization check.
type Role int

const (
	RoleApplicant Role = iota
	RoleReviewer
	RoleSystemLead
	RoleTeamCaptain
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleApplicant:   "applicant",
	RoleReviewer:    "reviewer",
	RoleSystemLead:  "system_lead",
	RoleTeamCaptain: "team_captain",
	RoleAdmin:       "admin",
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole converts a header value such as "system_lead" to a Role.
func ParseRole(s string) (Role, error) {
	for r, n := range roleNames {
		if n == s {
			return r, nil
		}
	}
	return 0, invalid("unknown role %q", s)
}

// AllRoles lists every role in ascending privilege.
func AllRoles() []Role {
	return []Role{RoleApplicant, RoleReviewer, RoleSystemLead, RoleTeamCaptain, RoleAdmin}
}

// Scope is the reach of a role over systems.
type Scope int

const (
	ScopeNone   Scope = iota // applicants act only on their own application
	ScopeSystem              // one system of one team
	ScopeTeam                // every system of one team
	ScopeGlobal              // every team
)

// Scope is exhaustive over Role.
func (r Role) Scope() Scope {
	switch r {
	case RoleApplicant:
		return ScopeNone
	case RoleReviewer, RoleSystemLead:
		return ScopeSystem
	case RoleTeamCaptain:
		return ScopeTeam
	case RoleAdmin:
		return ScopeGlobal
	default:
		panic(fmt.Sprintf("pipeline: role %d has no authorization scope", int(r)))
	}
}

// IsStaff reports whether the role belongs to recruiting staff.
func (r Role) IsStaff() bool { return r.Scope() != ScopeNone }

// IsPrivileged reports whether the role may act across the systems of a team.
func (r Role) IsPrivileged() bool {
	s := r.Scope()
	return s == ScopeTeam || s == ScopeGlobal
}

// Actor is the caller of an operation, built from the identity headers the
// gateway forwards.
type Actor struct {
	UserID string
	Role   Role
	Team   string
	System string
}

// FilterAllowedSystems narrows requested to what actor may act upon on an
// application of team. A system-scoped actor has the request overridden by
// their own system: others are dropped silently, and an empty overlap is a
// permission error.
func FilterAllowedSystems(actor Actor, team string, requested []string) ([]string, error) {
	switch actor.Role.Scope() {
	case ScopeGlobal:
		return requested, nil
	case ScopeTeam:
		if actor.Team != team {
			return nil, denied("%s of %s cannot act on team %s", actor.Role, actor.Team, team)
		}
		return requested, nil
	case ScopeSystem:
		if actor.System == "" || actor.Team == "" {
			return nil, Misconfiguredf("staff profile for %s has no team or system assigned", actor.UserID)
		}
		if actor.Team != team {
			return nil, denied("%s of %s cannot act on team %s", actor.Role, actor.Team, team)
		}
		for _, s := range requested {
			if s == actor.System {
				return []string{actor.System}, nil
			}
		}
		return nil, denied("%s may only act for system %s", actor.Role, actor.System)
	case ScopeNone:
		return nil, denied("%s cannot act on systems", actor.Role)
	}
	return nil, denied("unhandled scope")
}

// CanViewTeam reports whether a staff actor may read applications of team.
func CanViewTeam(actor Actor, team string) bool {
	switch actor.Role.Scope() {
	case ScopeGlobal:
		return true
	case ScopeTeam, ScopeSystem:
		return actor.Team == team
	}
	return false
}

// requirePrivileged guards team-wide decisions such as acceptance.
func requirePrivileged(actor Actor, team string) error {
	switch actor.Role.Scope() {
	case ScopeGlobal:
		return nil
	case ScopeTeam:
		if actor.Team == team {
			return nil
		}
	}
	return denied("%s cannot decide applications for team %s", actor.Role, team)
}
