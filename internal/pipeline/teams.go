package pipeline

import "fmt"

// TrackPolicy decides how a team's interview offers interact.
type TrackPolicy string

const (
	// TrackSingle teams accept several PENDING offers but the applicant must
	// pick exactly one before any slot is booked.
	TrackSingle TrackPolicy = "single"
	// TrackIndependent teams schedule every offer on its own.
	TrackIndependent TrackPolicy = "independent"
)

// ParseTrackPolicy validates a policy name. Empty means "derive".
func ParseTrackPolicy(s string) (TrackPolicy, error) {
	switch p := TrackPolicy(s); p {
	case "", TrackSingle, TrackIndependent:
		return p, nil
	}
	return "", fmt.Errorf("unknown track policy %q", s)
}

// Team is one entry of the team catalog.
type Team struct {
	Name    string      `json:"name" yaml:"name"`
	Systems []string    `json:"systems" yaml:"systems"`
	Policy  TrackPolicy `json:"policy" yaml:"policy"`
}

// TrackPolicy returns the explicit policy, or single-track for two-system
// teams and independent tracks otherwise.
func (t Team) TrackPolicy() TrackPolicy {
	if t.Policy != "" {
		return t.Policy
	}
	if len(t.Systems) == 2 {
		return TrackSingle
	}
	return TrackIndependent
}

// HasSystem reports whether system belongs to the team.
func (t Team) HasSystem(system string) bool {
	for _, s := range t.Systems {
		if s == system {
			return true
		}
	}
	return false
}

// Catalog maps team name to its definition.
type Catalog map[string]Team

// DefaultCatalog is used when no team catalog is configured.
func DefaultCatalog() Catalog {
	return Catalog{
		"Electric": {
			Name:    "Electric",
			Systems: []string{"Battery", "Electronics", "Powertrain"},
		},
		"Solar": {
			Name:    "Solar",
			Systems: []string{"Array", "Strategy"},
		},
		"Combustion": {
			Name:    "Combustion",
			Systems: []string{"Chassis", "Engine"},
		},
	}
}

// Team looks up a team by name.
func (c Catalog) Team(name string) (Team, error) {
	t, ok := c[name]
	if !ok {
		return Team{}, invalid("unknown team %q", name)
	}
	if t.Name == "" {
		t.Name = name
	}
	return t, nil
}

// validateSystems rejects any name outside the team, and empty input.
func (t Team) validateSystems(systems []string) error {
	if len(systems) == 0 {
		return invalid("at least one system is required")
	}
	for _, s := range systems {
		if !t.HasSystem(s) {
			return invalid("system %q is not part of team %s", s, t.Name)
		}
	}
	return nil
}

// cleanSystems drops empty and unknown names and duplicates, keeping order.
// Used by the additive mutations that must be no-ops on malformed input.
func (t Team) cleanSystems(systems []string) []string {
	seen := make(map[string]bool, len(systems))
	out := make([]string, 0, len(systems))
	for _, s := range systems {
		if s == "" || seen[s] || !t.HasSystem(s) {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
