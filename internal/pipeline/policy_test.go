package pipeline_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
)

func TestRole_EveryRoleHasScope(t *testing.T) {
	for _, r := range pipeline.AllRoles() {
		func() {
			defer func() {
				if p := recover(); p != nil {
					t.Errorf("role %s has no scope: %v", r, p)
				}
			}()
			r.Scope()
		}()
		parsed, err := pipeline.ParseRole(r.String())
		if err != nil || parsed != r {
			t.Errorf("ParseRole(%q) = %v, %v", r.String(), parsed, err)
		}
	}
}

func TestRole_UnknownRolePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Scope() of an unknown role should panic")
		}
	}()
	pipeline.Role(99).Scope()
}

func TestFilterAllowedSystems(t *testing.T) {
	lead := pipeline.Actor{UserID: "u1", Role: pipeline.RoleSystemLead, Team: "Electric", System: "Battery"}
	reviewer := pipeline.Actor{UserID: "u2", Role: pipeline.RoleReviewer, Team: "Electric", System: "Battery"}
	captain := pipeline.Actor{UserID: "u3", Role: pipeline.RoleTeamCaptain, Team: "Electric"}
	admin := pipeline.Actor{UserID: "u4", Role: pipeline.RoleAdmin}
	applicant := pipeline.Actor{UserID: "u5", Role: pipeline.RoleApplicant}
	incomplete := pipeline.Actor{UserID: "u6", Role: pipeline.RoleSystemLead, Team: "Electric"}

	cases := []struct {
		name      string
		actor     pipeline.Actor
		team      string
		requested []string
		want      []string
		wantErr   error
	}{
		{"lead own plus other is narrowed", lead, "Electric", []string{"Battery", "Powertrain"}, []string{"Battery"}, nil},
		{"reviewer own only", reviewer, "Electric", []string{"Battery"}, []string{"Battery"}, nil},
		{"lead other only is denied", lead, "Electric", []string{"Powertrain"}, nil, pipeline.ErrPermissionDenied},
		{"lead on another team is denied", lead, "Solar", []string{"Battery"}, nil, pipeline.ErrPermissionDenied},
		{"captain passes through", captain, "Electric", []string{"Battery", "Powertrain"}, []string{"Battery", "Powertrain"}, nil},
		{"captain of another team is denied", captain, "Solar", []string{"Array"}, nil, pipeline.ErrPermissionDenied},
		{"admin passes through", admin, "Solar", []string{"Array", "Strategy"}, []string{"Array", "Strategy"}, nil},
		{"applicant is denied", applicant, "Electric", []string{"Battery"}, nil, pipeline.ErrPermissionDenied},
		{"profile without system is misconfigured", incomplete, "Electric", []string{"Battery"}, nil, pipeline.ErrMisconfigured},
	}
	for _, c := range cases {
		got, err := pipeline.FilterAllowedSystems(c.actor, c.team, c.requested)
		if c.wantErr != nil {
			if !errors.Is(err, c.wantErr) {
				t.Errorf("%s: err = %v, want %v", c.name, err, c.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
			continue
		}
		if !slices.Equal(got, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCanViewTeam(t *testing.T) {
	lead := pipeline.Actor{Role: pipeline.RoleSystemLead, Team: "Electric", System: "Battery"}
	if !pipeline.CanViewTeam(lead, "Electric") || pipeline.CanViewTeam(lead, "Solar") {
		t.Error("system lead should see exactly their own team")
	}
	if !pipeline.CanViewTeam(pipeline.Actor{Role: pipeline.RoleAdmin}, "Solar") {
		t.Error("admin should see every team")
	}
	if pipeline.CanViewTeam(pipeline.Actor{Role: pipeline.RoleApplicant}, "Electric") {
		t.Error("applicants do not list teams")
	}
}
