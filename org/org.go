/*
Package org defines the narrow interfaces the core consumes from the
surrounding organization system: who is an active employee, and which
organizational scope an approver's roles cover.

Organizational CRUD (divisions, teams, projects) is deliberately outside
this module. The Static implementation exists for wiring, seeding, and
tests; production deployments plug in their own directory and resolver.
*/
package org

import (
	"context"
	"sync"
)

// =============================================================================
// SCOPES AND ROLES
// =============================================================================

// ScopeType is the organizational boundary a role covers.
type ScopeType string

const (
	ScopeGlobal   ScopeType = "GLOBAL" // admin-equivalent, may act on anyone
	ScopeDivision ScopeType = "DIVISION"
	ScopeTeam     ScopeType = "TEAM"
	ScopeProject  ScopeType = "PROJECT"
)

// Role is one role assignment with its scope.
type Role struct {
	Name    string
	Scope   ScopeType
	ScopeID string // empty for GLOBAL
}

// Membership is an employee's current organizational placement.
type Membership struct {
	DivisionID string
	TeamID     string
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Directory answers employee existence and activity.
type Directory interface {
	IsActiveEmployee(ctx context.Context, employeeID string) (bool, error)

	// ActiveEmployees returns the roster of active employee IDs.
	// Consumed by the accrual scheduler to fan out ledger grants.
	ActiveEmployees(ctx context.Context) ([]string, error)
}

// Resolver answers role and scope lookups for authorization.
type Resolver interface {
	// Roles returns the user's role assignments with their scopes.
	Roles(ctx context.Context, userID string) ([]Role, error)

	// Membership returns the user's current division/team placement.
	Membership(ctx context.Context, userID string) (Membership, error)

	// ManagedTeams returns the teams assigned to projects the user
	// manages. Used for PROJECT-scoped approval.
	ManagedTeams(ctx context.Context, userID string) ([]string, error)
}

// =============================================================================
// STATIC - In-memory implementation
// =============================================================================

// Employee is the minimal directory record Static keeps.
type Employee struct {
	ID         string
	Name       string
	Active     bool
	DivisionID string
	TeamID     string
}

// Static implements Directory and Resolver from in-memory tables.
type Static struct {
	mu        sync.RWMutex
	employees map[string]Employee
	order     []string
	roles     map[string][]Role
	managed   map[string][]string
}

func NewStatic() *Static {
	return &Static{
		employees: make(map[string]Employee),
		roles:     make(map[string][]Role),
		managed:   make(map[string][]string),
	}
}

// AddEmployee registers or replaces an employee record.
func (s *Static) AddEmployee(e Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.employees[e.ID] = e
}

// Assign grants a role to a user.
func (s *Static) Assign(userID string, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = append(s.roles[userID], role)
}

// SetManagedTeams records which teams fall under the user's projects.
func (s *Static) SetManagedTeams(userID string, teamIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managed[userID] = append([]string(nil), teamIDs...)
}

func (s *Static) IsActiveEmployee(_ context.Context, employeeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[employeeID]
	return ok && e.Active, nil
}

func (s *Static) ActiveEmployees(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.order {
		if s.employees[id].Active {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Static) Roles(_ context.Context, userID string) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Role(nil), s.roles[userID]...), nil
}

func (s *Static) Membership(_ context.Context, userID string) (Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.employees[userID]
	return Membership{DivisionID: e.DivisionID, TeamID: e.TeamID}, nil
}

func (s *Static) ManagedTeams(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.managed[userID]...), nil
}
