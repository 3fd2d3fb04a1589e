/*
authorize.go - Scope-aware approval authorization

An approver may act on a requester when one of their roles covers the
requester's current placement:

  GLOBAL            any requester
  DIVISION-scoped   requester's division matches the role's scope
  TEAM-scoped       requester's team matches the role's scope
  PROJECT-scoped    requester's team is assigned to a project the
                    approver manages

Self-approval is always denied, regardless of roles. Membership is looked
up through the external resolver, never recomputed here. The check runs
before any mutation, so a Forbidden failure leaves no partial state.
*/
package workflow

import (
	"context"
	"fmt"

	"github.com/warp/attendance-engine/org"
)

func (w *Workflow) authorize(ctx context.Context, approverID, requesterID string) error {
	if approverID == requesterID {
		return fmt.Errorf("self-approval denied: %w", ErrForbidden)
	}

	roles, err := w.scopes.Roles(ctx, approverID)
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return fmt.Errorf("approver %s has no roles: %w", approverID, ErrForbidden)
	}

	membership, err := w.scopes.Membership(ctx, requesterID)
	if err != nil {
		return err
	}

	for _, role := range roles {
		switch role.Scope {
		case org.ScopeGlobal:
			return nil
		case org.ScopeDivision:
			if role.ScopeID != "" && role.ScopeID == membership.DivisionID {
				return nil
			}
		case org.ScopeTeam:
			if role.ScopeID != "" && role.ScopeID == membership.TeamID {
				return nil
			}
		case org.ScopeProject:
			teams, err := w.scopes.ManagedTeams(ctx, approverID)
			if err != nil {
				return err
			}
			for _, teamID := range teams {
				if teamID != "" && teamID == membership.TeamID {
					return nil
				}
			}
		}
	}

	return fmt.Errorf("approver %s out of scope for %s: %w", approverID, requesterID, ErrForbidden)
}
