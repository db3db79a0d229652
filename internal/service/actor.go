package service

import (
	"github.com/google/uuid"
)

// Actor is the authenticated caller. OnBehalfOf is set when the caller acts
// as a delegate of another user.
type Actor struct {
	ID                 uuid.UUID
	Name               string
	Role               string
	CanCreateJobOrders bool
	OnBehalfOf         *uuid.UUID
}

// Principal is whose authority an action is taken under.
type Principal struct {
	// ID is the user whose role authorised the action.
	ID uuid.UUID
	// ActorID is always the authenticated user.
	ActorID    uuid.UUID
	OnBehalfOf *uuid.UUID
}

// Display is the user shown as having performed the action.
func (p Principal) Display() uuid.UUID { return p.ID }

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
