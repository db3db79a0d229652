package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/apierror"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DelegationService resolves who may act for an absent approver.
//
// Resolution is purely by configured priority: the active delegate with the
// lowest priority number is the primary. Delegate availability is not checked.
type DelegationService interface {
	SetDelegation(ctx context.Context, actor Actor, delegatorID uuid.UUID, req dto.SetDelegationRequest) (*dto.DelegationResponse, error)
	Resolve(ctx context.Context, delegatorID uuid.UUID) (*dto.DelegationResponse, error)
	CanActFor(ctx context.Context, delegateID, delegatorID uuid.UUID) (bool, error)

	// Authorize checks that actor holds one of roles, either directly or as an
	// active delegate of actor.OnBehalfOf. capability names the action in the
	// PermissionDenied error.
	Authorize(ctx context.Context, actor Actor, capability string, roles ...string) (Principal, error)
}

type delegationService struct {
	repo  repository.DelegationRepository
	users repository.UserRepository
	bus   changebus.Publisher
}

func NewDelegationService(repo repository.DelegationRepository, users repository.UserRepository, bus changebus.Publisher) DelegationService {
	return &delegationService{repo: repo, users: users, bus: bus}
}

func (s *delegationService) SetDelegation(ctx context.Context, actor Actor, delegatorID uuid.UUID, req dto.SetDelegationRequest) (*dto.DelegationResponse, error) {
	if actor.Role != model.RoleManager && actor.ID != delegatorID {
		return nil, apierror.PermissionDenied("set_delegation")
	}
	if _, err := s.users.FindByID(ctx, delegatorID); err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("user", delegatorID)
		}
		return nil, err
	}

	seen := make(map[int]bool, len(req.Delegates))
	seenUser := make(map[uuid.UUID]bool, len(req.Delegates))
	rows := make([]model.Delegation, 0, len(req.Delegates))
	for i, d := range req.Delegates {
		field := fmt.Sprintf("delegates[%d]", i)
		if d.Priority < 1 {
			return nil, apierror.Validation(field+".priority", "must be a positive integer")
		}
		if seen[d.Priority] {
			return nil, apierror.Validation(field+".priority", fmt.Sprintf("priority %d used twice", d.Priority))
		}
		seen[d.Priority] = true

		uid, err := uuid.Parse(d.UserID)
		if err != nil {
			return nil, apierror.Validation(field+".user_id", "invalid uuid")
		}
		if uid == delegatorID {
			return nil, apierror.Validation(field+".user_id", "cannot delegate to self")
		}
		if seenUser[uid] {
			return nil, apierror.Validation(field+".user_id", "listed twice")
		}
		seenUser[uid] = true
		if _, err := s.users.FindByID(ctx, uid); err != nil {
			if repository.IsNotFound(err) {
				return nil, apierror.Validation(field+".user_id", "unknown user")
			}
			return nil, err
		}

		active := true
		if d.Active != nil {
			active = *d.Active
		}
		rows = append(rows, model.Delegation{DelegatorID: delegatorID, DelegateID: uid, Priority: d.Priority, Active: active})
	}

	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.Replace(ctx, tx, delegatorID, rows)
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(changebus.TopicDelegations, delegatorID.String(), "set")
	return s.Resolve(ctx, delegatorID)
}

func (s *delegationService) Resolve(ctx context.Context, delegatorID uuid.UUID) (*dto.DelegationResponse, error) {
	ds, err := s.repo.ListByDelegator(ctx, delegatorID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].Priority < ds[j].Priority })

	resp := &dto.DelegationResponse{DelegatorID: delegatorID.String(), Delegates: make([]dto.DelegateResponse, 0, len(ds))}
	for _, d := range ds {
		entry := dto.DelegateResponse{UserID: d.DelegateID.String(), Priority: d.Priority, Active: d.Active}
		if d.Delegate != nil {
			entry.Name = d.Delegate.Name
		}
		resp.Delegates = append(resp.Delegates, entry)
		if d.Active && resp.Primary == nil {
			p := entry
			resp.Primary = &p
		}
	}
	return resp, nil
}

func (s *delegationService) CanActFor(ctx context.Context, delegateID, delegatorID uuid.UUID) (bool, error) {
	if delegateID == delegatorID {
		return false, nil
	}
	_, err := s.repo.FindActive(ctx, delegatorID, delegateID)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *delegationService) Authorize(ctx context.Context, actor Actor, capability string, roles ...string) (Principal, error) {
	if actor.OnBehalfOf == nil || *actor.OnBehalfOf == actor.ID {
		if !hasRole(actor.Role, roles) {
			return Principal{}, apierror.PermissionDenied(capability)
		}
		return Principal{ID: actor.ID, ActorID: actor.ID}, nil
	}

	delegatorID := *actor.OnBehalfOf
	ok, err := s.CanActFor(ctx, actor.ID, delegatorID)
	if err != nil {
		return Principal{}, err
	}
	if !ok {
		return Principal{}, apierror.PermissionDenied(capability + " (not an active delegate)")
	}
	delegator, err := s.users.FindByID(ctx, delegatorID)
	if err != nil {
		if repository.IsNotFound(err) {
			return Principal{}, apierror.NotFound("user", delegatorID)
		}
		return Principal{}, err
	}
	if !delegator.Active || !hasRole(delegator.Role, roles) {
		return Principal{}, apierror.PermissionDenied(capability)
	}
	return Principal{ID: delegatorID, ActorID: actor.ID, OnBehalfOf: &delegatorID}, nil
}
