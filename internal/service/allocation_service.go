package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/apierror"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/infra"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationService owns sticker lots and every movement of stock between
// lots, regions and inspectors.
//
// Conservation: for every lot, Σ holding.qty = lot.issuedQty and
// availableQty = totalQty - issuedQty. Each movement runs in one transaction
// built from conditional updates, and decisions on the same lot are
// serialized through the Locker.
type AllocationService interface {
	CreateLot(ctx context.Context, actor Actor, req dto.CreateLotRequest) (*dto.LotResponse, error)
	GetLot(ctx context.Context, id uuid.UUID) (*dto.LotResponse, error)
	ListLots(ctx context.Context, filter dto.LotFilter) ([]dto.LotResponse, error)

	IssueStock(ctx context.Context, actor Actor, req dto.IssueStockRequest) (*dto.HoldingResponse, error)
	Transfer(ctx context.Context, actor Actor, req dto.TransferRequest) (*dto.TransferResponse, error)
	ListHoldings(ctx context.Context, filter dto.HoldingFilter) ([]dto.HoldingResponse, error)
	ListTransfers(ctx context.Context, filter dto.TransferFilter) ([]dto.TransferResponse, error)

	SubmitRequest(ctx context.Context, actor Actor, req dto.SubmitStockRequest) (*dto.StockRequestResponse, error)
	ApproveRequest(ctx context.Context, actor Actor, id uuid.UUID) (*dto.StockRequestResponse, error)
	RejectRequest(ctx context.Context, actor Actor, id uuid.UUID, req dto.RejectRequestRequest) (*dto.StockRequestResponse, error)
	ListRequests(ctx context.Context, filter dto.RequestFilter) ([]dto.StockRequestResponse, error)

	AllocateSticker(ctx context.Context, actor Actor, jobOrderID uuid.UUID, req dto.AllocateStickerRequest) (*dto.StickerAllocationResponse, error)
}

type allocationService struct {
	lots        repository.LotRepository
	holdings    repository.StockHoldingRepository
	transfers   repository.TransferRepository
	requests    repository.StockRequestRepository
	users       repository.UserRepository
	logs        repository.ActionLogRepository
	delegations DelegationService
	stickers    *stickerAllocator
	locker      infra.Locker
	bus         changebus.Publisher
}

func NewAllocationService(
	lots repository.LotRepository,
	holdings repository.StockHoldingRepository,
	transfers repository.TransferRepository,
	requests repository.StockRequestRepository,
	jobs repository.JobOrderRepository,
	users repository.UserRepository,
	logs repository.ActionLogRepository,
	delegations DelegationService,
	locker infra.Locker,
	bus changebus.Publisher,
) AllocationService {
	return &allocationService{
		lots:        lots,
		holdings:    holdings,
		transfers:   transfers,
		requests:    requests,
		users:       users,
		logs:        logs,
		delegations: delegations,
		stickers:    &stickerAllocator{holdings: holdings, jobs: jobs, locker: locker},
		locker:      locker,
		bus:         bus,
	}
}

func lotKey(id uuid.UUID) string     { return "lot:" + id.String() }
func holdingKey(id uuid.UUID) string { return "holding:" + id.String() }
func requestKey(id uuid.UUID) string { return "request:" + id.String() }

// ── Lots ──────────────────────────────────────────────────────────────────────

func (s *allocationService) CreateLot(ctx context.Context, actor Actor, req dto.CreateLotRequest) (*dto.LotResponse, error) {
	if actor.Role != model.RoleManager {
		return nil, apierror.PermissionDenied("create_lot")
	}
	number := strings.TrimSpace(req.LotNumber)
	if number == "" {
		return nil, apierror.Validation("lot_number", "required")
	}
	if req.TotalQty <= 0 {
		return nil, apierror.Validation("total_qty", "must be greater than zero")
	}
	if _, err := s.lots.FindByNumber(ctx, nil, number); err == nil {
		return nil, apierror.Validation("lot_number", "already exists")
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	lot := &model.Lot{
		LotNumber:    number,
		Size:         req.Size,
		TotalQty:     req.TotalQty,
		AvailableQty: req.TotalQty,
		Status:       model.LotActive,
	}
	if err := s.lots.Create(ctx, nil, lot); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apierror.Validation("lot_number", "already exists")
		}
		return nil, err
	}
	s.bus.Publish(changebus.TopicLots, lot.ID.String(), "created")
	resp := lotToResponse(lot)
	return &resp, nil
}

func (s *allocationService) GetLot(ctx context.Context, id uuid.UUID) (*dto.LotResponse, error) {
	lot, err := s.lots.FindByID(ctx, nil, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("lot", id)
		}
		return nil, err
	}
	resp := lotToResponse(lot)
	return &resp, nil
}

func (s *allocationService) ListLots(ctx context.Context, filter dto.LotFilter) ([]dto.LotResponse, error) {
	lots, err := s.lots.List(ctx, filter.Status)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.LotResponse, len(lots))
	for i := range lots {
		resp[i] = lotToResponse(&lots[i])
	}
	return resp, nil
}

// ── Issue / Transfer ──────────────────────────────────────────────────────────

func (s *allocationService) IssueStock(ctx context.Context, actor Actor, req dto.IssueStockRequest) (*dto.HoldingResponse, error) {
	if actor.Role != model.RoleManager {
		return nil, apierror.PermissionDenied("issue_stock")
	}
	if req.Qty <= 0 {
		return nil, apierror.Validation("qty", "must be greater than zero")
	}
	lotID, err := uuid.Parse(req.LotID)
	if err != nil {
		return nil, apierror.Validation("lot_id", "invalid uuid")
	}
	holderID, err := uuid.Parse(req.HolderID)
	if err != nil {
		return nil, apierror.Validation("holder_id", "invalid uuid")
	}
	holderName, err := s.holderName(ctx, holderID, req.HolderType, req.HolderName)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lotKey(lotID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var holding *model.StockHolding
	err = runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		lot, err := s.lots.FindByID(ctx, tx, lotID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apierror.NotFound("lot", lotID)
			}
			return err
		}
		if lot.Status == model.LotArchived {
			return apierror.InvalidState("lot %s is archived", lot.LotNumber)
		}
		holding, err = s.issueTx(ctx, tx, lot, holderID, holderName, req.HolderType, req.Qty)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(changebus.TopicLots, lotID.String(), "issued")
	s.bus.Publish(changebus.TopicStock, holding.ID.String(), "credited")
	resp := holdingToResponse(holding)
	return &resp, nil
}

// issueTx debits lot and credits the holder. InsufficientStock when lot
// cannot cover qty; nothing is written in that case.
func (s *allocationService) issueTx(ctx context.Context, tx *gorm.DB, lot *model.Lot, holderID uuid.UUID, holderName, holderType string, qty int) (*model.StockHolding, error) {
	if err := s.lots.Debit(ctx, tx, lot.ID, qty); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, apierror.InsufficientStock("lot %s has %d available, %d requested", lot.LotNumber, lot.AvailableQty, qty)
		}
		return nil, err
	}
	return s.holdings.Credit(ctx, tx, &model.StockHolding{
		LotID:      lot.ID,
		LotNumber:  lot.LotNumber,
		HolderID:   holderID,
		HolderName: holderName,
		HolderType: holderType,
		IssuedAt:   time.Now(),
	}, qty)
}

func (s *allocationService) holderName(ctx context.Context, holderID uuid.UUID, holderType, fallback string) (string, error) {
	if holderType != model.HolderInspector {
		return fallback, nil
	}
	u, err := s.users.FindByID(ctx, holderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", apierror.NotFound("inspector", holderID)
		}
		return "", err
	}
	if u.Role != model.RoleInspector {
		return "", apierror.Validation("holder_id", "user is not an inspector")
	}
	return u.Name, nil
}

func (s *allocationService) Transfer(ctx context.Context, actor Actor, req dto.TransferRequest) (*dto.TransferResponse, error) {
	if !hasRole(actor.Role, []string{model.RoleInspector, model.RoleManager}) {
		return nil, apierror.PermissionDenied("transfer_stock")
	}
	if req.Qty <= 0 {
		return nil, apierror.Validation("qty", "must be greater than zero")
	}
	fromID, err := uuid.Parse(req.FromHolderID)
	if err != nil {
		return nil, apierror.Validation("from_holder_id", "invalid uuid")
	}
	toID, err := uuid.Parse(req.ToHolderID)
	if err != nil {
		return nil, apierror.Validation("to_holder_id", "invalid uuid")
	}
	if fromID == toID {
		return nil, apierror.Validation("to_holder_id", "must differ from from_holder_id")
	}
	if actor.Role == model.RoleInspector && fromID != actor.ID {
		return nil, apierror.PermissionDenied("transfer_stock (inspectors transfer only their own stock)")
	}
	toType := req.ToHolderType
	if toType == "" {
		toType = model.HolderInspector
	}
	toName, err := s.holderName(ctx, toID, toType, req.ToHolderName)
	if err != nil {
		return nil, err
	}

	lot, err := s.lots.FindByNumber(ctx, nil, req.LotNumber)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("lot", req.LotNumber)
		}
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lotKey(lot.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		transfer *model.Transfer
		source   *model.StockHolding
		dest     *model.StockHolding
	)
	err = runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		source, err = s.holdings.FindByLotAndHolder(ctx, tx, lot.ID, fromID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apierror.InsufficientStock("holder %s has no stock of lot %s", fromID, lot.LotNumber)
			}
			return err
		}
		if err := s.holdings.Debit(ctx, tx, source.ID, req.Qty); err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				return apierror.InsufficientStock("holder has %d unallocated of lot %s, %d requested", source.Remaining(), lot.LotNumber, req.Qty)
			}
			return err
		}
		dest, err = s.holdings.Credit(ctx, tx, &model.StockHolding{
			LotID:      lot.ID,
			LotNumber:  lot.LotNumber,
			HolderID:   toID,
			HolderName: toName,
			HolderType: toType,
			IssuedAt:   time.Now(),
		}, req.Qty)
		if err != nil {
			return err
		}
		transfer = &model.Transfer{
			LotID:        lot.ID,
			LotNumber:    lot.LotNumber,
			FromHolderID: fromID,
			ToHolderID:   toID,
			Qty:          req.Qty,
			Status:       "completed",
			Notes:        req.Notes,
			CreatedBy:    actor.ID,
		}
		return s.transfers.Create(ctx, tx, transfer)
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(changebus.TopicStock, source.ID.String(), "debited")
	s.bus.Publish(changebus.TopicStock, dest.ID.String(), "credited")
	s.bus.Publish(changebus.TopicTransfers, transfer.ID.String(), "completed")
	resp := transferToResponse(transfer)
	return &resp, nil
}

func (s *allocationService) ListHoldings(ctx context.Context, filter dto.HoldingFilter) ([]dto.HoldingResponse, error) {
	hs, err := s.holdings.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.HoldingResponse, len(hs))
	for i := range hs {
		resp[i] = holdingToResponse(&hs[i])
	}
	return resp, nil
}

func (s *allocationService) ListTransfers(ctx context.Context, filter dto.TransferFilter) ([]dto.TransferResponse, error) {
	ts, err := s.transfers.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.TransferResponse, len(ts))
	for i := range ts {
		resp[i] = transferToResponse(&ts[i])
	}
	return resp, nil
}

// ── Requests ──────────────────────────────────────────────────────────────────

func (s *allocationService) SubmitRequest(ctx context.Context, actor Actor, req dto.SubmitStockRequest) (*dto.StockRequestResponse, error) {
	if !hasRole(actor.Role, []string{model.RoleInspector, model.RoleManager}) {
		return nil, apierror.PermissionDenied("submit_stock_request")
	}
	if req.Qty <= 0 {
		return nil, apierror.Validation("qty", "must be greater than zero")
	}

	requesterID := actor.ID
	if req.RequesterID != "" {
		id, err := uuid.Parse(req.RequesterID)
		if err != nil {
			return nil, apierror.Validation("requester_id", "invalid uuid")
		}
		requesterID = id
	}
	if actor.Role == model.RoleInspector && requesterID != actor.ID {
		return nil, apierror.PermissionDenied("submit_stock_request (inspectors request only for themselves)")
	}

	requesterType := req.RequesterType
	if requesterType == "" {
		requesterType = model.HolderInspector
	}
	name := ""
	if requesterType == model.HolderInspector {
		n, err := s.holderName(ctx, requesterID, requesterType, "")
		if err != nil {
			return nil, err
		}
		name = n
	} else {
		name = "region " + requesterID.String()[:8]
	}

	var pref *string
	if req.LotNumberPreference != nil && strings.TrimSpace(*req.LotNumberPreference) != "" {
		pref = ptr(strings.TrimSpace(*req.LotNumberPreference))
	}
	r := &model.StockRequest{
		RequesterID:         &requesterID,
		RequesterName:       name,
		RequesterType:       requesterType,
		Qty:                 req.Qty,
		LotNumberPreference: pref,
		Status:              model.RequestPending,
		Notes:               req.Notes,
	}
	if err := s.requests.Create(ctx, nil, r); err != nil {
		return nil, err
	}
	s.bus.Publish(changebus.TopicRequests, r.ID.String(), "submitted")
	resp := requestToResponse(r)
	return &resp, nil
}

// ApproveRequest fulfils a pending request from, in order: the preferred lot
// when it is active and can cover the quantity, else the first active lot in
// creation order that can. When no lot can, the request stays pending and
// InsufficientStock is returned.
func (s *allocationService) ApproveRequest(ctx context.Context, actor Actor, id uuid.UUID) (*dto.StockRequestResponse, error) {
	principal, err := s.delegations.Authorize(ctx, actor, "approve_stock_request", model.RoleManager)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, requestKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := s.requests.FindByID(ctx, nil, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("stock request", id)
		}
		return nil, err
	}
	if req.Status != model.RequestPending {
		return nil, apierror.InvalidState("stock request is %s", req.Status)
	}

	requesterID, err := s.resolveRequester(ctx, req)
	if err != nil {
		return nil, err
	}

	candidates, err := s.candidateLots(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, lot := range candidates {
		holding, err := s.approveFromLot(ctx, principal, req, requesterID, lot)
		if errors.Is(err, apierror.ErrInsufficientStock) {
			// lost the lot to a concurrent debit; try the next one
			continue
		}
		if err != nil {
			return nil, err
		}
		s.bus.Publish(changebus.TopicLots, lot.ID.String(), "issued")
		s.bus.Publish(changebus.TopicStock, holding.ID.String(), "credited")
		s.bus.Publish(changebus.TopicRequests, req.ID.String(), "approved")
		resp := requestToResponse(req)
		return &resp, nil
	}

	pref := ""
	if req.LotNumberPreference != nil {
		pref = " (preferred " + *req.LotNumberPreference + ")"
	}
	return nil, apierror.InsufficientStock("no active lot can cover %d stickers%s", req.Qty, pref)
}

// candidateLots returns the approval order: preferred lot first, then every
// other active lot covering qty in creation order.
func (s *allocationService) candidateLots(ctx context.Context, req *model.StockRequest) ([]model.Lot, error) {
	available, err := s.lots.ListAvailable(ctx, nil, req.Qty)
	if err != nil {
		return nil, err
	}
	if req.LotNumberPreference == nil {
		return available, nil
	}
	out := make([]model.Lot, 0, len(available))
	for _, l := range available {
		if l.LotNumber == *req.LotNumberPreference {
			out = append([]model.Lot{l}, out...)
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *allocationService) approveFromLot(ctx context.Context, p Principal, req *model.StockRequest, requesterID uuid.UUID, lot model.Lot) (*model.StockHolding, error) {
	unlock, err := s.locker.Lock(ctx, lotKey(lot.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	holderName := req.RequesterName
	var holding *model.StockHolding
	now := time.Now()
	resolved := *req
	err = runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		holding, err = s.issueTx(ctx, tx, &lot, requesterID, holderName, req.RequesterType, req.Qty)
		if err != nil {
			return err
		}
		resolved.Status = model.RequestApproved
		resolved.RequesterID = &requesterID
		resolved.ApprovedBy = &p.ActorID
		resolved.ApprovedOnBehalfOf = p.OnBehalfOf
		resolved.ApprovedAt = &now
		resolved.FulfilledLotID = &lot.ID
		resolved.HoldingID = &holding.ID
		if err := s.requests.Resolve(ctx, tx, &resolved); err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				return apierror.InvalidState("stock request was resolved concurrently")
			}
			return err
		}
		return audit(ctx, tx, s.logs, p, "request.approve", "stock_request", req.ID, map[string]interface{}{
			"lot_number": lot.LotNumber,
			"qty":        req.Qty,
		})
	})
	if err != nil {
		return nil, err
	}
	*req = resolved
	return holding, nil
}

// resolveRequester returns the holder that receives the stock. Records
// created before requester ids were mandatory fall back to a unique name
// match among inspectors; an ambiguous or missing match is a validation error.
func (s *allocationService) resolveRequester(ctx context.Context, req *model.StockRequest) (uuid.UUID, error) {
	if req.RequesterID != nil {
		return *req.RequesterID, nil
	}
	matches, err := s.users.FindByNameAndRole(ctx, req.RequesterName, model.RoleInspector)
	if err != nil {
		return uuid.Nil, err
	}
	switch len(matches) {
	case 1:
		return matches[0].ID, nil
	case 0:
		return uuid.Nil, apierror.Validation("requester_id", "no inspector named "+req.RequesterName)
	default:
		return uuid.Nil, apierror.Validation("requester_id", "several inspectors named "+req.RequesterName)
	}
}

func (s *allocationService) RejectRequest(ctx context.Context, actor Actor, id uuid.UUID, in dto.RejectRequestRequest) (*dto.StockRequestResponse, error) {
	principal, err := s.delegations.Authorize(ctx, actor, "reject_stock_request", model.RoleManager)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apierror.Validation("reason", "required")
	}

	unlock, err := s.locker.Lock(ctx, requestKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := s.requests.FindByID(ctx, nil, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("stock request", id)
		}
		return nil, err
	}
	if req.Status != model.RequestPending {
		return nil, apierror.InvalidState("stock request is %s", req.Status)
	}

	resolved := *req
	resolved.Status = model.RequestRejected
	resolved.RejectedBy = &principal.ActorID
	resolved.RejectionReason = &reason
	err = runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		if err := s.requests.Resolve(ctx, tx, &resolved); err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				return apierror.InvalidState("stock request was resolved concurrently")
			}
			return err
		}
		return audit(ctx, tx, s.logs, principal, "request.reject", "stock_request", req.ID, map[string]interface{}{"reason": reason})
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(changebus.TopicRequests, req.ID.String(), "rejected")
	resp := requestToResponse(&resolved)
	return &resp, nil
}

func (s *allocationService) ListRequests(ctx context.Context, filter dto.RequestFilter) ([]dto.StockRequestResponse, error) {
	rs, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.StockRequestResponse, len(rs))
	for i := range rs {
		resp[i] = requestToResponse(&rs[i])
	}
	return resp, nil
}

// ── Sticker allocation ────────────────────────────────────────────────────────

func (s *allocationService) AllocateSticker(ctx context.Context, actor Actor, jobOrderID uuid.UUID, req dto.AllocateStickerRequest) (*dto.StickerAllocationResponse, error) {
	if !hasRole(actor.Role, []string{model.RoleInspector, model.RoleSupervisor}) {
		return nil, apierror.PermissionDenied("allocate_sticker")
	}
	holdingID, err := uuid.Parse(req.StockHoldingID)
	if err != nil {
		return nil, apierror.Validation("stock_holding_id", "invalid uuid")
	}

	var alloc *model.StickerAllocation
	err = s.stickers.withLock(ctx, holdingID, func() error {
		return runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
			job, err := s.stickers.jobs.FindByID(ctx, tx, jobOrderID)
			if err != nil {
				if repository.IsNotFound(err) {
					return apierror.NotFound("job order", jobOrderID)
				}
				return err
			}
			if job.Phase.Terminal() {
				return apierror.InvalidState("job order is %s", job.Phase)
			}
			alloc, err = s.stickers.allocateTx(ctx, tx, actor, holdingID, job.ID, req.StickerNumber)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(changebus.TopicStock, holdingID.String(), "allocated")
	s.bus.Publish(changebus.TopicJobOrders, jobOrderID.String(), "sticker_allocated")
	resp := allocationToResponse(alloc)
	return &resp, nil
}

// stickerAllocator consumes one unit of a holding for a job order. Shared by
// AllocationService and JobOrderService (allocation at creation time).
type stickerAllocator struct {
	holdings repository.StockHoldingRepository
	jobs     repository.JobOrderRepository
	locker   infra.Locker
}

func (a *stickerAllocator) withLock(ctx context.Context, holdingID uuid.UUID, fn func() error) error {
	unlock, err := a.locker.Lock(ctx, holdingKey(holdingID))
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// allocateTx never touches lot totals or holding qty; it only raises
// allocatedQty. Inspectors may only allocate from their own holding.
func (a *stickerAllocator) allocateTx(ctx context.Context, tx *gorm.DB, actor Actor, holdingID, jobOrderID uuid.UUID, stickerNumber *string) (*model.StickerAllocation, error) {
	h, err := a.holdings.FindByID(ctx, tx, holdingID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("stock holding", holdingID)
		}
		return nil, err
	}
	if actor.Role == model.RoleInspector && h.HolderID != actor.ID {
		return nil, apierror.PermissionDenied("allocate_sticker (holding belongs to another holder)")
	}
	if err := a.holdings.Allocate(ctx, tx, h.ID, 1); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, apierror.InsufficientStock("holding %s of lot %s has no remaining stickers", h.ID, h.LotNumber)
		}
		return nil, err
	}
	alloc := &model.StickerAllocation{
		JobOrderID:     jobOrderID,
		StockHoldingID: h.ID,
		LotNumber:      h.LotNumber,
		StickerNumber:  stickerNumber,
		Qty:            1,
		AllocatedBy:    actor.ID,
	}
	if err := a.jobs.CreateAllocation(ctx, tx, alloc); err != nil {
		return nil, err
	}
	return alloc, nil
}
