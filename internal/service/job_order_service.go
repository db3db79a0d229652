package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/apierror"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/infra"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobOrderService drives a job order from creation to certificate.
//
//	awaiting_job_approval → approved → in_execution → awaiting_report_approval → approved → paid
//
// Any phase before paid can move to rejected. A certificate is created only
// inside ConfirmPayment, exactly once per job.
type JobOrderService interface {
	Create(ctx context.Context, actor Actor, req dto.CreateJobOrderRequest) (*dto.JobOrderResponse, error)
	// CommitOffline replays a job order captured offline. The bool is true when
	// offlineID was already committed and the stored job is returned unchanged.
	CommitOffline(ctx context.Context, actor Actor, req dto.OfflineJobOrderRequest) (*dto.JobOrderResponse, bool, error)
	SyncBatch(ctx context.Context, actor Actor, req dto.SyncBatchRequest) (*dto.SyncBatchResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.JobOrderResponse, error)
	List(ctx context.Context, filter dto.JobOrderFilter) (*dto.JobOrderListResponse, error)

	Approve(ctx context.Context, actor Actor, id uuid.UUID) (*dto.JobOrderResponse, error)
	Reject(ctx context.Context, actor Actor, id uuid.UUID, req dto.RejectJobOrderRequest) (*dto.JobOrderResponse, error)
	StartExecution(ctx context.Context, actor Actor, id uuid.UUID) (*dto.JobOrderResponse, error)
	SubmitReport(ctx context.Context, actor Actor, id uuid.UUID, req dto.SubmitReportRequest) (*dto.JobOrderResponse, error)

	SubmitPayment(ctx context.Context, actor Actor, id uuid.UUID, req dto.SubmitPaymentRequest) (*dto.PaymentResponse, error)
	ConfirmPayment(ctx context.Context, actor Actor, id uuid.UUID) (*dto.JobOrderResponse, error)
	RejectPayment(ctx context.Context, actor Actor, id uuid.UUID, req dto.RejectPaymentRequest) (*dto.PaymentResponse, error)

	VerifyCertificate(ctx context.Context, code string) (*dto.CertificateResponse, error)
}

type jobOrderService struct {
	jobs         repository.JobOrderRepository
	payments     repository.PaymentRepository
	certs        repository.CertificateRepository
	tags         repository.TagRepository
	users        repository.UserRepository
	logs         repository.ActionLogRepository
	delegations  DelegationService
	stickers     *stickerAllocator
	notifier     NotificationService
	photos       infra.ObjectStore
	bus          changebus.Publisher
	validityDays int
	now          func() time.Time
}

// NewJobOrderService accepts a nil photos store; photo payloads are then dropped.
func NewJobOrderService(
	jobs repository.JobOrderRepository,
	payments repository.PaymentRepository,
	certs repository.CertificateRepository,
	tags repository.TagRepository,
	holdings repository.StockHoldingRepository,
	users repository.UserRepository,
	logs repository.ActionLogRepository,
	delegations DelegationService,
	locker infra.Locker,
	notifier NotificationService,
	photos infra.ObjectStore,
	bus changebus.Publisher,
	validityDays int,
) JobOrderService {
	if validityDays <= 0 {
		validityDays = 365
	}
	return &jobOrderService{
		jobs:         jobs,
		payments:     payments,
		certs:        certs,
		tags:         tags,
		users:        users,
		logs:         logs,
		delegations:  delegations,
		stickers:     &stickerAllocator{holdings: holdings, jobs: jobs, locker: locker},
		notifier:     notifier,
		photos:       photos,
		bus:          bus,
		validityDays: validityDays,
		now:          time.Now,
	}
}

// ── Creation ──────────────────────────────────────────────────────────────────

func canCreateJobOrders(a Actor) bool {
	switch a.Role {
	case model.RoleSupervisor, model.RoleManager:
		return true
	case model.RoleInspector:
		return a.CanCreateJobOrders
	}
	return false
}

// creation is a validated CreateJobOrderRequest.
type creation struct {
	job       *model.JobOrder
	holdingID *uuid.UUID
	sticker   *string
	tagNumber *string
	photo     []byte
}

func (s *jobOrderService) Create(ctx context.Context, actor Actor, req dto.CreateJobOrderRequest) (*dto.JobOrderResponse, error) {
	return s.create(ctx, actor, nil, req)
}

func (s *jobOrderService) create(ctx context.Context, actor Actor, offlineID *string, req dto.CreateJobOrderRequest) (*dto.JobOrderResponse, error) {
	c, err := s.validateCreate(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	c.job.OfflineID = offlineID

	exec := func() error {
		return runTx(ctx, s.jobs.DB(), func(tx *gorm.DB) error { return s.createTx(ctx, tx, actor, c) })
	}
	if c.holdingID != nil {
		err = s.stickers.withLock(ctx, *c.holdingID, exec)
	} else {
		err = exec()
	}
	if err != nil {
		return nil, err
	}

	s.storePhoto(ctx, c.job.ID, c.photo)
	s.bus.Publish(changebus.TopicJobOrders, c.job.ID.String(), "created")
	if c.job.PaymentStatus == model.PaymentStatusPending {
		s.bus.Publish(changebus.TopicPayments, c.job.ID.String(), "opened")
	}
	if c.holdingID != nil {
		s.bus.Publish(changebus.TopicStock, c.holdingID.String(), "allocated")
	}
	if c.tagNumber != nil {
		s.bus.Publish(changebus.TopicTags, *c.tagNumber, "allocated")
	}
	return s.Get(ctx, c.job.ID)
}

func (s *jobOrderService) validateCreate(ctx context.Context, actor Actor, req dto.CreateJobOrderRequest) (*creation, error) {
	if !canCreateJobOrders(actor) {
		return nil, apierror.PermissionDenied("create_job_order")
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, apierror.Validation("client_id", "invalid uuid")
	}
	client, err := s.users.FindByID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.Validation("client_id", "unknown client")
		}
		return nil, err
	}
	if client.Role != model.RoleClient {
		return nil, apierror.Validation("client_id", "user is not a client")
	}

	types := make([]string, 0, len(req.ServiceTypes))
	for _, t := range req.ServiceTypes {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return nil, apierror.Validation("service_types", "at least one service type is required")
	}

	assignee := actor.ID
	if req.AssignedTo != "" {
		if assignee, err = uuid.Parse(req.AssignedTo); err != nil {
			return nil, apierror.Validation("assigned_to", "invalid uuid")
		}
	} else if actor.Role != model.RoleInspector {
		return nil, apierror.Validation("assigned_to", "required")
	}
	inspector, err := s.users.FindByID(ctx, assignee)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.Validation("assigned_to", "unknown inspector")
		}
		return nil, err
	}
	if inspector.Role != model.RoleInspector {
		return nil, apierror.Validation("assigned_to", "user is not an inspector")
	}

	if req.Amount.IsNegative() {
		return nil, apierror.Validation("amount", "must not be negative")
	}

	c := &creation{
		job: &model.JobOrder{
			ClientID:      clientID,
			ServiceTypes:  datatypes.JSONSlice[string](types),
			Phase:         model.PhaseAwaitingJobApproval,
			AssignedTo:    assignee,
			CreatedBy:     actor.ID,
			Location:      strings.TrimSpace(req.Location),
			ScheduledFor:  req.ScheduledFor,
			Amount:        req.Amount,
			PaymentStatus: model.PaymentStatusNone,
		},
		sticker: req.StickerNumber,
	}
	if req.Amount.IsPositive() {
		c.job.PaymentStatus = model.PaymentStatusPending
	}
	if req.StockHoldingID != nil && *req.StockHoldingID != "" {
		id, err := uuid.Parse(*req.StockHoldingID)
		if err != nil {
			return nil, apierror.Validation("stock_holding_id", "invalid uuid")
		}
		c.holdingID = &id
	}
	if req.TagNumber != nil && strings.TrimSpace(*req.TagNumber) != "" {
		c.tagNumber = ptr(strings.TrimSpace(*req.TagNumber))
	}
	if req.PhotoBase64 != nil && *req.PhotoBase64 != "" {
		data, err := decodePhoto(*req.PhotoBase64)
		if err != nil {
			return nil, apierror.Validation("photo_base64", "invalid base64 image")
		}
		c.photo = data
	}
	return c, nil
}

// createTx checks stock and tag before the first write, so a refusal never
// leaves a partial job order behind.
func (s *jobOrderService) createTx(ctx context.Context, tx *gorm.DB, actor Actor, c *creation) error {
	if c.holdingID != nil {
		h, err := s.stickers.holdings.FindByID(ctx, tx, *c.holdingID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apierror.NotFound("stock holding", *c.holdingID)
			}
			return err
		}
		if h.Remaining() < 1 {
			return apierror.InsufficientStock("holding %s of lot %s has no remaining stickers", h.ID, h.LotNumber)
		}
	}
	if c.tagNumber != nil {
		tag, err := findTag(ctx, tx, s.tags, *c.tagNumber)
		if err != nil {
			return err
		}
		if tag.Status != model.TagAvailable {
			return apierror.InvalidState("tag %s is %s, only available tags can be allocated", tag.TagNumber, tag.Status)
		}
	}

	if err := s.jobs.Create(ctx, tx, c.job); err != nil {
		return err
	}
	if c.job.PaymentStatus == model.PaymentStatusPending {
		if err := s.payments.Create(ctx, tx, &model.Payment{
			JobOrderID:  c.job.ID,
			Amount:      c.job.Amount,
			Status:      model.PaymentPending,
			Method:      "invoice",
			SubmittedBy: actor.ID,
		}); err != nil {
			return err
		}
	}
	if c.holdingID != nil {
		if _, err := s.stickers.allocateTx(ctx, tx, actor, *c.holdingID, c.job.ID, c.sticker); err != nil {
			return err
		}
	}
	if c.tagNumber != nil {
		if _, err := allocateTagTx(ctx, tx, s.tags, *c.tagNumber, c.job.ID); err != nil {
			return err
		}
	}
	detail := map[string]interface{}{"client_id": c.job.ClientID.String(), "amount": c.job.Amount.String()}
	if c.job.OfflineID != nil {
		detail["offline_id"] = *c.job.OfflineID
	}
	return audit(ctx, tx, s.logs, Principal{ID: actor.ID, ActorID: actor.ID}, "job_order.create", "job_order", c.job.ID, detail)
}

func decodePhoto(raw string) ([]byte, error) {
	// tolerate data URLs from the browser
	if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i > 0 {
		raw = raw[i+1:]
	}
	return base64.StdEncoding.DecodeString(raw)
}

func (s *jobOrderService) storePhoto(ctx context.Context, jobID uuid.UUID, data []byte) {
	if len(data) == 0 {
		return
	}
	if s.photos == nil {
		log.Debug().Str("job_order_id", jobID.String()).Msg("job order: no object store configured, photo dropped")
		return
	}
	contentType := http.DetectContentType(data)
	ext := "bin"
	switch contentType {
	case "image/jpeg":
		ext = "jpg"
	case "image/png":
		ext = "png"
	case "image/webp":
		ext = "webp"
	}
	key := fmt.Sprintf("job-orders/%s/photo.%s", jobID, ext)
	if err := s.photos.Put(ctx, key, contentType, data); err != nil {
		log.Warn().Err(err).Str("job_order_id", jobID.String()).Msg("job order: photo upload failed")
		return
	}
	if err := s.jobs.SetPhotoKey(ctx, jobID, key); err != nil {
		log.Warn().Err(err).Str("job_order_id", jobID.String()).Msg("job order: photo key not saved")
	}
}

// ── Offline replay ────────────────────────────────────────────────────────────

func (s *jobOrderService) CommitOffline(ctx context.Context, actor Actor, req dto.OfflineJobOrderRequest) (*dto.JobOrderResponse, bool, error) {
	offlineID := strings.TrimSpace(req.OfflineID)
	if offlineID == "" {
		return nil, false, apierror.Validation("offline_id", "required")
	}
	if existing, ok, err := s.findReplay(ctx, offlineID); err != nil || ok {
		return existing, ok, err
	}

	resp, err := s.create(ctx, actor, &offlineID, req.CreateJobOrderRequest)
	switch {
	case err == nil:
		return resp, false, nil
	case repository.IsDuplicate(err):
		// a concurrent replay of the same offline id won
		existing, ok, ferr := s.findReplay(ctx, offlineID)
		if ferr != nil || ok {
			return existing, ok, ferr
		}
		return nil, false, err
	case errors.Is(err, apierror.ErrInsufficientStock), errors.Is(err, apierror.ErrInvalidState):
		return nil, false, apierror.Conflict("offline job order %s no longer fits current stock: %s", offlineID, err.Error())
	}
	return nil, false, err
}

func (s *jobOrderService) findReplay(ctx context.Context, offlineID string) (*dto.JobOrderResponse, bool, error) {
	existing, err := s.jobs.FindByOfflineID(ctx, offlineID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	resp, err := s.Get(ctx, existing.ID)
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

// SyncBatch replays items in order. Domain refusals are reported per item;
// an infrastructure error aborts the batch.
func (s *jobOrderService) SyncBatch(ctx context.Context, actor Actor, req dto.SyncBatchRequest) (*dto.SyncBatchResponse, error) {
	out := &dto.SyncBatchResponse{Results: make([]dto.SyncResult, 0, len(req.JobOrders))}
	for _, item := range req.JobOrders {
		res := dto.SyncResult{OfflineID: item.OfflineID}
		job, _, err := s.CommitOffline(ctx, actor, item)
		if err != nil {
			e, ok := apierror.As(err)
			if !ok {
				return out, err
			}
			res.Kind = string(e.Kind)
			res.Detail = e.Msg
			res.Fields = e.Fields
		} else {
			res.JobOrderID = job.ID
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *jobOrderService) load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.JobOrder, error) {
	job, err := s.jobs.FindByID(ctx, tx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("job order", id)
		}
		return nil, err
	}
	return job, nil
}

func (s *jobOrderService) Get(ctx context.Context, id uuid.UUID) (*dto.JobOrderResponse, error) {
	job, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	resp := jobOrderToResponse(job, s.now())
	return &resp, nil
}

func (s *jobOrderService) List(ctx context.Context, filter dto.JobOrderFilter) (*dto.JobOrderListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	jobs, total, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	data := make([]dto.JobOrderResponse, len(jobs))
	for i := range jobs {
		data[i] = jobOrderToResponse(&jobs[i], now)
	}
	return &dto.JobOrderListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// transition applies mutate to a copy of the job and persists it when the
// stored phase is still the one that was read.
func (s *jobOrderService) transition(ctx context.Context, p Principal, action string, job *model.JobOrder, mutate func(next *model.JobOrder), detail map[string]interface{}) (*model.JobOrder, error) {
	next := *job
	mutate(&next)
	err := runTx(ctx, s.jobs.DB(), func(tx *gorm.DB) error {
		if err := s.jobs.UpdateLifecycle(ctx, tx, &next, job.Phase); err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				return apierror.InvalidState("job order changed concurrently")
			}
			return err
		}
		if detail == nil {
			detail = map[string]interface{}{}
		}
		detail["from"] = string(job.Phase)
		detail["to"] = string(next.Phase)
		return audit(ctx, tx, s.logs, p, action, "job_order", job.ID, detail)
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(changebus.TopicJobOrders, job.ID.String(), action)
	return &next, nil
}

func (s *jobOrderService) respond(job *model.JobOrder) *dto.JobOrderResponse {
	resp := jobOrderToResponse(job, s.now())
	return &resp
}

func (s *jobOrderService) Approve(ctx context.Context, actor Actor, id uuid.UUID) (*dto.JobOrderResponse, error) {
	p, err := s.delegations.Authorize(ctx, actor, "approve_job_order", model.RoleSupervisor)
	if err != nil {
		return nil, err
	}
	job, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var mutate func(*model.JobOrder)
	switch job.Phase {
	case model.PhaseAwaitingJobApproval:
		mutate = func(n *model.JobOrder) {
			n.Phase = model.PhaseApproved
			n.ApprovedBy = ptr(p.Display())
			n.ApprovedAt = &now
		}
	case model.PhaseAwaitingReportApproval:
		mutate = func(n *model.JobOrder) {
			n.Phase = model.PhaseApproved
			n.ReportApprovedAt = &now
		}
	default:
		return nil, apierror.InvalidState("job order is %s, nothing to approve", job.Phase)
	}
	next, err := s.transition(ctx, p, "job_order.approve", job, mutate, nil)
	if err != nil {
		return nil, err
	}
	return s.respond(next), nil
}

func (s *jobOrderService) Reject(ctx context.Context, actor Actor, id uuid.UUID, req dto.RejectJobOrderRequest) (*dto.JobOrderResponse, error) {
	p, err := s.delegations.Authorize(ctx, actor, "reject_job_order", model.RoleSupervisor)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apierror.Validation("reason", "required")
	}
	job, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if job.Phase.Terminal() {
		return nil, apierror.InvalidState("job order is %s and can no longer be rejected", job.Phase)
	}
	next, err := s.transition(ctx, p, "job_order.reject", job, func(n *model.JobOrder) {
		n.Phase = model.PhaseRejected
		n.RejectedBy = ptr(p.Display())
		n.RejectionReason = &reason
	}, map[string]interface{}{"reason": reason})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, []uuid.UUID{job.ClientID, job.AssignedTo}, "job_order.rejected",
		"Job order rejected",
		fmt.Sprintf("Job order %s was rejected: %s", shortID(job.ID), reason), &job.ID)
	return s.respond(next), nil
}

func (s *jobOrderService) assignedInspector(actor Actor, job *model.JobOrder, capability string) error {
	if actor.Role != model.RoleInspector || job.AssignedTo != actor.ID {
		return apierror.PermissionDenied(capability + " (assigned inspector only)")
	}
	return nil
}

func (s *jobOrderService) StartExecution(ctx context.Context, actor Actor, id uuid.UUID) (*dto.JobOrderResponse, error) {
	job, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.assignedInspector(actor, job, "start_execution"); err != nil {
		return nil, err
	}
	if job.Phase != model.PhaseApproved || job.ReportedAt != nil {
		return nil, apierror.InvalidState("job order is %s, execution can only start after job approval", job.Phase)
	}
	next, err := s.transition(ctx, Principal{ID: actor.ID, ActorID: actor.ID}, "job_order.start", job, func(n *model.JobOrder) {
		n.Phase = model.PhaseInExecution
	}, nil)
	if err != nil {
		return nil, err
	}
	return s.respond(next), nil
}

func (s *jobOrderService) SubmitReport(ctx context.Context, actor Actor, id uuid.UUID, req dto.SubmitReportRequest) (*dto.JobOrderResponse, error) {
	if len(req.ReportData) == 0 {
		return nil, apierror.Validation("report_data", "required")
	}
	data, err := json.Marshal(req.ReportData)
	if err != nil {
		return nil, apierror.Validation("report_data", "not serializable")
	}
	job, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.assignedInspector(actor, job, "submit_report"); err != nil {
		return nil, err
	}
	reportable := job.Phase == model.PhaseInExecution ||
		(job.Phase == model.PhaseApproved && job.ReportApprovedAt == nil && job.ReportedAt == nil)
	if !reportable {
		return nil, apierror.InvalidState("job order is %s, a report cannot be submitted", job.Phase)
	}
	now := s.now()
	next, err := s.transition(ctx, Principal{ID: actor.ID, ActorID: actor.ID}, "job_order.report", job, func(n *model.JobOrder) {
		n.Phase = model.PhaseAwaitingReportApproval
		n.ReportData = datatypes.JSON(data)
		n.ReportedAt = &now
	}, nil)
	if err != nil {
		return nil, err
	}
	return s.respond(next), nil
}

// ── Payments ──────────────────────────────────────────────────────────────────

func (s *jobOrderService) SubmitPayment(ctx context.Context, actor Actor, id uuid.UUID, req dto.SubmitPaymentRequest) (*dto.PaymentResponse, error) {
	if !hasRole(actor.Role, []string{model.RoleClient, model.RoleAccountant}) {
		return nil, apierror.PermissionDenied("submit_payment")
	}
	job, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == model.RoleClient && job.ClientID != actor.ID {
		return nil, apierror.PermissionDenied("submit_payment (not your job order)")
	}
	if job.Phase.Terminal() {
		return nil, apierror.InvalidState("job order is %s, payments are closed", job.Phase)
	}
	amount := job.Amount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount.IsNegative() {
		return nil, apierror.Validation("amount", "must not be negative")
	}
	if strings.TrimSpace(req.Method) == "" {
		return nil, apierror.Validation("method", "required")
	}

	payment := &model.Payment{
		JobOrderID:  job.ID,
		Amount:      amount,
		Status:      model.PaymentPending,
		Method:      req.Method,
		SubmittedBy: actor.ID,
	}
	err = runTx(ctx, s.jobs.DB(), func(tx *gorm.DB) error {
		if _, err := s.payments.FindPending(ctx, tx, job.ID); err == nil {
			return apierror.Conflict("job order %s already has a pending payment", shortID(job.ID))
		} else if !repository.IsNotFound(err) {
			return err
		}
		if err := s.payments.Create(ctx, tx, payment); err != nil {
			if repository.IsDuplicate(err) {
				return apierror.Conflict("job order %s already has a pending payment", shortID(job.ID))
			}
			return err
		}
		if err := s.jobs.UpdatePaymentStatus(ctx, tx, job.ID, model.PaymentStatusPending); err != nil {
			return err
		}
		return audit(ctx, tx, s.logs, Principal{ID: actor.ID, ActorID: actor.ID}, "payment.submit", "payment", payment.ID,
			map[string]interface{}{"job_order_id": job.ID.String(), "amount": amount.String(), "method": req.Method})
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(changebus.TopicPayments, payment.ID.String(), "submitted")
	s.bus.Publish(changebus.TopicJobOrders, job.ID.String(), "payment_submitted")
	resp := paymentToResponse(payment)
	return &resp, nil
}

func (s *jobOrderService) pendingPayment(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (*model.Payment, error) {
	p, err := s.payments.FindPending(ctx, tx, jobID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("pending payment for job order", jobID)
		}
		return nil, err
	}
	return p, nil
}

func (s *jobOrderService) ConfirmPayment(ctx context.Context, actor Actor, id uuid.UUID) (*dto.JobOrderResponse, error) {
	p, err := s.delegations.Authorize(ctx, actor, "confirm_payment", model.RoleAccountant)
	if err != nil {
		return nil, err
	}
	job, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if job.Phase != model.PhaseApproved {
		return nil, apierror.InvalidState("job order is %s, payment can only be confirmed once approved", job.Phase)
	}

	now := s.now()
	var cert *model.Certificate
	err = runTx(ctx, s.jobs.DB(), func(tx *gorm.DB) error {
		payment, err := s.pendingPayment(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		resolved := *payment
		resolved.Status = model.PaymentConfirmed
		resolved.ConfirmedBy = &p.ActorID
		resolved.ConfirmedAt = &now
		if err := s.payments.Resolve(ctx, tx, &resolved); err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				return apierror.InvalidState("payment was resolved concurrently")
			}
			return err
		}

		next := *job
		next.Phase = model.PhasePaid
		next.PaymentStatus = model.PaymentStatusConfirmed
		if err := s.jobs.UpdateLifecycle(ctx, tx, &next, model.PhaseApproved); err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				return apierror.InvalidState("job order changed concurrently")
			}
			return err
		}

		cert = newCertificate(job.ID, now, s.validityDays)
		if err := s.certs.Create(ctx, tx, cert); err != nil {
			if repository.IsDuplicate(err) {
				return apierror.InvalidState("job order %s already has a certificate", shortID(job.ID))
			}
			return err
		}
		return audit(ctx, tx, s.logs, p, "payment.confirm", "payment", payment.ID, map[string]interface{}{
			"job_order_id":       job.ID.String(),
			"amount":             payment.Amount.String(),
			"certificate_number": cert.CertificateNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(changebus.TopicPayments, job.ID.String(), "confirmed")
	s.bus.Publish(changebus.TopicJobOrders, job.ID.String(), "paid")
	s.bus.Publish(changebus.TopicCertificates, cert.ID.String(), "issued")
	s.notifier.Notify(ctx, []uuid.UUID{job.ClientID}, "certificate.issued",
		"Certificate issued",
		fmt.Sprintf("Certificate %s was issued for job order %s. Verification code: %s", cert.CertificateNumber, shortID(job.ID), cert.VerificationCode), &job.ID)
	return s.Get(ctx, job.ID)
}

func (s *jobOrderService) RejectPayment(ctx context.Context, actor Actor, id uuid.UUID, req dto.RejectPaymentRequest) (*dto.PaymentResponse, error) {
	p, err := s.delegations.Authorize(ctx, actor, "reject_payment", model.RoleAccountant)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apierror.Validation("reason", "required")
	}
	job, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	var resolved model.Payment
	err = runTx(ctx, s.jobs.DB(), func(tx *gorm.DB) error {
		payment, err := s.pendingPayment(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		resolved = *payment
		resolved.Status = model.PaymentFailed
		resolved.FailureReason = &reason
		if err := s.payments.Resolve(ctx, tx, &resolved); err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				return apierror.InvalidState("payment was resolved concurrently")
			}
			return err
		}
		if err := s.jobs.UpdatePaymentStatus(ctx, tx, job.ID, model.PaymentStatusFailed); err != nil {
			return err
		}
		return audit(ctx, tx, s.logs, p, "payment.reject", "payment", payment.ID, map[string]interface{}{
			"job_order_id": job.ID.String(),
			"reason":       reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(changebus.TopicPayments, resolved.ID.String(), "rejected")
	s.bus.Publish(changebus.TopicJobOrders, job.ID.String(), "payment_rejected")
	body := fmt.Sprintf("Payment of %s for job order %s was rejected: %s", resolved.Amount.StringFixed(2), shortID(job.ID), reason)
	s.notifier.Notify(ctx, []uuid.UUID{job.ClientID}, "payment.rejected", "Payment rejected", body, &job.ID)
	s.notifier.NotifyRole(ctx, model.RoleManager, "payment.rejected", "Payment rejected", body, &job.ID)
	resp := paymentToResponse(&resolved)
	return &resp, nil
}

// ── Certificates ──────────────────────────────────────────────────────────────

// verificationCodeLen is 64 bits of the digest.
const verificationCodeLen = 16

// newCertificate derives the number and verification code from the job id
// and issue date, so both are stable for a given confirmation. The number
// carries the whole job id: it is unique exactly when the job is.
func newCertificate(jobID uuid.UUID, issued time.Time, validityDays int) *model.Certificate {
	issued = issued.UTC()
	hexID := strings.ToUpper(strings.ReplaceAll(jobID.String(), "-", ""))
	number := fmt.Sprintf("CERT-%d-%s", issued.Year(), hexID)
	sum := sha256.Sum256([]byte(number + "|" + jobID.String() + "|" + issued.Format(time.RFC3339)))
	return &model.Certificate{
		JobOrderID:        jobID,
		CertificateNumber: number,
		VerificationCode:  strings.ToUpper(hex.EncodeToString(sum[:]))[:verificationCodeLen],
		IssueDate:         issued,
		ExpiryDate:        issued.AddDate(0, 0, validityDays),
		Status:            "valid",
	}
}

func (s *jobOrderService) VerifyCertificate(ctx context.Context, code string) (*dto.CertificateResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apierror.Validation("code", "required")
	}
	c, err := s.certs.FindByCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("certificate", code)
		}
		return nil, err
	}
	return certificateToResponse(c, s.now()), nil
}

func shortID(id uuid.UUID) string { return id.String()[:8] }
