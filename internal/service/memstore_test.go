package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── In-memory repositories ───────────────────────────────────────────────────
//
// memStore backs every repository interface with maps guarded by one mutex.
// Conditional updates mirror the SQL WHERE clauses so ErrConditionFailed and
// gorm.ErrDuplicatedKey surface exactly as they do against postgres. There is
// no rollback: a nil tx runs each call directly.

type memStore struct {
	mu    sync.Mutex
	clock time.Time

	users         map[uuid.UUID]model.User
	lots          map[uuid.UUID]model.Lot
	holdings      map[uuid.UUID]model.StockHolding
	transfers     []model.Transfer
	requests      map[uuid.UUID]model.StockRequest
	tags          map[string]model.Tag
	jobs          map[uuid.UUID]model.JobOrder
	allocations   []model.StickerAllocation
	payments      map[uuid.UUID]model.Payment
	certificates  map[uuid.UUID]model.Certificate
	delegations   []model.Delegation
	notifications map[uuid.UUID]model.Notification
	logs          []model.ActionLog
}

func newMemStore() *memStore {
	return &memStore{
		clock:         time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
		users:         make(map[uuid.UUID]model.User),
		lots:          make(map[uuid.UUID]model.Lot),
		holdings:      make(map[uuid.UUID]model.StockHolding),
		requests:      make(map[uuid.UUID]model.StockRequest),
		tags:          make(map[string]model.Tag),
		jobs:          make(map[uuid.UUID]model.JobOrder),
		payments:      make(map[uuid.UUID]model.Payment),
		certificates:  make(map[uuid.UUID]model.Certificate),
		notifications: make(map[uuid.UUID]model.Notification),
	}
}

// tick returns strictly increasing timestamps so creation order is stable.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// ── Users ─────────────────────────────────────────────────────────────────────

type memUsers struct{ *memStore }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	ensureID(&u.ID)
	u.CreatedAt = r.tick()
	r.users[u.ID] = *u
	return nil
}

func (r memUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r memUsers) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memUsers) List(_ context.Context, role string) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		if u.Active && (role == "" || u.Role == role) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memUsers) FindByNameAndRole(_ context.Context, name, role string) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		if u.Name == name && u.Role == role && u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

// ── Lots ──────────────────────────────────────────────────────────────────────

type memLots struct{ *memStore }

func (r memLots) DB() *gorm.DB { return nil }

func (r memLots) Create(_ context.Context, _ *gorm.DB, l *model.Lot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.lots {
		if existing.LotNumber == l.LotNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	ensureID(&l.ID)
	l.CreatedAt = r.tick()
	r.lots[l.ID] = *l
	return nil
}

func (r memLots) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &l, nil
}

func (r memLots) FindByNumber(_ context.Context, _ *gorm.DB, lotNumber string) (*model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lots {
		if l.LotNumber == lotNumber {
			return &l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memLots) sorted(keep func(model.Lot) bool) []model.Lot {
	var out []model.Lot
	for _, l := range r.lots {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r memLots) List(_ context.Context, status string) ([]model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(l model.Lot) bool { return status == "" || l.Status == status }), nil
}

func (r memLots) ListAvailable(_ context.Context, _ *gorm.DB, minQty int) ([]model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(l model.Lot) bool { return l.Status == model.LotActive && l.AvailableQty >= minQty }), nil
}

func (r memLots) Debit(_ context.Context, _ *gorm.DB, id uuid.UUID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lots[id]
	if !ok || l.Status != model.LotActive || l.AvailableQty < qty {
		return repository.ErrConditionFailed
	}
	l.IssuedQty += qty
	l.AvailableQty -= qty
	if l.AvailableQty <= 0 {
		l.Status = model.LotDepleted
	}
	r.lots[id] = l
	return nil
}

// ── Holdings ──────────────────────────────────────────────────────────────────

type memHoldings struct{ *memStore }

func (r memHoldings) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.StockHolding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.holdings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &h, nil
}

func (r memHoldings) findByLotAndHolder(lotID, holderID uuid.UUID) (model.StockHolding, bool) {
	for _, h := range r.holdings {
		if h.LotID == lotID && h.HolderID == holderID {
			return h, true
		}
	}
	return model.StockHolding{}, false
}

func (r memHoldings) FindByLotAndHolder(_ context.Context, _ *gorm.DB, lotID, holderID uuid.UUID) (*model.StockHolding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.findByLotAndHolder(lotID, holderID)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &h, nil
}

func (r memHoldings) List(_ context.Context, filter dto.HoldingFilter) ([]model.StockHolding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockHolding
	for _, h := range r.holdings {
		if filter.HolderID != "" && h.HolderID.String() != filter.HolderID {
			continue
		}
		if filter.LotID != "" && h.LotID.String() != filter.LotID {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (r memHoldings) ListByHolder(ctx context.Context, holderID uuid.UUID) ([]model.StockHolding, error) {
	return r.List(ctx, dto.HoldingFilter{HolderID: holderID.String()})
}

func (r memHoldings) Credit(_ context.Context, _ *gorm.DB, h *model.StockHolding, qty int) (*model.StockHolding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.findByLotAndHolder(h.LotID, h.HolderID); ok {
		existing.Qty += qty
		r.holdings[existing.ID] = existing
		return &existing, nil
	}
	row := *h
	ensureID(&row.ID)
	row.Qty = qty
	row.AllocatedQty = 0
	row.IssuedAt = r.tick()
	r.holdings[row.ID] = row
	return &row, nil
}

func (r memHoldings) Debit(_ context.Context, _ *gorm.DB, id uuid.UUID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.holdings[id]
	if !ok || h.Qty-h.AllocatedQty < qty {
		return repository.ErrConditionFailed
	}
	h.Qty -= qty
	r.holdings[id] = h
	return nil
}

func (r memHoldings) Allocate(_ context.Context, _ *gorm.DB, id uuid.UUID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.holdings[id]
	if !ok || h.Qty-h.AllocatedQty < qty {
		return repository.ErrConditionFailed
	}
	h.AllocatedQty += qty
	r.holdings[id] = h
	return nil
}

func (r memHoldings) SumByLot(_ context.Context, lotID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := 0
	for _, h := range r.holdings {
		if h.LotID == lotID {
			sum += h.Qty
		}
	}
	return sum, nil
}

// ── Transfers ─────────────────────────────────────────────────────────────────

type memTransfers struct{ *memStore }

func (r memTransfers) Create(_ context.Context, _ *gorm.DB, t *model.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ensureID(&t.ID)
	t.CreatedAt = r.tick()
	r.transfers = append(r.transfers, *t)
	return nil
}

func (r memTransfers) List(_ context.Context, filter dto.TransferFilter) ([]model.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Transfer
	for _, t := range r.transfers {
		if filter.LotID != "" && t.LotID.String() != filter.LotID {
			continue
		}
		if filter.HolderID != "" && t.FromHolderID.String() != filter.HolderID && t.ToHolderID.String() != filter.HolderID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ── Requests ──────────────────────────────────────────────────────────────────

type memRequests struct{ *memStore }

func (r memRequests) Create(_ context.Context, _ *gorm.DB, req *model.StockRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ensureID(&req.ID)
	req.CreatedAt = r.tick()
	r.requests[req.ID] = *req
	return nil
}

func (r memRequests) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.StockRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &req, nil
}

func (r memRequests) List(_ context.Context, filter dto.RequestFilter) ([]model.StockRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockRequest
	for _, req := range r.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.RequesterID != "" && (req.RequesterID == nil || req.RequesterID.String() != filter.RequesterID) {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memRequests) Resolve(_ context.Context, _ *gorm.DB, req *model.StockRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[req.ID]
	if !ok || stored.Status != model.RequestPending {
		return repository.ErrConditionFailed
	}
	r.requests[req.ID] = *req
	return nil
}

// ── Tags ──────────────────────────────────────────────────────────────────────

type memTags struct{ *memStore }

func (r memTags) Create(_ context.Context, _ *gorm.DB, t *model.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tags[t.TagNumber]; ok {
		return gorm.ErrDuplicatedKey
	}
	ensureID(&t.ID)
	t.CreatedAt = r.tick()
	r.tags[t.TagNumber] = *t
	return nil
}

func (r memTags) FindByNumber(_ context.Context, _ *gorm.DB, tagNumber string) (*model.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[tagNumber]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (r memTags) List(_ context.Context, status string) ([]model.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Tag
	for _, t := range r.tags {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TagNumber < out[j].TagNumber })
	return out, nil
}

func (r memTags) ListByJobOrder(_ context.Context, jobOrderID uuid.UUID) ([]model.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tagsOf(jobOrderID), nil
}

func (r memTags) tagsOf(jobOrderID uuid.UUID) []model.Tag {
	var out []model.Tag
	for _, t := range r.tags {
		if t.JobOrderID != nil && *t.JobOrderID == jobOrderID {
			out = append(out, t)
		}
	}
	return out
}

func (r memTags) Transition(_ context.Context, _ *gorm.DB, t *model.Tag, from ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tags[t.TagNumber]
	if !ok || !hasRole(stored.Status, from) {
		return repository.ErrConditionFailed
	}
	r.tags[t.TagNumber] = *t
	return nil
}

// ── Job orders ────────────────────────────────────────────────────────────────

type memJobs struct{ *memStore }

func (r memJobs) DB() *gorm.DB { return nil }

func (r memJobs) Create(_ context.Context, _ *gorm.DB, j *model.JobOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j.OfflineID != nil {
		for _, existing := range r.jobs {
			if existing.OfflineID != nil && *existing.OfflineID == *j.OfflineID {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	ensureID(&j.ID)
	j.CreatedAt = r.tick()
	row := *j
	row.StickerAllocations, row.Tags, row.Payments, row.Certificate = nil, nil, nil, nil
	r.jobs[j.ID] = row
	return nil
}

func (r memJobs) assemble(j model.JobOrder) *model.JobOrder {
	for _, a := range r.allocations {
		if a.JobOrderID == j.ID {
			j.StickerAllocations = append(j.StickerAllocations, a)
		}
	}
	j.Tags = memTags{r.memStore}.tagsOf(j.ID)
	var ps []model.Payment
	for _, p := range r.payments {
		if p.JobOrderID == j.ID {
			ps = append(ps, p)
		}
	}
	sort.Slice(ps, func(a, b int) bool { return ps[a].CreatedAt.Before(ps[b].CreatedAt) })
	j.Payments = ps
	for _, c := range r.certificates {
		if c.JobOrderID == j.ID {
			c := c
			j.Certificate = &c
		}
	}
	return &j
}

func (r memJobs) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.JobOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.assemble(j), nil
}

func (r memJobs) FindByOfflineID(_ context.Context, offlineID string) (*model.JobOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.OfflineID != nil && *j.OfflineID == offlineID {
			return r.assemble(j), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memJobs) List(_ context.Context, filter dto.JobOrderFilter) ([]model.JobOrder, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.JobOrder
	for _, j := range r.jobs {
		if filter.Phase != "" && string(j.Phase) != filter.Phase {
			continue
		}
		if filter.AssignedTo != "" && j.AssignedTo.String() != filter.AssignedTo {
			continue
		}
		if filter.ClientID != "" && j.ClientID.String() != filter.ClientID {
			continue
		}
		out = append(out, *r.assemble(j))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r memJobs) UpdateLifecycle(_ context.Context, _ *gorm.DB, j *model.JobOrder, from ...model.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[j.ID]
	if !ok {
		return repository.ErrConditionFailed
	}
	match := false
	for _, p := range from {
		if stored.Phase == p {
			match = true
		}
	}
	if !match {
		return repository.ErrConditionFailed
	}
	stored.Phase = j.Phase
	stored.PaymentStatus = j.PaymentStatus
	stored.ReportData = j.ReportData
	stored.ReportedAt = j.ReportedAt
	stored.ApprovedBy = j.ApprovedBy
	stored.ApprovedAt = j.ApprovedAt
	stored.ReportApprovedAt = j.ReportApprovedAt
	stored.RejectedBy = j.RejectedBy
	stored.RejectionReason = j.RejectionReason
	r.jobs[j.ID] = stored
	return nil
}

func (r memJobs) UpdatePaymentStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	j.PaymentStatus = status
	r.jobs[id] = j
	return nil
}

func (r memJobs) SetPhotoKey(_ context.Context, id uuid.UUID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	j.PhotoKey = &key
	r.jobs[id] = j
	return nil
}

func (r memJobs) CreateAllocation(_ context.Context, _ *gorm.DB, a *model.StickerAllocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ensureID(&a.ID)
	a.CreatedAt = r.tick()
	r.allocations = append(r.allocations, *a)
	return nil
}

// ── Payments / certificates ───────────────────────────────────────────────────

type memPayments struct{ *memStore }

func (r memPayments) Create(_ context.Context, _ *gorm.DB, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Status == model.PaymentPending {
		for _, existing := range r.payments {
			if existing.JobOrderID == p.JobOrderID && existing.Status == model.PaymentPending {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	ensureID(&p.ID)
	p.CreatedAt = r.tick()
	r.payments[p.ID] = *p
	return nil
}

func (r memPayments) FindPending(_ context.Context, _ *gorm.DB, jobOrderID uuid.UUID) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.JobOrderID == jobOrderID && p.Status == model.PaymentPending {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memPayments) ListByJobOrder(_ context.Context, jobOrderID uuid.UUID) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Payment
	for _, p := range r.payments {
		if p.JobOrderID == jobOrderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (r memPayments) Resolve(_ context.Context, _ *gorm.DB, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[p.ID]
	if !ok || stored.Status != model.PaymentPending {
		return repository.ErrConditionFailed
	}
	r.payments[p.ID] = *p
	return nil
}

type memCertificates struct{ *memStore }

func (r memCertificates) Create(_ context.Context, _ *gorm.DB, c *model.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.certificates {
		if existing.JobOrderID == c.JobOrderID || existing.CertificateNumber == c.CertificateNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	ensureID(&c.ID)
	c.CreatedAt = r.tick()
	r.certificates[c.ID] = *c
	return nil
}

func (r memCertificates) FindByJobOrder(_ context.Context, jobOrderID uuid.UUID) (*model.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.certificates {
		if c.JobOrderID == jobOrderID {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memCertificates) FindByCode(_ context.Context, code string) (*model.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.certificates {
		if c.VerificationCode == code {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Delegations / notifications / audit ───────────────────────────────────────

type memDelegations struct{ *memStore }

func (r memDelegations) DB() *gorm.DB { return nil }

func (r memDelegations) ListByDelegator(_ context.Context, delegatorID uuid.UUID) ([]model.Delegation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Delegation
	for _, d := range r.delegations {
		if d.DelegatorID == delegatorID {
			if u, ok := r.users[d.DelegateID]; ok {
				u := u
				d.Delegate = &u
			}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Priority < out[b].Priority })
	return out, nil
}

func (r memDelegations) FindActive(_ context.Context, delegatorID, delegateID uuid.UUID) (*model.Delegation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.delegations {
		if d.DelegatorID == delegatorID && d.DelegateID == delegateID && d.Active {
			return &d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memDelegations) Replace(_ context.Context, _ *gorm.DB, delegatorID uuid.UUID, ds []model.Delegation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.delegations[:0]
	for _, d := range r.delegations {
		if d.DelegatorID != delegatorID {
			kept = append(kept, d)
		}
	}
	for _, d := range ds {
		ensureID(&d.ID)
		kept = append(kept, d)
	}
	r.delegations = kept
	return nil
}

type memNotifications struct{ *memStore }

func (r memNotifications) Create(_ context.Context, _ *gorm.DB, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ensureID(&n.ID)
	n.CreatedAt = r.tick()
	r.notifications[n.ID] = *n
	return nil
}

func (r memNotifications) FindByID(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &n, nil
}

func (r memNotifications) ListByRecipient(_ context.Context, recipientID uuid.UUID) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (r memNotifications) UpdateDelivery(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.notifications[n.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.EmailStatus = n.EmailStatus
	stored.Attempts = n.Attempts
	stored.NextRetryAt = n.NextRetryAt
	stored.LastError = n.LastError
	r.notifications[n.ID] = stored
	return nil
}

func (r memNotifications) ListDueForRetry(_ context.Context, now time.Time, limit int) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.notifications {
		if n.EmailStatus == model.EmailFailed && n.NextRetryAt != nil && !n.NextRetryAt.After(now) {
			out = append(out, n)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memLogs struct{ *memStore }

func (r memLogs) Create(_ context.Context, _ *gorm.DB, a *model.ActionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ensureID(&a.ID)
	a.CreatedAt = r.tick()
	r.logs = append(r.logs, *a)
	return nil
}

func (r memLogs) ListByEntity(_ context.Context, entityID uuid.UUID) ([]model.ActionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ActionLog
	for _, a := range r.logs {
		if a.EntityID == entityID {
			out = append(out, a)
		}
	}
	return out, nil
}
