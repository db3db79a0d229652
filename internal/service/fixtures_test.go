package service

import (
	"context"
	"sync"
	"testing"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/infra"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/worker"

	"github.com/stretchr/testify/require"
)

// fakeEmails records enqueued notification jobs.
type fakeEmails struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeEmails) EnqueueNotificationEmail(_ context.Context, p worker.NotificationEmailPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, p.NotificationID)
	return nil
}

// fakeObjects is an in-memory ObjectStore.
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeObjects) Put(_ context.Context, key, _ string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return nil
}

type testEnv struct {
	store *memStore
	hub   *changebus.Hub

	emails  *fakeEmails
	objects *fakeObjects

	delegations DelegationService
	alloc       AllocationService
	tags        TagService
	jobs        JobOrderService
	notify      NotificationService
	export      ExportService

	manager    Actor
	supervisor Actor
	accountant Actor
	inspector  Actor
	client     Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := newMemStore()
	hub := changebus.NewHub("test", 256)
	locker := infra.NewLocalLocker()
	emails := &fakeEmails{}
	objects := &fakeObjects{}

	users := memUsers{st}
	delegations := NewDelegationService(memDelegations{st}, users, hub)
	notify := NewNotificationService(memNotifications{st}, users, emails, hub)

	env := &testEnv{
		store:       st,
		hub:         hub,
		emails:      emails,
		objects:     objects,
		delegations: delegations,
		notify:      notify,
		alloc: NewAllocationService(memLots{st}, memHoldings{st}, memTransfers{st}, memRequests{st},
			memJobs{st}, users, memLogs{st}, delegations, locker, hub),
		tags: NewTagService(memTags{st}, memJobs{st}, hub),
		jobs: NewJobOrderService(memJobs{st}, memPayments{st}, memCertificates{st}, memTags{st},
			memHoldings{st}, users, memLogs{st}, delegations, locker, notify, objects, hub, 365),
		export: NewExportService(memLots{st}, memHoldings{st}, memRequests{st}, memTags{st}),
	}
	env.manager = env.addUser(t, "manager", "Mara Manager", model.RoleManager, false)
	env.supervisor = env.addUser(t, "super", "Sam Supervisor", model.RoleSupervisor, false)
	env.accountant = env.addUser(t, "acct", "Ada Accountant", model.RoleAccountant, false)
	env.inspector = env.addUser(t, "insp", "Ian Inspector", model.RoleInspector, true)
	env.client = env.addUser(t, "client", "Acme Ltd", model.RoleClient, false)
	return env
}

func (e *testEnv) addUser(t *testing.T, username, name, role string, canCreate bool) Actor {
	t.Helper()
	email := username + "@example.com"
	u := &model.User{Username: username, Name: name, Email: &email, Role: role, CanCreateJobOrders: canCreate, Active: true}
	require.NoError(t, memUsers{e.store}.Create(context.Background(), u))
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role, CanCreateJobOrders: u.CanCreateJobOrders}
}

func (e *testEnv) createLot(t *testing.T, number string, qty int) dto.LotResponse {
	t.Helper()
	lot, err := e.alloc.CreateLot(context.Background(), e.manager, dto.CreateLotRequest{LotNumber: number, Size: "A4", TotalQty: qty})
	require.NoError(t, err)
	return *lot
}

func (e *testEnv) issue(t *testing.T, lotID string, holder Actor, qty int) dto.HoldingResponse {
	t.Helper()
	h, err := e.alloc.IssueStock(context.Background(), e.manager, dto.IssueStockRequest{
		LotID: lotID, HolderID: holder.ID.String(), HolderType: model.HolderInspector, Qty: qty,
	})
	require.NoError(t, err)
	return *h
}

// conserved asserts Σ holdings = issued and available = total - issued for every lot.
func (e *testEnv) conserved(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	lots, err := memLots{e.store}.List(ctx, "")
	require.NoError(t, err)
	for _, l := range lots {
		sum, err := memHoldings{e.store}.SumByLot(ctx, l.ID)
		require.NoError(t, err)
		require.Equal(t, l.IssuedQty, sum, "lot %s: holdings must sum to issued", l.LotNumber)
		require.Equal(t, l.TotalQty-l.IssuedQty, l.AvailableQty, "lot %s: available", l.LotNumber)
		require.GreaterOrEqual(t, l.AvailableQty, 0)
	}
}
