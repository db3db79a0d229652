package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/apierror"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) jobRequest() dto.CreateJobOrderRequest {
	return dto.CreateJobOrderRequest{
		ClientID:     e.client.ID.String(),
		ServiceTypes: []string{"crane inspection"},
		Location:     "Yard 4",
		Amount:       decimal.NewFromInt(250),
	}
}

func (e *testEnv) newJob(t *testing.T, mutate func(*dto.CreateJobOrderRequest)) dto.JobOrderResponse {
	t.Helper()
	req := e.jobRequest()
	if mutate != nil {
		mutate(&req)
	}
	job, err := e.jobs.Create(context.Background(), e.inspector, req)
	require.NoError(t, err)
	return *job
}

func jobID(j *dto.JobOrderResponse) uuid.UUID { return uuid.MustParse(j.ID) }

func TestCreateJobOrder_OpensInvoiceAndAllocates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lot := env.createLot(t, "L1", 10)
	h := env.issue(t, lot.ID, env.inspector, 2)
	_, err := env.tags.CreateTag(ctx, env.manager, dto.CreateTagRequest{TagNumber: "T-100"})
	require.NoError(t, err)

	job := env.newJob(t, func(r *dto.CreateJobOrderRequest) {
		r.StockHoldingID = &h.ID
		r.StickerNumber = ptr("S-9")
		r.TagNumber = ptr("T-100")
	})

	assert.Equal(t, string(model.PhaseAwaitingJobApproval), job.Phase)
	assert.Equal(t, "Pending", job.Status)
	assert.Equal(t, model.PaymentStatusPending, job.PaymentStatus)
	assert.Equal(t, env.inspector.ID.String(), job.AssignedTo, "assignee defaults to creating inspector")
	require.Len(t, job.Payments, 1)
	assert.Equal(t, "invoice", job.Payments[0].Method)
	assert.True(t, job.Payments[0].Amount.Equal(decimal.NewFromInt(250)))
	require.Len(t, job.StickerAllocations, 1)
	assert.Equal(t, "S-9", *job.StickerAllocations[0].StickerNumber)
	require.Len(t, job.Tags, 1)
	assert.Equal(t, model.TagAllocated, job.Tags[0].Status)
	env.conserved(t)
}

func TestCreateJobOrder_ZeroAmountHasNoPayment(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t, func(r *dto.CreateJobOrderRequest) { r.Amount = decimal.Zero })
	assert.Equal(t, model.PaymentStatusNone, job.PaymentStatus)
	assert.Empty(t, job.Payments)
}

func TestCreateJobOrder_Permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plain := env.addUser(t, "plain", "Pat Plain", model.RoleInspector, false)

	_, err := env.jobs.Create(ctx, plain, env.jobRequest())
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	_, err = env.jobs.Create(ctx, env.client, env.jobRequest())
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	req := env.jobRequest()
	_, err = env.jobs.Create(ctx, env.supervisor, req)
	assert.ErrorIs(t, err, apierror.ErrValidation, "supervisor must name the inspector")
	req.AssignedTo = env.inspector.ID.String()
	_, err = env.jobs.Create(ctx, env.supervisor, req)
	assert.NoError(t, err)

	bad := env.jobRequest()
	bad.ClientID = env.inspector.ID.String()
	_, err = env.jobs.Create(ctx, env.inspector, bad)
	assert.ErrorIs(t, err, apierror.ErrValidation)
}

func TestCreateJobOrder_InsufficientStockWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lot := env.createLot(t, "L1", 10)
	h := env.issue(t, lot.ID, env.inspector, 1)
	env.newJob(t, func(r *dto.CreateJobOrderRequest) { r.StockHoldingID = &h.ID })

	_, err := env.jobs.Create(ctx, env.inspector, func() dto.CreateJobOrderRequest {
		r := env.jobRequest()
		r.StockHoldingID = &h.ID
		return r
	}())
	require.ErrorIs(t, err, apierror.ErrInsufficientStock)

	list, err := env.jobs.List(ctx, dto.JobOrderFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)
}

func TestCreateJobOrder_StoresPhoto(t *testing.T) {
	env := newTestEnv(t)
	png := []byte("\x89PNG\r\n\x1a\n0000")
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	job := env.newJob(t, func(r *dto.CreateJobOrderRequest) { r.PhotoBase64 = &encoded })

	require.NotNil(t, job.PhotoKey)
	assert.True(t, strings.HasSuffix(*job.PhotoKey, ".png"))
	assert.Equal(t, png, env.objects.objects[*job.PhotoKey])

	bad := "%%%"
	_, err := env.jobs.Create(context.Background(), env.inspector, func() dto.CreateJobOrderRequest {
		r := env.jobRequest()
		r.PhotoBase64 = &bad
		return r
	}())
	assert.ErrorIs(t, err, apierror.ErrValidation)
}

func TestJobOrder_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	job := env.newJob(t, nil)
	id := jobID(&job)

	approved, err := env.jobs.Approve(ctx, env.supervisor, id)
	require.NoError(t, err)
	assert.Equal(t, string(model.PhaseApproved), approved.Phase)
	assert.Equal(t, env.supervisor.ID.String(), *approved.ApprovedBy)

	started, err := env.jobs.StartExecution(ctx, env.inspector, id)
	require.NoError(t, err)
	assert.Equal(t, string(model.PhaseInExecution), started.Phase)
	assert.Equal(t, "Completed", started.Status)

	reported, err := env.jobs.SubmitReport(ctx, env.inspector, id, dto.SubmitReportRequest{ReportData: map[string]interface{}{"load_test": "passed"}})
	require.NoError(t, err)
	assert.Equal(t, string(model.PhaseAwaitingReportApproval), reported.Phase)
	assert.Equal(t, "passed", reported.ReportData["load_test"])

	final, err := env.jobs.Approve(ctx, env.supervisor, id)
	require.NoError(t, err)
	assert.Equal(t, string(model.PhaseApproved), final.Phase)
	assert.NotNil(t, final.ReportApprovedAt)

	_, err = env.jobs.StartExecution(ctx, env.inspector, id)
	assert.ErrorIs(t, err, apierror.ErrInvalidState, "report already submitted")

	paid, err := env.jobs.ConfirmPayment(ctx, env.accountant, id)
	require.NoError(t, err)
	assert.Equal(t, string(model.PhasePaid), paid.Phase)
	assert.Equal(t, "Paid", paid.Status)
	assert.Equal(t, model.PaymentStatusConfirmed, paid.PaymentStatus)
	require.NotNil(t, paid.Certificate)
	assert.True(t, strings.HasPrefix(paid.Certificate.CertificateNumber, "CERT-"))
	assert.Len(t, paid.Certificate.VerificationCode, 10)
	assert.True(t, paid.Certificate.Valid)

	_, err = env.jobs.ConfirmPayment(ctx, env.accountant, id)
	assert.ErrorIs(t, err, apierror.ErrInvalidState, "second confirmation")
	assert.Len(t, env.store.certificates, 1, "exactly one certificate")

	cert, err := env.jobs.VerifyCertificate(ctx, strings.ToLower(paid.Certificate.VerificationCode))
	require.NoError(t, err)
	assert.Equal(t, paid.Certificate.CertificateNumber, cert.CertificateNumber)

	ns, err := env.notify.List(ctx, env.client)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "certificate.issued", ns[0].Kind)
	assert.Equal(t, model.EmailQueued, ns[0].EmailStatus)
	assert.Len(t, env.emails.ids, 1)
}

func TestJobOrder_PaymentRejectionThenResubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	job := env.newJob(t, nil)
	id := jobID(&job)
	_, err := env.jobs.Approve(ctx, env.supervisor, id)
	require.NoError(t, err)

	_, err = env.jobs.SubmitPayment(ctx, env.client, id, dto.SubmitPaymentRequest{Method: "cash"})
	assert.ErrorIs(t, err, apierror.ErrConflict, "invoice is still pending")

	rejected, err := env.jobs.RejectPayment(ctx, env.accountant, id, dto.RejectPaymentRequest{Reason: "bounced"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, rejected.Status)

	after, err := env.jobs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(model.PhaseApproved), after.Phase, "phase unchanged")
	assert.Equal(t, model.PaymentStatusFailed, after.PaymentStatus)

	clientNotes, err := env.notify.List(ctx, env.client)
	require.NoError(t, err)
	require.Len(t, clientNotes, 1)
	assert.Equal(t, "payment.rejected", clientNotes[0].Kind)
	managerNotes, err := env.notify.List(ctx, env.manager)
	require.NoError(t, err)
	assert.Len(t, managerNotes, 1)

	_, err = env.jobs.ConfirmPayment(ctx, env.accountant, id)
	assert.ErrorIs(t, err, apierror.ErrNotFound, "no pending payment")

	other := env.addUser(t, "client2", "Other Co", model.RoleClient, false)
	_, err = env.jobs.SubmitPayment(ctx, other, id, dto.SubmitPaymentRequest{Method: "cash"})
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	p, err := env.jobs.SubmitPayment(ctx, env.client, id, dto.SubmitPaymentRequest{Method: "mobile_money"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(250)))

	paid, err := env.jobs.ConfirmPayment(ctx, env.accountant, id)
	require.NoError(t, err)
	assert.Equal(t, string(model.PhasePaid), paid.Phase)
	assert.Len(t, paid.Payments, 2)
}

func TestJobOrder_ConfirmRequiresApproval(t *testing.T) {
	env := newTestEnv(t)
	job := env.newJob(t, nil)
	_, err := env.jobs.ConfirmPayment(context.Background(), env.accountant, jobID(&job))
	assert.ErrorIs(t, err, apierror.ErrInvalidState)
	_, err = env.jobs.ConfirmPayment(context.Background(), env.inspector, jobID(&job))
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
}

func TestJobOrder_Reject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	job := env.newJob(t, nil)
	id := jobID(&job)

	_, err := env.jobs.Reject(ctx, env.inspector, id, dto.RejectJobOrderRequest{Reason: "nope"})
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	rejected, err := env.jobs.Reject(ctx, env.supervisor, id, dto.RejectJobOrderRequest{Reason: "duplicate booking"})
	require.NoError(t, err)
	assert.Equal(t, string(model.PhaseRejected), rejected.Phase)
	assert.Equal(t, "duplicate booking", *rejected.RejectionReason)

	_, err = env.jobs.Reject(ctx, env.supervisor, id, dto.RejectJobOrderRequest{Reason: "again"})
	assert.ErrorIs(t, err, apierror.ErrInvalidState)
	_, err = env.jobs.Approve(ctx, env.supervisor, id)
	assert.ErrorIs(t, err, apierror.ErrInvalidState)

	for _, a := range []Actor{env.client, env.inspector} {
		ns, err := env.notify.List(ctx, a)
		require.NoError(t, err)
		require.Len(t, ns, 1)
		assert.Equal(t, "job_order.rejected", ns[0].Kind)
	}
}

func TestJobOrder_OnlyAssignedInspectorExecutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	other := env.addUser(t, "insp2", "Olga Other", model.RoleInspector, false)
	job := env.newJob(t, nil)
	id := jobID(&job)
	_, err := env.jobs.Approve(ctx, env.supervisor, id)
	require.NoError(t, err)

	_, err = env.jobs.StartExecution(ctx, other, id)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	// the report may be filed straight from approved
	reported, err := env.jobs.SubmitReport(ctx, env.inspector, id, dto.SubmitReportRequest{ReportData: map[string]interface{}{"ok": true}})
	require.NoError(t, err)
	assert.Equal(t, string(model.PhaseAwaitingReportApproval), reported.Phase)
}

func TestJobOrder_ApproveByDelegate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deputy := env.addUser(t, "deputy", "Dee Deputy", model.RoleInspector, false)
	_, err := env.delegations.SetDelegation(ctx, env.supervisor, env.supervisor.ID, dto.SetDelegationRequest{
		Delegates: []dto.DelegateEntry{{UserID: deputy.ID.String(), Priority: 1}},
	})
	require.NoError(t, err)

	job := env.newJob(t, nil)
	deputy.OnBehalfOf = &env.supervisor.ID
	approved, err := env.jobs.Approve(ctx, deputy, jobID(&job))
	require.NoError(t, err)
	assert.Equal(t, env.supervisor.ID.String(), *approved.ApprovedBy)

	stranger := env.addUser(t, "stranger", "Stan Stranger", model.RoleInspector, false)
	stranger.OnBehalfOf = &env.supervisor.ID
	job2 := env.newJob(t, nil)
	_, err = env.jobs.Approve(ctx, stranger, jobID(&job2))
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
}

func TestCommitOffline_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lot := env.createLot(t, "L1", 10)
	h := env.issue(t, lot.ID, env.inspector, 3)

	req := dto.OfflineJobOrderRequest{OfflineID: "offline-" + uuid.NewString(), CreateJobOrderRequest: env.jobRequest()}
	req.StockHoldingID = &h.ID

	first, replayed, err := env.jobs.CommitOffline(ctx, env.inspector, req)
	require.NoError(t, err)
	assert.False(t, replayed)
	require.NotNil(t, first.OfflineID)

	second, replayed, err := env.jobs.CommitOffline(ctx, env.inspector, req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	hs, err := env.alloc.ListHoldings(ctx, dto.HoldingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, hs[0].AllocatedQty, "replay does not allocate twice")
}

func TestSyncBatch_ReportsConflictsPerItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lot := env.createLot(t, "L1", 10)
	h := env.issue(t, lot.ID, env.inspector, 1)

	mk := func() dto.OfflineJobOrderRequest {
		r := dto.OfflineJobOrderRequest{OfflineID: "offline-" + uuid.NewString(), CreateJobOrderRequest: env.jobRequest()}
		r.StockHoldingID = &h.ID
		return r
	}
	batch := dto.SyncBatchRequest{JobOrders: []dto.OfflineJobOrderRequest{mk(), mk()}}
	resp, err := env.jobs.SyncBatch(ctx, env.inspector, batch)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Empty(t, resp.Results[0].Kind)
	assert.NotEmpty(t, resp.Results[0].JobOrderID)
	assert.Equal(t, string(apierror.KindConflict), resp.Results[1].Kind)
	assert.Empty(t, resp.Results[1].JobOrderID)
	env.conserved(t)
}

func TestNewCertificate_Deterministic(t *testing.T) {
	id := uuid.MustParse("0a1b2c3d-0000-4000-8000-000000000000")
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := newCertificate(id, issued, 30)
	b := newCertificate(id, issued, 30)

	assert.Equal(t, "CERT-2026-0A1B2C3D000040008000000000000000", a.CertificateNumber)
	assert.Equal(t, a.VerificationCode, b.VerificationCode)
	assert.Len(t, a.VerificationCode, 16)
	assert.Equal(t, strings.ToUpper(a.VerificationCode), a.VerificationCode)
	assert.Equal(t, issued.AddDate(0, 0, 30), a.ExpiryDate)
}

func TestNewCertificate_SharedIDPrefixGetsDistinctNumbers(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := newCertificate(uuid.MustParse("1234abcd-0000-4000-8000-000000000001"), issued, 30)
	b := newCertificate(uuid.MustParse("1234abcd-ffff-4fff-8fff-fffffffffff2"), issued.Add(time.Hour), 30)

	assert.NotEqual(t, a.CertificateNumber, b.CertificateNumber)
	assert.NotEqual(t, a.VerificationCode, b.VerificationCode)
}
