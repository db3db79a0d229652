package router_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/apierror"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/config"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/infra"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/router"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type api struct {
	t      *testing.T
	srv    *httptest.Server
	db     *gorm.DB
	hub    *changebus.Hub
	tokens map[string]string
	users  map[string]*dto.UserResponse
}

func newAPI(t *testing.T) *api {
	t.Helper()
	a := serve(t, router.Deps{DB: openTestDB(t), Hub: changebus.NewHub("test", 256)})
	a.seedUsers()
	return a
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), infra.Config())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, infra.RunMigrations(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

var testConfig = &config.Config{Env: "test", JWTSecret: "test-secret", JWTExpirationHours: 1, JWTRefreshHours: 2, CertificateValidityDays: 365}

func serve(t *testing.T, d router.Deps) *api {
	t.Helper()
	srv := httptest.NewServer(router.New(testConfig, d))
	t.Cleanup(srv.Close)
	return &api{t: t, srv: srv, db: d.DB, hub: d.Hub, tokens: map[string]string{}, users: map[string]*dto.UserResponse{}}
}

// seedUsers creates one user per role and logs each in.
func (a *api) seedUsers() {
	t := a.t
	auth := service.NewAuthService(repository.NewUserRepository(a.db), testConfig)

	for _, role := range []string{model.RoleManager, model.RoleInspector, model.RoleSupervisor, model.RoleAccountant, model.RoleClient} {
		u, err := auth.CreateUser(context.Background(), dto.CreateUserRequest{
			Username:           role,
			Name:               strings.ToUpper(role[:1]) + role[1:],
			Password:           role + "-password",
			Role:               role,
			CanCreateJobOrders: role == model.RoleInspector,
		})
		require.NoError(t, err)
		a.users[role] = u

		var login dto.LoginResponse
		a.call(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: role, Password: role + "-password"}, http.StatusOK, &login)
		a.tokens[role] = login.AccessToken
	}
}

// shareUsers reuses the users and tokens of another instance on the same database.
func (a *api) shareUsers(from *api) {
	a.users = from.users
	a.tokens = from.tokens
}

// call sends body as JSON with role's token and decodes the response into out.
func (a *api) call(method, path, role string, body interface{}, wantStatus int, out interface{}) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+a.tokens[role])
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if !assert.Equal(a.t, wantStatus, resp.StatusCode, "%s %s", method, path) {
		var env map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		a.t.Logf("body: %v", env)
		a.t.FailNow()
	}
	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func (a *api) stockedInspector() dto.HoldingResponse {
	a.t.Helper()
	var lot dto.LotResponse
	a.call(http.MethodPost, "/v1/lots", model.RoleManager, dto.CreateLotRequest{LotNumber: "L-100", Size: "A4", TotalQty: 10}, http.StatusCreated, &lot)
	var holding dto.HoldingResponse
	a.call(http.MethodPost, "/v1/stock/issue", model.RoleManager, dto.IssueStockRequest{
		LotID: lot.ID, HolderID: a.users[model.RoleInspector].ID, HolderType: "inspector", Qty: 3,
	}, http.StatusCreated, &holding)
	return holding
}

func (a *api) jobBody(holdingID string) map[string]interface{} {
	return map[string]interface{}{
		"client_id":        a.users[model.RoleClient].ID,
		"service_types":    []string{"crane inspection"},
		"location":         "Yard 4",
		"amount":           "250",
		"stock_holding_id": holdingID,
	}
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	var body map[string]interface{}
	a.call(http.MethodGet, "/health", "", nil, http.StatusOK, &body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "disabled", body["redis"])
}

func TestAuthAndRoles(t *testing.T) {
	a := newAPI(t)

	var env apierror.APIError
	a.call(http.MethodGet, "/v1/lots", "", nil, http.StatusUnauthorized, &env)

	a.call(http.MethodPost, "/v1/lots", model.RoleInspector, dto.CreateLotRequest{LotNumber: "L-1", Size: "A4", TotalQty: 1}, http.StatusForbidden, &env)
	assert.Equal(t, apierror.KindPermissionDenied, env.Kind)

	a.call(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: "manager", Password: "nope-nope"}, http.StatusUnauthorized, nil)
	a.call(http.MethodGet, "/v1/users", model.RoleManager, nil, http.StatusOK, nil)
	a.call(http.MethodGet, "/v1/users", model.RoleClient, nil, http.StatusForbidden, nil)
}

func TestErrorEnvelopes(t *testing.T) {
	a := newAPI(t)

	var verr apierror.ValidationError
	a.call(http.MethodPost, "/v1/lots", model.RoleManager, map[string]interface{}{"lot_number": "L-1"}, http.StatusUnprocessableEntity, &verr)
	assert.Equal(t, apierror.KindValidation, verr.Kind)
	assert.Contains(t, verr.Fields, "Size")

	holding := a.stockedInspector()

	var env apierror.APIError
	a.call(http.MethodPost, "/v1/lots", model.RoleManager, dto.CreateLotRequest{LotNumber: "L-100", Size: "A4", TotalQty: 1}, http.StatusUnprocessableEntity, &verr)
	assert.Equal(t, "already exists", verr.Fields["lot_number"])

	a.call(http.MethodPost, "/v1/stock/transfers", model.RoleInspector, dto.TransferRequest{
		FromHolderID: holding.HolderID, ToHolderID: a.users[model.RoleSupervisor].ID, ToHolderType: "region", ToHolderName: "North", LotNumber: "L-100", Qty: 50,
	}, http.StatusConflict, &env)
	assert.Equal(t, apierror.KindInsufficientStock, env.Kind)

	a.call(http.MethodGet, "/v1/lots/not-a-uuid", model.RoleManager, nil, http.StatusUnprocessableEntity, nil)
	a.call(http.MethodGet, "/v1/tags/NOPE", model.RoleManager, nil, http.StatusNotFound, &env)
	assert.Equal(t, apierror.KindNotFound, env.Kind)
}

func TestJobOrderThroughCertificate(t *testing.T) {
	a := newAPI(t)
	holding := a.stockedInspector()

	var job dto.JobOrderResponse
	a.call(http.MethodPost, "/v1/job-orders", model.RoleInspector, a.jobBody(holding.ID), http.StatusCreated, &job)
	assert.Equal(t, string(model.PhaseAwaitingJobApproval), job.Phase)
	require.Len(t, job.StickerAllocations, 1)

	base := "/v1/job-orders/" + job.ID
	a.call(http.MethodPost, base+"/approve", model.RoleSupervisor, nil, http.StatusOK, &job)
	a.call(http.MethodPost, base+"/start", model.RoleInspector, nil, http.StatusOK, &job)
	a.call(http.MethodPost, base+"/report", model.RoleInspector, dto.SubmitReportRequest{ReportData: map[string]interface{}{"load_test": "passed"}}, http.StatusOK, &job)
	a.call(http.MethodPost, base+"/approve", model.RoleSupervisor, nil, http.StatusOK, &job)
	a.call(http.MethodPost, base+"/payment/confirm", model.RoleAccountant, nil, http.StatusOK, &job)
	assert.Equal(t, string(model.PhasePaid), job.Phase)
	require.NotNil(t, job.Certificate)

	var cert dto.CertificateResponse
	a.call(http.MethodGet, "/v1/certificates/verify/"+job.Certificate.VerificationCode, "", nil, http.StatusOK, &cert)
	assert.True(t, cert.Valid)

	var holdings []dto.HoldingResponse
	a.call(http.MethodGet, "/v1/stock/holdings?holder_id="+holding.HolderID, model.RoleInspector, nil, http.StatusOK, &holdings)
	require.Len(t, holdings, 1)
	assert.Equal(t, 2, holdings[0].Remaining)

	var notes []dto.NotificationResponse
	a.call(http.MethodGet, "/v1/notifications", model.RoleClient, nil, http.StatusOK, &notes)
	require.NotEmpty(t, notes)
	assert.Equal(t, model.EmailSkipped, notes[0].EmailStatus, "no e-mail queue configured")
}

func TestOfflineCommitIsIdempotent(t *testing.T) {
	a := newAPI(t)
	holding := a.stockedInspector()

	body := a.jobBody(holding.ID)
	body["offline_id"] = "offline-0001"
	var first, replay dto.JobOrderResponse
	a.call(http.MethodPost, "/v1/job-orders/offline", model.RoleInspector, body, http.StatusCreated, &first)
	a.call(http.MethodPost, "/v1/job-orders/offline", model.RoleInspector, body, http.StatusOK, &replay)
	assert.Equal(t, first.ID, replay.ID)

	var holdings []dto.HoldingResponse
	a.call(http.MethodGet, "/v1/stock/holdings?holder_id="+holding.HolderID, model.RoleInspector, nil, http.StatusOK, &holdings)
	assert.Equal(t, 2, holdings[0].Remaining, "replay allocates nothing")
}

func TestChangeFeedPoll(t *testing.T) {
	a := newAPI(t)
	a.stockedInspector()

	var feed dto.ChangeFeedResponse
	a.call(http.MethodGet, "/v1/changes?since=0", model.RoleInspector, nil, http.StatusOK, &feed)
	assert.False(t, feed.Reset)
	require.NotEmpty(t, feed.Events)
	assert.Equal(t, string(changebus.TopicLots), feed.Events[0].Topic)

	var later dto.ChangeFeedResponse
	a.call(http.MethodGet, "/v1/changes?topic=stock.updated&since=0", model.RoleInspector, nil, http.StatusOK, &later)
	for _, e := range later.Events {
		assert.Equal(t, string(changebus.TopicStock), e.Topic)
	}
	assert.Equal(t, feed.Latest, later.Latest)
}

func TestChangeStream(t *testing.T) {
	a := newAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.srv.URL+"/v1/changes/stream?topics=lots.updated&access_token="+a.tokens[model.RoleInspector], nil)
	require.NoError(t, err)
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	a.hub.Publish(changebus.TopicStock, "ignored", "updated")
	a.hub.Publish(changebus.TopicLots, "lot-1", "created")

	for {
		line, err = r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") && line != "event: connected\n" {
			break
		}
	}
	assert.Equal(t, "event: lots.updated\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var ev dto.ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
	assert.Equal(t, "lot-1", ev.EntityID)
}

func TestInventoryExport(t *testing.T) {
	a := newAPI(t)
	a.stockedInspector()

	req, err := http.NewRequest(http.MethodGet, a.srv.URL+"/v1/reports/inventory.xlsx", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+a.tokens[model.RoleManager])
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "inventory-")
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
}

// heldLocker behaves as if another instance holds every lock.
type heldLocker struct{}

func (heldLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, time.Millisecond)
	defer cancel()
	l := infra.NewLocalLocker()
	unlock, _ := l.Lock(context.Background(), key)
	defer unlock()
	return l.Lock(ctx, key)
}

func TestLockContentionIsRetryableConflict(t *testing.T) {
	a := serve(t, router.Deps{DB: openTestDB(t), Hub: changebus.NewHub("test", 16), Locker: heldLocker{}})
	a.seedUsers()

	var lot dto.LotResponse
	a.call(http.MethodPost, "/v1/lots", model.RoleManager, dto.CreateLotRequest{LotNumber: "L-7", Size: "A4", TotalQty: 5}, http.StatusCreated, &lot)

	var env apierror.APIError
	a.call(http.MethodPost, "/v1/stock/issue", model.RoleManager, dto.IssueStockRequest{
		LotID: lot.ID, HolderID: a.users[model.RoleInspector].ID, HolderType: "inspector", Qty: 1,
	}, http.StatusConflict, &env)
	assert.Equal(t, apierror.KindConflict, env.Kind)
	assert.True(t, env.Retryable)

	var lots []dto.LotResponse
	a.call(http.MethodGet, "/v1/lots", model.RoleManager, nil, http.StatusOK, &lots)
	require.Len(t, lots, 1)
	assert.Equal(t, 5, lots[0].AvailableQty, "nothing issued")
}
