//go:build integration

package router_test

// End-to-end tests against real Postgres and Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v
//
// Two API instances share one database, one redis locker and one change
// bridge, the way a horizontally scaled deployment runs.

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/infra"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const (
	e2eChannel = "changes:e2e"
	pingTopic  = changebus.Topic("e2e.ping")
)

type cluster struct {
	a, b *api
}

func setupCluster(t *testing.T) *cluster {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("compliance_test"),
		tcPostgres.WithUsername("compliance"),
		tcPostgres.WithPassword("compliance"),
		testcontainers.WithWaitStrategy(tcPostgres.BasicWaitStrategies()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(context.Background()) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := infra.NewDatabase(pgURL)
	require.NoError(t, err)

	instance := func(origin string) *api {
		rdb, err := infra.NewRedis(ctx, rdURL)
		require.NoError(t, err)
		t.Cleanup(func() { _ = rdb.Close() })

		hub := changebus.NewHub(origin, 256)
		go changebus.NewRedisBridge(rdb, e2eChannel, hub).Run(ctx)
		return serve(t, router.Deps{
			DB:     db,
			Redis:  rdb,
			Hub:    hub,
			Locker: infra.NewLocker("redis", rdb, 5*time.Second),
		})
	}

	c := &cluster{a: instance("api-a"), b: instance("api-b")}
	c.a.seedUsers()
	c.b.shareUsers(c.a)
	waitBridges(t, c.a, c.b)
	return c
}

// waitBridges publishes pings until each hub has seen the other's, so tests
// do not race the redis subscriptions.
func waitBridges(t *testing.T, a, b *api) {
	t.Helper()
	require.Eventually(t, func() bool {
		a.hub.Publish(pingTopic, "a", "ping")
		b.hub.Publish(pingTopic, "b", "ping")
		return seen(a.hub, "b") && seen(b.hub, "a")
	}, 10*time.Second, 100*time.Millisecond)
}

func seen(h *changebus.Hub, entity string) bool {
	events, _, _ := h.Since(0, pingTopic)
	for _, e := range events {
		if e.EntityID == entity {
			return true
		}
	}
	return false
}

// status posts body without failing the test, for use from goroutines.
func (a *api) status(method, path, role string, body interface{}) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(method, a.srv.URL+path, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.tokens[role])
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func TestE2E_Health(t *testing.T) {
	c := setupCluster(t)
	var body map[string]interface{}
	c.a.call(http.MethodGet, "/health", "", nil, http.StatusOK, &body)
	assert.Equal(t, "connected", body["redis"])
	assert.EqualValues(t, 0, body["dead_letter_emails"])
}

func TestE2E_ConcurrentJobOrdersNeverOverdrawHolding(t *testing.T) {
	c := setupCluster(t)
	holding := c.a.stockedInspector()

	const attempts = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := 0; i < attempts; i++ {
		node := c.a
		if i%2 == 1 {
			node = c.b
		}
		wg.Add(1)
		go func(node *api) {
			defer wg.Done()
			code, err := node.status(http.MethodPost, "/v1/job-orders", model.RoleInspector, c.a.jobBody(holding.ID))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				codes[-1]++
				return
			}
			codes[code]++
		}(node)
	}
	wg.Wait()

	assert.Equal(t, 3, codes[http.StatusCreated], "codes: %v", codes)
	assert.Equal(t, attempts-3, codes[http.StatusConflict], "codes: %v", codes)

	var holdings []dto.HoldingResponse
	c.b.call(http.MethodGet, "/v1/stock/holdings?holder_id="+holding.HolderID, model.RoleInspector, nil, http.StatusOK, &holdings)
	require.Len(t, holdings, 1)
	assert.Zero(t, holdings[0].Remaining)
	assert.Equal(t, 3, holdings[0].AllocatedQty)
}

func TestE2E_OfflineReplayAcrossInstances(t *testing.T) {
	c := setupCluster(t)
	holding := c.a.stockedInspector()

	body := c.a.jobBody(holding.ID)
	body["offline_id"] = "tablet-7-0001"

	var first, second dto.JobOrderResponse
	c.a.call(http.MethodPost, "/v1/job-orders/offline", model.RoleInspector, body, http.StatusCreated, &first)
	c.b.call(http.MethodPost, "/v1/job-orders/offline", model.RoleInspector, body, http.StatusOK, &second)
	assert.Equal(t, first.ID, second.ID)

	var holdings []dto.HoldingResponse
	c.a.call(http.MethodGet, "/v1/stock/holdings?holder_id="+holding.HolderID, model.RoleInspector, nil, http.StatusOK, &holdings)
	assert.Equal(t, 2, holdings[0].Remaining)
}

func TestE2E_ChangesReachOtherInstance(t *testing.T) {
	c := setupCluster(t)

	var lot dto.LotResponse
	c.a.call(http.MethodPost, "/v1/lots", model.RoleManager, dto.CreateLotRequest{LotNumber: "L-900", Size: "A5", TotalQty: 4}, http.StatusCreated, &lot)

	require.Eventually(t, func() bool {
		var feed dto.ChangeFeedResponse
		c.b.call(http.MethodGet, "/v1/changes?topic="+string(changebus.TopicLots), model.RoleManager, nil, http.StatusOK, &feed)
		for _, e := range feed.Events {
			if e.EntityID == lot.ID {
				return true
			}
		}
		return false
	}, 5*time.Second, 100*time.Millisecond)
}
