//go:build integration

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestDeadLetters_CappedNewestFirst(t *testing.T) {
	ctx := context.Background()
	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(context.Background()) })
	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	for i := 0; i < DeadLetterCap+3; i++ {
		payload, _ := json.Marshal(NotificationEmailPayload{NotificationID: fmt.Sprint(i)})
		Bury(ctx, rdb, DeadLetter{Queue: QueueNotificationEmail, JobType: JobNotificationEmail, Payload: payload, Reason: "smtp down", Attempts: MaxEmailAttempts})
	}

	n, err := DeadLetterCount(ctx, rdb, QueueNotificationEmail)
	require.NoError(t, err)
	assert.EqualValues(t, DeadLetterCap, n)

	got, err := DeadLetters(ctx, rdb, QueueNotificationEmail, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	var newest NotificationEmailPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &newest))
	assert.Equal(t, fmt.Sprint(DeadLetterCap+2), newest.NotificationID)
	assert.Equal(t, "smtp down", got[0].Reason)
	assert.False(t, got[0].FailedAt.IsZero())
}
