package worker

// Dead letters: notification e-mails that used up MaxEmailAttempts, plus jobs
// the pool could not decode or route. Each queue keeps one capped redis list,
// newest first. The notification row itself stays failed.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	deadLetterPrefix = "deadletter:"

	// DeadLetterCap bounds each list; the oldest entries are trimmed.
	DeadLetterCap = 500
)

// DeadLetter is one job that will not be attempted again.
type DeadLetter struct {
	Queue    string          `json:"queue"`
	JobType  string          `json:"job_type"`
	Payload  json.RawMessage `json:"payload"`
	Reason   string          `json:"reason"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

func deadLetterKey(queue string) string { return deadLetterPrefix + queue }

// Bury records d under its queue. Without redis the entry is only logged.
func Bury(ctx context.Context, rdb *redis.Client, d DeadLetter) {
	if d.FailedAt.IsZero() {
		d.FailedAt = time.Now().UTC()
	}
	log.Warn().
		Str("queue", d.Queue).
		Str("job_type", d.JobType).
		Str("reason", d.Reason).
		Int("attempts", d.Attempts).
		Bool("stored", rdb != nil).
		Msg("dead letter")
	if rdb == nil {
		return
	}

	data, err := json.Marshal(d)
	if err != nil {
		log.Error().Err(err).Str("queue", d.Queue).Msg("dead letter: marshal")
		return
	}
	key := deadLetterKey(d.Queue)
	pipe := rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, DeadLetterCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("key", key).Msg("dead letter: push")
	}
}

// DeadLetters returns up to limit entries of queue, newest first. Entries
// that no longer decode are skipped.
func DeadLetters(ctx context.Context, rdb *redis.Client, queue string, limit int64) ([]DeadLetter, error) {
	if limit <= 0 || limit > DeadLetterCap {
		limit = DeadLetterCap
	}
	raw, err := rdb.LRange(ctx, deadLetterKey(queue), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, s := range raw {
		var d DeadLetter
		if json.Unmarshal([]byte(s), &d) == nil {
			out = append(out, d)
		}
	}
	return out, nil
}

// DeadLetterCount is shown on /health.
func DeadLetterCount(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, deadLetterKey(queue)).Result()
}
