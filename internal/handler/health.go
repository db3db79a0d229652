package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/infra"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity; never exposes credentials or internals.
// rdb and mail may be nil when the deployment runs without them.
func Health(db *gorm.DB, rdb *redis.Client, mail *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		var deadLetters int64
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			} else if n, err := worker.DeadLetterCount(ctx, rdb, worker.QueueNotificationEmail); err == nil {
				deadLetters = n
			}
		}

		mailStatus := "disabled"
		if mail != nil {
			mailStatus = mail.State().String()
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":                 status == http.StatusOK,
			"db":                 dbStatus,
			"redis":              redisStatus,
			"mail":               mailStatus,
			"dead_letter_emails": deadLetters,
		})
	}
}
