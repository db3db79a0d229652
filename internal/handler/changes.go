package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/middleware"

	"github.com/gin-gonic/gin"
)

// ChangesHandler exposes the change bus as a poll feed and an SSE stream.
type ChangesHandler struct {
	hub       *changebus.Hub
	heartbeat time.Duration
}

func NewChangesHandler(hub *changebus.Hub) *ChangesHandler {
	return &ChangesHandler{hub: hub, heartbeat: 30 * time.Second}
}

func toChangeEvent(e changebus.Event) dto.ChangeEvent {
	return dto.ChangeEvent{
		Seq:      e.Seq,
		Topic:    string(e.Topic),
		EntityID: e.EntityID,
		Action:   e.Action,
		At:       e.At.UTC().Format(time.RFC3339),
	}
}

// Poll godoc
// @Summary Changes since a sequence number
// @Description Reset is true when since predates the retained log; reload everything.
// @Tags changes
// @Produce json
// @Security BearerAuth
// @Param since query int false "Last sequence seen"
// @Param topic query string false "Only this topic"
// @Success 200 {object} dto.ChangeFeedResponse
// @Router /v1/changes [get]
func (h *ChangesHandler) Poll(c *gin.Context) {
	var filter dto.ChangeFilter
	if !bindQuery(c, &filter) {
		return
	}
	events, latest, reset := h.hub.Since(filter.Since, changebus.Topic(filter.Topic))
	resp := dto.ChangeFeedResponse{Events: make([]dto.ChangeEvent, len(events)), Latest: latest, Reset: reset}
	for i, e := range events {
		resp.Events[i] = toChangeEvent(e)
	}
	c.JSON(http.StatusOK, resp)
}

// Stream godoc
// @Summary Server-sent change events
// @Description Each frame is "event: <topic>" with a dto.ChangeEvent as data. Pass ?topics=a,b to filter.
// @Tags changes
// @Produce text/event-stream
// @Param access_token query string false "JWT, for EventSource clients"
// @Param topics query string false "Comma separated topics"
// @Router /v1/changes/stream [get]
func (h *ChangesHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	clientID := fmt.Sprintf("%s_%d", claims.UserID, time.Now().UnixNano())

	var topics []changebus.Topic
	if raw := c.Query("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, changebus.Topic(t))
			}
		}
	}
	sub := h.hub.Subscribe(clientID, 64, topics...)
	defer h.hub.Unsubscribe(clientID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"client_id\":%q,\"latest\":%d}\n\n", clientID, h.hub.Latest())
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(toChangeEvent(e))
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Topic, data)
			c.Writer.Flush()
		case <-heartbeat.C:
			_, _ = c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
