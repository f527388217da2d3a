package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apppkg "github.com/deskmail/deskmail/cmd/api/app"
)

// TicketEvent is one entry of the ticket activity feed, as sent to SSE
// clients. Payload carries the provider-facing ticketCreated document.
type TicketEvent struct {
	ID       string          `json:"id"`
	TicketID string          `json:"ticket_id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       time.Time       `json:"at"`
}

// Stream pushes ticket events over Server-Sent Events as ingestion records
// them. `?ticket=` narrows the feed to one ticket; the Last-Event-ID
// header resumes after a dropped connection. Heartbeat comments keep
// intermediaries from closing idle streams.
func Stream(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.Status(http.StatusOK)
			return
		}
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}

		ctx := c.Request.Context()
		ticket := strings.TrimSpace(c.Query("ticket"))

		last := time.Time{}
		if id := c.GetHeader("Last-Event-ID"); id != "" {
			_ = a.DB.QueryRow(ctx, `select created_at from ticket_events where id=$1`, id).Scan(&last)
		}

		send := func(since time.Time) time.Time {
			sql := `select id::text, ticket_id::text, event_type, payload, created_at
from ticket_events where created_at > $1`
			args := []any{since}
			if ticket != "" {
				sql += ` and ticket_id=$2`
				args = append(args, ticket)
			}
			sql += ` order by created_at asc`
			rows, err := a.DB.Query(ctx, sql, args...)
			if err != nil {
				return since
			}
			defer rows.Close()
			for rows.Next() {
				var ev TicketEvent
				var payload []byte
				if err := rows.Scan(&ev.ID, &ev.TicketID, &ev.Type, &payload, &ev.At); err != nil {
					continue
				}
				ev.Payload = payload
				b, _ := json.Marshal(ev)
				fmt.Fprintf(c.Writer, "id: %s\n", ev.ID)
				fmt.Fprintf(c.Writer, "event: %s\n", ev.Type)
				fmt.Fprintf(c.Writer, "data: %s\n\n", b)
				flusher.Flush()
				since = ev.At
			}
			return since
		}

		last = send(last)

		poll := time.NewTicker(time.Second)
		heart := time.NewTicker(25 * time.Second)
		defer poll.Stop()
		defer heart.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-poll.C:
				last = send(last)
			case <-heart.C:
				fmt.Fprint(c.Writer, ": heartbeat\n\n")
				flusher.Flush()
			}
		}
	}
}
