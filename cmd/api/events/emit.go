package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	apppkg "github.com/deskmail/deskmail/cmd/api/app"
)

// Emit records a ticket event in the database. Best effort; errors are ignored.
func Emit(ctx context.Context, db apppkg.DB, ticketID, typ string, data interface{}) {
	if db == nil {
		return
	}
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	const q = `insert into ticket_events (ticket_id, event_type, payload) values ($1, $2, $3)`
	_, _ = db.Exec(ctx, q, ticketID, typ, b)
}

// Job is the envelope pushed onto the worker queue.
type Job struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Enqueue pushes a background job onto the redis jobs list. Best effort;
// ingestion never fails because a notification could not be queued.
func Enqueue(ctx context.Context, q *redis.Client, typ string, data interface{}) {
	if q == nil {
		return
	}
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	j, err := json.Marshal(Job{Type: typ, Data: b})
	if err != nil {
		return
	}
	_ = q.RPush(ctx, "jobs", j).Err()
}
