// Package tickets serves the ticket read surface for the agent UI.
package tickets

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	app "github.com/deskmail/deskmail/cmd/api/app"
)

// Ticket is one support conversation.
type Ticket struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority"`
	Tag            *string   `json:"tag,omitempty"`
	FromEmail      string    `json:"from_email"`
	FromName       string    `json:"from_name,omitempty"`
	ToEmail        string    `json:"to_email"`
	InboxID        string    `json:"inbox_id"`
	ContactID      *string   `json:"contact_id,omitempty"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	AssigneeID     *string   `json:"assignee_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Message is one entry in a ticket's timeline.
type Message struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	FromName    string    `json:"from_name,omitempty"`
	FromEmail   string    `json:"from_email,omitempty"`
	IsAgent     bool      `json:"is_agent"`
	IsInternal  bool      `json:"is_internal"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ingestion stores bodies raw; HTML is sanitized here, at render time.
var htmlPolicy = bluemonday.UGCPolicy()

const ticketCols = `id::text, subject, status, priority, tag, from_email, coalesce(from_name,''), to_email,
inbox_id::text, contact_id::text, organization_id::text, assignee_id::text, created_at, updated_at`

func scanTicket(row interface{ Scan(dest ...any) error }) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.Subject, &t.Status, &t.Priority, &t.Tag, &t.FromEmail, &t.FromName,
		&t.ToEmail, &t.InboxID, &t.ContactID, &t.OrganizationID, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// List returns recent tickets with basic filters.
func List(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.JSON(http.StatusOK, []Ticket{})
			return
		}
		where := []string{}
		args := []any{}
		filters := []struct{ query, col string }{
			{"status", "status"},
			{"priority", "priority"},
			{"inbox", "inbox_id"},
			{"organization", "organization_id"},
			{"contact", "contact_id"},
		}
		for _, f := range filters {
			if v := strings.TrimSpace(c.Query(f.query)); v != "" {
				args = append(args, v)
				where = append(where, fmt.Sprintf("%s=$%d", f.col, len(args)))
			}
		}
		if v := strings.TrimSpace(c.Query("search")); v != "" {
			args = append(args, "%"+v+"%")
			where = append(where, fmt.Sprintf("(subject ILIKE $%d OR from_email ILIKE $%d)", len(args), len(args)))
		}
		sql := "select " + ticketCols + " from tickets"
		if len(where) > 0 {
			sql += " where " + strings.Join(where, " and ")
		}
		sql += " order by created_at desc limit 100"
		rows, err := a.DB.Query(c.Request.Context(), sql, args...)
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "db_query_failed", "database query failed", nil)
			return
		}
		defer rows.Close()
		out := []Ticket{}
		for rows.Next() {
			t, err := scanTicket(rows)
			if err != nil {
				app.AbortError(c, http.StatusInternalServerError, "db_scan_failed", "database scan failed", nil)
				return
			}
			out = append(out, t)
		}
		c.JSON(http.StatusOK, out)
	}
}

// Get returns a ticket by id.
func Get(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.JSON(http.StatusOK, Ticket{})
			return
		}
		t, err := scanTicket(a.DB.QueryRow(c.Request.Context(),
			"select "+ticketCols+" from tickets where id=$1", c.Param("id")))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// Messages returns a ticket's timeline oldest first. HTML bodies pass
// through the sanitizer before leaving the API.
func Messages(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.JSON(http.StatusOK, []Message{})
			return
		}
		const q = `select id::text, ticket_id::text, content, content_type, coalesce(from_name,''), coalesce(from_email,''), is_agent, is_internal, created_at
from ticket_messages where ticket_id=$1 order by created_at asc`
		rows, err := a.DB.Query(c.Request.Context(), q, c.Param("id"))
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "db_query_failed", "database query failed", nil)
			return
		}
		defer rows.Close()
		out := []Message{}
		for rows.Next() {
			var m Message
			if err := rows.Scan(&m.ID, &m.TicketID, &m.Content, &m.ContentType, &m.FromName,
				&m.FromEmail, &m.IsAgent, &m.IsInternal, &m.CreatedAt); err != nil {
				app.AbortError(c, http.StatusInternalServerError, "db_scan_failed", "database scan failed", nil)
				return
			}
			if m.ContentType == "text/html" {
				m.Content = htmlPolicy.Sanitize(m.Content)
			}
			out = append(out, m)
		}
		c.JSON(http.StatusOK, out)
	}
}
