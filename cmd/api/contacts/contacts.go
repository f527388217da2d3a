// Package contacts exposes the customers the ingestion pipeline creates
// from inbound senders. Contacts are created lazily by ingestion and
// never deleted here.
package contacts

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	app "github.com/deskmail/deskmail/cmd/api/app"
)

// Contact represents the external party behind a ticket's sender address.
type Contact struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	FullName       string  `json:"full_name,omitempty"`
	FirstName      string  `json:"first_name,omitempty"`
	LastName       string  `json:"last_name,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

const cols = `id::text, email, coalesce(full_name,''), coalesce(first_name,''), coalesce(last_name,''), organization_id::text`

// List returns contacts, filterable by organization and email substring.
func List(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.JSON(http.StatusOK, []Contact{})
			return
		}
		where := []string{}
		args := []any{}
		if v := strings.TrimSpace(c.Query("organization")); v != "" {
			args = append(args, v)
			where = append(where, fmt.Sprintf("organization_id=$%d", len(args)))
		}
		if v := strings.TrimSpace(c.Query("email")); v != "" {
			args = append(args, "%"+v+"%")
			where = append(where, fmt.Sprintf("email ILIKE $%d", len(args)))
		}
		sql := "select " + cols + " from contacts"
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
		out := []Contact{}
		for rows.Next() {
			var ct Contact
			if err := rows.Scan(&ct.ID, &ct.Email, &ct.FullName, &ct.FirstName, &ct.LastName, &ct.OrganizationID); err != nil {
				app.AbortError(c, http.StatusInternalServerError, "db_scan_failed", "database scan failed", nil)
				return
			}
			out = append(out, ct)
		}
		c.JSON(http.StatusOK, out)
	}
}

// Get returns a contact by id.
func Get(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.JSON(http.StatusOK, Contact{ID: c.Param("id")})
			return
		}
		var ct Contact
		if err := a.DB.QueryRow(c.Request.Context(), "select "+cols+" from contacts where id=$1", c.Param("id")).
			Scan(&ct.ID, &ct.Email, &ct.FullName, &ct.FirstName, &ct.LastName, &ct.OrganizationID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, ct)
	}
}
