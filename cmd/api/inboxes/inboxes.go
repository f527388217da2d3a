// Package inboxes manages the receiving mailbox addresses tickets are
// routed by. Inboxes are created during account setup and read-only
// during ingestion.
package inboxes

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	app "github.com/deskmail/deskmail/cmd/api/app"
)

// Inbox represents a receiving mailbox.
type Inbox struct {
	ID             string  `json:"id"`
	EmailAddress   string  `json:"email_address"`
	OrganizationID *string `json:"organization_id,omitempty"`
	OwnerUserID    *string `json:"owner_user_id,omitempty"`
}

type createInboxReq struct {
	EmailAddress   string  `json:"email_address" binding:"required"`
	OrganizationID *string `json:"organization_id"`
	OwnerUserID    *string `json:"owner_user_id"`
}

// ValidEmail validates basic email format.
func ValidEmail(e string) bool {
	if e == "" {
		return false
	}
	_, err := mail.ParseAddress(e)
	return err == nil
}

// Create inserts an inbox. The address must be unique; a mailbox may exist
// before any organization claims it.
func Create(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in createInboxReq
		if err := c.ShouldBindJSON(&in); err != nil {
			errs := map[string]string{}
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range ve {
					errs[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}
			c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			return
		}
		if !ValidEmail(in.EmailAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": map[string]string{"email_address": "invalid"}})
			return
		}
		if a.DB == nil {
			c.JSON(http.StatusCreated, Inbox{EmailAddress: in.EmailAddress})
			return
		}
		const q = `insert into inboxes (email_address, organization_id, owner_user_id)
values ($1, $2, $3) returning id::text, email_address, organization_id::text, owner_user_id::text`
		var ib Inbox
		if err := a.DB.QueryRow(c.Request.Context(), q, in.EmailAddress, in.OrganizationID, in.OwnerUserID).
			Scan(&ib.ID, &ib.EmailAddress, &ib.OrganizationID, &ib.OwnerUserID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				c.JSON(http.StatusConflict, gin.H{"errors": map[string]string{"email_address": "taken"}})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, ib)
	}
}

// List returns all inboxes, optionally filtered by organization.
func List(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.JSON(http.StatusOK, []Inbox{})
			return
		}
		sql := `select id::text, email_address, organization_id::text, owner_user_id::text from inboxes`
		args := []any{}
		if v := strings.TrimSpace(c.Query("organization")); v != "" {
			sql += ` where organization_id=$1`
			args = append(args, v)
		}
		sql += ` order by email_address`
		rows, err := a.DB.Query(c.Request.Context(), sql, args...)
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "db_query_failed", "database query failed", nil)
			return
		}
		defer rows.Close()
		out := []Inbox{}
		for rows.Next() {
			var ib Inbox
			if err := rows.Scan(&ib.ID, &ib.EmailAddress, &ib.OrganizationID, &ib.OwnerUserID); err != nil {
				app.AbortError(c, http.StatusInternalServerError, "db_scan_failed", "database scan failed", nil)
				return
			}
			out = append(out, ib)
		}
		c.JSON(http.StatusOK, out)
	}
}
