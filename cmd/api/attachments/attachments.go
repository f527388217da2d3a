// Package attachments serves the files the ingestion pipeline stored for
// ticket messages.
package attachments

import (
	"encoding/base64"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"

	app "github.com/deskmail/deskmail/cmd/api/app"
	"github.com/deskmail/deskmail/internal/s3"
)

// Attachment describes one stored file.
type Attachment struct {
	ID          string `json:"id"`
	MessageID   string `json:"message_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Bytes       int64  `json:"bytes"`
	Checksum    string `json:"checksum,omitempty"`
}

// List returns a ticket's attachments.
func List(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.JSON(http.StatusOK, []Attachment{})
			return
		}
		const q = `select id::text, message_id::text, filename, content_type, bytes, checksum
from ticket_attachments where ticket_id=$1 order by created_at asc`
		rows, err := a.DB.Query(c.Request.Context(), q, c.Param("id"))
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "db_query_failed", "database query failed", nil)
			return
		}
		defer rows.Close()
		out := []Attachment{}
		for rows.Next() {
			var at Attachment
			if err := rows.Scan(&at.ID, &at.MessageID, &at.Filename, &at.ContentType, &at.Bytes, &at.Checksum); err != nil {
				app.AbortError(c, http.StatusInternalServerError, "db_scan_failed", "database scan failed", nil)
				return
			}
			out = append(out, at)
		}
		c.JSON(http.StatusOK, out)
	}
}

// Get serves one attachment: inline content when the row carries it,
// the filesystem store in dev, or a presigned MinIO redirect.
func Get(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.JSON(http.StatusOK, gin.H{"id": c.Param("attID")})
			return
		}
		const q = `select filename, content_type, content, object_key from ticket_attachments where id=$1 and ticket_id=$2`
		var fn, ct string
		var content, objectKey *string
		if err := a.DB.QueryRow(c.Request.Context(), q, c.Param("attID"), c.Param("id")).
			Scan(&fn, &ct, &content, &objectKey); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if ct == "" {
			ct = mime.TypeByExtension(filepath.Ext(fn))
		}

		// Small attachments are kept inline base64 in the row.
		if content != nil {
			b, err := base64.StdEncoding.DecodeString(*content)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt inline content"})
				return
			}
			serve(c, ct, fn, b)
			return
		}
		if objectKey == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no stored content"})
			return
		}
		if fs, ok := a.M.(*app.FsObjectStore); ok {
			root := filepath.Join(fs.Base, a.Cfg.MinIOBucket)
			path := filepath.Clean(filepath.Join(root, *objectKey))
			if rel, err := filepath.Rel(root, path); err != nil || strings.HasPrefix(rel, "..") {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
				return
			}
			b, err := os.ReadFile(path)
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			serve(c, ct, fn, b)
			return
		}
		if mc, ok := a.M.(*minio.Client); ok {
			svc := s3.Service{Client: mc, Bucket: a.Cfg.MinIOBucket, MaxTTL: time.Hour}
			u, err := svc.PresignGet(c.Request.Context(), *objectKey, fn, 15*time.Minute)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.Redirect(http.StatusFound, u)
			return
		}
		c.JSON(http.StatusNotImplemented, gin.H{"error": "download not implemented"})
	}
}

func serve(c *gin.Context, contentType, filename string, b []byte) {
	if contentType != "" {
		c.Writer.Header().Set("Content-Type", contentType)
	}
	c.Writer.Header().Set("Content-Disposition", "attachment; filename=\""+strings.ReplaceAll(filename, "\"", "")+"\"")
	_, _ = c.Writer.Write(b)
}
