// Package ingest persists inbound emails as tickets. The pipeline is one
// request-scoped pass: resolve the receiving inbox, find or create the
// sending contact, insert the ticket, then write the first message and
// its attachments.
package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog/log"

	"github.com/deskmail/deskmail/internal/mailparse"
)

// Sentinel errors map to webhook HTTP statuses at the handler layer.
var (
	ErrMissingRecipient = errors.New("missing recipient")
	ErrInboxNotFound    = errors.New("no inbox for recipient")
)

// DB is the subset of pgx used by the pipeline; fakes implement it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// ObjectStore receives attachment binaries. Optional; when nil only inline
// content is kept. RemoveObject backs out a stored binary whose row never
// made it to the database.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Service runs the ingestion pipeline against injected collaborators.
type Service struct {
	DB        DB
	Store     ObjectStore
	Bucket    string
	InlineMax int64
}

// Result reports what one inbound email produced.
type Result struct {
	TicketID    string
	ContactID   string
	MessageID   string
	Attachments int
}

type inbox struct {
	id    string
	orgID *string
}

// Process converts one normalized inbound email into a ticket with its
// first message and attachments. No transaction spans the writes; a crash
// mid-pipeline can leave a ticket without its message, and the caller's
// retry (if any) is the only recovery.
func (s *Service) Process(ctx context.Context, em *mailparse.InboundEmail) (Result, error) {
	var res Result
	if em.ToAddress == "" {
		return res, ErrMissingRecipient
	}
	ib, err := s.resolveInbox(ctx, em.ToAddress)
	if err != nil {
		return res, err
	}

	var contactID *string
	if em.FromAddress != "" {
		id, err := s.upsertContact(ctx, em.FromAddress, em.FromName, ib.orgID)
		if err != nil {
			return res, err
		}
		contactID = &id
		res.ContactID = id
	}

	const tq = `insert into tickets
(subject, status, priority, from_email, from_name, to_email, inbox_id, contact_id, organization_id, created_at, updated_at)
values ($1, 'UNASSIGNED', 'NORMAL', $2, $3, $4, $5, $6, $7, now(), now())
returning id::text`
	if err := s.DB.QueryRow(ctx, tq,
		mailparse.Subject(em.Subject), em.FromAddress, em.FromName, em.ToAddress,
		ib.id, contactID, ib.orgID).Scan(&res.TicketID); err != nil {
		return res, err
	}

	content, contentType := em.TextBody, "text/plain"
	if em.HTMLBody != "" {
		content, contentType = em.HTMLBody, "text/html"
	}
	const mq = `insert into ticket_messages
(ticket_id, content, content_type, from_name, from_email, is_agent, is_internal)
values ($1, $2, $3, $4, $5, false, false)
returning id::text`
	if err := s.DB.QueryRow(ctx, mq, res.TicketID, content, contentType,
		em.FromName, em.FromAddress).Scan(&res.MessageID); err != nil {
		return res, err
	}

	res.Attachments = s.writeAttachments(ctx, res.TicketID, res.MessageID, em.Attachments)
	return res, nil
}

func (s *Service) resolveInbox(ctx context.Context, address string) (inbox, error) {
	var ib inbox
	const q = `select id::text, organization_id::text from inboxes where email_address=$1`
	err := s.DB.QueryRow(ctx, q, address).Scan(&ib.id, &ib.orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ib, ErrInboxNotFound
	}
	return ib, err
}

// upsertContact finds or creates the sender scoped to the inbox's
// organization, with a NULL organization as its own partition. This is a
// read-then-write upsert: two racing webhooks from a new address can
// create duplicate contacts (documented limitation, not corrected here).
func (s *Service) upsertContact(ctx context.Context, email, name string, orgID *string) (string, error) {
	var id string
	var err error
	if orgID != nil {
		err = s.DB.QueryRow(ctx, `select id::text from contacts where email=$1 and organization_id=$2`, email, *orgID).Scan(&id)
	} else {
		err = s.DB.QueryRow(ctx, `select id::text from contacts where email=$1 and organization_id is null`, email).Scan(&id)
	}
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	full := mailparse.DisplayName(name, email)
	first, last := mailparse.SplitName(full)
	const q = `insert into contacts (email, full_name, first_name, last_name, organization_id)
values ($1, $2, $3, $4, $5) returning id::text`
	err = s.DB.QueryRow(ctx, q, email, full, first, last, orgID).Scan(&id)
	return id, err
}

// writeAttachments persists each attachment independently and concurrently;
// one failure never aborts the ticket, the message, or sibling attachments.
// Returns the number of rows written.
func (s *Service) writeAttachments(ctx context.Context, ticketID, messageID string, atts []mailparse.Attachment) int {
	if len(atts) == 0 {
		return 0
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	written := 0
	for _, att := range atts {
		wg.Add(1)
		go func(att mailparse.Attachment) {
			defer wg.Done()
			if err := s.writeAttachment(ctx, ticketID, messageID, att); err != nil {
				log.Ctx(ctx).Error().Err(err).Str("ticket", ticketID).Str("filename", att.Filename).Msg("attachment insert")
				return
			}
			mu.Lock()
			written++
			mu.Unlock()
		}(att)
	}
	wg.Wait()
	return written
}

func (s *Service) writeAttachment(ctx context.Context, ticketID, messageID string, att mailparse.Attachment) error {
	var objectKey *string
	if s.Store != nil && len(att.Content) > 0 {
		safeName := sanitizeFilename(att.Filename)
		if safeName == "" {
			safeName = "file"
		}
		key := uuid.New().String() + "-" + safeName
		_, err := s.Store.PutObject(ctx, s.Bucket, key, bytes.NewReader(att.Content), att.Size,
			minio.PutObjectOptions{ContentType: att.ContentType})
		if err != nil {
			// Object store write is best effort; the row still records the
			// attachment, inline when small enough.
			log.Ctx(ctx).Error().Err(err).Str("key", key).Msg("attachment store")
		} else {
			objectKey = &key
		}
	}
	var inline *string
	if len(att.Content) > 0 && att.Size <= s.InlineMax {
		enc := base64.StdEncoding.EncodeToString(att.Content)
		inline = &enc
	}
	const q = `insert into ticket_attachments
(ticket_id, message_id, filename, content_type, bytes, checksum, content, object_key)
values ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.DB.Exec(ctx, q, ticketID, messageID, att.Filename, att.ContentType,
		att.Size, att.Checksum, inline, objectKey)
	if err != nil && objectKey != nil {
		// Without a row nothing references the object; back it out.
		if rerr := s.Store.RemoveObject(ctx, s.Bucket, *objectKey, minio.RemoveObjectOptions{}); rerr != nil {
			log.Ctx(ctx).Error().Err(rerr).Str("key", *objectKey).Msg("orphaned attachment object")
		}
	}
	return err
}

// sanitizeFilename removes path separators and dot segments and restricts to a
// conservative character set, preserving the extension when possible.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "")
	b := strings.Builder{}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimLeft(out, ".")
	return out
}
