// Package inbound exposes the webhook endpoints that turn provider
// payloads into tickets.
package inbound

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apppkg "github.com/deskmail/deskmail/cmd/api/app"
	"github.com/deskmail/deskmail/cmd/api/events"
	"github.com/deskmail/deskmail/cmd/api/metrics"
	"github.com/deskmail/deskmail/internal/ingest"
	"github.com/deskmail/deskmail/internal/mailparse"
)

// ticketCreated is the event/notification payload emitted after ingestion.
type ticketCreated struct {
	TicketID  string `json:"ticket_id"`
	Subject   string `json:"subject"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
	ToEmail   string `json:"to_email"`
}

// Mailgun accepts Mailgun's inbound route webhook: form-encoded or
// multipart fields with optional attachment file parts and an optional
// HMAC signature.
func Mailgun(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Multipart bodies must be parsed before PostForm sees the fields.
		form, _ := c.MultipartForm()

		sig := firstOf(c.PostForm("signature"), c.GetHeader("X-Mailgun-Signature"))
		ts := firstOf(c.PostForm("timestamp"), c.GetHeader("X-Mailgun-Timestamp"))
		token := firstOf(c.PostForm("token"), c.GetHeader("X-Mailgun-Token"))
		if applicable, ok := verifySignature(a.Cfg.MailgunSigningKey, ts, token, sig); applicable && !ok {
			metrics.InboundRejected.WithLabelValues("mailgun", "signature").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		em := normalizeMailgun(c.Request.Context(), c.PostForm)
		em.Attachments = mailgunAttachments(c.Request.Context(), form, c.PostForm("attachment-count"))
		run(a, c, "mailgun", em)
	}
}

// ForwardEmail accepts ForwardEmail's JSON webhook with nested from,
// recipients and attachment objects.
func ForwardEmail(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p forwardEmailPayload
		if err := c.ShouldBindJSON(&p); err != nil {
			metrics.InboundRejected.WithLabelValues("forwardemail", "bad_body").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		run(a, c, "forwardemail", normalizeForwardEmail(&p))
	}
}

// Raw accepts a full RFC 5322 message body (message/rfc822), for relays
// that forward the original message instead of a parsed payload.
func Raw(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		em, err := mailparse.ReadMessage(c.Request.Body)
		if err != nil {
			metrics.InboundRejected.WithLabelValues("raw", "bad_body").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "unparsable message"})
			return
		}
		run(a, c, "raw", em)
	}
}

// run executes the pipeline for one normalized email and writes the
// provider-facing HTTP response.
func run(a *apppkg.App, c *gin.Context, provider string, em *mailparse.InboundEmail) {
	ctx := c.Request.Context()
	// Test mode: no DB attached, accept without persisting
	if a.DB == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "ticketId": ""})
		return
	}
	svc := &ingest.Service{
		DB:        a.DB,
		Bucket:    a.Cfg.MinIOBucket,
		InlineMax: a.Cfg.InlineAttachmentMax,
	}
	if a.M != nil {
		svc.Store = a.M
	}

	start := time.Now()
	res, err := svc.Process(ctx, em)
	metrics.IngestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	switch {
	case errors.Is(err, ingest.ErrMissingRecipient):
		metrics.InboundRejected.WithLabelValues(provider, "missing_recipient").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing recipient"})
		return
	case errors.Is(err, ingest.ErrInboxNotFound):
		metrics.InboundRejected.WithLabelValues(provider, "no_inbox").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "no inbox for recipient"})
		return
	case err != nil:
		metrics.InboundRejected.WithLabelValues(provider, "internal").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed", "details": err.Error()})
		return
	}
	metrics.InboundAccepted.WithLabelValues(provider).Inc()

	created := ticketCreated{
		TicketID:  res.TicketID,
		Subject:   mailparse.Subject(em.Subject),
		FromEmail: em.FromAddress,
		FromName:  em.FromName,
		ToEmail:   em.ToAddress,
	}
	events.Emit(ctx, a.DB, res.TicketID, "ticket.created", created)
	events.Enqueue(ctx, a.Q, "ticket_created_email", created)

	c.JSON(http.StatusOK, gin.H{"success": true, "ticketId": res.TicketID})
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
