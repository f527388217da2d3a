package mailparse

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// Checksum returns the hex SHA-256 digest of attachment content.
func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ReadMessage parses a raw RFC 5322 message into an InboundEmail. Body
// parts and attachments that fail to decode are skipped; the caller still
// gets a usable record with whatever parsed cleanly.
func ReadMessage(r io.Reader) (*InboundEmail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, err
	}
	em := &InboundEmail{}
	if list, err := mr.Header.AddressList("From"); err == nil && len(list) > 0 {
		em.FromName = list[0].Name
		em.FromAddress = list[0].Address
	} else {
		em.FromName, em.FromAddress = SplitAddress(mr.Header.Get("From"))
	}
	if list, err := mr.Header.AddressList("To"); err == nil && len(list) > 0 {
		em.ToAddress = list[0].Address
	} else {
		_, em.ToAddress = SplitAddress(mr.Header.Get("To"))
	}
	if s, err := mr.Header.Subject(); err == nil {
		em.Subject = s
	} else {
		em.Subject = mr.Header.Get("Subject")
	}
	em.MessageID = strings.TrimSpace(mr.Header.Get("Message-Id"))
	em.InReplyTo = strings.TrimSpace(mr.Header.Get("In-Reply-To"))
	em.References = strings.TrimSpace(mr.Header.Get("References"))

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if message.IsUnknownCharset(err) {
			// Decodable part with an exotic charset; take it as-is.
		} else if err != nil {
			// The reader returns the same error on every call once the
			// multipart stream is broken; keep what parsed cleanly.
			break
		}
		if p == nil {
			break
		}
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			b, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			ct, _, _ := h.ContentType()
			switch ct {
			case "text/html":
				if em.HTMLBody == "" {
					em.HTMLBody = string(b)
				}
			default:
				if em.TextBody == "" {
					em.TextBody = string(b)
				}
			}
		case *mail.AttachmentHeader:
			b, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			fn, _ := h.Filename()
			ct, _, _ := h.ContentType()
			em.Attachments = append(em.Attachments, Attachment{
				Filename:    fn,
				ContentType: ct,
				Size:        int64(len(b)),
				Checksum:    Checksum(b),
				Content:     b,
			})
		}
	}
	return em, nil
}
