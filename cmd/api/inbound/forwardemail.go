package inbound

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/deskmail/deskmail/internal/mailparse"
)

// forwardEmailPayload mirrors the JSON ForwardEmail posts for inbound
// messages. Only the fields the pipeline consumes are declared.
type forwardEmailPayload struct {
	From struct {
		Value []struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		} `json:"value"`
		Text string `json:"text"`
	} `json:"from"`
	Recipients []string `json:"recipients"`
	Session    struct {
		Recipient string `json:"recipient"`
	} `json:"session"`
	Subject     string          `json:"subject"`
	HTML        string          `json:"html"`
	Text        string          `json:"text"`
	MessageID   string          `json:"messageId"`
	InReplyTo   string          `json:"inReplyTo"`
	References  json.RawMessage `json:"references"`
	Attachments []struct {
		Filename    string          `json:"filename"`
		ContentType string          `json:"contentType"`
		Size        int64           `json:"size"`
		Checksum    string          `json:"checksum"`
		Content     json.RawMessage `json:"content"`
	} `json:"attachments"`
}

// normalizeForwardEmail flattens the nested ForwardEmail document into the
// canonical inbound record. Recipient resolution: explicit recipients
// list, then the SMTP session recipient; an empty result is rejected
// downstream.
func normalizeForwardEmail(p *forwardEmailPayload) *mailparse.InboundEmail {
	em := &mailparse.InboundEmail{
		Subject:    p.Subject,
		HTMLBody:   p.HTML,
		TextBody:   p.Text,
		MessageID:  p.MessageID,
		InReplyTo:  p.InReplyTo,
		References: decodeReferences(p.References),
	}
	if len(p.From.Value) > 0 {
		em.FromName = strings.TrimSpace(p.From.Value[0].Name)
		em.FromAddress = strings.TrimSpace(p.From.Value[0].Address)
	} else if p.From.Text != "" {
		em.FromName, em.FromAddress = mailparse.SplitAddress(p.From.Text)
	}
	if len(p.Recipients) > 0 {
		em.ToAddress = strings.TrimSpace(p.Recipients[0])
	} else {
		em.ToAddress = strings.TrimSpace(p.Session.Recipient)
	}
	for _, a := range p.Attachments {
		content := decodeAttachmentContent(a.Content)
		if content == nil && a.Filename == "" {
			continue
		}
		att := mailparse.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			Checksum:    a.Checksum,
			Content:     content,
		}
		if att.Size == 0 {
			att.Size = int64(len(content))
		}
		if att.Checksum == "" && len(content) > 0 {
			att.Checksum = mailparse.Checksum(content)
		}
		em.Attachments = append(em.Attachments, att)
	}
	return em
}

// references arrives as a single string or an array depending on how many
// ancestors the message has.
func decodeReferences(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, " ")
	}
	return ""
}

// decodeAttachmentContent accepts the two shapes ForwardEmail emits: a
// base64 string, or a serialized Node Buffer {type:"Buffer", data:[...]}.
func decodeAttachmentContent(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return b
		}
		return []byte(s)
	}
	var buf struct {
		Data []int `json:"data"`
	}
	if err := json.Unmarshal(raw, &buf); err == nil && len(buf.Data) > 0 {
		b := make([]byte, len(buf.Data))
		for i, v := range buf.Data {
			b[i] = byte(v)
		}
		return b
	}
	return nil
}
