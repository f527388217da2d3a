// Package mailparse converts provider webhook payloads and raw RFC 5322
// messages into the canonical inbound email record consumed by the
// ingestion pipeline.
package mailparse

// Attachment is a decoded attachment carried by an inbound email.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Checksum    string
	Content     []byte
}

// InboundEmail is the canonical representation of one inbound message.
// It is built fresh per webhook call and discarded after processing.
type InboundEmail struct {
	FromAddress string
	FromName    string
	ToAddress   string
	Subject     string
	HTMLBody    string
	TextBody    string
	MessageID   string
	InReplyTo   string
	References  string
	Attachments []Attachment
}

// NoSubject is stored when a message arrives without a subject line.
const NoSubject = "(No Subject)"

// Subject returns s or the placeholder when empty.
func Subject(s string) string {
	if s == "" {
		return NoSubject
	}
	return s
}
