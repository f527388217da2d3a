package main

import (
	"context"
	"encoding/json"
	"net/smtp"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSendAcknowledgement(t *testing.T) {
	var captured struct {
		addr string
		from string
		to   []string
		msg  string
	}
	smtpSendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured = struct {
			addr string
			from string
			to   []string
			msg  string
		}{addr, from, to, string(msg)}
		return nil
	}
	defer func() { smtpSendMail = smtp.SendMail }()

	c := Config{SMTPHost: "smtp", SMTPPort: "25", SMTPFrom: "support@acme.example"}
	ev := TicketCreated{TicketID: "t-1", Subject: "Printer on fire", FromEmail: "jane@example.com", FromName: "Jane Doe"}
	if err := sendAcknowledgement(c, ev); err != nil {
		t.Fatalf("sendAcknowledgement: %v", err)
	}
	if captured.addr != "smtp:25" || captured.from != "support@acme.example" || captured.to[0] != "jane@example.com" {
		t.Fatalf("unexpected send params: %+v", captured)
	}
	if !strings.Contains(captured.msg, "Printer on fire") {
		t.Fatalf("subject missing from message: %s", captured.msg)
	}
}

func TestSendAcknowledgementRejectsBadAddresses(t *testing.T) {
	smtpSendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be reached")
		return nil
	}
	defer func() { smtpSendMail = smtp.SendMail }()

	c := Config{SMTPHost: "smtp", SMTPPort: "25", SMTPFrom: "support@acme.example"}
	for _, to := range []string{"", "not-an-address", "evil@example.com\r\nBcc: all@example.com"} {
		if err := sendAcknowledgement(c, TicketCreated{FromEmail: to}); err == nil {
			t.Errorf("address %q accepted", to)
		}
	}
}

func TestSanitizeEmailHeader(t *testing.T) {
	cases := []struct{ in, want string }{
		{"normal subject", "normal subject"},
		{"subject\r\nBcc: evil@example.com", "subjectBcc: evil@example.com"},
		{"line1\nline2", "line1line2"},
		{"  padded  ", "padded"},
		{"", ""},
	}
	for _, c := range cases {
		if got := sanitizeEmailHeader(c.in); got != c.want {
			t.Errorf("sanitizeEmailHeader(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidateEmailAddress(t *testing.T) {
	valid := []string{"jane@example.com", "a.b+c@sub.example.org"}
	invalid := []string{"", "plain", "@example.com", "jane@", "jane@localhost"}
	for _, e := range valid {
		if err := validateEmailAddress(e); err != nil {
			t.Errorf("validateEmailAddress(%q): %v", e, err)
		}
	}
	for _, e := range invalid {
		if err := validateEmailAddress(e); err == nil {
			t.Errorf("validateEmailAddress(%q) accepted", e)
		}
	}
}

func TestProcessJob(t *testing.T) {
	var got TicketCreated
	send := func(c Config, ev TicketCreated) error {
		got = ev
		return nil
	}
	job := Job{Type: "ticket_created_email", Data: json.RawMessage(`{"ticket_id":"t-1","subject":"hi","from_email":"jane@example.com"}`)}
	payload, _ := json.Marshal(job)
	if err := processJob(Config{}, payload, send); err != nil {
		t.Fatalf("processJob: %v", err)
	}
	if got.TicketID != "t-1" || got.FromEmail != "jane@example.com" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestProcessJobUnknownType(t *testing.T) {
	send := func(Config, TicketCreated) error {
		t.Fatal("send must not be reached")
		return nil
	}
	payload, _ := json.Marshal(Job{Type: "mystery"})
	if err := processJob(Config{}, payload, send); err != nil {
		t.Fatalf("unknown types are skipped, not errors: %v", err)
	}
}

func TestProcessJobBadPayload(t *testing.T) {
	if err := processJob(Config{}, []byte("not json"), nil); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

// The queue wire format matches what the API enqueues.
func TestQueueRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	job := Job{Type: "ticket_created_email", Data: json.RawMessage(`{"ticket_id":"t-9"}`)}
	payload, _ := json.Marshal(job)
	if err := rdb.RPush(context.Background(), "jobs", payload).Err(); err != nil {
		t.Fatalf("rpush: %v", err)
	}
	res, err := rdb.BLPop(context.Background(), 0, "jobs").Result()
	if err != nil || len(res) != 2 {
		t.Fatalf("blpop: %v %v", res, err)
	}
	var got TicketCreated
	sent := false
	if err := processJob(Config{}, []byte(res[1]), func(c Config, ev TicketCreated) error {
		sent = true
		got = ev
		return nil
	}); err != nil {
		t.Fatalf("processJob: %v", err)
	}
	if !sent || got.TicketID != "t-9" {
		t.Fatalf("event = %+v", got)
	}
}
