package inbound

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/deskmail/deskmail/internal/mailparse"
)

// normalizeMailgun maps Mailgun's flat form fields onto the canonical
// inbound record. get reads one form value by name.
func normalizeMailgun(ctx context.Context, get func(string) string) *mailparse.InboundEmail {
	em := &mailparse.InboundEmail{}
	em.FromName, em.FromAddress = mailparse.SplitAddress(get("from"))
	if em.FromAddress == "" {
		_, em.FromAddress = mailparse.SplitAddress(get("sender"))
	}
	em.ToAddress = strings.TrimSpace(get("recipient"))
	em.Subject = get("subject")
	// Prefer the full HTML body over Mailgun's stripped variant.
	em.HTMLBody = get("body-html")
	if em.HTMLBody == "" {
		em.HTMLBody = get("stripped-html")
	}
	em.TextBody = get("body-plain")

	// Threading ids live in the serialized raw headers; top-level fields
	// are not always present.
	headers := mailparse.ParseHeaderList(ctx, get("message-headers"))
	em.MessageID = headers.Get("Message-Id")
	if em.MessageID == "" {
		em.MessageID = get("Message-Id")
	}
	em.InReplyTo = headers.Get("In-Reply-To")
	em.References = headers.Get("References")
	return em
}

// mailgunAttachments reads the multipart file parts Mailgun names
// attachment-1..attachment-N. A part that fails to open or read is logged
// and skipped without affecting its siblings.
func mailgunAttachments(ctx context.Context, form *multipart.Form, count string) []mailparse.Attachment {
	if form == nil {
		return nil
	}
	// The count field is client-supplied; the real bound is the number of
	// file parts actually present.
	n, _ := strconv.Atoi(count)
	if n <= 0 || n > len(form.File) {
		n = len(form.File)
	}
	var out []mailparse.Attachment
	for i := 1; i <= n; i++ {
		fhs := form.File[fmt.Sprintf("attachment-%d", i)]
		if len(fhs) == 0 {
			continue
		}
		fh := fhs[0]
		f, err := fh.Open()
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("filename", fh.Filename).Msg("open attachment part")
			continue
		}
		b, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("filename", fh.Filename).Msg("read attachment part")
			continue
		}
		out = append(out, mailparse.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        int64(len(b)),
			Checksum:    mailparse.Checksum(b),
			Content:     b,
		})
	}
	return out
}
