package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog/log"

	"github.com/deskmail/deskmail/internal/ingest"
	"github.com/deskmail/deskmail/internal/mailparse"
)

// pollIMAP fetches unseen messages from the configured mailbox and runs
// each through the same pipeline the webhooks use, with the inbox resolved
// from the To address. Processed messages are flagged Seen so a failed
// poll retries them on the next pass.
func pollIMAP(ctx context.Context, c Config, db *pgxpool.Pool, mc *minio.Client) error {
	addr := fmt.Sprintf("%s:993", c.IMAPHost)
	cli, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return err
	}
	defer cli.Logout()

	if err := cli.Login(c.IMAPUser, c.IMAPPass); err != nil {
		return err
	}

	mbox, err := cli.Select(c.IMAPFolder, false)
	if err != nil {
		return err
	}
	if mbox.Messages == 0 {
		return nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := cli.Search(criteria)
	if err != nil || len(uids) == 0 {
		return err
	}

	svc := &ingest.Service{DB: db, Bucket: c.MinIOBucket, InlineMax: c.InlineAttachmentMax}
	if mc != nil {
		svc.Store = mc
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- cli.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	for msg := range messages {
		if msg == nil {
			continue
		}
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			log.Error().Err(err).Msg("read body")
			continue
		}

		// Archive the raw message before any parsing can fail.
		if mc != nil && c.MinIOBucket != "" {
			key := fmt.Sprintf("email/%s.eml", uuid.NewString())
			if _, err := mc.PutObject(ctx, c.MinIOBucket, key, bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{}); err != nil {
				log.Error().Err(err).Msg("put object")
			}
		}

		em, err := mailparse.ReadMessage(bytes.NewReader(raw))
		if err != nil {
			log.Error().Err(err).Msg("parse message")
			continue
		}
		res, err := svc.Process(ctx, em)
		if err != nil {
			// Unroutable mail is flagged Seen below anyway; retrying it
			// every minute would never succeed.
			log.Warn().Err(err).Str("to", em.ToAddress).Str("from", em.FromAddress).Msg("ingest imap message")
		} else {
			log.Info().Str("ticket", res.TicketID).Str("from", em.FromAddress).Msg("ticket from imap")
		}

		seq := new(imap.SeqSet)
		seq.AddNum(msg.SeqNum)
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := cli.Store(seq, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			log.Error().Err(err).Msg("store flags")
		}
	}
	return <-done
}
