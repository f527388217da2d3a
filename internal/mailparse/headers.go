package mailparse

import (
	"context"
	"encoding/json"
	"net/textproto"

	"github.com/rs/zerolog/log"
)

// Headers is a case-insensitive header name to value mapping.
type Headers map[string]string

// Get returns the value for a header name, ignoring case.
func (h Headers) Get(name string) string {
	return h[textproto.CanonicalMIMEHeaderKey(name)]
}

// ParseHeaderList decodes a JSON-serialized array of [name, value] pairs
// (the shape Mailgun posts in message-headers) into Headers. On duplicate
// names the last occurrence wins. Malformed input is logged and yields an
// empty mapping; threading headers are supplementary, never required.
func ParseHeaderList(ctx context.Context, raw string) Headers {
	out := Headers{}
	if raw == "" {
		return out
	}
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("malformed message-headers")
		return out
	}
	for _, p := range pairs {
		var name, value string
		if err := json.Unmarshal(p[0], &name); err != nil || name == "" {
			continue
		}
		// Values are usually strings but Mailgun nests structures for a
		// few headers; keep the raw JSON text for those.
		if err := json.Unmarshal(p[1], &value); err != nil {
			value = string(p[1])
		}
		out[textproto.CanonicalMIMEHeaderKey(name)] = value
	}
	return out
}
