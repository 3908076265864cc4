package telnet

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// CHARSET subnegotiation commands, RFC 2066 §3.
const (
	charsetRequest        byte = 1
	charsetAccepted       byte = 2
	charsetRejected       byte = 3
	charsetTTableIs       byte = 4
	charsetTTableRejected byte = 5
	charsetTTableAck      byte = 6
	charsetTTableNak      byte = 7
)

// charsetState tracks the single negotiated IANA character set used by
// DecodeText/EncodeText; Printf and RawPrintf do not apply it and send the
// formatted text's bytes as they are. Grounded on the teacher's Charset type and
// its use of golang.org/x/text for codec lookup. Unlike the teacher, there
// is no separate default-vs-negotiated split or TRANSMIT-BINARY gating -
// the specified engine owns exactly one active codec at a time.
type charsetState struct {
	s *Session

	name    string
	encoder *encoding.Encoder
	decoder transform.Transformer
}

func newCharsetState(s *Session) *charsetState {
	return &charsetState{s: s, name: "US-ASCII"}
}

// CharsetName returns the currently negotiated character set, "US-ASCII" if none
// has been negotiated yet.
func (s *Session) CharsetName() string {
	return s.charset.name
}

// RequestCharset sends a CHARSET REQUEST offering the given names in
// preference order, separated by the RFC 2066 default separator ';'.
func (s *Session) RequestCharset(names ...string) {
	if len(names) == 0 {
		return
	}
	body := append([]byte{charsetRequest, ';'}, []byte(strings.Join(names, ";"))...)
	s.Subnegotiation(TelOptCHARSET, body)
}

// DecodeText decodes bytes in the negotiated charset to a UTF-8 string. If
// no charset has been negotiated, bytes are returned unmodified as a string
// (US-ASCII is a strict subset of UTF-8).
func (s *Session) DecodeText(data []byte) (string, error) {
	if s.charset.decoder == nil {
		return string(data), nil
	}
	out, _, err := transform.Bytes(s.charset.decoder, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EncodeText encodes a UTF-8 string into the negotiated charset's bytes. If
// no charset has been negotiated, the UTF-8 bytes are returned unmodified.
func (s *Session) EncodeText(text string) ([]byte, error) {
	if s.charset.encoder == nil {
		return []byte(text), nil
	}
	return s.charset.encoder.Bytes([]byte(text))
}

// handleSubnegotiation processes one CHARSET subnegotiation body received
// from the peer. TTABLE-* commands are accepted without error (so a strict
// peer isn't confused) but never acted on: no translation-table support, as
// in the teacher's own charset layer.
func (c *charsetState) handleSubnegotiation(body []byte) {
	if len(body) == 0 {
		return
	}

	switch body[0] {
	case charsetRequest:
		c.handleRequest(body[1:])
	case charsetAccepted:
		if name, ok := c.resolve(string(body[1:])); ok {
			c.apply(name)
		}
	case charsetRejected,
		charsetTTableIs, charsetTTableRejected, charsetTTableAck, charsetTTableNak:
		// No translation-table support and nothing to roll back to on
		// rejection beyond the charset already in effect.
	}
}

func (c *charsetState) handleRequest(rest []byte) {
	if len(rest) < 1 {
		c.reject()
		return
	}

	sep := rest[0]
	names := strings.Split(string(rest[1:]), string(sep))
	for _, raw := range names {
		if name, ok := c.resolve(raw); ok {
			c.apply(name)
			c.accept(name)
			return
		}
	}
	c.reject()
}

func (c *charsetState) accept(name string) {
	body := append([]byte{charsetAccepted}, []byte(name)...)
	c.s.Subnegotiation(TelOptCHARSET, body)
}

func (c *charsetState) reject() {
	c.s.Subnegotiation(TelOptCHARSET, []byte{charsetRejected})
}

// resolve maps an offered charset name to its canonical IANA name and
// reports whether a codec for it is available. Names this build can't find a codec for
// are skipped rather than rejecting the whole request.
func (c *charsetState) resolve(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", false
	}
	if strings.EqualFold(name, "utf-8") {
		return "UTF-8", true
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return "", false
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		return "", false
	}
	return canonical, true
}

func (c *charsetState) apply(name string) {
	if strings.EqualFold(name, "UTF-8") {
		c.name = "UTF-8"
		c.encoder = encoding.Replacement.NewEncoder()
		c.decoder = encoding.Nop.NewDecoder()
		return
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return
	}

	c.name = name
	c.encoder = enc.NewEncoder()
	c.decoder = enc.NewDecoder()
}
