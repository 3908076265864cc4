package telnet

import (
	"bytes"
	"fmt"
)

// printfBufSize bounds Printf/RawPrintf output the way the teacher's
// fixed internal scratch buffers bound terminal output: the formatted text
// is cut to this many bytes before it is sent.
const printfBufSize = 4096

// escapeIAC doubles every 0xFF byte, the one escaping rule that applies to
// every outbound byte run - plain data, subnegotiation bodies, and
// formatted text alike.
func escapeIAC(data []byte) []byte {
	n := bytes.Count(data, []byte{IAC})
	if n == 0 {
		return data
	}

	out := make([]byte, 0, len(data)+n)
	for _, b := range data {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	return out
}

// output is the single exit point for every outbound byte run: it routes
// through the active deflate stream (if any) before handing bytes to the
// sink as a SEND event. Everything the transmit pipeline produces -
// commands, negotiations, subnegotiation frames, data - passes through
// here, matching §4.5's rule that compression wraps the whole outbound
// stream once activated.
func (s *Session) output(data []byte) {
	if len(data) == 0 || s.closed {
		return
	}

	if s.comp.direction == compressDeflate {
		out, err := s.comp.deflateChunk(data)
		if err != nil {
			s.comp.teardown()
			s.emit(Event{Kind: EventCompress, CompressOn: false})
			s.emitError(err)
			return
		}
		if len(out) > 0 {
			s.emit(Event{Kind: EventSend, Bytes: out})
		}
		return
	}

	s.emit(Event{Kind: EventSend, Bytes: data})
}

// rawOutput bypasses the compressor entirely. Only begin_compress2's
// activation marker uses it: that marker must reach the peer uncompressed
// even though every byte after it will be deflated.
func (s *Session) rawOutput(data []byte) {
	if len(data) == 0 || s.closed {
		return
	}
	s.emit(Event{Kind: EventSend, Bytes: data})
}

// SendIAC emits a standalone two-byte IAC command.
func (s *Session) SendIAC(cmd byte) {
	s.output([]byte{IAC, cmd})
}

// sendNegotiate emits a three-byte WILL/WONT/DO/DONT verb. The negotiator
// is the only normal caller; SendNegotiate exposes the same operation to a
// host that wants to bypass Q-Method bookkeeping (e.g. a proxy forwarding a
// verb it decided not to track).
func (s *Session) sendNegotiate(cmd byte, telopt TelOptCode) {
	s.output([]byte{IAC, cmd, byte(telopt)})
}

func (s *Session) SendNegotiate(cmd byte, telopt TelOptCode) {
	s.sendNegotiate(cmd, telopt)
}

// SendData IAC-escapes bytes and emits them as a single outbound run.
func (s *Session) SendData(data []byte) {
	s.output(escapeIAC(data))
}

// BeginSB and FinishSB let a host frame a subnegotiation manually, writing
// the body in between with SendData. Subnegotiation is the shortcut for
// bodies already known in full.
func (s *Session) BeginSB(telopt TelOptCode) {
	s.output([]byte{IAC, SB, byte(telopt)})
}

func (s *Session) FinishSB() {
	s.output([]byte{IAC, SE})
}

// Subnegotiation emits a complete {IAC,SB,telopt,body...,IAC,SE} frame with
// the body IAC-escaped. In PROXY mode, forwarding an MCCP2 frame on the
// peer's behalf also installs this session's deflate stream, but only
// after the SE has gone out - the activation frame is never compressed.
func (s *Session) Subnegotiation(telopt TelOptCode, body []byte) {
	var buf bytes.Buffer
	buf.Write([]byte{IAC, SB, byte(telopt)})
	buf.Write(escapeIAC(body))
	buf.Write([]byte{IAC, SE})
	s.output(buf.Bytes())

	if s.proxy && telopt == TelOptMCCP2 {
		if err := s.comp.beginDeflate(); err != nil {
			s.emitWarning(err)
			return
		}
		s.emit(Event{Kind: EventCompress, CompressOn: true})
	}
}

// BeginCompress2 is the server-only MCCP2 activation call: the five-byte
// marker is written directly to the sink, bypassing any compressor, and
// only then is the deflate stream initialized so every later byte is
// compressed.
func (s *Session) BeginCompress2() {
	if s.closed {
		return
	}

	s.rawOutput([]byte{IAC, SB, byte(TelOptMCCP2), IAC, SE})
	if err := s.comp.beginDeflate(); err != nil {
		s.emitError(err)
		return
	}
	s.emit(Event{Kind: EventCompress, CompressOn: true})
}

// Printf formats into a fixed-size scratch buffer, truncating if necessary,
// and rewrites line endings for a text terminal: \r becomes CR NUL, \n
// becomes CR LF, and any 0xFF is doubled. It returns the length the format
// call intended, which may exceed what was actually sent if truncated.
func (s *Session) Printf(format string, args ...any) int {
	if s.closed {
		return 0
	}

	text := fmt.Sprintf(format, args...)
	intended := len(text)
	if len(text) > printfBufSize {
		text = text[:printfBufSize]
	}

	var out bytes.Buffer
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '\r':
			out.WriteByte('\r')
			out.WriteByte(0)
		case '\n':
			out.WriteByte('\r')
			out.WriteByte('\n')
		case IAC:
			out.WriteByte(IAC)
			out.WriteByte(IAC)
		default:
			out.WriteByte(c)
		}
	}

	s.output(out.Bytes())
	return intended
}

// RawPrintf formats into the same fixed-size scratch buffer but sends the
// result unchanged through send_data: IAC-escaped, no line-ending rewrite.
func (s *Session) RawPrintf(format string, args ...any) int {
	if s.closed {
		return 0
	}

	text := fmt.Sprintf(format, args...)
	if len(text) > printfBufSize {
		text = text[:printfBufSize]
	}

	s.SendData([]byte(text))
	return len(text)
}

// SBField is one (tag, string) pair for FormatSB.
type SBField struct {
	Tag   byte
	Value string
}

// FormatSB emits {IAC,SB,telopt}, then for each field its tag byte followed
// by the field's string bytes (IAC-escaped, no added terminator - SE itself
// delimits the frame), then {IAC,SE}.
func (s *Session) FormatSB(telopt TelOptCode, fields ...SBField) {
	var buf bytes.Buffer
	buf.Write([]byte{IAC, SB, byte(telopt)})
	for _, f := range fields {
		buf.WriteByte(f.Tag)
		buf.Write(escapeIAC([]byte(f.Value)))
	}
	buf.Write([]byte{IAC, SE})
	s.output(buf.Bytes())
}

// SendZMP emits {IAC,SB,ZMP}, each argument IAC-escaped and NUL-terminated,
// then {IAC,SE}. Each argument contributes len(arg)+1 bytes on the wire,
// the NUL terminator included.
func (s *Session) SendZMP(argv [][]byte) {
	var buf bytes.Buffer
	buf.Write([]byte{IAC, SB, byte(TelOptZMP)})
	for _, arg := range argv {
		buf.Write(escapeIAC(arg))
		buf.WriteByte(0)
	}
	buf.Write([]byte{IAC, SE})
	s.output(buf.Bytes())
}
