package telnet

import "bytes"

// decodeSubnegotiation is invoked once per complete SB...SE frame. It emits
// the SUBNEGOTIATION event (with Argv populated for recognized telopts) and
// reports whether this call just activated inbound MCCP2 decompression -
// the one signal processChunk needs to know whether to splice the rest of
// the current chunk through the freshly installed inflate stream.
//
// An exhaustive switch over known telopts is used in place of a per-telopt
// dispatch table: the set of structured subnegotiations is fixed and small,
// and unknown telopts simply fall to the raw-body default.
func (s *Session) decodeSubnegotiation(telopt TelOptCode, body []byte) bool {
	switch telopt {
	case TelOptZMP:
		argv, ok := decodeZMP(body)
		if !ok {
			s.emitWarning(newError(CodeProtocol, false, "incomplete ZMP frame"))
			s.emit(Event{Kind: EventSubnegotiation, TelOpt: telopt, Body: body})
			return false
		}
		s.emit(Event{Kind: EventSubnegotiation, TelOpt: telopt, Body: body, Argv: argv})
		return false

	case TelOptTTYPE, TelOptENVIRON, TelOptNEWENVIRON, TelOptMSSP:
		argv, ok := decodeTagSegments(body)
		if !ok {
			s.emitWarning(newError(CodeProtocol, false,
				"telopt %d: subnegotiation missing leading tag", telopt))
			s.emit(Event{Kind: EventSubnegotiation, TelOpt: telopt, Body: body})
			return false
		}
		s.emit(Event{Kind: EventSubnegotiation, TelOpt: telopt, Body: body, Argv: argv})
		return false

	case TelOptCHARSET:
		s.charset.handleSubnegotiation(body)
		s.emit(Event{Kind: EventSubnegotiation, TelOpt: telopt, Body: body})
		return false

	case TelOptMCCP2:
		s.emit(Event{Kind: EventSubnegotiation, TelOpt: telopt, Body: body})
		return s.activateInflate()

	default:
		s.emit(Event{Kind: EventSubnegotiation, TelOpt: telopt, Body: body})
		return false
	}
}

func (s *Session) activateInflate() bool {
	if s.comp.active() {
		s.emitWarning(newError(CodeBadValue, false, "compression already initialized"))
		return false
	}
	if err := s.comp.beginInflate(); err != nil {
		s.emitWarning(err)
		return false
	}
	s.emit(Event{Kind: EventCompress, CompressOn: true})
	return true
}

// decodeZMP validates a ZMP body is non-empty and NUL-terminated, then
// splits it on NUL into an argument vector.
func decodeZMP(body []byte) ([][]byte, bool) {
	if len(body) == 0 || body[len(body)-1] != 0 {
		return nil, false
	}
	return bytes.Split(body[:len(body)-1], []byte{0}), true
}

// decodeTagSegments splits a TTYPE/ENVIRON/NEW-ENVIRON/MSSP body into
// segments, each beginning with a one-byte tag in 0-3. The first body byte
// must itself be such a tag; later occurrences of a byte in 0-3 start a new
// segment, matching how these options are decoded in practice rather than
// any length-prefixed scheme.
func decodeTagSegments(body []byte) ([][]byte, bool) {
	if len(body) == 0 || body[0] > 3 {
		return nil, false
	}

	var argv [][]byte
	start := 0
	for i := 1; i < len(body); i++ {
		if body[i] <= 3 {
			argv = append(argv, body[start:i])
			start = i
		}
	}
	argv = append(argv, body[start:])
	return argv, true
}
