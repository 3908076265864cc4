package telnet

// Recv feeds one chunk of inbound bytes into the session. Chunks may split
// any sequence at any boundary: state persists across calls in the
// session's recvState/SB buffer/compressor fields, so the machine is fully
// restartable. Recv never blocks and performs no I/O of its own.
func (s *Session) Recv(data []byte) {
	if s.closed || len(data) == 0 {
		return
	}

	if s.comp.direction == compressInflate {
		out, err := s.comp.inflateChunk(data)
		if err != nil {
			s.comp.teardown()
			s.emit(Event{Kind: EventCompress, CompressOn: false})
			s.emitError(err)
			return
		}
		data = out
	}

	s.processChunk(data)
}

// processChunk drives the byte-granular state machine over one (already
// inflated) chunk. When an MCCP2 activation frame completes mid-chunk, the
// unconsumed tail is handed to a recursive Recv call so the freshly
// installed inflate stream processes it; this function returns immediately
// afterward since that call has already finished the chunk.
func (s *Session) processChunk(data []byte) {
	runStart := 0

	i := 0
	for i < len(data) {
		b := data[i]
		advance := true

		switch s.state {
		case stateData:
			if b == IAC {
				if i > runStart {
					s.emit(Event{Kind: EventData, Bytes: cloneBytes(data[runStart:i])})
				}
				s.state = stateIAC
			}

		case stateIAC:
			switch {
			case b == SB:
				s.state = stateSB
			case b == WILL:
				s.state = stateWill
			case b == WONT:
				s.state = stateWont
			case b == DO:
				s.state = stateDo
			case b == DONT:
				s.state = stateDont
			case b == IAC:
				s.emit(Event{Kind: EventData, Bytes: []byte{IAC}})
				s.state = stateData
				runStart = i + 1
			default:
				s.emit(Event{Kind: EventIAC, Command: b})
				s.state = stateData
				runStart = i + 1
			}

		case stateWill, stateWont, stateDo, stateDont:
			code := TelOptCode(b)
			switch s.state {
			case stateWill:
				s.neg.handleReceived(code, false, true)
			case stateWont:
				s.neg.handleReceived(code, false, false)
			case stateDo:
				s.neg.handleReceived(code, true, true)
			case stateDont:
				s.neg.handleReceived(code, true, false)
			}
			s.state = stateData
			runStart = i + 1

		case stateSB:
			s.sbOpt = TelOptCode(b)
			s.sb.reset()
			s.state = stateSBData

		case stateSBData:
			if b == IAC {
				s.state = stateSBDataIAC
			} else if err := s.sb.appendByte(b); err != nil {
				s.emitWarning(err)
				s.state = stateData
				runStart = i + 1
			}

		case stateSBDataIAC:
			switch b {
			case SE:
				tail := data[i+1:]
				telopt := s.sbOpt
				body := cloneBytes(s.sb.bytes())
				s.state = stateData
				runStart = i + 1

				activated := s.decodeSubnegotiation(telopt, body)
				if activated {
					if len(tail) > 0 {
						s.Recv(cloneBytes(tail))
					}
					return
				}
			case IAC:
				if err := s.sb.appendByte(IAC); err != nil {
					s.emitWarning(err)
					s.state = stateData
					runStart = i + 1
				} else {
					s.state = stateSBData
				}
			default:
				s.emitWarning(newError(CodeProtocol, false,
					"byte %#x after IAC inside subnegotiation", b))
				s.state = stateIAC
				advance = false
			}
		}

		if advance {
			i++
		}
	}

	if s.state == stateData && len(data) > runStart {
		s.emit(Event{Kind: EventData, Bytes: cloneBytes(data[runStart:])})
	}
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
