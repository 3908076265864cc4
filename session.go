package telnet

import "log/slog"

// recvState is the receive pipeline's state machine position from §4.1.
type recvState byte

const (
	stateData recvState = iota
	stateIAC
	stateWill
	stateWont
	stateDo
	stateDont
	stateSB
	stateSBData
	stateSBDataIAC
)

// Config configures a new Session. Policy controls which telopts the local
// side will agree to negotiate in either direction; telopts absent from the
// map are refused in both directions. Proxy sessions (Proxy true) never run
// the Q-Method themselves - every WILL/WONT/DO/DONT is simply mirrored to
// the sink as an event for a downstream engine to answer.
type Config struct {
	Sink   EventSink
	Policy map[TelOptCode]Policy
	Proxy  bool
	Logger *slog.Logger
}

// Session is a single, transport-agnostic TELNET protocol engine instance.
// It owns no socket and no goroutine: a caller feeds inbound bytes to Recv
// and reads outbound bytes back from events and the Send* methods. A
// Session must not be shared across goroutines without external
// synchronization; every method assumes single-threaded, synchronous,
// non-blocking use, per §5.
type Session struct {
	sink   EventSink
	proxy  bool
	logger *slog.Logger
	closed bool

	neg  *Negotiator
	comp *compressor

	state recvState
	sb    *sbBuffer
	sbOpt TelOptCode

	charset *charsetState
}

// NewSession constructs a Session ready to receive bytes. A nil Policy map
// denies every telopt in both directions until the caller calls
// RequestLocal/RequestRemote explicitly via Negotiator().
func NewSession(cfg Config) *Session {
	policy := cfg.Policy
	if policy == nil {
		policy = map[TelOptCode]Policy{}
	}

	s := &Session{
		sink:   cfg.Sink,
		proxy:  cfg.Proxy,
		logger: cfg.Logger,
		comp:   newCompressor(),
		sb:     newSBBuffer(),
	}
	s.neg = newNegotiator(s, cfg.Proxy, policy)
	s.charset = newCharsetState(s)
	return s
}

// Negotiator exposes the Q-Method engine so a caller can request telopts be
// turned on (RequestLocal/RequestRemote) or off (Withdraw).
func (s *Session) Negotiator() *Negotiator {
	return s.neg
}

// Closed reports whether the session has been closed, either by Close or by
// a fatal ERROR event. Once closed, Recv is a no-op and the send helpers refuse to produce output.
func (s *Session) Closed() bool {
	return s.closed
}

// Close tears down any active compression stream and marks the session
// closed. It does not emit an ERROR event; callers that want one should use
// the fatal error raised naturally by a protocol violation instead.
func (s *Session) Close() {
	s.comp.teardown()
	s.closed = true
}

// SetLogger replaces the session's logger at any point in its lifetime.
// A nil logger disables event logging entirely.
func (s *Session) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *Session) logEvent(ev Event) {
	if s.logger == nil {
		return
	}
	switch ev.Kind {
	case EventWarning, EventError:
		s.logger.Warn("telnet event", "kind", ev.Kind.String(), "err", ev.Err)
	case EventWill, EventWont, EventDo, EventDont:
		s.logger.Debug("telnet event", "kind", ev.Kind.String(), "telopt", ev.TelOpt)
	case EventSubnegotiation:
		s.logger.Debug("telnet event", "kind", ev.Kind.String(), "telopt", ev.TelOpt, "len", len(ev.Body))
	case EventCompress:
		s.logger.Debug("telnet event", "kind", ev.Kind.String(), "on", ev.CompressOn)
	default:
		s.logger.Debug("telnet event", "kind", ev.Kind.String(), "len", len(ev.Bytes))
	}
}
