package telnet

// negotiator implements the RFC 1143 Q-Method described in §4.2: it
// maintains independent six-state machines per telopt per side and decides
// when WILL/WONT/DO/DONT go out on the wire, collapsing duplicate
// advertisements to nothing and never answering a request with another
// request (the property that prevents negotiation loops).
//
// This replaces telopt.go's telOptStack, which tracked only three states
// (Inactive/Requested/Active) per side. That model has no representation
// for "I asked to turn this off, but I already have a queued request to
// turn it back on" (WANTNO-OP / WANTYES-OP) and so cannot reproduce the
// corrective transitions RFC 1143 specifies when a peer answers out of
// turn.
type Negotiator struct {
	s      *Session
	proxy  bool
	policy map[TelOptCode]Policy
	table  map[TelOptCode]*qEntry
}

func newNegotiator(s *Session, proxy bool, policy map[TelOptCode]Policy) *Negotiator {
	return &Negotiator{
		s:      s,
		proxy:  proxy,
		policy: policy,
		table:  make(map[TelOptCode]*qEntry),
	}
}

func (n *Negotiator) allowed(code TelOptCode, local bool) bool {
	p := n.policy[code]
	if local {
		return p.AllowLocal
	}
	return p.AllowRemote
}

// handleReceived processes one inbound WILL/WONT/DO/DONT. local is true for
// DO/DONT (they update "us"); enable is true for WILL/DO.
func (n *Negotiator) handleReceived(code TelOptCode, local bool, enable bool) {
	if n.proxy {
		n.s.emit(Event{Kind: n.proxyEventKind(local, enable), TelOpt: code, Accept: true})
		return
	}

	e := n.entry(code)
	side := &e.us
	if !local {
		side = &e.him
	}

	switch *side {
	case QNo:
		n.fromNo(code, local, enable, side)
	case QYes:
		n.fromYes(code, local, enable, side)
	case QWantNo:
		n.fromWantNo(code, local, enable, side)
	case QWantNoOp:
		n.fromWantNoOp(code, local, enable, side)
	case QWantYes:
		n.fromWantYes(code, local, enable, side)
	case QWantYesOp:
		n.fromWantYesOp(code, local, enable, side)
	}
}

func (n *Negotiator) fromNo(code TelOptCode, local, enable bool, side *QState) {
	if !enable {
		// WONT/DONT while already NO: ignore.
		return
	}

	if n.allowed(code, local) {
		*side = QYes
		n.emitAccepted(code, local, enable)
		n.sendVerb(code, local, true)
		return
	}

	// Policy alone denies; give the sink a chance to override via Accept
	// on the one WILL/DO event this negotiation produces - no second
	// event follows either branch below.
	if n.askAccept(code, local, enable) {
		*side = QYes
		n.sendVerb(code, local, true)
		return
	}
	n.sendVerb(code, local, false)
}

func (n *Negotiator) fromYes(code TelOptCode, local, enable bool, side *QState) {
	if enable {
		// Duplicate advertisement: ignore, nothing goes on the wire.
		return
	}

	*side = QNo
	n.sendVerb(code, local, false)
	n.emitReceived(code, local, enable, true)
}

func (n *Negotiator) fromWantNo(code TelOptCode, local, enable bool, side *QState) {
	*side = QNo
	n.emitReceived(code, local, enable, true)
	if enable {
		n.s.emitWarning(newError(CodeProtocol, false,
			"telopt %d: DONT answered by WILL/DO while WANTNO", code))
	}
}

func (n *Negotiator) fromWantNoOp(code TelOptCode, local, enable bool, side *QState) {
	if enable {
		*side = QYes
		n.emitReceived(code, local, enable, true)
		n.s.emitWarning(newError(CodeProtocol, false,
			"telopt %d: DONT answered by WILL/DO while WANTNO-OP", code))
		return
	}

	*side = QWantYes
	n.emitOpposite(code, local, enable)
}

func (n *Negotiator) fromWantYes(code TelOptCode, local, enable bool, side *QState) {
	if enable {
		*side = QYes
		n.emitReceived(code, local, enable, true)
		return
	}
	*side = QNo
}

func (n *Negotiator) fromWantYesOp(code TelOptCode, local, enable bool, side *QState) {
	if enable {
		*side = QWantNo
		n.sendVerb(code, local, false)
		n.emitReceived(code, local, enable, true)
		return
	}
	*side = QNo
}

// askAccept dispatches the single WILL/DO event a policy-denied
// negotiation produces and reports whether the sink overrode the denial
// by setting Accept. Only called once policy has already said no.
func (n *Negotiator) askAccept(code TelOptCode, local, enable bool) bool {
	ev := Event{Kind: n.verbKind(local, enable), TelOpt: code, Accept: false}
	if n.s.sink != nil {
		n.s.sink.HandleEvent(n.s, &ev)
	}
	n.s.logEvent(ev)
	return ev.Accept
}

func (n *Negotiator) emitReceived(code TelOptCode, local, enable, fire bool) {
	if !fire {
		return
	}
	n.s.emit(Event{Kind: n.verbKind(local, enable), TelOpt: code})
}

// emitAccepted fires the WILL/DO event for a request policy allowed
// outright, before the answering verb goes on the wire - the sink learns
// of the accepted request ahead of (not after) its wire effect, and
// Accept reflects the negotiation's actual outcome rather than the
// event's zero value.
func (n *Negotiator) emitAccepted(code TelOptCode, local, enable bool) {
	n.s.emit(Event{Kind: n.verbKind(local, enable), TelOpt: code, Accept: true})
}

func (n *Negotiator) emitOpposite(code TelOptCode, local, enable bool) {
	n.s.emit(Event{Kind: n.verbKind(local, !enable), TelOpt: code})
}

func (n *Negotiator) verbKind(local, enable bool) EventKind {
	switch {
	case local && enable:
		return EventDo
	case local && !enable:
		return EventDont
	case !local && enable:
		return EventWill
	default:
		return EventWont
	}
}

func (n *Negotiator) proxyEventKind(local, enable bool) EventKind {
	return n.verbKind(local, enable)
}

// sendVerb emits the wire verb responding to a request: DO/DONT for a
// WILL/WONT we received (local=false means the request concerned "him"),
// WILL/WONT for a DO/DONT we received (local=true means the request
// concerned "us").
func (n *Negotiator) sendVerb(code TelOptCode, local, accept bool) {
	var cmd byte
	switch {
	case !local && accept:
		cmd = DO
	case !local && !accept:
		cmd = DONT
	case local && accept:
		cmd = WILL
	default:
		cmd = WONT
	}
	n.s.sendNegotiate(cmd, code)
}

// RequestLocal asks to enable a telopt we (the local side) control: WILL.
func (n *Negotiator) RequestLocal(code TelOptCode) {
	n.request(code, true)
}

// RequestRemote asks the peer to enable a telopt on their side: DO.
func (n *Negotiator) RequestRemote(code TelOptCode) {
	n.request(code, false)
}

func (n *Negotiator) request(code TelOptCode, local bool) {
	if n.proxy {
		n.sendVerb(code, local, true)
		return
	}

	e := n.entry(code)
	side := &e.us
	if !local {
		side = &e.him
	}

	switch *side {
	case QNo:
		*side = QWantYes
		n.sendVerb(code, local, true)
	case QWantNo:
		*side = QWantNoOp
	case QWantNoOp:
		// already queued
	case QYes, QWantYes, QWantYesOp:
		// already active or already requested
	}
}

// Withdraw asks to disable a telopt we previously enabled: WONT (local) or
// DONT (remote).
func (n *Negotiator) Withdraw(code TelOptCode, local bool) {
	if n.proxy {
		n.sendVerb(code, local, false)
		return
	}

	e := n.entry(code)
	side := &e.us
	if !local {
		side = &e.him
	}

	switch *side {
	case QYes:
		*side = QWantNo
		n.sendVerb(code, local, false)
	case QWantYes:
		*side = QWantYesOp
	case QWantYesOp:
		// already queued
	case QNo, QWantNo, QWantNoOp:
		// already inactive or already withdrawing
	}
}
