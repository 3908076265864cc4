package telnet

// QState is one of the six RFC 1143 Q-Method states for a single side
// (local "us" or remote "him") of a single telopt.
type QState byte

const (
	QNo QState = iota
	QYes
	QWantNo
	QWantYes
	QWantNoOp
	QWantYesOp
)

func (s QState) String() string {
	switch s {
	case QNo:
		return "NO"
	case QYes:
		return "YES"
	case QWantNo:
		return "WANTNO"
	case QWantYes:
		return "WANTYES"
	case QWantNoOp:
		return "WANTNO-OP"
	case QWantYesOp:
		return "WANTYES-OP"
	default:
		return "?"
	}
}

// qEntry holds the two independent Q-Method state machines - local (us)
// and remote (him) - for a single telopt. Grown additively, one entry per
// telopt byte ever seen, exactly as the data model describes; this replaces
// the teacher's three-state TelOptState (Inactive/Requested/Active), which
// has no room for a queued opposite-direction request and so cannot honor
// the "he who answers DONT with WILL" corrective transitions RFC 1143
// requires.
type qEntry struct {
	us  QState
	him QState
}

// Policy is the host-provided per-telopt local/remote negotiation policy
// from §3. Telopts absent from the table default to the zero value, which
// denies both directions.
type Policy struct {
	AllowLocal  bool
	AllowRemote bool
}

func (n *Negotiator) entry(code TelOptCode) *qEntry {
	e, ok := n.table[code]
	if !ok {
		e = &qEntry{}
		n.table[code] = e
	}
	return e
}
