package telnet

// recordingSink is the shared EventSink test double: it stores a copy of
// every event and optionally lets a test control the Accept decision for
// WILL/DO callbacks.
type recordingSink struct {
	events []Event
	accept func(ev *Event) bool
}

func (r *recordingSink) HandleEvent(s *Session, ev *Event) {
	if (ev.Kind == EventWill || ev.Kind == EventDo) && r.accept != nil {
		ev.Accept = r.accept(ev)
	}
	r.events = append(r.events, *ev)
}

func (r *recordingSink) sends() []byte {
	var out []byte
	for _, ev := range r.events {
		if ev.Kind == EventSend {
			out = append(out, ev.Bytes...)
		}
	}
	return out
}

func (r *recordingSink) data() []byte {
	var out []byte
	for _, ev := range r.events {
		if ev.Kind == EventData {
			out = append(out, ev.Bytes...)
		}
	}
	return out
}

func (r *recordingSink) ofKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newTestSession(policy map[TelOptCode]Policy) (*Session, *recordingSink) {
	sink := &recordingSink{}
	s := NewSession(Config{Sink: sink, Policy: policy})
	return s, sink
}
