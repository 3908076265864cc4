package telnet

import (
	"bytes"
	"testing"
)

// TestNegotiator_Convergence simulates two sessions exchanging WILL/DO for
// a telopt both sides' policy allows, and checks the exchange settles
// within three messages with neither side re-advertising afterward.
func TestNegotiator_Convergence(t *testing.T) {
	policy := map[TelOptCode]Policy{TelOptTTYPE: {AllowLocal: true, AllowRemote: true}}

	client, clientSink := newTestSession(policy)
	server, serverSink := newTestSession(policy)

	client.Negotiator().RequestLocal(TelOptTTYPE) // client: IAC WILL TTYPE
	msg1 := clientSink.sends()
	if !bytes.Equal(msg1, []byte{IAC, WILL, byte(TelOptTTYPE)}) {
		t.Fatalf("message 1 = % x", msg1)
	}

	server.Recv(msg1) // server answers DO
	msg2 := serverSink.sends()
	if !bytes.Equal(msg2, []byte{IAC, DO, byte(TelOptTTYPE)}) {
		t.Fatalf("message 2 = % x", msg2)
	}

	client.Recv(msg2) // client reaches YES, sends nothing further
	if len(clientSink.sends()) != len(msg1) {
		t.Fatalf("client sent extra bytes after convergence: % x", clientSink.sends())
	}

	if client.Negotiator().entry(TelOptTTYPE).us != QYes {
		t.Errorf("client us state = %v, want YES", client.Negotiator().entry(TelOptTTYPE).us)
	}
	if server.Negotiator().entry(TelOptTTYPE).him != QYes {
		t.Errorf("server him state = %v, want YES", server.Negotiator().entry(TelOptTTYPE).him)
	}

	// Re-advertising must produce nothing further (loop avoidance).
	client.Recv([]byte{IAC, DO, byte(TelOptTTYPE)})
	if len(clientSink.sends()) != len(msg1) {
		t.Errorf("unexpected re-advertisement: % x", clientSink.sends())
	}
}

func TestNegotiator_PolicyDenyRefuses(t *testing.T) {
	s, sink := newTestSession(nil) // no policy entries: deny everything
	s.Recv([]byte{IAC, WILL, byte(TelOptZMP)})

	want := []byte{IAC, DONT, byte(TelOptZMP)}
	if got := sink.sends(); !bytes.Equal(got, want) {
		t.Errorf("sends = % x, want % x", got, want)
	}
}

func TestNegotiator_SinkAcceptOverridesPolicyDeny(t *testing.T) {
	sink := &recordingSink{accept: func(ev *Event) bool { return true }}
	s := NewSession(Config{Sink: sink}) // no static policy

	s.Recv([]byte{IAC, WILL, byte(TelOptZMP)})

	want := []byte{IAC, DO, byte(TelOptZMP)}
	if got := sink.sends(); !bytes.Equal(got, want) {
		t.Errorf("sends = % x, want % x", got, want)
	}
}

func TestNegotiator_DuplicateAdvertisementCollapses(t *testing.T) {
	policy := map[TelOptCode]Policy{TelOptTTYPE: {AllowRemote: true}}
	s, sink := newTestSession(policy)

	s.Recv([]byte{IAC, WILL, byte(TelOptTTYPE)})
	first := len(sink.sends())

	s.Recv([]byte{IAC, WILL, byte(TelOptTTYPE)})
	if len(sink.sends()) != first {
		t.Errorf("duplicate WILL produced extra wire bytes: % x", sink.sends())
	}
}

func TestNegotiator_ProxyModeBypassesQMethod(t *testing.T) {
	sink := &recordingSink{}
	s := NewSession(Config{Sink: sink, Proxy: true})

	s.Recv([]byte{IAC, WILL, byte(TelOptTTYPE)})
	wills := sink.ofKind(EventWill)
	if len(wills) != 1 || !wills[0].Accept {
		t.Fatalf("expected mirrored WILL event with Accept true, got %v", wills)
	}
	// Proxy mode never answers on the wire by itself.
	if len(sink.sends()) != 0 {
		t.Errorf("proxy mode should not answer unilaterally, got % x", sink.sends())
	}
}
