package telnet

import (
	"bytes"
	"testing"
)

func TestRequestCharset_SendsRequestFrame(t *testing.T) {
	s, sink := newTestSession(nil)
	s.RequestCharset("UTF-8", "ISO-8859-1")

	want := append([]byte{IAC, SB, byte(TelOptCHARSET), charsetRequest, ';'}, []byte("UTF-8;ISO-8859-1")...)
	want = append(want, IAC, SE)

	if got := sink.sends(); !bytes.Equal(got, want) {
		t.Errorf("RequestCharset = % x, want % x", got, want)
	}
}

func TestRecv_CharsetRequestAcceptsFirstResolvable(t *testing.T) {
	s, sink := newTestSession(map[TelOptCode]Policy{TelOptCHARSET: {AllowLocal: true}})

	var body bytes.Buffer
	body.WriteByte(charsetRequest)
	body.WriteByte(';')
	body.WriteString("BOGUS-CHARSET;UTF-8")

	s.Recv(append(append([]byte{IAC, SB, byte(TelOptCHARSET)}, body.Bytes()...), IAC, SE))

	want := append([]byte{IAC, SB, byte(TelOptCHARSET), charsetAccepted}, []byte("UTF-8")...)
	want = append(want, IAC, SE)
	if got := sink.sends(); !bytes.Equal(got, want) {
		t.Errorf("sends = % x, want % x", got, want)
	}
	if s.CharsetName() != "UTF-8" {
		t.Errorf("CharsetName = %q, want UTF-8", s.CharsetName())
	}
}

func TestRecv_CharsetRequestRejectsWhenNoneResolve(t *testing.T) {
	s, sink := newTestSession(nil)

	var body bytes.Buffer
	body.WriteByte(charsetRequest)
	body.WriteByte(';')
	body.WriteString("NOT-A-REAL-CHARSET")

	s.Recv(append(append([]byte{IAC, SB, byte(TelOptCHARSET)}, body.Bytes()...), IAC, SE))

	want := []byte{IAC, SB, byte(TelOptCHARSET), charsetRejected, IAC, SE}
	if got := sink.sends(); !bytes.Equal(got, want) {
		t.Errorf("sends = % x, want % x", got, want)
	}
}

func TestRecv_CharsetAcceptedUpdatesNegotiatedName(t *testing.T) {
	s, _ := newTestSession(nil)
	s.Recv(append([]byte{IAC, SB, byte(TelOptCHARSET), charsetAccepted}, append([]byte("UTF-8"), IAC, SE)...))

	if s.CharsetName() != "UTF-8" {
		t.Errorf("CharsetName = %q, want UTF-8", s.CharsetName())
	}
}

func TestEncodeDecodeText_DefaultPassthrough(t *testing.T) {
	s, _ := newTestSession(nil)
	out, err := s.EncodeText("hello")
	if err != nil {
		t.Fatalf("EncodeText: %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("EncodeText = %q", out)
	}

	text, err := s.DecodeText([]byte("hello"))
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}
	if text != "hello" {
		t.Errorf("DecodeText = %q", text)
	}
}
