// Command telnetecho is a minimal TCP echo server built on the telnet
// session engine. It exists to exercise the engine end to end over a real
// socket; it is not part of the core package.
package main

import (
	"log"
	"log/slog"
	"net"
	"os"

	"github.com/mudwire/telnet"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	listener, err := net.Listen("tcp", ":23230")
	if err != nil {
		log.Fatalln(err)
	}
	logger.Info("listening", "addr", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Fatalln(err)
		}
		go serve(conn, logger)
	}
}

func serve(conn net.Conn, logger *slog.Logger) {
	defer conn.Close()

	c := newConnection(conn, logger)
	c.sink.conn = c

	c.session.Negotiator().RequestLocal(telnet.TelOptTTYPE)
	c.session.Negotiator().RequestRemote(telnet.TelOptNEWENVIRON)
	c.session.Printf("Welcome to the echo service! Type anything, or QUIT to disconnect.\r\n> ")

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.session.Recv(buf[:n])
		}
		if err != nil {
			return
		}
		if c.session.Closed() {
			return
		}
	}
}

// connection adapts the synchronous, I/O-free Session to a blocking
// net.Conn: SEND events are written straight to the socket from within the
// Recv call that produced them.
type connection struct {
	conn    net.Conn
	session *telnet.Session
	sink    *echoSink
}

func newConnection(conn net.Conn, logger *slog.Logger) *connection {
	c := &connection{conn: conn}
	sink := &echoSink{logger: logger}
	c.sink = sink

	c.session = telnet.NewSession(telnet.Config{
		Sink:   sink,
		Logger: logger,
		Policy: map[telnet.TelOptCode]telnet.Policy{
			telnet.TelOptTTYPE:      {AllowLocal: true},
			telnet.TelOptNEWENVIRON: {AllowRemote: true},
			telnet.TelOptCHARSET:    {AllowLocal: true, AllowRemote: true},
		},
	})
	return c
}

type echoSink struct {
	conn   *connection
	logger *slog.Logger
}

func (e *echoSink) HandleEvent(s *telnet.Session, ev *telnet.Event) {
	switch ev.Kind {
	case telnet.EventSend:
		if _, err := e.conn.conn.Write(ev.Bytes); err != nil {
			e.logger.Warn("write failed", "err", err)
			s.Close()
		}
	case telnet.EventData:
		text, _ := s.DecodeText(ev.Bytes)
		if text == "QUIT\r\n" || text == "quit\r\n" {
			s.Printf("Goodbye!\r\n")
			s.Close()
			return
		}
		s.Printf("you said: %s", text)
	case telnet.EventWill, telnet.EventDo:
		ev.Accept = true
	case telnet.EventError:
		e.logger.Error("session error", "err", ev.Err)
	}
}
