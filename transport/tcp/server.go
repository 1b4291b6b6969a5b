package tcp

import (
	"errors"
	"net"
	"time"

	"github.com/jpillora/backoff"

	"ncat/transport"
)

type TCPServer struct {
	listener net.Listener

	// Allow filters peers before they reach the handler.
	Allow *transport.AccessList
}

func NewTCPServer() *TCPServer {
	return &TCPServer{}
}

func (t *TCPServer) Listen(endpoint transport.Endpoint) error {
	addr := endpoint.String()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return transport.ConnectionError("bind", addr, err)
	}
	t.listener = listener
	log.WithField("addr", listener.Addr()).Info("listening")
	return nil
}

func (t *TCPServer) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Accept returns the next permitted connection. Denied peers are closed
// and skipped.
func (t *TCPServer) Accept() (net.Conn, error) {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return nil, err
		}
		if !t.Allow.Allowed(conn.RemoteAddr()) {
			log.WithField("remote", conn.RemoteAddr()).Warn("connection denied by access list")
			conn.Close()
			continue
		}
		tune(conn)
		return conn, nil
	}
}

// Serve runs a serial accept loop. Connections are handled one at a time
// and closed once the handler returns.
// Accept and handler errors are logged and do not stop the loop; it ends
// when the handler returns transport.ErrStop or the listener is closed.
// Repeated accept errors (EMFILE and the like) back off up to a second.
func (t *TCPServer) Serve(handler transport.Handler) error {
	b := &backoff.Backoff{Min: 5 * time.Millisecond, Max: time.Second}
	for {
		conn, err := t.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			d := b.Duration()
			log.Errorf("Error while accepting connection: %v (retry in %v)", err, d)
			time.Sleep(d)
			continue
		}
		b.Reset()

		err = handler(conn)
		conn.Close()
		if errors.Is(err, transport.ErrStop) {
			return nil
		}
		if err != nil {
			log.WithField("remote", conn.RemoteAddr()).Errorf("connection handler failed: %v", err)
		}
	}
}

func (t *TCPServer) Close() error {
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

var _ transport.TransportServer = (*TCPServer)(nil)
