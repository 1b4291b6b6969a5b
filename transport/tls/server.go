package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"net"

	"ncat/transport"
	"ncat/transport/tcp"
)

// TLSServer accepts a single TLS client. Credentials are loaded by
// NewTLSServer, before any socket is bound.
type TLSServer struct {
	cfg    *TLSServerConfig
	tlsCfg *tls.Config

	tcp *tcp.TCPServer
}

func NewTLSServer(cfg *TLSServerConfig) (*TLSServer, error) {
	tlsCfg, err := cfg.ToTlsConfig()
	if err != nil {
		return nil, err
	}
	return &TLSServer{
		cfg:    cfg,
		tlsCfg: tlsCfg,
		tcp:    tcp.NewTCPServer(),
	}, nil
}

func (t *TLSServer) SetAccessList(allow *transport.AccessList) {
	t.tcp.Allow = allow
}

func (t *TLSServer) Listen(endpoint transport.Endpoint) error {
	return t.tcp.Listen(endpoint)
}

func (t *TLSServer) Addr() net.Addr {
	return t.tcp.Addr()
}

// AcceptOne takes exactly one connection, stops listening and runs the
// server handshake on it.
func (t *TLSServer) AcceptOne(ctx context.Context) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() { t.tcp.Close() })
	rawConn, err := t.tcp.Accept()
	stop()
	t.tcp.Close()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, net.ErrClosed) {
			err = ctxErr
		}
		return nil, transport.ConnectionError("accept", addrString(t.tcp.Addr()), err)
	}
	log.WithField("remote", rawConn.RemoteAddr()).Info("connection accepted")

	conn := tls.Server(rawConn, t.tlsCfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, transport.TLSError("handshake", rawConn.RemoteAddr().String(), err)
	}
	return conn, nil
}

func (t *TLSServer) Close() error {
	return t.tcp.Close()
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

var _ transport.TransportServer = (*TLSServer)(nil)
