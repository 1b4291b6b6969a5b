package tls

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/sirupsen/logrus"

	"ncat/transport"
	"ncat/transport/tcp"
)

type TLSClient struct {
	cfg *TLSClientConfig
	tcp *tcp.TCPClient
}

func NewTLSClient(cfg *TLSClientConfig, underlying *tcp.TCPClient) *TLSClient {
	if underlying == nil {
		underlying = tcp.NewTCPClient()
	}
	return &TLSClient{
		cfg: cfg,
		tcp: underlying,
	}
}

// Dial connects over TCP and completes the client handshake. The trust
// store is rebuilt on every call.
func (t *TLSClient) Dial(ctx context.Context, endpoint transport.Endpoint) (net.Conn, error) {
	addr := endpoint.String()
	tlsCfg, err := t.cfg.ToTlsConfig(endpoint.Host)
	if err != nil {
		return nil, err
	}

	rawConn, err := t.tcp.Dial(ctx, endpoint)
	if err != nil {
		return nil, transport.TLSError("connect", addr, err)
	}

	conn := tls.Client(rawConn, tlsCfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, transport.TLSError("handshake", addr, err)
	}
	state := conn.ConnectionState()
	log.WithFields(logrus.Fields{
		"remote":  conn.RemoteAddr(),
		"version": tls.VersionName(state.Version),
		"cipher":  tls.CipherSuiteName(state.CipherSuite),
	}).Debug("tls handshake complete")
	return conn, nil
}

var _ transport.TransportClient = (*TLSClient)(nil)
