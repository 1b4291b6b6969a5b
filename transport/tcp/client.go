package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/proxy"

	"ncat/transport"
)

type TCPClient struct {
	// Proxy is an optional socks5://[user:pass@]host:port URL.
	Proxy string
}

func NewTCPClient() *TCPClient {
	return &TCPClient{}
}

func (t *TCPClient) Dial(ctx context.Context, endpoint transport.Endpoint) (net.Conn, error) {
	addr := endpoint.String()
	dialer, err := t.dialer()
	if err != nil {
		return nil, err
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		// 域名无法解析属于地址错误，拒绝或不可达才是连接错误
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return nil, transport.AddressError("resolve", addr, err)
		}
		return nil, transport.ConnectionError("dial", addr, err)
	}
	log.WithField("remote", conn.RemoteAddr()).Debug("tcp connected")
	tune(conn)
	return conn, nil
}

func (t *TCPClient) dialer() (proxy.ContextDialer, error) {
	if t.Proxy == "" {
		return &net.Dialer{}, nil
	}
	u, err := url.Parse(t.Proxy)
	if err != nil {
		return nil, transport.AddressError("proxy", t.Proxy, err)
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, transport.AddressError("proxy", t.Proxy, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, transport.AddressError("proxy", t.Proxy, fmt.Errorf("scheme %q does not support contexts", u.Scheme))
	}
	return cd, nil
}

// 关闭Nagle算法，交互式转发时减少延迟
func tune(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}
}

var _ transport.TransportClient = (*TCPClient)(nil)
