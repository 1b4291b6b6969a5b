package session

import (
	"context"
	"fmt"

	"ncat/relay"
	"ncat/transport/tcp"
	"ncat/transport/tls"
)

type tlsConnect struct {
	params Params
}

func (m *tlsConnect) Run(ctx context.Context) error {
	client := tls.NewTLSClient(
		&tls.TLSClientConfig{CAFile: m.params.CAFile},
		&tcp.TCPClient{Proxy: m.params.Proxy},
	)
	conn, err := client.Dial(ctx, m.params.Endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	relay.Relay(ctx, conn, conn, m.params.relayOptions()...)
	return nil
}

// tlsListen serves exactly one TLS client.
type tlsListen struct {
	params Params
}

func (m *tlsListen) Run(ctx context.Context) error {
	// credentials are loaded before the socket is bound
	server, err := tls.NewTLSServer(&tls.TLSServerConfig{
		CAFile:   m.params.CAFile,
		CertFile: m.params.CertFile,
		KeyFile:  m.params.KeyFile,
	})
	if err != nil {
		return err
	}
	server.SetAccessList(m.params.Allow)
	if err := server.Listen(m.params.Endpoint); err != nil {
		return fmt.Errorf("error binding to the address: %w", err)
	}
	defer server.Close()

	conn, err := server.AcceptOne(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	relay.Relay(ctx, conn, conn, m.params.relayOptions()...)
	return nil
}
