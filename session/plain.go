package session

import (
	"context"
	"fmt"
	"io"
	"net"

	"ncat/relay"
	"ncat/transport"
	"ncat/transport/tcp"
)

// Greeting is what the connect probe sends.
const Greeting = "Hello, TCP!"

// serveBufferSize bounds the single read done per connection in serve mode.
const serveBufferSize = 128

// probe dials, sends Greeting and hangs up. It does not relay.
type probe struct {
	params Params
}

func (m *probe) Run(ctx context.Context) error {
	addr := m.params.Endpoint.String()
	client := &tcp.TCPClient{Proxy: m.params.Proxy}
	conn, err := client.Dial(ctx, m.params.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to the address %s! %w", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(Greeting)); err != nil {
		return fmt.Errorf("failed to send: %w", transport.IOError("write", err))
	}
	log.WithField("remote", addr).Info("greeting sent")
	return nil
}

// echoServer accepts forever and prints the first chunk each client sends.
type echoServer struct {
	params Params
}

func (m *echoServer) Run(ctx context.Context) error {
	server := tcp.NewTCPServer()
	server.Allow = m.params.Allow
	if err := server.Listen(m.params.Endpoint); err != nil {
		return fmt.Errorf("failed to bind to %s address! %w", m.params.Endpoint, err)
	}
	defer server.Close()
	stop := context.AfterFunc(ctx, func() { server.Close() })
	defer stop()

	return server.Serve(printFirstChunk(m.params.Stdio.Out))
}

// printFirstChunk reads until at least one byte arrives and writes what
// it got to out.
func printFirstChunk(out io.Writer) transport.Handler {
	return func(conn net.Conn) error {
		fmt.Fprintf(out, "Connection %s -> %s accepted\n", conn.RemoteAddr(), conn.LocalAddr())

		buf := make([]byte, serveBufferSize)
		n := 0
		for n == 0 {
			var err error
			n, err = conn.Read(buf)
			fmt.Fprintf(out, "Received %d bytes from socket.\n", n)
			if n == 0 && err != nil {
				return transport.IOError("read", fmt.Errorf("failed to read from socket: %w", err))
			}
		}

		if _, err := out.Write(buf[:n]); err != nil {
			return transport.IOError("write", fmt.Errorf("error printing out the buffer: %w", err))
		}
		return nil
	}
}

type streamConnect struct {
	params Params
}

func (m *streamConnect) Run(ctx context.Context) error {
	client := &tcp.TCPClient{Proxy: m.params.Proxy}
	conn, err := client.Dial(ctx, m.params.Endpoint)
	if err != nil {
		return fmt.Errorf("error connecting to the server: %w", err)
	}
	defer conn.Close()

	relay.Relay(ctx, conn, conn, m.params.relayOptions()...)
	return nil
}

// streamListen relays with the first client and stops listening.
type streamListen struct {
	params Params
}

func (m *streamListen) Run(ctx context.Context) error {
	server := tcp.NewTCPServer()
	server.Allow = m.params.Allow
	if err := server.Listen(m.params.Endpoint); err != nil {
		return fmt.Errorf("error binding to the address: %w", err)
	}
	defer server.Close()
	stop := context.AfterFunc(ctx, func() { server.Close() })
	defer stop()

	return server.Serve(func(conn net.Conn) error {
		log.WithField("remote", conn.RemoteAddr()).Info("connection accepted")
		relay.Relay(ctx, conn, conn, m.params.relayOptions()...)
		return transport.ErrStop
	})
}
