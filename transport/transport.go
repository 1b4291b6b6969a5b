package transport

import (
	"context"
	"errors"
	"net"
)

type TransportServer interface {
	Listen(endpoint Endpoint) error
	Addr() net.Addr
	Close() error
}

type TransportClient interface {
	Dial(ctx context.Context, endpoint Endpoint) (net.Conn, error)
}

// Handler is called once per accepted connection. Returning ErrStop ends
// the accept loop; any other error is logged and the loop keeps going.
type Handler func(conn net.Conn) error

// ErrStop tells a serve loop that the handler wants no more connections.
var ErrStop = errors.New("stop serving")

// for the server side, Listen() binds and a serve loop hands accepted conns to a Handler.
// for the client side, Dial() connects and, for tls, finishes the handshake before returning.
// either way the caller gets a net.Conn and passes its read and write halves to the relay.
