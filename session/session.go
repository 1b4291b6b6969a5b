// Package session composes transports and the relay into the operating
// modes exposed on the command line.
package session

import (
	"context"
	"fmt"

	"ncat/relay"
	"ncat/transport"
)

const (
	ModeConnect       = "connect"
	ModeServe         = "serve"
	ModeStreamConnect = "stream-connect"
	ModeStreamListen  = "stream-listen"
	ModeTLSConnect    = "tls-connect"
	ModeTLSListen     = "tls-listen"
)

// Modes lists every mode name in help order.
var Modes = []string{
	ModeConnect,
	ModeServe,
	ModeStreamConnect,
	ModeStreamListen,
	ModeTLSConnect,
	ModeTLSListen,
}

// Relays reports whether the mode relays stdin and stdout with its peer.
func Relays(name string) bool {
	switch name {
	case ModeStreamConnect, ModeStreamListen, ModeTLSConnect, ModeTLSListen:
		return true
	}
	return false
}

// Mode owns one run from connection setup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

type Params struct {
	Endpoint transport.Endpoint
	Stdio    relay.Stdio

	RateLimit int64
	Proxy     string
	Allow     *transport.AccessList

	CAFile   string
	CertFile string
	KeyFile  string
}

func (p Params) relayOptions() []relay.Option {
	return []relay.Option{
		relay.WithStdio(p.Stdio),
		relay.WithRateLimit(p.RateLimit),
	}
}

// New picks the mode by name and checks its required parameters.
func New(name string, p Params) (Mode, error) {
	if p.Stdio.In == nil || p.Stdio.Out == nil {
		p.Stdio = relay.OSStdio()
	}
	switch name {
	case ModeConnect:
		return &probe{params: p}, nil
	case ModeServe:
		return &echoServer{params: p}, nil
	case ModeStreamConnect:
		return &streamConnect{params: p}, nil
	case ModeStreamListen:
		return &streamListen{params: p}, nil
	case ModeTLSConnect:
		return &tlsConnect{params: p}, nil
	case ModeTLSListen:
		if p.CertFile == "" || p.KeyFile == "" {
			return nil, fmt.Errorf("%s requires a certificate and a key", name)
		}
		return &tlsListen{params: p}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", name)
}
