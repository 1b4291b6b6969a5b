package transport

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint is a host and port pair. It is not resolved until dialed.
type Endpoint struct {
	Host string
	Port int
}

func NewEndpoint(host string, port int) (Endpoint, error) {
	if port < 0 || port > 65535 {
		return Endpoint{}, AddressError("endpoint", net.JoinHostPort(host, strconv.Itoa(port)), fmt.Errorf("port %d out of range", port))
	}
	return Endpoint{Host: host, Port: port}, nil
}

// ParseEndpoint splits "host:port".
func ParseEndpoint(addr string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{}, AddressError("parse", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, AddressError("parse", addr, fmt.Errorf("invalid port %q", portStr))
	}
	return NewEndpoint(host, port)
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}
