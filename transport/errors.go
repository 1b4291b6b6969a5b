package transport

import (
	"errors"
	"fmt"
)

var (
	ErrAddress    = errors.New("address error")
	ErrConnection = errors.New("connection error")
	ErrTLS        = errors.New("tls error")
	ErrIO         = errors.New("io error")
)

// OpError records the failed operation, its address and the error kind.
// errors.Is matches both the kind sentinel and the underlying cause.
type OpError struct {
	Kind error
	Op   string
	Addr string
	Err  error
}

func (e *OpError) Error() string {
	msg := e.Op
	if e.Addr != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Addr)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func AddressError(op, addr string, err error) error {
	return &OpError{Kind: ErrAddress, Op: op, Addr: addr, Err: err}
}

func ConnectionError(op, addr string, err error) error {
	return &OpError{Kind: ErrConnection, Op: op, Addr: addr, Err: err}
}

func TLSError(op, addr string, err error) error {
	return &OpError{Kind: ErrTLS, Op: op, Addr: addr, Err: err}
}

func IOError(op string, err error) error {
	return &OpError{Kind: ErrIO, Op: op, Err: err}
}
