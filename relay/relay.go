// Package relay copies bytes between a network stream and the local
// standard streams in both directions.
package relay

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/jpillora/sizestr"
	"github.com/juju/ratelimit"
	"github.com/metacubex/sing/common/bufio"
	E "github.com/metacubex/sing/common/exceptions"
	"github.com/sirupsen/logrus"

	"ncat/logger"
	"ncat/transport"
)

type Direction int

const (
	None     Direction = iota
	Inbound            // peer -> stdout
	Outbound           // stdin -> peer
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return "none"
	}
}

// Stdio is the local side of a relay.
type Stdio struct {
	In  io.Reader
	Out io.Writer
}

func OSStdio() Stdio {
	return Stdio{In: os.Stdin, Out: os.Stdout}
}

// Result describes the pump that ended the relay. Err is nil when that
// pump saw a clean end of stream.
type Result struct {
	Direction Direction
	Bytes     int64
	Err       error
}

type options struct {
	stdio Stdio
	rate  int64
	log   *logrus.Entry
}

type Option func(*options)

func WithStdio(stdio Stdio) Option {
	return func(o *options) { o.stdio = stdio }
}

// WithRateLimit caps each direction at bytesPerSec. Zero or less disables it.
func WithRateLimit(bytesPerSec int64) Option {
	return func(o *options) { o.rate = bytesPerSec }
}

func WithLogger(entry *logrus.Entry) Option {
	return func(o *options) { o.log = entry }
}

// Relay pumps source to stdout and stdin to sink until either pump stops
// or ctx is done. Whatever finishes first decides the Result.
//
// On return every half that is an io.Closer has been closed, which unblocks
// a pump still waiting on the network. A pump blocked on a reader that
// cannot be closed, such as process stdin, is left behind; it exits on its
// next read.
func Relay(ctx context.Context, source io.Reader, sink io.Writer, opts ...Option) Result {
	o := options{
		stdio: OSStdio(),
		log:   logger.Log.WithField("component", "relay"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	out, in := o.stdio.Out, io.Writer(sink)
	if o.rate > 0 {
		out = ratelimit.Writer(out, ratelimit.NewBucketWithRate(float64(o.rate), o.rate))
		in = ratelimit.Writer(in, ratelimit.NewBucketWithRate(float64(o.rate), o.rate))
	}

	done := make(chan Result, 2)
	go pump(Inbound, out, source, done)
	go pump(Outbound, in, o.stdio.In, done)

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Result{Direction: None, Err: ctx.Err()}
	}
	closeHalves(source, sink)

	entry := o.log.WithFields(logrus.Fields{
		"direction": res.Direction,
		"bytes":     sizestr.ToString(res.Bytes),
	})
	switch {
	case res.Err == nil:
		entry.Debug("relay finished")
	case E.IsClosedOrCanceled(res.Err):
		entry.Debugf("relay closed: %v", res.Err)
	default:
		entry.Warnf("relay stopped: %v", res.Err)
	}
	return res
}

func pump(dir Direction, dst io.Writer, src io.Reader, done chan<- Result) {
	n, err := bufio.Copy(dst, src)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		err = transport.IOError(dir.String(), err)
	}
	done <- Result{Direction: dir, Bytes: n, Err: err}
}

func closeHalves(halves ...interface{}) {
	for _, h := range halves {
		if c, ok := h.(io.Closer); ok {
			c.Close()
		}
	}
}
