// Package transport drives pipelines over concrete sockets. The pipeline
// core performs no I/O; the loops here read the wire, inject bytes through
// the pipeline's boundary operations, and drain outbound messages back to
// the wire. Each pipeline is driven by exactly one loop goroutine, which
// preserves the core's single-threaded model.
package transport

import (
	"errors"
	"io"
	"net"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pipefix/pipefix/pipeline"
)

const readBufSize = 64 * 1024

// maxIdle bounds the read deadline when no handler has a sooner timeout.
const maxIdle = 30 * time.Second

// ServerOptions configures the listener loops.
type ServerOptions struct {
	Logger *zerolog.Logger // if nil logging is disabled

	// AcceptRate, if non-nil, limits accepted connections per second;
	// connections over the limit are closed immediately.
	AcceptRate *rate.Limiter
}

func (o *ServerOptions) logger() *zerolog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// ServeConn drives p over conn until EOF, a transport error, or the
// pipeline closing. It reports transport up/down, injects inbound bytes,
// sizes read deadlines by PollTimeout, delivers HandleTimeout on idle
// wake-ups, and drains PollWrite to the socket after every dispatch.
// The conn is not closed; the caller owns it.
func ServeConn[W any](conn net.Conn, p *pipeline.Pipeline[[]byte, W]) error {
	p.TransportActive()
	defer func() {
		p.Close()
		drainTo(p, conn) // post-close drain
		p.TransportInactive()
	}()

	buf := make([]byte, readBufSize)
	for !p.Closed() {
		if err := drainTo(p, conn); err != nil {
			return err
		}

		eto := time.Now().Add(maxIdle)
		p.PollTimeout(&eto)
		conn.SetReadDeadline(eto)

		n, err := conn.Read(buf)
		if n > 0 {
			p.HandleRead(slices.Clone(buf[:n]))
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			p.ReadEOF()
			return drainTo(p, conn)
		case isTimeout(err):
			p.HandleTimeout(time.Now())
		default:
			p.ReadException(err)
			drainTo(p, conn)
			return err
		}
	}
	return nil
}

// ListenTCP accepts connections on ln and serves each with a fresh
// pipeline from factory, one goroutine per connection. Returns when
// Accept fails (e.g. the listener was closed).
func ListenTCP[W any](ln net.Listener, factory func() *pipeline.Pipeline[[]byte, W], opts ServerOptions) error {
	log := opts.logger()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		if opts.AcceptRate != nil && !opts.AcceptRate.Allow() {
			log.Warn().Stringer("remote", conn.RemoteAddr()).Msg("accept rate exceeded, dropping")
			conn.Close()
			continue
		}
		go func() {
			defer conn.Close()
			if err := ServeConn(conn, factory()); err != nil {
				log.Debug().Err(err).Stringer("remote", conn.RemoteAddr()).Msg("connection done")
			}
		}()
	}
}

// drainTo pulls outbound messages until the pipeline runs dry.
func drainTo[W any](p *pipeline.Pipeline[[]byte, W], w io.Writer) error {
	for {
		m, ok := p.PollWrite()
		if !ok {
			return nil
		}
		if _, err := w.Write(m); err != nil {
			return err
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
