package transport

import (
	"net"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/pipefix/pipefix/pipeline"
)

// ServeUDP drives one pipeline per remote peer over a packet socket.
// Datagrams preserve message boundaries, so each read is injected as one
// inbound message; outbound messages drain back to the datagram's source.
// All per-peer pipelines run on the single loop goroutine. Returns when
// ReadFrom fails (e.g. the socket was closed).
func ServeUDP[W any](pc net.PacketConn, factory func(peer net.Addr) *pipeline.Pipeline[[]byte, W], opts ServerOptions) error {
	log := opts.logger()
	peers := xsync.NewMapOf[string, *pipeline.Pipeline[[]byte, W]]()

	buf := make([]byte, readBufSize)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			// tear down every peer pipeline
			peers.Range(func(_ string, p *pipeline.Pipeline[[]byte, W]) bool {
				p.Close()
				p.TransportInactive()
				return true
			})
			return err
		}

		p, loaded := peers.LoadOrCompute(addr.String(), func() *pipeline.Pipeline[[]byte, W] {
			return factory(addr)
		})
		if !loaded {
			log.Debug().Stringer("peer", addr).Msg("new peer")
			p.TransportActive()
		}

		p.HandleRead(slices.Clone(buf[:n]))
		for {
			m, ok := p.PollWrite()
			if !ok {
				break
			}
			if _, err := pc.WriteTo(m, addr); err != nil {
				p.ReadException(err)
				break
			}
		}

		if p.Closed() {
			p.TransportInactive()
			peers.Delete(addr.String())
		}
	}
}
