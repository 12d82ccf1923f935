package transport

import (
	"errors"
	"io"

	"github.com/gorilla/websocket"

	"github.com/pipefix/pipefix/pipeline"
)

// ServeWS drives p over a websocket connection. Each data message is one
// inbound pipeline message; outbound messages drain as binary frames.
// The conn is not closed; the caller owns it.
func ServeWS[W any](conn *websocket.Conn, p *pipeline.Pipeline[[]byte, W]) error {
	p.TransportActive()
	defer func() {
		p.Close()
		drainWS(p, conn)
		p.TransportInactive()
	}()

	for !p.Closed() {
		if err := drainWS(p, conn); err != nil {
			return err
		}

		mt, data, err := conn.ReadMessage()
		switch {
		case err == nil:
		case wsEOF(err):
			p.ReadEOF()
			return drainWS(p, conn)
		default:
			p.ReadException(err)
			drainWS(p, conn)
			return err
		}

		if mt == websocket.BinaryMessage || mt == websocket.TextMessage {
			p.HandleRead(data)
		}
	}
	return nil
}

func drainWS[W any](p *pipeline.Pipeline[[]byte, W], conn *websocket.Conn) error {
	for {
		m, ok := p.PollWrite()
		if !ok {
			return nil
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, m); err != nil {
			return err
		}
	}
}

func wsEOF(err error) bool {
	return errors.Is(err, io.EOF) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
