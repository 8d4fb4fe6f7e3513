package protocol

import (
	goerrors "errors"
	"fmt"
	"io"
	"net"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// websocketConn carries one frame per text message.
// gorilla allows one concurrent reader and one concurrent writer, the mutex guards the writer.
type websocketConn struct {
	conn  *websocket.Conn
	codec Codec
	opts  Options
	mu    sync.Mutex
}

func newWebsocketConn(conn *websocket.Conn, opts Options) *websocketConn {
	conn.SetReadLimit(int64(opts.maxFrameSize()))
	c := &websocketConn{conn: conn, codec: NewCodec(opts.MaxContentLength), opts: opts}
	if opts.IdleTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(opts.IdleTimeout))
		})
	}
	return c
}

// NewWebsocketServerConn splits an upgraded connection into its server halves.
func NewWebsocketServerConn(conn *websocket.Conn, opts Options) (CommandReader, EventWriter) {
	c := newWebsocketConn(conn, opts)
	return c, c
}

// NewWebsocketClientConn splits a dialed connection into its client halves.
func NewWebsocketClientConn(conn *websocket.Conn, opts Options) (EventReader, CommandWriter) {
	c := newWebsocketConn(conn, opts)
	return c, c
}

func (c *websocketConn) next() ([]byte, error) {
	if c.opts.IdleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout)); err != nil {
			return nil, err
		}
	}
	kind, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, classifyReadError(err)
	}
	if kind != websocket.TextMessage {
		return nil, fmt.Errorf("%w: binary message", errors.ErrMalformedFrame)
	}
	return data, nil
}

func classifyReadError(err error) error {
	switch {
	case goerrors.Is(err, websocket.ErrReadLimit):
		return fmt.Errorf("%w: %w", errors.ErrMalformedFrame, errors.ErrFrameTooLarge)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return io.EOF
	case goerrors.Is(err, net.ErrClosed):
		return io.EOF
	default:
		return err
	}
}

func (c *websocketConn) ReadCommand() (domain.Command, error) {
	data, err := c.next()
	if err != nil {
		return nil, err
	}
	return c.codec.DecodeCommand(data)
}

func (c *websocketConn) ReadEvent() (event.Event, error) {
	data, err := c.next()
	if err != nil {
		return nil, err
	}
	return c.codec.DecodeEvent(data)
}

func (c *websocketConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *websocketConn) WriteEvent(evt event.Event) error {
	data, err := c.codec.EncodeEvent(evt)
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *websocketConn) WriteCommand(cmd domain.Command) error {
	data, err := c.codec.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.write(data)
}
