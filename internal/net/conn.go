package net

import (
	"bufio"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// frameConn is one client connection that moves whole frames. The TCP and
// websocket transports differ only here.
type frameConn interface {
	ReadFrame() (Frame, error)
	WriteFrame(f Frame, deadline time.Time) error
	RemoteAddr() string
	Close() error
}

// tcpConn frames a byte stream with the length header.
type tcpConn struct {
	conn net.Conn
	r    *bufio.Reader
}

func newTCPConn(c net.Conn) *tcpConn {
	return &tcpConn{conn: c, r: bufio.NewReader(c)}
}

func (c *tcpConn) ReadFrame() (Frame, error) { return ReadFrame(c.r) }

func (c *tcpConn) WriteFrame(f Frame, deadline time.Time) error {
	c.conn.SetWriteDeadline(deadline)
	return WriteFrame(c.conn, f)
}

func (c *tcpConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
func (c *tcpConn) Close() error       { return c.conn.Close() }

// wsConn carries one frame per binary websocket message.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadFrame() (Frame, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return Frame{}, err
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		return DecodeFrame(data)
	}
}

func (c *wsConn) WriteFrame(f Frame, deadline time.Time) error {
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.BinaryMessage, AppendFrame(nil, f))
}

func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
func (c *wsConn) Close() error       { return c.conn.Close() }
