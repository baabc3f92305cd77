package network

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write one frame.
	writeWait = 10 * time.Second

	// Time allowed between pongs on a websocket.
	pongWait = 60 * time.Second

	// Ping period; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Transport moves envelopes over one connection. ReadMessage is called
// from a single goroutine and WriteMessage from another.
type Transport interface {
	ReadMessage() (Message, error)
	WriteMessage(Message) error
	Close() error
	RemoteAddr() string
}

// pinger is implemented by transports that need keepalive frames.
type pinger interface {
	Ping() error
}

type tcpTransport struct {
	conn   net.Conn
	reader *Reader
}

// NewTCPTransport frames envelopes as JSON lines on a stream.
func NewTCPTransport(conn net.Conn) Transport {
	return &tcpTransport{conn: conn, reader: NewReader(conn)}
}

func (t *tcpTransport) ReadMessage() (Message, error) { return t.reader.ReadMessage() }

func (t *tcpTransport) WriteMessage(msg Message) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return WriteMessage(t.conn, msg)
}

func (t *tcpTransport) Close() error       { return t.conn.Close() }
func (t *tcpTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

// wsTransport carries one envelope per text frame.
type wsTransport struct {
	conn *websocket.Conn
	// gorilla allows one concurrent writer; pings come from the write loop
	// too, but Close may race with it.
	mu sync.Mutex
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadMessage() (Message, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return Message{}, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return DecodeMessage(data)
	}
}

func (t *wsTransport) WriteMessage(msg Message) error {
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.mu.Unlock()
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }
