package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// deadlinedConn serializes writes and sets a write deadline on each one.
// Gorilla allows one concurrent writer, while pings and the writer pump
// may race for the socket.
type deadlinedConn struct {
	sock *websocket.Conn
	wt   time.Duration
	mu   sync.Mutex
}

func (conn *deadlinedConn) setup(fn func(conn *websocket.Conn)) { fn(conn.sock) }

func (conn *deadlinedConn) close() error { return conn.sock.Close() }

func (conn *deadlinedConn) read() (message []byte, err error) {
	_, message, err = conn.sock.ReadMessage()
	return
}

func (conn *deadlinedConn) write(t int, mess []byte) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.sock.SetWriteDeadline(time.Now().Add(conn.wt)); err != nil {
		return err
	}
	return conn.sock.WriteMessage(t, mess)
}
