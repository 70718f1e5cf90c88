package websocket

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/watchparty/watchparty/pkg/logger"
)

const (
	maxMessageSize = 64 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
	sendQueueSize  = 128
)

var ErrQueueFull = errors.New("send queue is full")

type WS struct {
	conn *deadlinedConn
	send chan []byte

	mu        sync.Mutex
	onMessage MessageHandler
	started   bool
	closeOnce sync.Once
	closed    chan struct{}

	pingPong bool
	server   bool
	log      *logger.Logger

	Done chan struct{}
}

// MessageHandler receives every incoming text message.
type MessageHandler func(message []byte, err error)

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
	},
}

// NewUpgrader makes an upgrader that accepts only the given origin,
// an empty origin means any.
func NewUpgrader(origin string) *Upgrader {
	u := DefaultUpgrader
	switch origin {
	case "":
		u.CheckOrigin = func(*http.Request) bool { return true }
	default:
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	}
	return &u
}

// NewServerWithConn wraps an upgraded connection.
// The server side sends pings and drops peers that stop answering.
func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) (*WS, error) {
	if conn == nil {
		return nil, errors.New("null connection")
	}
	return newSocket(conn, true, true, log), nil
}

func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, server bool, log *logger.Logger) *WS {
	if log == nil {
		log = logger.Default()
	}
	return &WS{
		conn:     &deadlinedConn{sock: conn, wt: writeWait},
		send:     make(chan []byte, sendQueueSize),
		closed:   make(chan struct{}),
		pingPong: pingPong,
		server:   server,
		log:      log,
		Done:     make(chan struct{}),
	}
}

func (ws *WS) IsServer() bool { return ws.server }

func (ws *WS) SetMessageHandler(fn MessageHandler) {
	ws.mu.Lock()
	ws.onMessage = fn
	ws.mu.Unlock()
}

// Listen starts the read and write pumps.
// The returned channel is closed when both of them have stopped.
func (ws *WS) Listen() chan struct{} {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.started {
		return ws.Done
	}
	ws.started = true
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); ws.reader() }()
	go func() { defer wg.Done(); ws.writer() }()
	go func() {
		wg.Wait()
		_ = ws.conn.close()
		close(ws.Done)
	}()
	return ws.Done
}

// reader pumps messages from the websocket connection to the message handler.
// Serializes all websocket reads.
func (ws *WS) reader() {
	defer ws.shutdown()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		if ws.pingPong {
			_ = conn.SetReadDeadline(time.Now().Add(pongTime))
			conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongTime)) })
		}
	})
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				ws.log.Warn().Err(err).Msg("WebSocket read")
			}
			return
		}
		ws.mu.Lock()
		handler := ws.onMessage
		ws.mu.Unlock()
		if handler != nil {
			handler(message, nil)
		}
	}
}

// writer pumps messages from the send queue to the websocket connection.
// Serializes all websocket writes and keeps the liveness pings going.
func (ws *WS) writer() {
	var tick <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer ws.shutdown()
	for {
		select {
		case message := <-ws.send:
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				ws.log.Debug().Err(err).Msg("WebSocket write")
				return
			}
		case <-tick:
			if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ws.closed:
			_ = ws.conn.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Write puts the message into the send queue without blocking.
func (ws *WS) Write(data []byte) error {
	select {
	case <-ws.closed:
		return net.ErrClosed
	default:
	}
	select {
	case ws.send <- data:
		return nil
	case <-ws.closed:
		return net.ErrClosed
	default:
		return ErrQueueFull
	}
}

// Close stops both pumps, sending the close frame first.
func (ws *WS) Close() {
	ws.mu.Lock()
	started := ws.started
	ws.started = true
	ws.mu.Unlock()
	ws.shutdown()
	if !started {
		_ = ws.conn.close()
		close(ws.Done)
	}
}

func (ws *WS) shutdown() {
	ws.closeOnce.Do(func() {
		close(ws.closed)
		// unblocks the reader
		_ = ws.conn.sock.SetReadDeadline(time.Now().Add(writeWait))
	})
}
