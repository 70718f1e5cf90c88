package com

import (
	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/network"
	"github.com/watchparty/watchparty/pkg/network/websocket"
)

type NetClient[K comparable] interface {
	Disconnect()
	Id() K
}

type NetMap[K comparable, T NetClient[K]] struct{ Map[K, T] }

func NewNetMap[K comparable, T NetClient[K]]() NetMap[K, T] {
	return NetMap[K, T]{Map: Map[K, T]{m: make(map[K]T, 10)}}
}

func (m *NetMap[K, T]) Add(client T)              { m.Put(client.Id(), client) }
func (m *NetMap[K, T]) Remove(client T)           { m.RemoveByKey(client.Id()) }
func (m *NetMap[K, T]) RemoveDisconnect(client T) { client.Disconnect(); m.Remove(client) }

// SocketClient is one side of a websocket speaking api packets.
type SocketClient struct {
	id   network.Uid
	sock *websocket.WS
	log  *logger.Logger // a special logger for showing x -> y directions
}

func NewConnection(sock *websocket.WS, id network.Uid, log *logger.Logger) *SocketClient {
	if id.IsEmpty() {
		id = network.NewUid()
	}
	dir := "→"
	if sock.IsServer() {
		dir = "←"
	}
	dirClLog := log.Extend(log.With().
		Str(logger.ClientField, id.Short()).
		Str(logger.DirectionField, dir),
	)
	dirClLog.Debug().Msg("Connect")
	return &SocketClient{sock: sock, id: id, log: dirClLog}
}

// OnPacket sets the handler of all incoming packets.
// Handler errors are logged and never close the connection.
func (c *SocketClient) OnPacket(fn func(in api.In) error) {
	c.sock.SetMessageHandler(func(message []byte, err error) {
		if err != nil {
			c.log.Error().Err(err).Send()
			return
		}
		in, err := api.Decode(message)
		if err != nil {
			c.log.Warn().Err(err).Msg("malformed packet")
			return
		}
		c.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", in.T)
		if err = fn(in); err != nil {
			c.log.Error().Err(err).Str("t", in.T.String()).Send()
		}
	})
}

// Send puts a packet into the outgoing queue.
func (c *SocketClient) Send(t api.PT, data any) error {
	r, err := api.Encode(t, data)
	if err != nil {
		return err
	}
	return c.sock.Write(r)
}

// Notify just sends a message and goes further.
func (c *SocketClient) Notify(t api.PT, data any) {
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", t)
	if err := c.Send(t, data); err != nil {
		c.log.Warn().Err(err).Str("t", t.String()).Msg("dropped")
	}
}

func (c *SocketClient) Disconnect() {
	c.sock.Close()
	c.log.Debug().Str(logger.DirectionField, "x").Msg("Close")
}

func (c *SocketClient) Id() network.Uid        { return c.id }
func (c *SocketClient) Listen() chan struct{}  { return c.sock.Listen() }
func (c *SocketClient) Done() chan struct{}    { return c.sock.Done }
func (c *SocketClient) String() string         { return c.Id().String() }
func (c *SocketClient) Logger() *logger.Logger { return c.log }
