package com

import (
	"net/http"
	"net/url"

	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/network"
	"github.com/watchparty/watchparty/pkg/network/websocket"
)

type (
	Connector struct {
		wu *websocket.Upgrader
	}
	Option = func(c *Connector)
)

func WithOrigin(url string) Option { return func(c *Connector) { c.wu = websocket.NewUpgrader(url) } }

func NewConnector(opts ...Option) *Connector {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	if c.wu == nil {
		c.wu = websocket.NewUpgrader("")
	}
	return c
}

// NewServer upgrades an HTTP request into a participant connection with a fresh id.
// The connection doesn't read anything until Listen.
func (co *Connector) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*SocketClient, error) {
	ws, err := co.wu.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn, err := websocket.NewServerWithConn(ws, log)
	if err != nil {
		return nil, err
	}
	return NewConnection(conn, network.NewUid(), log), nil
}

// NewClient dials the coordinator.
func (co *Connector) NewClient(address url.URL, log *logger.Logger) (*SocketClient, error) {
	conn, err := websocket.NewClient(address, log)
	if err != nil {
		return nil, err
	}
	return NewConnection(conn, network.NewUid(), log), nil
}
