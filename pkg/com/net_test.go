package com

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/logger"
)

func TestWebsocket(t *testing.T) {
	testCases := []struct {
		name string
		test func(t *testing.T)
	}{
		{"If packets go both ways", testEcho},
		{"If a server close stops the client", testServerClose},
	}
	for _, tc := range testCases {
		t.Run(tc.name, tc.test)
	}
}

type echoServer struct {
	mu    sync.Mutex
	conns []*SocketClient
}

func (s *echoServer) serve(t *testing.T) http.HandlerFunc {
	log := logger.Default()
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := NewConnector().NewServer(w, r, log)
		if err != nil {
			t.Errorf("no socket, %v", err)
			return
		}
		conn.OnPacket(func(in api.In) error {
			return conn.Send(in.T, in.Payload)
		})
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		<-conn.Listen()
	}
}

func (s *echoServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Disconnect()
	}
}

func dial(t *testing.T, srv *httptest.Server) *SocketClient {
	addr, _ := url.Parse(srv.URL)
	addr.Scheme = "ws"
	client, err := NewConnector().NewClient(*addr, logger.Default())
	if err != nil {
		t.Fatalf("couldn't connect to %v because of %v", addr, err)
	}
	return client
}

func testEcho(t *testing.T) {
	es := &echoServer{}
	srv := httptest.NewServer(es.serve(t))
	defer srv.Close()

	client := dial(t, srv)
	got := make(chan api.In, 10)
	client.OnPacket(func(in api.In) error { got <- in; return nil })
	done := client.Listen()

	calls := []struct {
		t       api.PT
		payload any
		want    string
	}{
		{t: api.Play, payload: 12.5, want: "12.5"},
		{t: api.Seek, payload: 0, want: "0"},
		{t: api.ChatMessage, payload: "hello", want: `"hello"`},
	}
	for _, call := range calls {
		client.Notify(call.t, call.payload)
		select {
		case in := <-got:
			if in.T != call.t || string(in.Payload) != call.want {
				t.Errorf("expected %v %v, got %v %s", call.t, call.want, in.T, in.Payload)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no echo for %v", call.t)
		}
	}

	client.Disconnect()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Errorf("client didn't stop")
	}
	es.closeAll()
}

func testServerClose(t *testing.T) {
	es := &echoServer{}
	srv := httptest.NewServer(es.serve(t))
	defer srv.Close()

	client := dial(t, srv)
	client.OnPacket(func(api.In) error { return nil })
	done := client.Listen()

	// wait for the server side to register
	deadline := time.Now().Add(5 * time.Second)
	for {
		es.mu.Lock()
		n := len(es.conns)
		es.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	es.closeAll()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Errorf("client didn't notice the server close")
	}
	if err := client.Send(api.Play, 1); err == nil {
		t.Errorf("expected an error when writing into a closed socket")
	}
}
