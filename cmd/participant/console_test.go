package main

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/client"
	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/network/webrtc"
	"github.com/watchparty/watchparty/pkg/playback"
)

type sent struct {
	t    api.PT
	data any
}

type fakeConn struct {
	mu  sync.Mutex
	out []sent
}

func (f *fakeConn) Send(t api.PT, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sent{t, data})
	return nil
}

func (f *fakeConn) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.out) == 0 {
		return sent{}
	}
	return f.out[len(f.out)-1]
}

func newConsole(t *testing.T) (*console, *fakeConn, *bytes.Buffer) {
	t.Helper()
	factory, err := webrtc.NewApiFactory(config.Webrtc{}, logger.Default(), nil)
	if err != nil {
		t.Fatal(err)
	}
	player := playback.NewSimPlayer()
	out := &bytes.Buffer{}
	con := &console{player: player, out: out}
	conn := &fakeConn{}
	con.attach(client.New(conn, player, factory, client.WithLogger(logger.Default())))
	return con, conn, out
}

func TestConsole(t *testing.T) {
	con, conn, out := newConsole(t)

	tests := []struct {
		line string
		t    api.PT
		data any
	}{
		{line: "/play", t: api.Play},
		{line: "/pause", t: api.Pause},
		{line: "/seek 42.5", t: api.Seek, data: 42.5},
		{line: "/sync", t: api.SyncRequest},
		{line: "  hello there ", t: api.ChatMessage, data: "hello there"},
	}
	for _, test := range tests {
		if err := con.exec(test.line); err != nil {
			t.Fatalf("%q: %v", test.line, err)
		}
		got := conn.last()
		if got.t != test.t {
			t.Errorf("%q: sent %v, want %v", test.line, got.t, test.t)
		}
		if test.data != nil && got.data != test.data {
			t.Errorf("%q: sent %v, want %v", test.line, got.data, test.data)
		}
	}

	if err := con.exec("/status"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "paused at 42.5s") {
		t.Errorf("wrong status %q", out.String())
	}
}

func TestConsoleErrors(t *testing.T) {
	con, conn, _ := newConsole(t)

	tests := []struct {
		line string
		err  error
	}{
		{line: "/quit", err: errQuit},
		{line: "/jump", err: errBadCommand},
		{line: "/host", err: client.ErrNoLocalStream},
	}
	for _, test := range tests {
		if err := con.exec(test.line); !errors.Is(err, test.err) {
			t.Errorf("%q: got %v, want %v", test.line, err, test.err)
		}
	}
	if err := con.exec("/seek back"); err == nil {
		t.Errorf("expected a bad position")
	}
	if err := con.exec(""); err != nil {
		t.Errorf("empty lines are fine, got %v", err)
	}
	if len(conn.out) != 0 {
		t.Errorf("nothing should be sent, got %v", conn.out)
	}

	con.attach(nil)
	if err := con.exec("hi"); !errors.Is(err, errNotJoined) {
		t.Errorf("got %v", err)
	}
}

func TestChatOutput(t *testing.T) {
	out := &bytes.Buffer{}
	con := &console{out: out}
	con.chat(api.ChatMessageResponse{Kind: api.ChatSystem, Text: "Calm Fox 1 joined the party!"})
	con.chat(api.ChatMessageResponse{Kind: api.ChatUser, Author: "Neon Cat 7", Text: "hi"})
	want := "* Calm Fox 1 joined the party!\n[Neon Cat 7] hi\n"
	if out.String() != want {
		t.Errorf("got %q", out.String())
	}
}
