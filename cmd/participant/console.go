package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/client"
	"github.com/watchparty/watchparty/pkg/playback"
)

var (
	errQuit       = errors.New("quit")
	errNotJoined  = errors.New("not in the room yet")
	errBadCommand = errors.New("unknown command, try /help")
)

const help = `/play /pause /seek <sec>  control the video
/host                     share the source with everyone
/sync                     ask for the room state
/status                   show what's going on
/quit                     leave
anything else goes to the chat`

// console turns typed lines into player actions and chat messages.
// The player survives reconnects, the client is new every time.
type console struct {
	mu     sync.Mutex
	cl     *client.Client
	player *playback.SimPlayer
	out    io.Writer
}

func (c *console) attach(cl *client.Client) {
	c.mu.Lock()
	c.cl = cl
	c.mu.Unlock()
}

func (c *console) client() *client.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cl
}

func (c *console) exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit":
		return errQuit
	case "/help":
		_, _ = fmt.Fprintln(c.out, help)
		return nil
	}

	cl := c.client()
	if cl == nil {
		return errNotJoined
	}
	switch cmd {
	case "/play":
		// typing counts as a user gesture
		c.player.Allow()
		if cl.Engine().Blocked() {
			cl.Resume()
			return nil
		}
		return c.player.Play()
	case "/pause":
		c.player.Pause()
	case "/seek":
		pos, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil || pos < 0 {
			return fmt.Errorf("bad position %q", arg)
		}
		c.player.Seek(pos)
	case "/host":
		return cl.BecomeHost()
	case "/sync":
		return cl.Sync()
	case "/status":
		state := "paused"
		if c.player.Playing() {
			state = "playing"
		}
		_, _ = fmt.Fprintf(c.out, "%v: %v at %.1fs, host %v, links %v, %v\n",
			cl.Name(), state, c.player.Position(), cl.Host().Short(), cl.Links(), cl.Status())
	default:
		if strings.HasPrefix(cmd, "/") {
			return errBadCommand
		}
		return cl.Chat(line)
	}
	return nil
}

func (c *console) chat(m api.ChatMessageResponse) {
	if m.Kind == api.ChatSystem {
		_, _ = fmt.Fprintf(c.out, "* %v\n", m.Text)
		return
	}
	_, _ = fmt.Fprintf(c.out, "[%v] %v\n", m.Author, m.Text)
}
