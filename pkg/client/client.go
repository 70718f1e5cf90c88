// Package client is a room participant.
//
// It follows the room playback with a local player, keeps the peer links
// to the host (or to the viewers when it is the host), and chats.
package client

import (
	"errors"
	"fmt"
	"sync"

	pion "github.com/pion/webrtc/v4"
	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/com"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/network"
	"github.com/watchparty/watchparty/pkg/network/webrtc"
	"github.com/watchparty/watchparty/pkg/playback"
)

var ErrNoLocalStream = errors.New("no stream to share")

const (
	StatusNoStream = "Error: No stream to share!"
	StatusBlocked  = "Playback is blocked, start it manually"
)

// Sender is the connection to the coordinator.
type Sender interface {
	Send(t api.PT, data any) error
}

type Player interface {
	playback.Player
	Load(src string)
}

// Source is the local media a host shares.
type Source interface {
	Track() pion.TrackLocal
}

type Client struct {
	conn    Sender
	player  Player
	engine  *playback.Engine
	factory *webrtc.ApiFactory
	source  Source
	links   *com.Map[network.Uid, *webrtc.Link]

	mu     sync.Mutex
	id     network.Uid
	name   string
	host   network.Uid
	status string

	onStatus func(string)
	onChat   func(api.ChatMessageResponse)
	onTrack  func(*pion.TrackRemote)
	drift    float64
	log      *logger.Logger
}

type Option func(*Client)

func WithSource(s Source) Option                      { return func(c *Client) { c.source = s } }
func WithLogger(log *logger.Logger) Option            { return func(c *Client) { c.log = log } }
func WithDrift(threshold float64) Option              { return func(c *Client) { c.drift = threshold } }
func OnStatus(fn func(string)) Option                 { return func(c *Client) { c.onStatus = fn } }
func OnChat(fn func(api.ChatMessageResponse)) Option  { return func(c *Client) { c.onChat = fn } }
func OnTrack(fn func(track *pion.TrackRemote)) Option { return func(c *Client) { c.onTrack = fn } }

func New(conn Sender, player Player, factory *webrtc.ApiFactory, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		player:  player,
		factory: factory,
		links:   com.NewMap[network.Uid, *webrtc.Link](),
		drift:   playback.DefaultDriftThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Default()
	}
	c.engine = playback.New(player, c.emit,
		playback.WithThreshold(c.drift),
		playback.WithLogger(c.log),
		playback.OnBlocked(func() { c.setStatus(StatusBlocked) }),
	)
	if b, ok := player.(interface{ Bind(playback.Events) }); ok {
		b.Bind(c.engine)
	}
	return c
}

func (c *Client) Engine() *playback.Engine { return c.engine }
func (c *Client) Links() int               { return c.links.Len() }

func (c *Client) Id() network.Uid {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Client) Host() network.Uid {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host
}

func (c *Client) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.id.IsEmpty() && c.host == c.id
}

func (c *Client) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Handle processes one packet from the coordinator.
func (c *Client) Handle(in api.In) error {
	switch in.T {
	case api.Welcome:
		w, err := api.UnwrapChecked[api.WelcomeResponse](in.Payload)
		if err != nil {
			return err
		}
		return c.welcome(*w)
	case api.SyncState:
		state, err := api.UnwrapChecked[api.PlaybackState](in.Payload)
		if err != nil {
			return err
		}
		c.engine.Snapshot(*state)
	case api.Play, api.Pause, api.Seek:
		pos, err := api.UnwrapChecked[float64](in.Payload)
		if err != nil {
			return err
		}
		return c.engine.Remote(in.T, *pos)
	case api.HostChanged:
		h, err := api.UnwrapChecked[api.HostChangedResponse](in.Payload)
		if err != nil {
			return err
		}
		return c.hostChanged(h.HostId)
	case api.HostLeft:
		c.hostLeft()
	case api.Signal:
		s, err := api.UnwrapChecked[api.SignalResponse](in.Payload)
		if err != nil {
			return err
		}
		return c.signal(s.From, s.Signal)
	case api.ChatMessage:
		msg, err := api.UnwrapChecked[api.ChatMessageResponse](in.Payload)
		if err != nil {
			return err
		}
		if c.onChat != nil {
			c.onChat(*msg)
		}
	case api.VideoUploaded:
		m, err := api.UnwrapChecked[api.Media](in.Payload)
		if err != nil {
			return err
		}
		c.player.Load(m.Url)
		c.setStatus("New video: " + m.Filename)
	default:
		c.log.Warn().Msgf("Unknown packet: %v", in.T)
	}
	return nil
}

// BecomeHost declares this participant the one who streams.
func (c *Client) BecomeHost() error {
	if c.source == nil {
		c.setStatus(StatusNoStream)
		return ErrNoLocalStream
	}
	c.mu.Lock()
	c.host = c.id
	c.mu.Unlock()
	// any links left are the ones to the old host
	c.closeLinks()
	c.setStatus("You are the host")
	return c.conn.Send(api.BecomeHost, nil)
}

func (c *Client) Chat(text string) error { return c.conn.Send(api.ChatMessage, text) }
func (c *Client) Sync() error            { return c.conn.Send(api.SyncRequest, nil) }

// Resume is the user starting a blocked playback.
func (c *Client) Resume() bool { return c.engine.Resume() }

// Close drops all the peer links.
func (c *Client) Close() { c.closeLinks() }

func (c *Client) welcome(w api.WelcomeResponse) error {
	c.mu.Lock()
	c.id, c.name, c.host = w.Id, w.Username, w.HostId
	c.mu.Unlock()
	c.factory.UseIce(w.Ice)
	c.setStatus("Joined as " + w.Username)
	if w.HostId.IsEmpty() || w.HostId == w.Id {
		return nil
	}
	return c.connect(w.HostId)
}

func (c *Client) hostChanged(host network.Uid) error {
	c.mu.Lock()
	c.host = host
	self := c.id
	c.mu.Unlock()
	c.closeLinks()
	if host == self {
		return nil
	}
	c.setStatus("Host is " + host.Short())
	return c.connect(host)
}

func (c *Client) hostLeft() {
	c.mu.Lock()
	c.host = network.EmptyUid
	c.mu.Unlock()
	c.closeLinks()
	c.engine.Reset()
	c.setStatus("Host has left")
}

// connect calls the host to get its stream.
func (c *Client) connect(host network.Uid) error {
	if old, ok := c.links.Pop(host); ok {
		old.Close()
	}
	link, err := c.newLink(host)
	if err != nil {
		return err
	}
	if c.onTrack != nil {
		link.OnTrack(c.onTrack)
	}
	if err = link.Call(); err != nil {
		link.Close()
		return fmt.Errorf("call %v: %w", host.Short(), err)
	}
	return nil
}

func (c *Client) signal(from network.Uid, raw []byte) error {
	s, err := webrtc.DecodeSignal(raw)
	if err != nil {
		return err
	}
	link, err := c.links.Find(from)
	if err == nil {
		return link.Handle(s)
	}
	if s.Type != webrtc.OfferSignal {
		c.log.Debug().Str("from", from.Short()).Msgf("Stale %v signal", s.Type)
		return nil
	}
	if !c.IsHost() {
		c.log.Debug().Str("from", from.Short()).Msg("Not the host, ignored an offer")
		return nil
	}
	// a viewer wants our stream
	if c.source == nil {
		c.setStatus(StatusNoStream)
		return ErrNoLocalStream
	}
	if link, err = c.newLink(from); err != nil {
		return err
	}
	if err = link.AddTracks(c.source.Track()); err != nil {
		link.Close()
		return err
	}
	return link.Handle(s)
}

func (c *Client) newLink(remote network.Uid) (*webrtc.Link, error) {
	link, err := webrtc.NewLink(c.factory, remote, c.signalTo(remote), c.log)
	if err != nil {
		return nil, err
	}
	link.OnClose(func() {
		if l, err := c.links.Find(remote); err == nil && l == link {
			c.links.RemoveByKey(remote)
		}
	})
	c.links.Put(remote, link)
	return link, nil
}

func (c *Client) signalTo(to network.Uid) func(webrtc.Signal) {
	return func(s webrtc.Signal) {
		raw, err := s.Encode()
		if err != nil {
			c.log.Error().Err(err).Msg("signal")
			return
		}
		if err = c.conn.Send(api.Signal, api.SignalRequest{To: to, Signal: raw}); err != nil {
			c.log.Warn().Err(err).Msg("signal")
		}
	}
}

func (c *Client) closeLinks() {
	for _, l := range c.links.Clear() {
		l.Close()
	}
}

func (c *Client) emit(t api.PT, position float64) {
	if err := c.conn.Send(t, position); err != nil {
		c.log.Warn().Err(err).Str("t", t.String()).Msg("Playback event was not sent")
	}
}

func (c *Client) setStatus(s string) {
	c.mu.Lock()
	c.status = s
	fn := c.onStatus
	c.mu.Unlock()
	c.log.Info().Msg(s)
	if fn != nil {
		fn(s)
	}
}
