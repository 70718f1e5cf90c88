package room

import (
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/com"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/network"
)

// Member is a connected participant as the room sees it.
// Notify must not block.
type Member interface {
	com.NetClient[network.Uid]
	Notify(t api.PT, payload any)
}

type participant struct {
	Member
	name string
}

// Room is the one shared watch session of the process.
// It owns the playback state, the host designation and the registry
// of participants. Every method is one atomic event: state changes and
// the messages they produce happen under a single lock, so all participants
// see events in the same order.
type Room struct {
	mu       sync.Mutex
	members  com.NetMap[network.Uid, *participant]
	playback Authority
	host     HostDesignation
	media    *api.Media

	names   *Namer
	ice     []api.IceServer
	maxChat int
	now     func() time.Time
	log     *logger.Logger
}

type Option func(*Room)

func WithClock(now func() time.Time) Option { return func(r *Room) { r.now = now } }
func WithNamer(n *Namer) Option             { return func(r *Room) { r.names = n } }
func WithIce(ice []api.IceServer) Option    { return func(r *Room) { r.ice = ice } }
func WithChatLimit(max int) Option          { return func(r *Room) { r.maxChat = max } }
func WithLogger(log *logger.Logger) Option  { return func(r *Room) { r.log = log } }
func WithMedia(media *api.Media) Option     { return func(r *Room) { r.media = media } }

func New(opts ...Option) *Room {
	r := &Room{
		members: com.NewNetMap[network.Uid, *participant](),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.names == nil {
		r.names = NewNamer(0)
	}
	if r.log == nil {
		r.log = logger.Default()
	}
	r.playback = NewAuthority(r.now)
	return r
}

// Join registers a new participant, sends it the current state and
// the host to connect to, and tells everyone else about it.
// Returns the generated display name.
func (r *Room) Join(m Member) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &participant{Member: m, name: r.names.Next()}
	r.members.Add(p)

	m.Notify(api.SyncState, r.playback.Snapshot())
	m.Notify(api.Welcome, api.WelcomeResponse{
		Id:       m.Id(),
		Username: p.name,
		HostId:   r.host.Current(),
		Ice:      r.ice,
	})
	r.broadcast(m.Id(), api.ChatMessage, r.systemMessage(p.name+" joined the party!"))
	if r.media != nil {
		m.Notify(api.VideoUploaded, api.Media{Url: r.media.Url, Filename: "Current Movie"})
	}
	r.log.Info().Str(logger.ClientField, m.Id().Short()).Str("name", p.name).Int("n", r.members.Len()).
		Msg("Joined")
	return p.name
}

// Leave removes the participant, it's the only way a host stops being a host.
func (r *Room) Leave(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members.Pop(m.Id())
	if !ok {
		return
	}
	if r.host.Leave(p.Id()) {
		r.log.Info().Str(logger.ClientField, p.Id().Short()).Msg("Host has left")
		r.broadcastAll(api.HostLeft, nil)
	}
	r.broadcastAll(api.ChatMessage, r.systemMessage(p.name+" left the party."))
	r.log.Info().Str(logger.ClientField, p.Id().Short()).Int("n", r.members.Len()).Msg("Left")
}

func (r *Room) Play(from network.Uid, position float64) bool {
	return r.playbackEvent(from, api.Play, position, r.playback.Play)
}

func (r *Room) Pause(from network.Uid, position float64) bool {
	return r.playbackEvent(from, api.Pause, position, r.playback.Pause)
}

func (r *Room) Seek(from network.Uid, position float64) bool {
	return r.playbackEvent(from, api.Seek, position, r.playback.Seek)
}

// playbackEvent applies a playback intent and forwards it to everybody but its author.
func (r *Room) playbackEvent(from network.Uid, t api.PT, position float64, apply func(float64)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members.Has(from) || !validPosition(position) {
		return false
	}
	apply(position)
	r.broadcast(from, t, position)
	return true
}

// Sync answers the participant with the current snapshot.
func (r *Room) Sync(from network.Uid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, err := r.members.Find(from); err == nil {
		p.Notify(api.SyncState, r.playback.Snapshot())
	}
}

// BecomeHost makes the participant the media source of the room.
// A takeover is allowed, the last declaration wins.
func (r *Room) BecomeHost(from network.Uid) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members.Has(from) {
		return false
	}
	prev := r.host.Declare(from)
	r.log.Info().Str(logger.ClientField, from.Short()).Str("prev", prev.Short()).Msg("New host")
	r.broadcast(from, api.HostChanged, api.HostChangedResponse{HostId: from})
	return true
}

// Relay forwards a negotiation payload to the target if it's still here.
// Nothing is sent back to the sender either way.
func (r *Room) Relay(from network.Uid, to network.Uid, signal json.RawMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members.Has(from) {
		return false
	}
	target, err := r.members.Find(to)
	if err != nil {
		r.log.Debug().Str(logger.ClientField, from.Short()).Str("to", to.Short()).Msg("Signal dropped")
		return false
	}
	target.Notify(api.Signal, api.SignalResponse{From: from, Signal: signal})
	return true
}

// Chat sends a user message to everyone including its author.
func (r *Room) Chat(from network.Uid, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if r.maxChat > 0 && utf8.RuneCountInString(text) > r.maxChat {
		text = string([]rune(text)[:r.maxChat])
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.members.Find(from)
	if err != nil {
		return false
	}
	r.broadcastAll(api.ChatMessage, api.ChatMessageResponse{
		Kind:   api.ChatUser,
		Author: p.name,
		Text:   text,
		SentAt: r.now().UnixMilli(),
	})
	return true
}

// ChangeMedia announces a new video to everyone and starts the playback over.
func (r *Room) ChangeMedia(media api.Media) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media = &media
	r.playback.Reset()
	r.broadcastAll(api.VideoUploaded, media)
}

// ClearMedia forgets the current video so new participants aren't sent to it.
func (r *Room) ClearMedia() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media = nil
	r.playback.Reset()
	r.log.Info().Msg("No video")
}

// Close disconnects everybody.
func (r *Room) Close() {
	r.mu.Lock()
	members := r.members.Clear()
	r.host.Leave(r.host.Current())
	r.mu.Unlock()
	for _, m := range members {
		m.Disconnect()
	}
}

func (r *Room) State() api.PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playback.Snapshot()
}

func (r *Room) Host() network.Uid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host.Current()
}

func (r *Room) Size() int { return r.members.Len() }

func (r *Room) broadcast(except network.Uid, t api.PT, payload any) {
	r.members.ForEach(func(p *participant) {
		if p.Id() != except {
			p.Notify(t, payload)
		}
	})
}

func (r *Room) broadcastAll(t api.PT, payload any) { r.broadcast(network.EmptyUid, t, payload) }

func (r *Room) systemMessage(text string) api.ChatMessageResponse {
	return api.ChatMessageResponse{Kind: api.ChatSystem, Text: text, SentAt: r.now().UnixMilli()}
}

func validPosition(p float64) bool { return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0 }
