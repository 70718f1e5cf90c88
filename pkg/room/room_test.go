package room

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/network"
)

type packet struct {
	t       api.PT
	payload any
}

type fakeMember struct {
	id           network.Uid
	mu           sync.Mutex
	got          []packet
	disconnected bool
}

func newMember(id string) *fakeMember { return &fakeMember{id: network.Uid(id)} }

func (f *fakeMember) Id() network.Uid { return f.id }

func (f *fakeMember) Disconnect() {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
}

func (f *fakeMember) Notify(t api.PT, payload any) {
	f.mu.Lock()
	f.got = append(f.got, packet{t, payload})
	f.mu.Unlock()
}

func (f *fakeMember) all(t api.PT) []packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []packet
	for _, p := range f.got {
		if p.t == t {
			res = append(res, p)
		}
	}
	return res
}

func (f *fakeMember) last(t api.PT) (packet, bool) {
	pp := f.all(t)
	if len(pp) == 0 {
		return packet{}, false
	}
	return pp[len(pp)-1], true
}

func (f *fakeMember) reset() {
	f.mu.Lock()
	f.got = nil
	f.mu.Unlock()
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: time.UnixMilli(1_700_000_000_000)} }

func newRoom(c *clock, opts ...Option) *Room {
	return New(append([]Option{WithClock(c.now), WithNamer(NewNamer(42))}, opts...)...)
}

func TestJoin(t *testing.T) {
	c := newClock()
	r := newRoom(c, WithIce([]api.IceServer{{Urls: "stun:stun.l.google.com:19302"}}))
	a, b := newMember("a"), newMember("b")

	name := r.Join(a)
	if name == "" {
		t.Fatalf("expected a name")
	}
	if len(a.got) < 2 || a.got[0].t != api.SyncState || a.got[1].t != api.Welcome {
		t.Fatalf("expected syncState then welcome, got %v", a.got)
	}
	w := a.got[1].payload.(api.WelcomeResponse)
	if w.Username != name || w.Id != "a" || w.HostId != "" || len(w.Ice) != 1 {
		t.Errorf("unexpected welcome %+v", w)
	}

	r.BecomeHost("a")
	r.Join(b)
	wb, _ := b.last(api.Welcome)
	if wb.payload.(api.WelcomeResponse).HostId != "a" {
		t.Errorf("a joiner should know the host, got %+v", wb.payload)
	}

	chat, ok := a.last(api.ChatMessage)
	if !ok {
		t.Fatalf("a should be told about b")
	}
	msg := chat.payload.(api.ChatMessageResponse)
	if msg.Kind != api.ChatSystem || !strings.HasSuffix(msg.Text, " joined the party!") {
		t.Errorf("unexpected join message %+v", msg)
	}
	if len(b.all(api.ChatMessage)) != 0 {
		t.Errorf("the joiner should not get its own join message")
	}
	if r.Size() != 2 {
		t.Errorf("expected 2 participants, got %v", r.Size())
	}
}

func TestJoinSnapshotIsVerbatim(t *testing.T) {
	c := newClock()
	r := newRoom(c)
	a, b := newMember("a"), newMember("b")
	r.Join(a)
	r.Play("a", 10)
	played := c.t
	c.add(3 * time.Second)
	r.Join(b)

	s, _ := b.last(api.SyncState)
	state := s.payload.(api.PlaybackState)
	if !state.IsPlaying || state.Position != 10 || state.CapturedAt != played.UnixMilli() {
		t.Errorf("unexpected snapshot %+v", state)
	}
	if math.Abs(state.PositionAt(c.now())-13.0) > 1e-9 {
		t.Errorf("expected 13s after extrapolation, got %v", state.PositionAt(c.now()))
	}
}

func TestPlaybackEvents(t *testing.T) {
	c := newClock()
	r := newRoom(c)
	a, b, x := newMember("a"), newMember("b"), newMember("x")
	r.Join(a)
	r.Join(b)
	r.Join(x)
	a.reset()
	b.reset()
	x.reset()

	tests := []struct {
		name    string
		from    *fakeMember
		t       api.PT
		do      func(network.Uid, float64) bool
		pos     float64
		playing bool
	}{
		{name: "play", from: a, t: api.Play, do: r.Play, pos: 5, playing: true},
		{name: "seek keeps playing", from: b, t: api.Seek, do: r.Seek, pos: 42, playing: true},
		{name: "pause", from: x, t: api.Pause, do: r.Pause, pos: 43.5, playing: false},
		{name: "seek keeps paused", from: a, t: api.Seek, do: r.Seek, pos: 1, playing: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.add(time.Second)
			if !tt.do(tt.from.id, tt.pos) {
				t.Fatalf("the event should be accepted")
			}
			state := r.State()
			if state.IsPlaying != tt.playing || state.Position != tt.pos || state.CapturedAt != c.t.UnixMilli() {
				t.Errorf("unexpected state %+v", state)
			}
			for _, m := range []*fakeMember{a, b, x} {
				p, ok := m.last(tt.t)
				if m == tt.from {
					if ok {
						t.Errorf("%v should not get its own event back", m.id)
					}
					continue
				}
				if !ok || p.payload.(float64) != tt.pos {
					t.Errorf("%v should get %v %v, got %v", m.id, tt.t, tt.pos, p)
				}
			}
			a.reset()
			b.reset()
			x.reset()
		})
	}
}

func TestPlaybackRejects(t *testing.T) {
	r := newRoom(newClock())
	a := newMember("a")
	r.Join(a)

	if r.Play("nobody", 1) {
		t.Errorf("strangers should be ignored")
	}
	for _, pos := range []float64{-1, math.NaN(), math.Inf(1)} {
		if r.Seek("a", pos) {
			t.Errorf("position %v should be rejected", pos)
		}
	}
	if r.State().Position != 0 {
		t.Errorf("rejected events should not change the state")
	}
}

func TestLastWriterWins(t *testing.T) {
	c := newClock()
	r := newRoom(c)
	a, b := newMember("a"), newMember("b")
	r.Join(a)
	r.Join(b)

	r.Play("a", 10)
	r.Pause("b", 11)
	r.Play("a", 12)

	if s := r.State(); !s.IsPlaying || s.Position != 12 {
		t.Errorf("the last event should win, got %+v", s)
	}
}

func TestSyncRequest(t *testing.T) {
	r := newRoom(newClock())
	a := newMember("a")
	r.Join(a)
	r.Seek("a", 7)
	a.reset()

	r.Sync("a")
	p, ok := a.last(api.SyncState)
	if !ok || p.payload.(api.PlaybackState).Position != 7 {
		t.Errorf("expected a fresh snapshot, got %v", p)
	}
	r.Sync("nobody")
}

func TestHostTakeover(t *testing.T) {
	r := newRoom(newClock())
	members := []*fakeMember{newMember("a"), newMember("b"), newMember("c"), newMember("d")}
	for _, m := range members {
		r.Join(m)
	}

	declarations := []network.Uid{"a", "b", "b", "c"}
	for _, id := range declarations {
		if !r.BecomeHost(id) {
			t.Fatalf("%v should become a host", id)
		}
	}

	if r.Host() != "c" {
		t.Errorf("expected the last declared host c, got %v", r.Host())
	}
	for _, m := range members {
		p, ok := m.last(api.HostChanged)
		if m.id == "c" {
			if ok && p.payload.(api.HostChangedResponse).HostId == "c" {
				t.Errorf("the declarer should not be told about itself")
			}
			continue
		}
		if !ok || p.payload.(api.HostChangedResponse).HostId != "c" {
			t.Errorf("%v should know the host c, got %v", m.id, p)
		}
	}
	if r.BecomeHost("nobody") {
		t.Errorf("strangers can't be hosts")
	}
}

func TestHostDeparture(t *testing.T) {
	r := newRoom(newClock())
	a, b, c := newMember("a"), newMember("b"), newMember("c")
	r.Join(a)
	r.Join(b)
	r.Join(c)

	t.Run("non-host leave keeps the host", func(t *testing.T) {
		r.BecomeHost("a")
		r.Leave(c)
		if r.Host() != "a" {
			t.Errorf("expected host a, got %v", r.Host())
		}
		if len(b.all(api.HostLeft)) != 0 {
			t.Errorf("no hostLeft is expected")
		}
	})

	t.Run("host leave", func(t *testing.T) {
		r.Leave(a)
		r.Leave(a)
		if r.Host() != "" {
			t.Errorf("expected no host, got %v", r.Host())
		}
		if n := len(b.all(api.HostLeft)); n != 1 {
			t.Errorf("expected exactly one hostLeft, got %v", n)
		}
		chat, _ := b.last(api.ChatMessage)
		if !strings.HasSuffix(chat.payload.(api.ChatMessageResponse).Text, " left the party.") {
			t.Errorf("unexpected leave message %+v", chat.payload)
		}
	})

	t.Run("new host after departure", func(t *testing.T) {
		d := newMember("d")
		r.Join(d)
		if !r.BecomeHost("b") {
			t.Fatalf("b should become a host")
		}
		p, ok := d.last(api.HostChanged)
		if !ok || p.payload.(api.HostChangedResponse).HostId != "b" {
			t.Errorf("d should be told about b, got %v", p)
		}
	})
}

func TestRelay(t *testing.T) {
	r := newRoom(newClock())
	a, b, c := newMember("a"), newMember("b"), newMember("c")
	r.Join(a)
	r.Join(b)
	r.Join(c)
	a.reset()
	b.reset()
	c.reset()

	signal := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	if !r.Relay("a", "b", signal) {
		t.Fatalf("signal should be delivered")
	}
	p, ok := b.last(api.Signal)
	if !ok {
		t.Fatalf("b should get the signal")
	}
	rs := p.payload.(api.SignalResponse)
	if rs.From != "a" || string(rs.Signal) != string(signal) {
		t.Errorf("unexpected signal %+v", rs)
	}
	if len(c.all(api.Signal)) != 0 || len(a.all(api.Signal)) != 0 {
		t.Errorf("only the target gets the signal")
	}

	r.Leave(b)
	a.reset()
	if r.Relay("a", "b", signal) {
		t.Errorf("a signal to a gone participant should be dropped")
	}
	if len(a.got) != 0 {
		t.Errorf("the sender should get nothing back, got %v", a.got)
	}
}

func TestChat(t *testing.T) {
	c := newClock()
	r := newRoom(c, WithChatLimit(5))
	a, b := newMember("a"), newMember("b")
	name := r.Join(a)
	r.Join(b)
	a.reset()
	b.reset()

	if r.Chat("a", "   ") {
		t.Errorf("empty messages should be dropped")
	}
	if !r.Chat("a", " héllo world ") {
		t.Fatalf("the message should be sent")
	}
	for _, m := range []*fakeMember{a, b} {
		p, ok := m.last(api.ChatMessage)
		if !ok {
			t.Fatalf("%v should get the message", m.id)
		}
		msg := p.payload.(api.ChatMessageResponse)
		if msg.Kind != api.ChatUser || msg.Author != name || msg.Text != "héllo" || msg.SentAt != c.t.UnixMilli() {
			t.Errorf("unexpected message %+v", msg)
		}
	}
}

func TestClearMedia(t *testing.T) {
	r := newRoom(newClock())
	r.ChangeMedia(api.Media{Url: "/uploads/current_movie.mp4", Filename: "cat.mp4"})
	a := newMember("a")
	r.Join(a)
	r.Play("a", 30)

	r.ClearMedia()
	if s := r.State(); s.IsPlaying || s.Position != 0 {
		t.Errorf("the playback should start over, got %+v", s)
	}
	b := newMember("b")
	r.Join(b)
	if p, ok := b.last(api.VideoUploaded); ok {
		t.Errorf("a joiner should not get a removed video, got %v", p)
	}
}

func TestChangeMedia(t *testing.T) {
	r := newRoom(newClock())
	a := newMember("a")
	r.Join(a)
	r.Play("a", 100)

	media := api.Media{Url: "/uploads/current_movie.mp4", Filename: "cat.mp4"}
	r.ChangeMedia(media)
	if s := r.State(); s.IsPlaying || s.Position != 0 {
		t.Errorf("new media should reset the playback, got %+v", s)
	}
	p, ok := a.last(api.VideoUploaded)
	if !ok || p.payload.(api.Media) != media {
		t.Errorf("everyone should know about the new media, got %v", p)
	}

	b := newMember("b")
	r.Join(b)
	p, ok = b.last(api.VideoUploaded)
	if !ok || p.payload.(api.Media).Url != media.Url {
		t.Errorf("a joiner should get the current media, got %v", p)
	}
}

func TestClose(t *testing.T) {
	r := newRoom(newClock())
	a, b := newMember("a"), newMember("b")
	r.Join(a)
	r.Join(b)
	r.BecomeHost("a")
	r.Close()
	if !a.disconnected || !b.disconnected {
		t.Errorf("everyone should be disconnected")
	}
	if r.Size() != 0 || r.Host() != "" {
		t.Errorf("the room should be empty")
	}
}

func TestConcurrentEvents(t *testing.T) {
	r := newRoom(newClock())
	const n = 20
	members := make([]*fakeMember, n)
	for i := range members {
		members[i] = newMember(fmt.Sprintf("m%02d", i))
		r.Join(members[i])
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := range members {
		go func(m *fakeMember, i int) {
			defer wg.Done()
			r.Seek(m.id, float64(i))
			r.BecomeHost(m.id)
		}(members[i], i)
	}
	wg.Wait()

	host := r.Host()
	// everybody except the host must have heard its declaration last
	for _, m := range members {
		if m.id == host {
			continue
		}
		p, ok := m.last(api.HostChanged)
		if !ok || p.payload.(api.HostChangedResponse).HostId != host {
			t.Errorf("%v should know the host %v, got %v", m.id, host, p)
		}
	}
}

func TestNames(t *testing.T) {
	n := NewNamer(1)
	for i := 0; i < 100; i++ {
		parts := strings.Split(n.Next(), " ")
		if len(parts) != 3 {
			t.Fatalf("unexpected name %v", parts)
		}
		var num int
		if _, err := fmt.Sscanf(parts[2], "%d", &num); err != nil || num < 0 || num > 99 {
			t.Errorf("unexpected number in %v", parts)
		}
	}
}
