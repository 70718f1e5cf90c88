package playback

import (
	"sync"
	"time"
)

// Events receives player notifications, usually the Engine.
type Events interface {
	Played()
	Paused()
	Seeked()
}

// SimPlayer is a headless player with a virtual playhead that runs with the
// wall clock. Seeks finish after SeekDelay on their own goroutine like they
// would in a real media element.
type SimPlayer struct {
	mu sync.Mutex

	events  Events
	src     string
	loaded  bool
	playing bool
	pos     float64
	since   time.Time

	SeekDelay time.Duration
	// NoAutoplay rejects programmatic plays until Allow is called.
	NoAutoplay bool
	allowed    bool

	now func() time.Time
}

func NewSimPlayer() *SimPlayer { return &SimPlayer{now: time.Now} }

func (s *SimPlayer) Bind(e Events) { s.mu.Lock(); s.events = e; s.mu.Unlock() }

// Allow marks the player as touched by the user.
func (s *SimPlayer) Allow() { s.mu.Lock(); s.allowed = true; s.mu.Unlock() }

func (s *SimPlayer) Loaded() bool  { s.mu.Lock(); defer s.mu.Unlock(); return s.loaded }
func (s *SimPlayer) Source() string { s.mu.Lock(); defer s.mu.Unlock(); return s.src }

// Load puts new media into the player, it starts paused at the beginning.
func (s *SimPlayer) Load(src string) {
	s.mu.Lock()
	s.src, s.loaded, s.playing, s.pos = src, true, false, 0
	s.mu.Unlock()
}

func (s *SimPlayer) Playing() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.playing }

func (s *SimPlayer) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position()
}

func (s *SimPlayer) position() float64 {
	if !s.playing {
		return s.pos
	}
	return s.pos + s.now().Sub(s.since).Seconds()
}

func (s *SimPlayer) Seek(position float64) {
	s.mu.Lock()
	s.pos, s.since = position, s.now()
	delay, ev := s.SeekDelay, s.events
	s.mu.Unlock()
	if ev == nil {
		return
	}
	if delay <= 0 {
		ev.Seeked()
		return
	}
	time.AfterFunc(delay, ev.Seeked)
}

func (s *SimPlayer) Play() error {
	s.mu.Lock()
	if s.NoAutoplay && !s.allowed {
		s.mu.Unlock()
		return ErrPlayRejected
	}
	if !s.playing {
		s.pos, s.since, s.playing = s.position(), s.now(), true
	}
	ev := s.events
	s.mu.Unlock()
	if ev != nil {
		ev.Played()
	}
	return nil
}

func (s *SimPlayer) Pause() {
	s.mu.Lock()
	s.pos, s.playing = s.position(), false
	ev := s.events
	s.mu.Unlock()
	if ev != nil {
		ev.Paused()
	}
}

func (s *SimPlayer) Reset() {
	s.mu.Lock()
	s.src, s.loaded, s.playing, s.pos = "", false, false, 0
	s.mu.Unlock()
}
