// Package playback keeps a local media player in step with the room.
//
// The engine sits between a Player and the room connection. Changes made by
// the user are sent to the room, changes coming from the room are applied to
// the player without being sent back.
package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/logger"
)

const DefaultDriftThreshold = 0.5

var ErrPlayRejected = errors.New("play request was rejected")

// Mode tells who is changing the player right now.
type Mode int

const (
	// Local means player changes come from the user and should be announced.
	Local Mode = iota
	// Applying means the engine itself drives the player.
	Applying
)

func (m Mode) String() string {
	switch m {
	case Local:
		return "local"
	case Applying:
		return "applying"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Player is a media element.
//
// Seek may finish later, the player must report each finished seek with
// Engine.Seeked exactly once, also for seeks made before a Reset. Play and Pause report the resulting
// Engine.Played and Engine.Paused before they return. A Play blocked by the
// environment returns ErrPlayRejected.
type Player interface {
	Position() float64
	Seek(position float64)
	Play() error
	Pause()
	// Reset unloads the media.
	Reset()
}

// Emitter sends a playback intent to the room.
type Emitter func(t api.PT, position float64)

type Engine struct {
	mu sync.Mutex

	// programmatic seeks waiting for their completion
	seeks int
	// completions of seeks made before the last reset
	stale int
	// programmatic play/pause calls in progress
	ops int
	// play blocked until a user gesture
	blocked bool
	// where the blocked play should have started and when
	target  float64
	blockAt time.Time

	player    Player
	emit      Emitter
	threshold float64
	now       func() time.Time
	onBlocked func()
	log       *logger.Logger
}

type Option func(*Engine)

func WithThreshold(t float64) Option        { return func(e *Engine) { e.threshold = t } }
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }
func WithLogger(log *logger.Logger) Option  { return func(e *Engine) { e.log = log } }

// OnBlocked sets a callback for when the player refuses to start on its own.
// The user should be offered a way to call Resume.
func OnBlocked(fn func()) Option { return func(e *Engine) { e.onBlocked = fn } }

func New(player Player, emit Emitter, opts ...Option) *Engine {
	e := &Engine{
		player:    player,
		emit:      emit,
		threshold: DefaultDriftThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Default()
	}
	return e
}

func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode()
}

func (e *Engine) mode() Mode {
	if e.seeks > 0 || e.ops > 0 {
		return Applying
	}
	return Local
}

// Blocked tells whether a play is waiting for Resume.
func (e *Engine) Blocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blocked
}

// Played is called by the player when it starts playing.
func (e *Engine) Played() { e.local(api.Play) }

// Paused is called by the player when it pauses.
func (e *Engine) Paused() { e.local(api.Pause) }

// Seeked is called by the player when a seek has finished.
func (e *Engine) Seeked() {
	e.mu.Lock()
	if e.seeks > 0 {
		e.seeks--
		e.mu.Unlock()
		return
	}
	if e.stale > 0 {
		e.stale--
		e.mu.Unlock()
		e.log.Debug().Msg("Skipped a seek from before the reset")
		return
	}
	e.mu.Unlock()
	e.local(api.Seek)
}

func (e *Engine) local(t api.PT) {
	e.mu.Lock()
	mode := e.mode()
	if mode == Local && t == api.Play {
		e.blocked = false
	}
	e.mu.Unlock()

	if mode == Applying {
		e.log.Debug().Str("t", t.String()).Msg("Skipped own player change")
		return
	}
	if e.emit != nil {
		e.emit(t, e.player.Position())
	}
}

// Remote applies a playback event of another participant.
// Play and pause only seek when the local position drifted too far,
// seek always seeks.
func (e *Engine) Remote(t api.PT, position float64) error {
	switch t {
	case api.Play:
		e.correct(position)
		e.play()
	case api.Pause:
		e.unblock()
		e.correct(position)
		e.pause()
	case api.Seek:
		e.seek(position)
	default:
		return fmt.Errorf("not a playback event: %v", t)
	}
	return nil
}

// Snapshot applies the room state, moving the position forward by the time
// passed since the state was captured if it's playing.
func (e *Engine) Snapshot(state api.PlaybackState) {
	if state.IsPlaying {
		e.seek(state.PositionAt(e.now()))
		e.play()
		return
	}
	e.unblock()
	e.seek(state.Position)
	e.pause()
}

// Resume retries a blocked play, it should be called from a user gesture.
// The room kept playing in the meantime so the player catches up first.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	retry := e.blocked
	e.blocked = false
	position := e.target + e.now().Sub(e.blockAt).Seconds()
	e.mu.Unlock()
	if retry {
		e.seek(position)
		e.play()
	}
	return retry
}

// Reset unloads the player. Seeks still in flight will be ignored when
// they finish.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.stale += e.seeks
	e.seeks, e.ops, e.blocked = 0, 0, false
	e.mu.Unlock()
	e.player.Reset()
}

func (e *Engine) correct(position float64) {
	if drift := math.Abs(e.player.Position() - position); drift > e.threshold {
		e.log.Debug().Float64("drift", drift).Msg("Correcting position")
		e.seek(position)
	}
}

func (e *Engine) seek(position float64) {
	e.mu.Lock()
	e.seeks++
	if e.blocked {
		e.target, e.blockAt = position, e.now()
	}
	e.mu.Unlock()
	e.player.Seek(position)
}

func (e *Engine) play() {
	e.begin()
	err := e.player.Play()
	e.end()
	if err == nil {
		return
	}
	if !errors.Is(err, ErrPlayRejected) {
		e.log.Error().Err(err).Msg("Couldn't start the player")
		return
	}
	e.log.Warn().Err(err).Msg("Waiting for the user to start playback")
	position := e.player.Position()
	e.mu.Lock()
	e.blocked = true
	e.target, e.blockAt = position, e.now()
	fn := e.onBlocked
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (e *Engine) pause() {
	e.begin()
	e.player.Pause()
	e.end()
}

func (e *Engine) unblock() {
	e.mu.Lock()
	e.blocked = false
	e.mu.Unlock()
}

func (e *Engine) begin() { e.mu.Lock(); e.ops++; e.mu.Unlock() }

func (e *Engine) end() {
	e.mu.Lock()
	if e.ops > 0 {
		e.ops--
	}
	e.mu.Unlock()
}
