package room

import (
	"time"

	"github.com/watchparty/watchparty/pkg/api"
)

// Authority keeps the only true playback state of the room.
// Every change is stamped with the wall clock so readers can extrapolate.
// Last writer wins.
type Authority struct {
	state api.PlaybackState
	now   func() time.Time
}

func NewAuthority(now func() time.Time) Authority {
	if now == nil {
		now = time.Now
	}
	return Authority{state: api.NewPlaybackState(false, 0, now()), now: now}
}

func (a *Authority) Snapshot() api.PlaybackState { return a.state }

func (a *Authority) Play(position float64)  { a.set(true, position) }
func (a *Authority) Pause(position float64) { a.set(false, position) }
func (a *Authority) Seek(position float64)  { a.set(a.state.IsPlaying, position) }

// Reset puts a fresh paused state at the beginning.
func (a *Authority) Reset() { a.set(false, 0) }

func (a *Authority) set(playing bool, position float64) {
	a.state = api.NewPlaybackState(playing, position, a.now())
}
