package coordinator

import (
	"errors"
	"fmt"

	"github.com/watchparty/watchparty/pkg/api"
)

var ErrUnknownPacket = errors.New("unknown packet")

func (u *User) HandleRequests() {
	u.OnPacket(func(in api.In) error {
		events.WithLabelValues(in.T.String()).Inc()
		switch in.T {
		case api.Play, api.Pause, api.Seek:
			pos, err := api.UnwrapChecked[float64](in.Payload)
			if err != nil {
				return err
			}
			u.HandlePlayback(in.T, *pos)
		case api.SyncRequest:
			u.room.Sync(u.Id())
		case api.BecomeHost:
			u.HandleBecomeHost()
		case api.Signal:
			rq, err := api.UnwrapChecked[api.SignalRequest](in.Payload)
			if err != nil {
				return err
			}
			u.HandleSignal(*rq)
		case api.ChatMessage:
			text, err := api.UnwrapChecked[string](in.Payload)
			if err != nil {
				return err
			}
			u.room.Chat(u.Id(), *text)
		default:
			return fmt.Errorf("%w: %v", ErrUnknownPacket, in.T)
		}
		return nil
	})
}

func (u *User) HandlePlayback(t api.PT, position float64) {
	var ok bool
	switch t {
	case api.Play:
		ok = u.room.Play(u.Id(), position)
	case api.Pause:
		ok = u.room.Pause(u.Id(), position)
	case api.Seek:
		ok = u.room.Seek(u.Id(), position)
	}
	if !ok {
		u.log.Warn().Str("t", t.String()).Float64("pos", position).Msg("Playback event rejected")
	}
}

func (u *User) HandleBecomeHost() {
	if u.room.BecomeHost(u.Id()) {
		hostChanges.Inc()
	}
}

// HandleSignal relays the negotiation payload as is.
func (u *User) HandleSignal(rq api.SignalRequest) {
	if !u.room.Relay(u.Id(), rq.To, rq.Signal) {
		droppedSignals.Inc()
	}
}
