package api

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/watchparty/watchparty/pkg/network"
)

type (
	IceServer struct {
		Urls       string `json:"urls,omitempty"`
		Username   string `json:"username,omitempty"`
		Credential string `json:"credential,omitempty"`
	}
	WelcomeResponse struct {
		Id       network.Uid `json:"id"`
		Username string      `json:"username"`
		HostId   network.Uid `json:"host_id,omitempty"`
		Ice      []IceServer `json:"ice_servers,omitempty"`
	}
	HostChangedResponse struct {
		HostId network.Uid `json:"host_id"`
	}
	// SignalRequest is a negotiation payload for some other participant.
	// The signal is never looked into on the way.
	SignalRequest struct {
		To     network.Uid     `json:"to"`
		Signal json.RawMessage `json:"signal"`
	}
	SignalResponse struct {
		From   network.Uid     `json:"from"`
		Signal json.RawMessage `json:"signal"`
	}
	Media struct {
		Url      string `json:"url"`
		Filename string `json:"filename"`
	}
	UploadResponse struct {
		Message string `json:"message"`
		Url     string `json:"url,omitempty"`
	}
)

// PlaybackState is the shared playback snapshot.
// CapturedAt is the wall-clock time (unix ms) when Position was accurate.
type PlaybackState struct {
	IsPlaying  bool    `json:"is_playing"`
	Position   float64 `json:"position"`
	CapturedAt int64   `json:"captured_at"`
}

func NewPlaybackState(playing bool, position float64, at time.Time) PlaybackState {
	return PlaybackState{IsPlaying: playing, Position: position, CapturedAt: at.UnixMilli()}
}

func (s PlaybackState) CapturedTime() time.Time { return time.UnixMilli(s.CapturedAt) }

// PositionAt extrapolates the position to the given moment.
// Paused states and moments before the capture keep the captured position.
func (s PlaybackState) PositionAt(now time.Time) float64 {
	if !s.IsPlaying {
		return s.Position
	}
	elapsed := now.Sub(s.CapturedTime())
	if elapsed < 0 {
		return s.Position
	}
	return s.Position + elapsed.Seconds()
}

type ChatKind string

const (
	ChatSystem ChatKind = "system"
	ChatUser   ChatKind = "user"
)

type ChatMessageResponse struct {
	Kind   ChatKind `json:"kind"`
	Author string   `json:"author,omitempty"`
	Text   string   `json:"text"`
	SentAt int64    `json:"sent_at"`
}
