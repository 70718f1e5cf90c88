// Package api defines the websocket protocol spoken between the coordinator and participants.
//
// Each message is a JSON-encoded "packet" of the following structure:
//
//	t - (required) one of the predefined event names;
//	p - (optional) event payload.
//
// The packets differentiate by their event names with which it is possible to unwrap
// the payload into distinct request/response data structures.
//
// Example:
//
//	{"t":"welcome","p":{"id":"cnh3r6rdrc3ifu3jn6bg","username":"Calm Fox 42","host_id":"cnh3r8bdrc3ifu3jn6c0"}}
//	{"t":"play","p":12.75}
package api

import (
	"errors"

	"github.com/goccy/go-json"
)

// PT is a packet type.
type PT string

type In struct {
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // should be json.RawMessage for 2-pass unmarshal
}

func (i In) GetPayload() []byte { return i.Payload }
func (i In) GetType() PT        { return i.T }

type Out struct {
	T       PT  `json:"t"`
	Payload any `json:"p,omitempty"`
}

const (
	Welcome       PT = "welcome"
	SyncState     PT = "syncState"
	SyncRequest   PT = "syncRequest"
	Play          PT = "play"
	Pause         PT = "pause"
	Seek          PT = "seek"
	BecomeHost    PT = "becomeHost"
	HostChanged   PT = "hostChanged"
	HostLeft      PT = "hostLeft"
	Signal        PT = "signal"
	ChatMessage   PT = "chatMessage"
	VideoUploaded PT = "videoUploaded"
)

func (p PT) String() string { return string(p) }

// IsPlayback tells if the packet carries a playback intent.
func (p PT) IsPlayback() bool { return p == Play || p == Pause || p == Seek }

var ErrMalformed = errors.New("malformed")

// Unwrap decodes a packet payload, returns nil on any error.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// UnwrapChecked decodes a packet payload or returns ErrMalformed.
func UnwrapChecked[T any](data []byte) (*T, error) {
	if out := Unwrap[T](data); out != nil {
		return out, nil
	}
	return nil, ErrMalformed
}

// Encode makes a packet ready to be written into a socket.
func Encode(t PT, payload any) ([]byte, error) {
	return json.Marshal(Out{T: t, Payload: payload})
}

// Decode reads a packet, its payload stays raw.
func Decode(data []byte) (In, error) {
	var in In
	if err := json.Unmarshal(data, &in); err != nil {
		return in, err
	}
	if in.T == "" {
		return in, ErrMalformed
	}
	return in, nil
}
