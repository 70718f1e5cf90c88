package webrtc

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
)

type SignalType string

const (
	OfferSignal     SignalType = "offer"
	AnswerSignal    SignalType = "answer"
	CandidateSignal SignalType = "candidate"
)

var ErrBadSignal = errors.New("bad signal")

// Signal is one negotiation message between two peers.
// The coordinator passes it along as raw JSON.
type Signal struct {
	Type      SignalType               `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

func NewDescriptionSignal(d webrtc.SessionDescription) Signal {
	t := OfferSignal
	if d.Type == webrtc.SDPTypeAnswer {
		t = AnswerSignal
	}
	return Signal{Type: t, SDP: d.SDP}
}

func NewCandidateSignal(c webrtc.ICECandidateInit) Signal {
	return Signal{Type: CandidateSignal, Candidate: &c}
}

func (s Signal) Description() webrtc.SessionDescription {
	t := webrtc.SDPTypeOffer
	if s.Type == AnswerSignal {
		t = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: t, SDP: s.SDP}
}

func (s Signal) Validate() error {
	switch s.Type {
	case OfferSignal, AnswerSignal:
		if s.SDP == "" {
			return fmt.Errorf("%w: %v without sdp", ErrBadSignal, s.Type)
		}
	case CandidateSignal:
		if s.Candidate == nil {
			return fmt.Errorf("%w: no candidate", ErrBadSignal)
		}
	default:
		return fmt.Errorf("%w: unknown type [%v]", ErrBadSignal, s.Type)
	}
	return nil
}

func (s Signal) Encode() (json.RawMessage, error) { return json.Marshal(s) }

func DecodeSignal(data []byte) (Signal, error) {
	var s Signal
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%w: %w", ErrBadSignal, err)
	}
	return s, s.Validate()
}
