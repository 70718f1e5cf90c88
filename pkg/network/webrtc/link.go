package webrtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/watchparty/watchparty/pkg/logger"
	"github.com/watchparty/watchparty/pkg/network"
)

// Link is a peer connection with one remote participant.
// Viewers call the host, the host answers with its tracks.
type Link struct {
	remote network.Uid
	conn   *webrtc.PeerConnection
	send   func(Signal)
	log    *logger.Logger

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	onClose   func()
	closeOnce sync.Once
}

// NewLink makes a new peer connection with the remote participant,
// local signals go out through the send function.
func NewLink(api *ApiFactory, remote network.Uid, send func(Signal), log *logger.Logger) (*Link, error) {
	conn, err := api.NewPeer()
	if err != nil {
		return nil, fmt.Errorf("peer: %w", err)
	}
	l := &Link{
		remote: remote,
		conn:   conn,
		send:   send,
		log:    log.Extend(log.With().Str("peer", remote.Short())),
	}
	conn.OnICECandidate(l.handleICECandidate)
	conn.OnConnectionStateChange(l.handleState)
	return l, nil
}

func (l *Link) Remote() network.Uid               { return l.remote }
func (l *Link) State() webrtc.PeerConnectionState { return l.conn.ConnectionState() }

// OnTrack is called for each remote media track (viewer side).
func (l *Link) OnTrack(fn func(*webrtc.TrackRemote)) {
	l.conn.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) { fn(t) })
}

// OnClose is called once when the link is gone for any reason.
func (l *Link) OnClose(fn func()) { l.mu.Lock(); l.onClose = fn; l.mu.Unlock() }

// AddTracks plugs local media into the link (host side).
func (l *Link) AddTracks(tracks ...webrtc.TrackLocal) error {
	for _, track := range tracks {
		sender, err := l.conn.AddTrack(track)
		if err != nil {
			return err
		}
		// Read incoming RTCP packets
		go func() {
			rtcpBuf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(rtcpBuf); err != nil {
					return
				}
			}
		}()
		l.log.Debug().Msgf("Added [%s] track", track.Kind())
	}
	return nil
}

// Call starts the negotiation as a receiver of the remote media.
func (l *Link) Call() error {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		_, err := l.conn.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			return fmt.Errorf("transceiver %v: %w", kind, err)
		}
	}
	offer, err := l.conn.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("offer: %w", err)
	}
	if err = l.conn.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("local description: %w", err)
	}
	l.log.Debug().Msg("Created Offer")
	l.send(NewDescriptionSignal(offer))
	return nil
}

// Handle applies a signal from the remote side.
// Candidates that come before the remote description are kept until it's set.
func (l *Link) Handle(s Signal) error {
	if err := s.Validate(); err != nil {
		return err
	}
	switch s.Type {
	case OfferSignal:
		if err := l.setRemote(s); err != nil {
			return err
		}
		answer, err := l.conn.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("answer: %w", err)
		}
		if err = l.conn.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("local description: %w", err)
		}
		l.log.Debug().Msg("Created Answer")
		l.send(NewDescriptionSignal(answer))
	case AnswerSignal:
		return l.setRemote(s)
	case CandidateSignal:
		l.mu.Lock()
		if !l.remoteSet {
			l.pending = append(l.pending, *s.Candidate)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()
		if err := l.conn.AddICECandidate(*s.Candidate); err != nil {
			return fmt.Errorf("candidate: %w", err)
		}
		l.log.Debug().Str("candidate", s.Candidate.Candidate).Msg("Ice")
	}
	return nil
}

func (l *Link) setRemote(s Signal) error {
	if err := l.conn.SetRemoteDescription(s.Description()); err != nil {
		l.log.Error().Err(err).Msg("Set remote description from peer failed")
		return fmt.Errorf("remote description: %w", err)
	}
	l.log.Debug().Msg("Set Remote Description")
	l.mu.Lock()
	l.remoteSet = true
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, c := range pending {
		if err := l.conn.AddICECandidate(c); err != nil {
			l.log.Warn().Err(err).Str("candidate", c.Candidate).Msg("Buffered ICE candidate")
		}
	}
	return nil
}

func (l *Link) Pending() int { l.mu.Lock(); defer l.mu.Unlock(); return len(l.pending) }

func (l *Link) Close() {
	l.closeOnce.Do(func() {
		if err := l.conn.Close(); err != nil {
			l.log.Debug().Err(err).Msg("Peer close")
		}
		l.mu.Lock()
		fn := l.onClose
		l.mu.Unlock()
		if fn != nil {
			fn()
		}
		l.log.Debug().Msg("WebRTC stop")
	})
}

func (l *Link) handleICECandidate(ice *webrtc.ICECandidate) {
	// ICE gathering finish condition
	if ice == nil {
		l.log.Debug().Msg("ICE gathering was complete probably")
		return
	}
	candidate := ice.ToJSON()
	l.log.Debug().Str("candidate", candidate.Candidate).Msg("ICE")
	l.send(NewCandidateSignal(candidate))
}

func (l *Link) handleState(state webrtc.PeerConnectionState) {
	l.log.Debug().Str(".state", state.String()).Msg("Peer")
	switch state {
	case webrtc.PeerConnectionStateConnected:
		l.log.Info().Msg("Connected")
	case webrtc.PeerConnectionStateFailed:
		l.log.Error().Msgf("WebRTC connection fail! ice: %v, gathering: %v, signalling: %v",
			l.conn.ICEConnectionState(), l.conn.ICEGatheringState(), l.conn.SignalingState())
		go l.Close()
	case webrtc.PeerConnectionStateClosed:
		go l.Close()
	}
}
