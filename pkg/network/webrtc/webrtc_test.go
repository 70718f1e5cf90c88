package webrtc

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/logger"
)

func TestSignalValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
		err  bool
	}{
		{name: "offer", data: `{"type":"offer","sdp":"v=0"}`},
		{name: "answer", data: `{"type":"answer","sdp":"v=0"}`},
		{name: "candidate", data: `{"type":"candidate","candidate":{"candidate":"candidate:1 1 udp 1 127.0.0.1 1 typ host"}}`},
		{name: "offer without sdp", data: `{"type":"offer"}`, err: true},
		{name: "empty candidate", data: `{"type":"candidate"}`, err: true},
		{name: "unknown", data: `{"type":"renegotiate"}`, err: true},
		{name: "garbage", data: `[1,2`, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSignal([]byte(tt.data))
			if (err != nil) != tt.err {
				t.Errorf("expected error %v, got %v", tt.err, err)
			}
			if err != nil && !errors.Is(err, ErrBadSignal) {
				t.Errorf("expected a bad signal error, got %v", err)
			}
		})
	}
}

func TestDescriptionSignal(t *testing.T) {
	t.Parallel()
	s := NewDescriptionSignal(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"})
	if s.Type != AnswerSignal || s.Description().Type != webrtc.SDPTypeAnswer {
		t.Errorf("wrong type %+v", s)
	}
}

// exchange delivers signals between two links.
type exchange struct {
	mu   sync.Mutex
	errs []error
}

func (x *exchange) to(l **Link) func(Signal) {
	return func(s Signal) {
		if err := (*l).Handle(s); err != nil {
			x.mu.Lock()
			x.errs = append(x.errs, err)
			x.mu.Unlock()
		}
	}
}

func TestLinkNegotiation(t *testing.T) {
	api, err := NewApiFactory(config.Webrtc{}, logger.Default(), nil)
	if err != nil {
		t.Fatal(err)
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "test")
	if err != nil {
		t.Fatal(err)
	}

	var viewer, host *Link
	x := exchange{}
	// candidates go nowhere here, only descriptions are exchanged
	descriptions := func(l **Link) func(Signal) {
		deliver := x.to(l)
		return func(s Signal) {
			if s.Type != CandidateSignal {
				deliver(s)
			}
		}
	}

	if viewer, err = NewLink(api, "host", descriptions(&host), logger.Default()); err != nil {
		t.Fatal(err)
	}
	defer viewer.Close()
	if host, err = NewLink(api, "viewer", descriptions(&viewer), logger.Default()); err != nil {
		t.Fatal(err)
	}
	defer host.Close()
	if err = host.AddTracks(track); err != nil {
		t.Fatal(err)
	}

	candidate := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 50000 typ host"}
	if err = host.Handle(NewCandidateSignal(candidate)); err != nil {
		t.Fatal(err)
	}
	if host.Pending() != 1 {
		t.Fatalf("the candidate should wait for the remote description")
	}

	if err = viewer.Call(); err != nil {
		t.Fatal(err)
	}
	if len(x.errs) > 0 {
		t.Fatalf("negotiation errors: %v", x.errs)
	}
	if host.Pending() != 0 {
		t.Errorf("buffered candidates should be used")
	}
	for _, l := range []*Link{viewer, host} {
		if st := l.conn.SignalingState(); st != webrtc.SignalingStateStable {
			t.Errorf("%v should be stable, got %v", l.Remote(), st)
		}
	}
}

func TestLinkClose(t *testing.T) {
	api, err := NewApiFactory(config.Webrtc{}, logger.Default(), nil)
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewLink(api, "x", func(Signal) {}, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	closed := make(chan struct{})
	n := 0
	l.OnClose(func() { n++; close(closed) })
	l.Close()
	l.Close()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("no close callback")
	}
	if n != 1 {
		t.Errorf("expected one close, got %v", n)
	}
}

func writeIVF(t *testing.T, fourCC string, frames ...[]byte) string {
	t.Helper()
	h := make([]byte, 32)
	copy(h[0:], "DKIF")
	binary.LittleEndian.PutUint16(h[4:], 0)
	binary.LittleEndian.PutUint16(h[6:], 32)
	copy(h[8:], fourCC)
	binary.LittleEndian.PutUint16(h[12:], 64)
	binary.LittleEndian.PutUint16(h[14:], 48)
	binary.LittleEndian.PutUint32(h[16:], 30)
	binary.LittleEndian.PutUint32(h[20:], 1)
	binary.LittleEndian.PutUint32(h[24:], uint32(len(frames)))
	data := h
	for i, f := range frames {
		fh := make([]byte, 12)
		binary.LittleEndian.PutUint32(fh[0:], uint32(len(f)))
		binary.LittleEndian.PutUint64(fh[4:], uint64(i))
		data = append(data, fh...)
		data = append(data, f...)
	}
	path := filepath.Join(t.TempDir(), "video.ivf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource(t *testing.T) {
	t.Parallel()
	path := writeIVF(t, "VP80", []byte{1, 2, 3}, []byte{4, 5, 6})

	src, err := NewFileSource(path, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	if src.Track().Kind() != webrtc.RTPCodecTypeVideo {
		t.Errorf("expected a video track")
	}
	if src.FrameTime() != 33*time.Millisecond {
		t.Errorf("expected 30fps, got %v", src.FrameTime())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err = src.Run(ctx); err != nil {
		t.Errorf("run: %v", err)
	}
}

func TestFileSourceCodec(t *testing.T) {
	t.Parallel()
	path := writeIVF(t, "H264")
	if _, err := NewFileSource(path, logger.Default()); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected unsupported codec, got %v", err)
	}
}
