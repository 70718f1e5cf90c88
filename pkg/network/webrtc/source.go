package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/watchparty/watchparty/pkg/logger"
)

var ErrUnsupportedCodec = errors.New("unsupported codec")

// FileSource streams an IVF video file over a track in a loop.
// One source can feed any number of links.
type FileSource struct {
	path  string
	frame time.Duration
	track *webrtc.TrackLocalStaticSample
	log   *logger.Logger
}

func NewFileSource(path string, log *logger.Logger) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	_, header, err := ivfreader.NewWith(f)
	if err != nil {
		return nil, fmt.Errorf("ivf %v: %w", path, err)
	}
	mime, err := mimeOf(header.FourCC)
	if err != nil {
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, "video", "watchparty")
	if err != nil {
		return nil, err
	}
	frame := time.Second / 30
	if header.TimebaseDenominator > 0 {
		frame = time.Duration(float64(header.TimebaseNumerator)/float64(header.TimebaseDenominator)*1000) * time.Millisecond
	}
	return &FileSource{path: path, frame: frame, track: track, log: log}, nil
}

func mimeOf(fourCC string) (string, error) {
	switch fourCC {
	case "VP80":
		return webrtc.MimeTypeVP8, nil
	case "VP90":
		return webrtc.MimeTypeVP9, nil
	case "AV01":
		return webrtc.MimeTypeAV1, nil
	}
	return "", fmt.Errorf("%w: %v", ErrUnsupportedCodec, fourCC)
}

func (s *FileSource) Track() webrtc.TrackLocal { return s.track }
func (s *FileSource) FrameTime() time.Duration { return s.frame }

// Run writes frames with the file rate until the context is done.
// The file starts over when it ends.
func (s *FileSource) Run(ctx context.Context) error {
	for {
		if err := s.play(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		s.log.Debug().Str("file", s.path).Msg("Looping the video")
	}
}

func (s *FileSource) play(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	ivf, _, err := ivfreader.NewWith(f)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(s.frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		frame, _, err := ivf.ParseNextFrame()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err = s.track.WriteSample(media.Sample{Data: frame, Duration: s.frame}); err != nil {
			return err
		}
	}
}
