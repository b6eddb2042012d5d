package recorder

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal"
	"github.com/interviewdeck/clip-recorder/internal/capture"
)

const (
	readBufferSize = 1024 * 1024
	chunkQueueSize = 64
)

// WebmEncoder encodes a capture stream into an in-memory WebM segment,
// VP8 video plus optional Opus audio. VP9 is declared unsupported so
// codec selection falls through to the VP8 pair.
type WebmEncoder struct {
	PixelWidth  int
	PixelHeight int
}

var _ Encoder = (*WebmEncoder)(nil)

func NewWebmEncoder(width, height int) *WebmEncoder {
	return &WebmEncoder{PixelWidth: width, PixelHeight: height}
}

func (e *WebmEncoder) Supports(mimeType string) bool {
	if strings.Contains(mimeType, "vp9") {
		return false
	}
	return strings.HasPrefix(mimeType, "video/webm")
}

func (e *WebmEncoder) Start(stream capture.Stream, mimeType string) (EncoderSession, error) {
	if !e.Supports(mimeType) {
		return nil, errors.Errorf("unsupported mime type %s", mimeType)
	}

	videoTracks := stream.VideoTracks()
	if len(videoTracks) == 0 {
		return nil, errors.New("stream has no video track")
	}

	videoSrc, ok := videoTracks[0].(capture.EncodedTrack)
	if !ok {
		return nil, errors.New("video track cannot produce an encoded bitstream")
	}

	videoReader, err := videoSrc.NewEncodedReader("vp8")
	if err != nil {
		return nil, err
	}

	var audioReader io.ReadCloser
	hasAudio := strings.Contains(mimeType, "opus")
	if audioTracks := stream.AudioTracks(); hasAudio && len(audioTracks) > 0 {
		if audioSrc, ok := audioTracks[0].(capture.EncodedTrack); ok {
			if audioReader, err = audioSrc.NewEncodedReader("opus"); err != nil {
				_ = videoReader.Close()
				return nil, err
			}
		}
	}

	cw := newChunkWriter()

	info := &webm.Info{
		TimecodeScale: 1000000, // 1ms
		MuxingApp:     internal.AppName,
		WritingApp:    internal.AppName,
	}

	tracks := []webm.TrackEntry{
		{
			Name:        "Video",
			TrackNumber: 1,
			TrackUID:    1,
			CodecID:     "V_VP8",
			TrackType:   1,
			Video: &webm.Video{
				PixelWidth:  uint64(e.PixelWidth),
				PixelHeight: uint64(e.PixelHeight),
			},
		},
	}
	if audioReader != nil {
		tracks = append(tracks, webm.TrackEntry{
			Name:        "Audio",
			TrackNumber: 2,
			TrackUID:    2,
			CodecID:     "A_OPUS",
			TrackType:   2,
			Audio: &webm.Audio{
				SamplingFrequency: 48000.0,
				Channels:          2,
			},
		})
	}

	writers, err := webm.NewSimpleBlockWriter(cw, tracks, mkvcore.WithSegmentInfo(info))
	if err != nil {
		_ = videoReader.Close()
		if audioReader != nil {
			_ = audioReader.Close()
		}
		return nil, errors.Wrap(err, "webm block writer")
	}

	s := &webmSession{
		chunks:      cw,
		videoReader: videoReader,
		audioReader: audioReader,
		videoWriter: writers[0],
		startedAt:   time.Now(),
	}
	if audioReader != nil {
		s.audioWriter = writers[1]
	}

	s.wg.Add(1)
	go s.pump(videoReader, s.videoWriter, true)
	if audioReader != nil {
		s.wg.Add(1)
		go s.pump(audioReader, s.audioWriter, false)
	}

	return s, nil
}

type webmSession struct {
	chunks      *chunkWriter
	videoReader io.ReadCloser
	audioReader io.ReadCloser
	videoWriter webm.BlockWriteCloser
	audioWriter webm.BlockWriteCloser

	wg       sync.WaitGroup
	stopOnce sync.Once

	mu          sync.Mutex
	startedAt   time.Time
	paused      bool
	pausedAt    time.Time
	pausedTotal time.Duration
	writeMu     sync.Mutex
}

var _ EncoderSession = (*webmSession)(nil)

func (s *webmSession) Chunks() <-chan []byte {
	return s.chunks.ch
}

func (s *webmSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return nil
	}
	s.paused = true
	s.pausedAt = time.Now()
	return nil
}

func (s *webmSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return nil
	}
	s.pausedTotal += time.Since(s.pausedAt)
	s.paused = false
	return nil
}

func (s *webmSession) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.videoReader.Close()
		if s.audioReader != nil {
			_ = s.audioReader.Close()
		}
		s.wg.Wait()

		if s.audioWriter != nil {
			if err := s.audioWriter.Close(); err != nil {
				log.Warnf("closing webm audio writer: %v", err)
			}
		}
		if err := s.videoWriter.Close(); err != nil {
			log.Warnf("closing webm video writer: %v", err)
		}

		s.chunks.Close()
	})
	return nil
}

// pump moves one encoded frame per read from the track into the webm
// writer. Frames read while paused are dropped and the timestamp clock
// excludes paused time, so the output plays back gapless.
func (s *webmSession) pump(r io.ReadCloser, w webm.BlockWriteCloser, video bool) {
	defer s.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Debugf("encoded reader finished: %v", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		s.mu.Lock()
		if s.paused {
			s.mu.Unlock()
			continue
		}
		pts := int64((time.Since(s.startedAt) - s.pausedTotal) / time.Millisecond)
		s.mu.Unlock()

		frame := make([]byte, n)
		copy(frame, buf[:n])

		keyframe := true
		if video {
			// VP8 frame header: low bit of the first byte clear on keyframes.
			keyframe = frame[0]&0x01 == 0
		}

		s.writeMu.Lock()
		_, err = w.Write(keyframe, pts, frame)
		s.writeMu.Unlock()
		if err != nil {
			log.Errorf("webm block write: %v", err)
			return
		}
	}
}

// chunkWriter adapts the ebml writer's io.WriteCloser into the encoder
// port's chunk channel.
type chunkWriter struct {
	ch        chan []byte
	closeOnce sync.Once
}

func newChunkWriter() *chunkWriter {
	return &chunkWriter{ch: make(chan []byte, chunkQueueSize)}
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	c := make([]byte, len(p))
	copy(c, p)
	w.ch <- c
	return len(p), nil
}

func (w *chunkWriter) Close() error {
	w.closeOnce.Do(func() { close(w.ch) })
	return nil
}
