package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/interviewdeck/clip-recorder/internal/blob"
	"github.com/interviewdeck/clip-recorder/internal/capture"
)

type fakeSession struct {
	ch       chan []byte
	paused   int
	resumed  int
	stopped  int
	opErr    error
}

func newFakeSession(chunks ...[]byte) *fakeSession {
	ch := make(chan []byte, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	return &fakeSession{ch: ch}
}

func (s *fakeSession) Chunks() <-chan []byte { return s.ch }
func (s *fakeSession) Pause() error          { s.paused++; return s.opErr }
func (s *fakeSession) Resume() error         { s.resumed++; return s.opErr }
func (s *fakeSession) Stop() error {
	s.stopped++
	if s.stopped == 1 {
		close(s.ch)
	}
	return nil
}

var _ EncoderSession = (*fakeSession)(nil)

type fakeEncoder struct {
	supported map[string]bool
	session   *fakeSession
	lastMime  string
}

func (e *fakeEncoder) Supports(mimeType string) bool { return e.supported[mimeType] }
func (e *fakeEncoder) Start(stream capture.Stream, mimeType string) (EncoderSession, error) {
	e.lastMime = mimeType
	return e.session, nil
}

var _ Encoder = (*fakeEncoder)(nil)

type nilStream struct{}

func (nilStream) VideoTracks() []capture.Track { return nil }
func (nilStream) AudioTracks() []capture.Track { return nil }
func (nilStream) Tracks() []capture.Track      { return nil }

func TestSelectMimeTypePrefersHigherEfficiencyCodec(t *testing.T) {
	enc := &fakeEncoder{supported: map[string]bool{
		"video/webm;codecs=vp9,opus": true,
		"video/webm;codecs=vp8,opus": true,
	}}
	assert.Equal(t, "video/webm;codecs=vp9,opus", SelectMimeType(enc))
}

func TestSelectMimeTypeFallsBack(t *testing.T) {
	enc := &fakeEncoder{supported: map[string]bool{
		"video/webm;codecs=vp8,opus": true,
	}}
	assert.Equal(t, "video/webm;codecs=vp8,opus", SelectMimeType(enc))

	assert.Equal(t, "video/webm", SelectMimeType(&fakeEncoder{supported: map[string]bool{}}),
		"container default when nothing in the preference list is supported")
}

func TestConfiguredMimeTypeOverridesPreference(t *testing.T) {
	sess := newFakeSession()
	enc := &fakeEncoder{supported: map[string]bool{
		"video/webm;codecs=vp9,opus": true,
		"video/webm;codecs=vp8,opus": true,
	}, session: sess}
	rec := New(enc, blob.NewRegistry()).WithMimeType("video/webm;codecs=vp8,opus")

	assert.NoError(t, rec.Start(nilStream{}))
	assert.Equal(t, "video/webm;codecs=vp8,opus", enc.lastMime)
}

func TestConfiguredMimeTypeUnsupportedFallsBack(t *testing.T) {
	sess := newFakeSession()
	enc := &fakeEncoder{supported: map[string]bool{
		"video/webm;codecs=vp9,opus": true,
	}, session: sess}
	rec := New(enc, blob.NewRegistry()).WithMimeType("video/mp4")

	assert.NoError(t, rec.Start(nilStream{}))
	assert.Equal(t, "video/webm;codecs=vp9,opus", enc.lastMime)
}

func TestStopAssemblesSegment(t *testing.T) {
	sess := newFakeSession([]byte("abc"), []byte("def"))
	enc := &fakeEncoder{supported: map[string]bool{"video/webm;codecs=vp8,opus": true}, session: sess}
	reg := blob.NewRegistry()
	rec := New(enc, reg)

	assert.NoError(t, rec.Start(nilStream{}))
	assert.Equal(t, StateRecording, rec.State())

	seg := rec.Stop()
	assert.NotNil(t, seg)
	assert.Equal(t, StateInactive, rec.State())
	assert.Equal(t, []byte("abcdef"), seg.Blob.Data)
	assert.Equal(t, "video/webm", seg.Blob.MediaType, "codec parameters stripped from the blob type")
	assert.False(t, seg.CreatedAt.IsZero())

	_, ok := reg.Resolve(seg.URL())
	assert.True(t, ok, "segment blob must be registered")
}

func TestStopWhenInactiveIsNoop(t *testing.T) {
	enc := &fakeEncoder{supported: map[string]bool{}}
	rec := New(enc, blob.NewRegistry())

	assert.Nil(t, rec.Stop())
	assert.Equal(t, StateInactive, rec.State())
}

func TestPauseResumeStateMachine(t *testing.T) {
	sess := newFakeSession()
	enc := &fakeEncoder{supported: map[string]bool{"video/webm;codecs=vp8,opus": true}, session: sess}
	rec := New(enc, blob.NewRegistry())

	// No transition from inactive to paused.
	rec.Pause()
	assert.Equal(t, StateInactive, rec.State())
	assert.Zero(t, sess.paused)

	assert.NoError(t, rec.Start(nilStream{}))

	rec.Resume() // resume while recording: ignored
	assert.Equal(t, StateRecording, rec.State())
	assert.Zero(t, sess.resumed)

	rec.Pause()
	assert.Equal(t, StatePaused, rec.State())

	rec.Pause() // double pause: ignored, no extra delegate call
	assert.Equal(t, 1, sess.paused)

	rec.Resume()
	assert.Equal(t, StateRecording, rec.State())
	assert.Equal(t, 1, sess.resumed)
}

func TestUnsupportedPauseKeepsRecording(t *testing.T) {
	sess := newFakeSession()
	sess.opErr = assert.AnError
	enc := &fakeEncoder{supported: map[string]bool{"video/webm;codecs=vp8,opus": true}, session: sess}
	rec := New(enc, blob.NewRegistry())

	assert.NoError(t, rec.Start(nilStream{}))
	rec.Pause()
	assert.Equal(t, StateRecording, rec.State(), "unsupported pause is swallowed, state unchanged")
}
