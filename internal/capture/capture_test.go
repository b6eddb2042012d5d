package capture

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeTrack struct {
	kind    string
	enabled bool
	stopped int
}

func (t *fakeTrack) Kind() string          { return t.kind }
func (t *fakeTrack) Enabled() bool         { return t.enabled }
func (t *fakeTrack) SetEnabled(state bool) { t.enabled = state }
func (t *fakeTrack) Stop()                 { t.stopped++ }

var _ Track = (*fakeTrack)(nil)

type fakeStream struct {
	video []Track
	audio []Track
}

func (s *fakeStream) VideoTracks() []Track { return s.video }
func (s *fakeStream) AudioTracks() []Track { return s.audio }
func (s *fakeStream) Tracks() []Track      { return append(append([]Track{}, s.video...), s.audio...) }

var _ Stream = (*fakeStream)(nil)

type fakeProvider struct {
	stream   Stream
	err      error
	requests int
}

func (p *fakeProvider) RequestStream(ctx context.Context, c StreamConstraints) (Stream, error) {
	p.requests++
	if p.err != nil {
		return nil, p.err
	}
	return p.stream, nil
}

var _ DeviceProvider = (*fakeProvider)(nil)

func newFakeStream() (*fakeStream, *fakeTrack, *fakeTrack) {
	v := &fakeTrack{kind: "video", enabled: true}
	a := &fakeTrack{kind: "audio", enabled: true}
	return &fakeStream{video: []Track{v}, audio: []Track{a}}, v, a
}

func TestAcquireIsIdempotent(t *testing.T) {
	stream, _, _ := newFakeStream()
	provider := &fakeProvider{stream: stream}
	sess := NewDeviceSession(provider, StreamConstraints{IdealWidth: 1280, IdealHeight: 720, Audio: true})

	assert.NoError(t, sess.Acquire(context.Background()))
	assert.NoError(t, sess.Acquire(context.Background()))
	assert.Equal(t, 1, provider.requests, "second acquire must not re-request the device")
	assert.True(t, sess.Held())
}

func TestAcquireFailureLeavesStateUntouched(t *testing.T) {
	provider := &fakeProvider{err: errors.New("permission denied")}
	sess := NewDeviceSession(provider, StreamConstraints{})

	err := sess.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.False(t, sess.Held())

	// A later grant succeeds cleanly.
	provider.err = nil
	provider.stream, _, _ = newFakeStream()
	assert.NoError(t, sess.Acquire(context.Background()))
	assert.True(t, sess.Held())
}

func TestToggleTracks(t *testing.T) {
	stream, video, audio := newFakeStream()
	sess := NewDeviceSession(&fakeProvider{stream: stream}, StreamConstraints{})
	assert.NoError(t, sess.Acquire(context.Background()))

	sess.ToggleVideoTrack()
	assert.False(t, video.enabled)
	assert.False(t, sess.VideoEnabled())
	assert.True(t, sess.MicEnabled())

	sess.ToggleMic()
	assert.False(t, audio.enabled)

	sess.EnableAllTracks()
	assert.True(t, video.enabled)
	assert.True(t, audio.enabled)
}

func TestTogglesAreNoopsWithoutSession(t *testing.T) {
	sess := NewDeviceSession(&fakeProvider{}, StreamConstraints{})

	sess.ToggleVideoTrack()
	sess.ToggleMic()
	assert.True(t, sess.VideoEnabled(), "flags default to on without a stream")
	assert.True(t, sess.MicEnabled())
}

func TestTrackFlagsDefaultOnAfterRelease(t *testing.T) {
	stream, video, _ := newFakeStream()
	sess := NewDeviceSession(&fakeProvider{stream: stream}, StreamConstraints{})
	assert.NoError(t, sess.Acquire(context.Background()))

	sess.ToggleVideoTrack()
	assert.False(t, sess.VideoEnabled())
	assert.False(t, video.enabled)

	sess.Release()
	assert.True(t, sess.VideoEnabled())
	assert.True(t, sess.MicEnabled())
}

func TestReleaseStopsTracksAndIsIdempotent(t *testing.T) {
	stream, video, audio := newFakeStream()
	sess := NewDeviceSession(&fakeProvider{stream: stream}, StreamConstraints{})
	assert.NoError(t, sess.Acquire(context.Background()))

	sess.Release()
	assert.False(t, sess.Held())
	assert.Equal(t, 1, video.stopped)
	assert.Equal(t, 1, audio.stopped)

	sess.Release()
	assert.Equal(t, 1, video.stopped, "second release must not stop tracks again")
}
