package capture

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MediaDevicesProvider acquires real camera/microphone streams through
// pion/mediadevices.
type MediaDevicesProvider struct {
	VideoDeviceID string
	AudioDeviceID string
}

var _ DeviceProvider = (*MediaDevicesProvider)(nil)

func NewMediaDevicesProvider() *MediaDevicesProvider {
	return &MediaDevicesProvider{}
}

func (p *MediaDevicesProvider) RequestStream(ctx context.Context, c StreamConstraints) (Stream, error) {
	constraints := mediadevices.MediaStreamConstraints{
		Video: func(mc *mediadevices.MediaTrackConstraints) {
			// Preferred, not strict: drivers pick the closest mode.
			mc.Width = prop.Int(c.IdealWidth)
			mc.Height = prop.Int(c.IdealHeight)
			if p.VideoDeviceID != "" {
				mc.DeviceID = prop.String(p.VideoDeviceID)
			}
		},
	}
	if c.Audio {
		constraints.Audio = func(mc *mediadevices.MediaTrackConstraints) {
			if p.AudioDeviceID != "" {
				mc.DeviceID = prop.String(p.AudioDeviceID)
			}
		}
	}

	ms, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		log.Warnf("media stream with preferred constraints failed, retrying unconstrained: %v", err)

		retry := mediadevices.MediaStreamConstraints{
			Video: func(mc *mediadevices.MediaTrackConstraints) {},
		}
		if c.Audio {
			retry.Audio = func(mc *mediadevices.MediaTrackConstraints) {}
		}

		if ms, err = mediadevices.GetUserMedia(retry); err != nil {
			return nil, errors.Wrap(err, "get user media")
		}
	}

	stream := &mdStream{}
	for _, t := range ms.GetVideoTracks() {
		stream.video = append(stream.video, newMDTrack(t, "video"))
	}
	for _, t := range ms.GetAudioTracks() {
		stream.audio = append(stream.audio, newMDTrack(t, "audio"))
	}

	if len(stream.video) == 0 {
		return nil, errors.New("no video track in acquired stream")
	}

	return stream, nil
}

type mdStream struct {
	video []Track
	audio []Track
}

func (s *mdStream) VideoTracks() []Track { return s.video }
func (s *mdStream) AudioTracks() []Track { return s.audio }

func (s *mdStream) Tracks() []Track {
	all := make([]Track, 0, len(s.video)+len(s.audio))
	all = append(all, s.video...)
	all = append(all, s.audio...)
	return all
}

type mdTrack struct {
	track   mediadevices.Track
	kind    string
	enabled atomic.Bool
}

var _ EncodedTrack = (*mdTrack)(nil)

func newMDTrack(t mediadevices.Track, kind string) *mdTrack {
	mt := &mdTrack{track: t, kind: kind}
	mt.enabled.Store(true)
	return mt
}

func (t *mdTrack) Kind() string { return t.kind }

func (t *mdTrack) Enabled() bool { return t.enabled.Load() }

// SetEnabled only flips the advisory flag; the driver keeps producing
// frames so re-enabling is instant, matching browser track semantics.
func (t *mdTrack) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

func (t *mdTrack) Stop() {
	if err := t.track.Close(); err != nil {
		log.WithField("track", t.track.ID()).Warnf("failed to close track: %v", err)
	}
}

func (t *mdTrack) NewEncodedReader(codec string) (io.ReadCloser, error) {
	r, err := t.track.NewEncodedIOReader(codec)
	if err != nil {
		return nil, errors.Wrapf(err, "encoded reader for %s", codec)
	}
	return r, nil
}
