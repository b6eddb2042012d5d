// Package capture owns the live camera/microphone handle. The device
// itself sits behind the DeviceProvider port so the session logic can be
// exercised without hardware.
package capture

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrDeviceUnavailable is returned when the platform denies access to the
// camera/microphone or no such device exists.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

type StreamConstraints struct {
	IdealWidth  int
	IdealHeight int
	Audio       bool
}

type Track interface {
	Kind() string // "video" or "audio"
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
}

// EncodedTrack is implemented by tracks that can emit an encoded
// bitstream for a named codec (e.g. "vp8", "opus").
type EncodedTrack interface {
	Track
	NewEncodedReader(codec string) (io.ReadCloser, error)
}

type Stream interface {
	VideoTracks() []Track
	AudioTracks() []Track
	Tracks() []Track
}

type DeviceProvider interface {
	RequestStream(ctx context.Context, constraints StreamConstraints) (Stream, error)
}

// DeviceSession holds at most one live stream. All operations are
// no-ops when they don't apply (no session held, track missing), except
// Acquire which surfaces ErrDeviceUnavailable to the caller.
type DeviceSession struct {
	provider    DeviceProvider
	constraints StreamConstraints

	mu     sync.Mutex
	stream Stream
}

func NewDeviceSession(provider DeviceProvider, constraints StreamConstraints) *DeviceSession {
	return &DeviceSession{provider: provider, constraints: constraints}
}

// Acquire requests a stream from the provider. Idempotent: if a session
// is already held it returns immediately. A provider failure leaves any
// existing state untouched.
func (s *DeviceSession) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return nil
	}

	stream, err := s.provider.RequestStream(ctx, s.constraints)
	if err != nil {
		return errors.Wrap(ErrDeviceUnavailable, err.Error())
	}

	s.stream = stream
	return nil
}

func (s *DeviceSession) Held() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Stream returns the held stream, or nil.
func (s *DeviceSession) Stream() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// ToggleVideoTrack flips the enabled flag of the first video track.
// A disabled video track keeps the stream alive but renders blank
// frames, which is the intended review behavior.
func (s *DeviceSession) ToggleVideoTrack() {
	s.toggleFirst(func(st Stream) []Track { return st.VideoTracks() })
}

// ToggleMic flips the enabled flag of the first audio track.
func (s *DeviceSession) ToggleMic() {
	s.toggleFirst(func(st Stream) []Track { return st.AudioTracks() })
}

func (s *DeviceSession) toggleFirst(pick func(Stream) []Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return
	}

	tracks := pick(s.stream)
	if len(tracks) == 0 {
		return
	}

	t := tracks[0]
	t.SetEnabled(!t.Enabled())
}

// VideoEnabled reports the first video track's enabled flag. Both
// flags default to on: without a held stream (before acquisition,
// after release) there is nothing muted, so they read true.
func (s *DeviceSession) VideoEnabled() bool {
	return s.firstEnabled(func(st Stream) []Track { return st.VideoTracks() })
}

func (s *DeviceSession) MicEnabled() bool {
	return s.firstEnabled(func(st Stream) []Track { return st.AudioTracks() })
}

func (s *DeviceSession) firstEnabled(pick func(Stream) []Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return true
	}

	tracks := pick(s.stream)
	if len(tracks) == 0 {
		return true
	}

	return tracks[0].Enabled()
}

// EnableAllTracks turns every track back on for the next attempt.
func (s *DeviceSession) EnableAllTracks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return
	}

	for _, t := range s.stream.Tracks() {
		t.SetEnabled(true)
	}
}

// Release stops every track and clears the handle. Idempotent.
func (s *DeviceSession) Release() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream == nil {
		return
	}

	for _, t := range stream.Tracks() {
		t.Stop()
	}

	log.Debug("device session released")
}
