// Package session sequences device acquisition, segment recording,
// segment-list maintenance, elapsed-time accounting and preview binding
// into the single start/stop toggle model the UI drives.
package session

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal/appstats"
	"github.com/interviewdeck/clip-recorder/internal/blob"
	"github.com/interviewdeck/clip-recorder/internal/capture"
	"github.com/interviewdeck/clip-recorder/internal/recorder"
)

// CaptureState is a read-only snapshot handed to listeners after every
// mutation. The UI never mutates it back.
type CaptureState struct {
	HasDeviceSession  bool   `json:"hasDeviceSession"`
	IsRecording       bool   `json:"isRecording"`
	IsPaused          bool   `json:"isPaused"`
	VideoTrackEnabled bool   `json:"videoTrackEnabled"`
	MicTrackEnabled   bool   `json:"micTrackEnabled"`
	ElapsedSeconds    int    `json:"elapsedSeconds"`
	PreviewURL        string `json:"previewUrl,omitempty"`
	SegmentCount      int    `json:"segmentCount"`
}

type Listener func(CaptureState)

// PreviewBinder is the visual surface segments and the live stream are
// bound to. Binding one side always detaches the other; the controller
// never has both active.
type PreviewBinder interface {
	BindLive(stream capture.Stream)
	BindPlayback(url string)
	Detach()
}

// Controller is the session state machine. Every public operation is a
// single mutation entry point guarded by one mutex; there is no hidden
// state outside this struct.
type Controller struct {
	device  *capture.DeviceSession
	enc     recorder.Encoder
	blobs   *blob.Registry
	preview PreviewBinder

	mimeType string

	mu         sync.Mutex
	rec        *recorder.SegmentRecorder
	segments   []recorder.Segment
	previewURL string
	elapsed    int
	recording  bool
	paused     bool
	tickerStop chan struct{}
	listeners  []Listener
}

func NewController(device *capture.DeviceSession, enc recorder.Encoder, blobs *blob.Registry, preview PreviewBinder) *Controller {
	return &Controller{
		device:  device,
		enc:     enc,
		blobs:   blobs,
		preview: preview,
	}
}

// WithMimeType forces the recorder codec pair instead of the
// preference list. Empty means normal selection.
func (c *Controller) WithMimeType(mimeType string) *Controller {
	c.mimeType = mimeType
	return c
}

// Subscribe registers a listener for state snapshots. The listener is
// invoked synchronously after each mutation, outside the controller lock.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// State returns the current snapshot.
func (c *Controller) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() CaptureState {
	return CaptureState{
		HasDeviceSession:  c.device.Held(),
		IsRecording:       c.recording,
		IsPaused:          c.paused,
		VideoTrackEnabled: c.device.VideoEnabled(),
		MicTrackEnabled:   c.device.MicEnabled(),
		ElapsedSeconds:    c.elapsed,
		PreviewURL:        c.previewURL,
		SegmentCount:      len(c.segments),
	}
}

func (c *Controller) notifyLocked() (CaptureState, []Listener) {
	return c.snapshotLocked(), append([]Listener(nil), c.listeners...)
}

func dispatch(state CaptureState, listeners []Listener) {
	for _, l := range listeners {
		l(state)
	}
}

// ToggleStartStop is the single start/stop control. Starting ensures a
// device session exists (may suspend on the permission grant), discards
// any bound playback preview and begins a brand-new segment; there is no
// resuming an old one. Stopping finalizes the active segment.
func (c *Controller) ToggleStartStop(ctx context.Context) error {
	c.mu.Lock()

	if c.recording {
		c.stopActiveRecorderLocked()
		state, ls := c.notifyLocked()
		c.mu.Unlock()
		dispatch(state, ls)
		return nil
	}

	if err := c.device.Acquire(ctx); err != nil {
		c.mu.Unlock()
		return err
	}

	rec := recorder.New(c.enc, c.blobs).WithMimeType(c.mimeType)
	if err := rec.Start(c.device.Stream()); err != nil {
		c.mu.Unlock()
		return err
	}

	c.rec = rec
	c.recording = true
	c.paused = false
	c.previewURL = ""
	c.preview.BindLive(c.device.Stream())
	c.startTimerLocked()
	appstats.OnRecordingStarted()

	state, ls := c.notifyLocked()
	c.mu.Unlock()
	dispatch(state, ls)
	return nil
}

// stopActiveRecorderLocked finalizes the running segment, appends it and
// rebinds the preview per the last-segment policy.
func (c *Controller) stopActiveRecorderLocked() {
	rec := c.rec
	c.rec = nil
	c.recording = false
	c.paused = false
	c.stopTimerLocked()

	if rec == nil {
		return
	}

	if seg := rec.Stop(); seg != nil {
		c.segments = append(c.segments, *seg)
		appstats.OnSegmentRecorded(len(seg.Blob.Data))
	}

	c.rebindPreviewLocked()
}

// rebindPreviewLocked applies the tie-break rule: the most recently
// finalized segment is bound for review, never a concatenation, unless a
// recording is in progress, in which case the live stream stays bound.
func (c *Controller) rebindPreviewLocked() {
	if c.recording {
		c.previewURL = ""
		c.preview.BindLive(c.device.Stream())
		return
	}

	if len(c.segments) == 0 {
		c.previewURL = ""
		c.preview.Detach()
		return
	}

	last := c.segments[len(c.segments)-1]
	c.previewURL = last.URL()
	c.preview.BindPlayback(last.URL())
}

// PauseRecording delegates to the active recorder and halts the elapsed
// timer in lockstep. Unsupported or mistimed calls are ignored.
func (c *Controller) PauseRecording() {
	c.mu.Lock()

	if !c.recording || c.paused || c.rec == nil {
		c.mu.Unlock()
		return
	}

	c.rec.Pause()
	c.paused = true
	c.stopTimerLocked()

	state, ls := c.notifyLocked()
	c.mu.Unlock()
	dispatch(state, ls)
}

// ResumeRecording restarts the recorder and timer after a pause.
func (c *Controller) ResumeRecording() {
	c.mu.Lock()

	if !c.recording || !c.paused || c.rec == nil {
		c.mu.Unlock()
		return
	}

	c.rec.Resume()
	c.paused = false
	c.startTimerLocked()

	state, ls := c.notifyLocked()
	c.mu.Unlock()
	dispatch(state, ls)
}

// ToggleMic flips the audio track's enabled flag. No-op without a
// device session.
func (c *Controller) ToggleMic() {
	c.mu.Lock()
	c.device.ToggleMic()
	state, ls := c.notifyLocked()
	c.mu.Unlock()
	dispatch(state, ls)
}

// ToggleVideoTrack flips the video track's enabled flag.
func (c *Controller) ToggleVideoTrack() {
	c.mu.Lock()
	c.device.ToggleVideoTrack()
	state, ls := c.notifyLocked()
	c.mu.Unlock()
	dispatch(state, ls)
}

// Segments returns a snapshot copy of the current segment list.
func (c *Controller) Segments() []recorder.Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]recorder.Segment, len(c.segments))
	copy(out, c.segments)
	return out
}

// DeleteSegment removes the segment whose CreatedAt matches createdAt
// and releases its blob handle exactly once. Matching is at millisecond
// precision, the resolution segments are announced with on the wire.
// Unknown timestamps are a no-op.
func (c *Controller) DeleteSegment(createdAt time.Time) {
	c.mu.Lock()

	idx := -1
	for i, seg := range c.segments {
		if seg.CreatedAt.UnixMilli() == createdAt.UnixMilli() {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}

	seg := c.segments[idx]
	c.segments = append(c.segments[:idx], c.segments[idx+1:]...)

	// Rebind before releasing so the visible preview never points at a
	// dead reference.
	wasBound := c.previewURL == seg.URL()
	if wasBound {
		c.rebindPreviewLocked()
	}
	seg.Handle.Release()

	state, ls := c.notifyLocked()
	c.mu.Unlock()
	dispatch(state, ls)

	log.WithField("createdAt", createdAt.UnixMilli()).Debug("segment deleted")
}

// FinalizeSession stops any active recorder, releases the device session
// and returns a snapshot copy of all segments. Safe with zero segments.
// This is the hand-off to the upload coordinator; the list itself stays
// owned by the controller until ResetSession.
func (c *Controller) FinalizeSession() []recorder.Segment {
	c.mu.Lock()

	if c.recording {
		c.stopActiveRecorderLocked()
	}
	c.stopTimerLocked()
	c.device.Release()
	c.preview.Detach()
	c.previewURL = ""

	out := make([]recorder.Segment, len(c.segments))
	copy(out, c.segments)

	state, ls := c.notifyLocked()
	c.mu.Unlock()
	dispatch(state, ls)

	log.Infof("session finalized with %d segment(s)", len(out))
	return out
}

// ResetSession releases every segment handle and the preview binding,
// clears all counters, re-enables both tracks and optionally acquires a
// fresh device session for the next attempt.
func (c *Controller) ResetSession(ctx context.Context, autoReacquire bool) error {
	c.mu.Lock()

	if c.recording {
		c.stopActiveRecorderLocked()
	}
	c.stopTimerLocked()

	c.preview.Detach()
	c.previewURL = ""
	for _, seg := range c.segments {
		seg.Handle.Release()
	}
	c.segments = nil
	c.elapsed = 0
	c.recording = false
	c.paused = false

	c.device.EnableAllTracks()
	c.device.Release()

	var err error
	if autoReacquire {
		if err = c.device.Acquire(ctx); err == nil {
			c.preview.BindLive(c.device.Stream())
		}
	}

	state, ls := c.notifyLocked()
	c.mu.Unlock()
	dispatch(state, ls)
	return err
}

// Elapsed time: a one-second wall-clock counter that only advances while
// recording and not paused.

func (c *Controller) startTimerLocked() {
	if c.tickerStop != nil {
		return
	}
	stop := make(chan struct{})
	c.tickerStop = stop

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				if c.tickerStop != stop {
					c.mu.Unlock()
					return
				}
				c.elapsed++
				state, ls := c.notifyLocked()
				c.mu.Unlock()
				dispatch(state, ls)
			case <-stop:
				return
			}
		}
	}()
}

func (c *Controller) stopTimerLocked() {
	if c.tickerStop == nil {
		return
	}
	close(c.tickerStop)
	c.tickerStop = nil
}
