// Package recorder turns one continuous capture pass into a single
// finalized segment. Encoding sits behind the Encoder port; the default
// implementation writes WebM (see webm.go).
package recorder

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal/blob"
	"github.com/interviewdeck/clip-recorder/internal/capture"
)

type State int

const (
	StateInactive State = iota
	StateRecording
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	default:
		return "inactive"
	}
}

// CodecPreference is tried in order; the first mime type the encoder
// supports wins. The chosen codec is not observable to callers beyond
// the finalized blob's media type.
var CodecPreference = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
	"video/webm",
}

// EncoderSession is one running encode pass. Chunks is closed by Stop.
type EncoderSession interface {
	Chunks() <-chan []byte
	Pause() error
	Resume() error
	Stop() error
}

type Encoder interface {
	Supports(mimeType string) bool
	Start(stream capture.Stream, mimeType string) (EncoderSession, error)
}

// Segment is one finalized clip: the encoded bytes plus the registered
// blob handle the UI plays it back through. Owned by the session's
// segment list until deleted or the session resets.
type Segment struct {
	Blob      *blob.Blob
	Handle    *blob.Handle
	CreatedAt time.Time
}

func (s Segment) URL() string {
	return s.Handle.URL()
}

// SegmentRecorder accumulates encoded chunks from one encoder session.
// States: inactive -> recording <-> paused -> inactive (via Stop); there
// is no path from inactive to paused.
type SegmentRecorder struct {
	enc    Encoder
	blobs  *blob.Registry
	forced string

	mu       sync.Mutex
	state    State
	session  EncoderSession
	mimeType string
	chunks   [][]byte
	drained  chan struct{}
}

func New(enc Encoder, blobs *blob.Registry) *SegmentRecorder {
	return &SegmentRecorder{enc: enc, blobs: blobs}
}

// WithMimeType forces a codec pair instead of the preference list.
// Values the encoder does not support fall back to normal selection.
func (r *SegmentRecorder) WithMimeType(mimeType string) *SegmentRecorder {
	r.forced = mimeType
	return r
}

// SelectMimeType picks the best supported codec pair for enc, falling
// back to the container default.
func SelectMimeType(enc Encoder) string {
	for _, mt := range CodecPreference {
		if enc.Supports(mt) {
			return mt
		}
	}
	return CodecPreference[len(CodecPreference)-1]
}

func (r *SegmentRecorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start begins encoding the stream. Fails if already active.
func (r *SegmentRecorder) Start(stream capture.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInactive {
		log.Warnf("segment recorder start ignored in state %s", r.state)
		return nil
	}

	mimeType := SelectMimeType(r.enc)
	if r.forced != "" {
		if r.enc.Supports(r.forced) {
			mimeType = r.forced
		} else {
			log.Warnf("configured mime type %s unsupported, using %s", r.forced, mimeType)
		}
	}
	sess, err := r.enc.Start(stream, mimeType)
	if err != nil {
		return err
	}

	r.session = sess
	r.mimeType = mimeType
	r.chunks = nil
	r.drained = make(chan struct{})
	r.state = StateRecording

	go r.collect(sess, r.drained)

	log.WithField("mimeType", mimeType).Debug("segment recorder started")
	return nil
}

func (r *SegmentRecorder) collect(sess EncoderSession, drained chan struct{}) {
	for chunk := range sess.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		r.mu.Lock()
		r.chunks = append(r.chunks, chunk)
		r.mu.Unlock()
	}
	close(drained)
}

// Pause suspends encoding. Valid only while recording; anything else is
// logged and ignored since platform support is inconsistent and callers
// must not crash on it.
func (r *SegmentRecorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		log.Debugf("pause ignored in state %s", r.state)
		return
	}

	if err := r.session.Pause(); err != nil {
		log.Warnf("pause unsupported: %v", err)
		return
	}
	r.state = StatePaused
}

// Resume continues a paused pass; logged and ignored otherwise.
func (r *SegmentRecorder) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePaused {
		log.Debugf("resume ignored in state %s", r.state)
		return
	}

	if err := r.session.Resume(); err != nil {
		log.Warnf("resume unsupported: %v", err)
		return
	}
	r.state = StateRecording
}

// Stop finalizes the pass into a Segment with CreatedAt = now. Stopping
// an inactive recorder is a no-op returning nil (logged, never an
// error). The blob handle is registered here and owned by the caller.
func (r *SegmentRecorder) Stop() *Segment {
	r.mu.Lock()

	if r.state == StateInactive {
		r.mu.Unlock()
		log.Debug("stop ignored: segment recorder inactive")
		return nil
	}

	sess := r.session
	drained := r.drained
	r.state = StateInactive
	r.session = nil
	r.mu.Unlock()

	if err := sess.Stop(); err != nil {
		log.Warnf("encoder session stop: %v", err)
	}
	<-drained

	r.mu.Lock()
	var size int
	for _, c := range r.chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range r.chunks {
		data = append(data, c...)
	}
	mimeType := containerType(r.mimeType)
	r.chunks = nil
	r.mu.Unlock()

	b := &blob.Blob{Data: data, MediaType: mimeType}
	seg := &Segment{
		Blob:      b,
		Handle:    r.blobs.Create(b),
		CreatedAt: time.Now(),
	}

	log.WithField("createdAt", seg.CreatedAt.UnixMilli()).
		Debugf("segment finalized: %d bytes", len(data))

	return seg
}

// containerType strips codec parameters: the blob advertises the bare
// container type, like MediaRecorder output blobs do.
func containerType(mimeType string) string {
	for i := 0; i < len(mimeType); i++ {
		if mimeType[i] == ';' {
			return mimeType[:i]
		}
	}
	return mimeType
}
