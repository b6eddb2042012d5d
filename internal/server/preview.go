package server

import (
	"sync"

	"github.com/interviewdeck/clip-recorder/internal/blob"
	"github.com/interviewdeck/clip-recorder/internal/capture"
	"github.com/interviewdeck/clip-recorder/internal/session"
)

type previewMode int

const (
	previewNone previewMode = iota
	previewLive
	previewPlayback
)

// PreviewSink is the process-side preview surface: it remembers what
// the controller bound so the HTTP layer can serve it.
type PreviewSink struct {
	blobs *blob.Registry

	mu   sync.Mutex
	mode previewMode
	url  string
}

var _ session.PreviewBinder = (*PreviewSink)(nil)

func NewPreviewSink(blobs *blob.Registry) *PreviewSink {
	return &PreviewSink{blobs: blobs}
}

func (p *PreviewSink) BindLive(stream capture.Stream) {
	p.mu.Lock()
	p.mode = previewLive
	p.url = ""
	p.mu.Unlock()
}

func (p *PreviewSink) BindPlayback(url string) {
	p.mu.Lock()
	p.mode = previewPlayback
	p.url = url
	p.mu.Unlock()
}

func (p *PreviewSink) Detach() {
	p.mu.Lock()
	p.mode = previewNone
	p.url = ""
	p.mu.Unlock()
}

// Playback resolves the bound segment. ok is false while live or
// detached.
func (p *PreviewSink) Playback() (*blob.Blob, bool) {
	p.mu.Lock()
	mode, url := p.mode, p.url
	p.mu.Unlock()

	if mode != previewPlayback {
		return nil, false
	}
	return p.blobs.Resolve(url)
}

func (p *PreviewSink) Live() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode == previewLive
}
