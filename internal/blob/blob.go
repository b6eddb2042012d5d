// Package blob holds finalized clip data in memory and hands out
// process-local URLs for it. A Handle is the single owner of its
// registry entry: once released, the URL no longer resolves and the
// data is eligible for collection. Release is idempotent.
package blob

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const urlScheme = "mem"

type Blob struct {
	Data      []byte
	MediaType string
}

func (b *Blob) Size() int64 {
	return int64(len(b.Data))
}

// Handle addresses one registered blob. It must be released exactly once
// when the owning component discards the blob, or the entry stays live
// for the lifetime of the process.
type Handle struct {
	url  string
	reg  *Registry
	once sync.Once
}

func (h *Handle) URL() string {
	return h.url
}

func (h *Handle) Release() {
	h.once.Do(func() {
		h.reg.drop(h.url)
	})
}

type Registry struct {
	mu    sync.Mutex
	blobs map[string]*Blob
}

func NewRegistry() *Registry {
	return &Registry{blobs: make(map[string]*Blob)}
}

func (r *Registry) Create(b *Blob) *Handle {
	url := fmt.Sprintf("%s://clips/%s", urlScheme, uuid.New().String())

	r.mu.Lock()
	r.blobs[url] = b
	r.mu.Unlock()

	log.WithField("url", url).Tracef("registered blob: %d bytes (%s)", len(b.Data), b.MediaType)

	return &Handle{url: url, reg: r}
}

// Resolve returns the blob bound to url, or false if the handle was
// released or never existed.
func (r *Registry) Resolve(url string) (*Blob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blobs[url]
	return b, ok
}

// Live reports how many blobs are currently registered.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.blobs)
}

func (r *Registry) drop(url string) {
	r.mu.Lock()
	_, ok := r.blobs[url]
	delete(r.blobs, url)
	r.mu.Unlock()

	if !ok {
		log.WithField("url", url).Warn("released blob handle had no registry entry")
	}
}
