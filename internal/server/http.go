package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal/admin"
	"github.com/interviewdeck/clip-recorder/internal/config"
	"github.com/interviewdeck/clip-recorder/internal/session"
	"github.com/interviewdeck/clip-recorder/internal/store"
)

// HTTPServer exposes the read side: the current capture state, the
// bound playback preview and the admin listing.
type HTTPServer struct {
	cfg     *config.Config
	port    int
	ctrl    *session.Controller
	preview *PreviewSink
	index   *admin.Index
	svc     *admin.Service
}

func NewHTTPServer(cfg *config.Config, ctrl *session.Controller, preview *PreviewSink, index *admin.Index, svc *admin.Service) *HTTPServer {
	return &HTTPServer{
		cfg:     cfg,
		port:    cfg.HTTP.Port,
		ctrl:    ctrl,
		preview: preview,
		index:   index,
		svc:     svc,
	}
}

func (s *HTTPServer) Serve() {
	mux := http.NewServeMux()
	s.route(mux)

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("starting http server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func (s *HTTPServer) route(mux *http.ServeMux) {
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.ctrl.State())
	})

	mux.HandleFunc("/preview", func(w http.ResponseWriter, r *http.Request) {
		b, ok := s.preview.Playback()
		if !ok {
			if s.preview.Live() {
				http.Error(w, "preview is live, no playback bound", http.StatusNotFound)
			} else {
				http.Error(w, "no preview bound", http.StatusNotFound)
			}
			return
		}
		w.Header().Set("Content-Type", b.MediaType)
		w.Header().Set("Content-Length", strconv.FormatInt(b.Size(), 10))
		if _, err := w.Write(b.Data); err != nil {
			log.Debugf("preview write: %s", err)
		}
	})

	mux.HandleFunc("/admin/listing", func(w http.ResponseWriter, r *http.Request) {
		if s.index == nil {
			http.Error(w, "admin index disabled", http.StatusNotFound)
			return
		}
		writeJSON(w, s.index.Snapshot())
	})

	mux.HandleFunc("/admin/clips/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.svc == nil {
			http.Error(w, "admin service disabled", http.StatusNotFound)
			return
		}

		clipID := strings.TrimPrefix(r.URL.Path, "/admin/clips/")
		role := r.Header.Get("X-Role")

		switch err := s.svc.DeleteClip(r.Context(), clipID, role); {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, admin.ErrDeleteUnauthorized):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			log.WithField("clip", clipID).Errorf("clip delete: %s", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/favicon.ico", func(rw http.ResponseWriter, r *http.Request) {})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("json response write: %s", err)
	}
}
