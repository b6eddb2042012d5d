// Package server drives the capture controller from pubsub gestures
// and publishes state snapshots back.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal/appstats"
	"github.com/interviewdeck/clip-recorder/internal/config"
	"github.com/interviewdeck/clip-recorder/internal/pubsub"
	"github.com/interviewdeck/clip-recorder/internal/pubsub/events"
	"github.com/interviewdeck/clip-recorder/internal/session"
	"github.com/interviewdeck/clip-recorder/internal/upload"
)

type Server struct {
	cfg    *config.Config
	pubsub pubsub.PubSub
	ctrl   *session.Controller
	coord  *upload.Coordinator
	stats  *appstats.StatsFileWriter

	mu           sync.Mutex
	sessionId    string
	segmentCount int
}

func NewServer(cfg *config.Config, ps pubsub.PubSub, ctrl *session.Controller, coord *upload.Coordinator) *Server {
	s := &Server{cfg: cfg, pubsub: ps, ctrl: ctrl, coord: coord}
	ctrl.Subscribe(s.onStateChange)
	return s
}

// WithStatsWriter enables the per-session stats file dump.
func (s *Server) WithStatsWriter(w *appstats.StatsFileWriter) *Server {
	s.stats = w
	return s
}

// onStateChange forwards every controller snapshot to the UI and
// announces freshly finalized segments.
func (s *Server) onStateChange(state session.CaptureState) {
	s.mu.Lock()
	id := s.sessionId
	grew := state.SegmentCount > s.segmentCount
	s.segmentCount = state.SegmentCount
	s.mu.Unlock()

	if id == "" {
		return
	}

	s.PublishPubSub(events.NewCaptureStateChanged(id, state))

	if grew {
		segs := s.ctrl.Segments()
		if len(segs) > 0 {
			last := segs[len(segs)-1]
			s.PublishPubSub(events.NewSegmentRecorded(
				id, last.CreatedAt, last.Blob.Size(), last.Blob.MediaType, last.URL()))
		}
	}
}

// adopt binds the first gesture's session id. Gestures for a different
// session are dropped until the active one ends.
func (s *Server) adopt(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionId == "" {
		s.sessionId = id
		appstats.OnSessionStarted()
		return true
	}
	if s.sessionId != id {
		log.WithField("session", id).
			Warnf("gesture dropped, session %s is active", s.sessionId)
		return false
	}
	return true
}

func (s *Server) HandlePubSub(ctx context.Context, msg []byte) {
	log.Trace(string(msg))
	event := events.Decode(msg)
	appstats.OnServerRequest(event)

	if !event.IsValid() {
		return
	}

	switch event.Id {
	case events.ToggleStartStopKey:
		e := event.Gesture()
		if err := e.Validate(); err != nil {
			log.Error(err)
			return
		}
		if !s.adopt(e.SessionId) {
			return
		}
		if err := s.ctrl.ToggleStartStop(ctx); err != nil {
			log.WithField("session", e.SessionId).Errorf("toggleStartStop: %s", err)
		}

	case events.PauseRecordingKey:
		e := event.Gesture()
		if err := e.Validate(); err != nil {
			log.Error(err)
			return
		}
		if s.adopt(e.SessionId) {
			s.ctrl.PauseRecording()
		}

	case events.ResumeRecordingKey:
		e := event.Gesture()
		if err := e.Validate(); err != nil {
			log.Error(err)
			return
		}
		if s.adopt(e.SessionId) {
			s.ctrl.ResumeRecording()
		}

	case events.ToggleMicKey:
		e := event.Gesture()
		if err := e.Validate(); err != nil {
			log.Error(err)
			return
		}
		if s.adopt(e.SessionId) {
			s.ctrl.ToggleMic()
		}

	case events.ToggleVideoTrackKey:
		e := event.Gesture()
		if err := e.Validate(); err != nil {
			log.Error(err)
			return
		}
		if s.adopt(e.SessionId) {
			s.ctrl.ToggleVideoTrack()
		}

	case events.DeleteSegmentKey:
		e := event.DeleteSegment()
		if err := e.Validate(); err != nil {
			log.Error(err)
			return
		}
		if s.adopt(e.SessionId) {
			s.ctrl.DeleteSegment(e.Timestamp())
		}

	case events.ResetSessionKey:
		e := event.ResetSession()
		if err := e.Validate(); err != nil {
			log.Error(err)
			return
		}
		if !s.adopt(e.SessionId) {
			return
		}
		if err := s.ctrl.ResetSession(ctx, e.Reacquire); err != nil {
			log.WithField("session", e.SessionId).Errorf("resetSession: %s", err)
		}

	case events.EndSessionKey:
		e := event.EndSession()
		if err := e.Validate(); err != nil {
			log.Error(err)
			return
		}
		if s.adopt(e.SessionId) {
			s.endSession(ctx, e)
		}

	case events.GetRecorderStatusKey:
		s.PublishPubSub(events.NewRecorderStatus(s.cfg.App.Version, s.cfg.App.InstanceId))
	}
}

// endSession finalizes the capture, uploads every segment and resets
// the controller for the next candidate. Upload progress streams out
// as it happens; the summary goes last.
func (s *Server) endSession(ctx context.Context, e *events.EndSession) {
	segs := s.ctrl.FinalizeSession()

	jobs := s.coord.UploadBatch(ctx, segs, e.OwnerId,
		func(progress float64, completed, total int) {
			s.PublishPubSub(events.NewUploadProgress(e.SessionId, progress, completed, total))
		})

	var uploaded, failed int
	var clips []events.FinalizedClip
	stats := &appstats.SessionStats{
		OwnerID: e.OwnerId,
		Uploads: &appstats.UploadStats{Attempted: len(jobs)},
	}
	for _, job := range jobs {
		stats.Segments = append(stats.Segments, &appstats.SegmentStats{
			CreatedAt: job.Segment.CreatedAt.UnixMilli(),
			SizeBytes: job.Segment.Blob.Size(),
			MimeType:  job.Segment.Blob.MediaType,
		})
		if job.Status == upload.StatusSaved {
			uploaded++
			clips = append(clips, events.FinalizedClip{
				Url:      job.Remote.URL,
				Key:      job.Remote.Key,
				Filename: job.Filename,
			})
		} else {
			failed++
		}
	}
	stats.Uploads.Uploaded = uploaded
	stats.Uploads.Failed = failed
	if len(jobs) > 0 {
		stats.Uploads.ProgressPct = float64(uploaded) / float64(len(jobs)) * 100
	} else {
		stats.Uploads.ProgressPct = 100
	}
	appstats.UpdateSessionStats(stats)

	if s.stats != nil {
		if err := s.stats.WriteStats(e.SessionId, &appstats.StatsFileOutput{
			SessionStats:   stats,
			StatsTimestamp: time.Now().UnixMilli(),
		}); err != nil {
			log.WithField("session", e.SessionId).Errorf("stats write: %s", err)
		}
	}

	final := events.NewSessionFinalized(e.SessionId, e.OwnerId, uploaded, failed, clips)
	if failed > 0 {
		final.WithError(fmt.Sprintf("%d of %d clips failed to upload", failed, len(jobs)))
	}
	s.PublishPubSub(final)

	if err := s.ctrl.ResetSession(ctx, false); err != nil {
		log.WithField("session", e.SessionId).Errorf("post-finalize reset: %s", err)
	}

	s.mu.Lock()
	s.sessionId = ""
	s.segmentCount = 0
	s.mu.Unlock()
	appstats.OnSessionEnded()

	log.WithField("session", e.SessionId).
		Infof("session ended: %d uploaded, %d failed", uploaded, failed)
}

func (s *Server) PublishPubSub(msg interface{}) {
	appstats.OnServerResponse(msg)
	j, _ := json.Marshal(msg)
	s.pubsub.Publish(s.cfg.PubSub.Channels.Publish, j)
}

func (s *Server) OnStart() error {
	log.Info("Application started. Version=", s.cfg.App.Version, " InstanceId=", s.cfg.App.InstanceId)
	s.PublishPubSub(events.NewRecorderStatus(s.cfg.App.Version, s.cfg.App.InstanceId))
	return nil
}
