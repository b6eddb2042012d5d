package admin

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal/store"
	"github.com/interviewdeck/clip-recorder/internal/upload"
)

const RoleAdmin = "admin"

var ErrDeleteUnauthorized = errors.New("delete requires the admin role")

// Service performs privileged clip operations.
type Service struct {
	store    store.ClipStore
	uploader upload.Uploader
}

func NewService(st store.ClipStore, uploader upload.Uploader) *Service {
	return &Service{store: st, uploader: uploader}
}

// DeleteClip removes a clip's remote file and then its record. The
// role check happens before anything is touched; the remote file goes
// first so a half-finished delete leaves a dangling record rather than
// a dangling file.
func (s *Service) DeleteClip(ctx context.Context, clipID, role string) error {
	if role != RoleAdmin {
		return ErrDeleteUnauthorized
	}

	rec, err := s.store.GetClip(ctx, clipID)
	if err != nil {
		return err
	}

	if rec.Key != "" {
		if err := s.uploader.Delete(ctx, rec.Key); err != nil {
			return errors.WithMessage(err, "remote file delete")
		}
	} else {
		log.WithField("clip", clipID).Warn("clip record has no storage key, deleting record only")
	}

	if err := s.store.DeleteClip(ctx, clipID); err != nil {
		return errors.WithMessage(err, "clip record delete")
	}

	log.WithField("clip", clipID).Info("clip deleted")
	return nil
}
