// Package upload pushes finalized segments to remote storage and
// persists their metadata records.
package upload

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal/config"
)

// UploadResult identifies a stored clip: the public URL and the storage
// key a later delete must use.
type UploadResult struct {
	URL string
	Key string
}

// Uploader is the remote clip storage port.
type Uploader interface {
	Upload(ctx context.Context, filename, mimeType string, data []byte) (UploadResult, error)
	Delete(ctx context.Context, key string) error
}

func NewUploader(cfg config.Upload) Uploader {
	var err error
	var u Uploader
	switch cfg.Adapter {
	case "worker":
		c := config.Worker{}
		if err = mapstructure.Decode(cfg.Adapters[cfg.Adapter], &c); err != nil {
			break
		}

		u = NewWorkerClient(c)
	case "r2":
		c := config.R2{}
		if err = mapstructure.Decode(cfg.Adapters[cfg.Adapter], &c); err != nil {
			break
		}

		u, err = NewR2Uploader(context.Background(), c)
	default:
		err = fmt.Errorf("unknown upload adapter '%s'", cfg.Adapter)
	}
	if err != nil {
		log.Fatalf("failed to configure %s upload adapter: %s", cfg.Adapter, err)
		return nil
	}
	return u
}
