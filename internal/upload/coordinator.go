package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal/appstats"
	"github.com/interviewdeck/clip-recorder/internal/recorder"
	"github.com/interviewdeck/clip-recorder/internal/store"
)

var (
	ErrUploadFailed       = errors.New("clip upload failed")
	ErrMetadataSaveFailed = errors.New("clip metadata save failed")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusUploaded  Status = "uploaded"
	StatusSaved     Status = "metadata-saved"
	StatusFailed    Status = "failed"
)

// Job tracks one segment through the batch. A job only counts as
// completed once its metadata record is saved.
type Job struct {
	Segment  recorder.Segment
	Filename string
	Status   Status
	Remote   UploadResult
	RecordID string
	Err      error
}

// ClipSaver is the slice of the metadata store the coordinator needs.
type ClipSaver interface {
	SaveClip(ctx context.Context, rec *store.ClipRecord) (string, error)
}

type ProgressFunc func(progress float64, completed, total int)

// Coordinator runs finalize batches: every segment is uploaded
// concurrently, a failure in one never aborts the others.
type Coordinator struct {
	uploader Uploader
	saver    ClipSaver
}

func NewCoordinator(uploader Uploader, saver ClipSaver) *Coordinator {
	return &Coordinator{uploader: uploader, saver: saver}
}

// UploadBatch pushes all segments and persists a record per success.
// Progress is completed/total*100, reported after each completed job;
// failed jobs never advance it. The returned jobs are in segment order.
//
// A clip whose upload succeeded but whose record save failed is an
// orphan in remote storage. It is logged with its key and left in
// place; no compensating delete is attempted.
func (c *Coordinator) UploadBatch(ctx context.Context, segments []recorder.Segment, ownerID string, onProgress ProgressFunc) []Job {
	total := len(segments)
	jobs := make([]Job, total)

	if total == 0 {
		if onProgress != nil {
			onProgress(100, 0, 0)
		}
		return jobs
	}

	var mu sync.Mutex
	completed := 0

	reportCompleted := func() {
		mu.Lock()
		completed++
		progress := float64(completed) / float64(total) * 100
		mu.Unlock()

		appstats.OnBatchProgress(progress)
		if onProgress != nil {
			onProgress(progress, completed, total)
		}
	}

	var wg sync.WaitGroup
	for i, seg := range segments {
		jobs[i] = Job{
			Segment:  seg,
			Filename: fmt.Sprintf("clip-%d.webm", seg.CreatedAt.UnixMilli()),
			Status:   StatusPending,
		}

		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			c.run(ctx, job, ownerID)
			if job.Status == StatusSaved {
				reportCompleted()
			}
		}(&jobs[i])
	}
	wg.Wait()

	return jobs
}

func (c *Coordinator) run(ctx context.Context, job *Job, ownerID string) {
	job.Status = StatusUploading

	started := time.Now()
	res, err := c.uploader.Upload(ctx, job.Filename, job.Segment.Blob.MediaType, job.Segment.Blob.Data)
	if err != nil {
		job.Status = StatusFailed
		job.Err = errors.WithMessage(ErrUploadFailed, err.Error())
		appstats.OnUploadFailed()
		log.WithField("filename", job.Filename).Errorf("clip upload failed: %s", err)
		return
	}

	job.Status = StatusUploaded
	job.Remote = res
	appstats.OnUploadCompleted(time.Since(started))

	id, err := c.saver.SaveClip(ctx, &store.ClipRecord{
		URL:       res.URL,
		Key:       res.Key,
		Filename:  job.Filename,
		SizeBytes: job.Segment.Blob.Size(),
		MimeType:  job.Segment.Blob.MediaType,
		OwnerID:   ownerID,
	})
	if err != nil {
		job.Status = StatusFailed
		job.Err = errors.WithMessage(ErrMetadataSaveFailed, err.Error())
		appstats.OnMetadataSaveFailed()
		log.WithField("key", res.Key).
			Errorf("clip record save failed, remote file orphaned: %s", err)
		return
	}

	job.Status = StatusSaved
	job.RecordID = id
}
