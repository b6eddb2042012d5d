package upload

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/interviewdeck/clip-recorder/internal/blob"
	"github.com/interviewdeck/clip-recorder/internal/recorder"
	"github.com/interviewdeck/clip-recorder/internal/store"
)

type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
	deletes []string
	failOn  map[string]bool
}

func (u *fakeUploader) Upload(ctx context.Context, filename, mimeType string, data []byte) (UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, filename)
	if u.failOn[filename] {
		return UploadResult{}, errors.New("boom")
	}
	return UploadResult{
		URL: "https://files.example.com/files/" + filename,
		Key: filename,
	}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deletes = append(u.deletes, key)
	return nil
}

var _ Uploader = (*fakeUploader)(nil)

type fakeSaver struct {
	mu     sync.Mutex
	saved  []*store.ClipRecord
	failOn map[string]bool
}

func (s *fakeSaver) SaveClip(ctx context.Context, rec *store.ClipRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[rec.Filename] {
		return "", errors.New("db down")
	}
	s.saved = append(s.saved, rec)
	return fmt.Sprintf("id-%d", len(s.saved)), nil
}

var _ ClipSaver = (*fakeSaver)(nil)

func makeSegments(n int) []recorder.Segment {
	reg := blob.NewRegistry()
	segs := make([]recorder.Segment, n)
	base := time.Now()
	for i := range segs {
		b := &blob.Blob{Data: []byte("webm-data"), MediaType: "video/webm"}
		segs[i] = recorder.Segment{
			Blob:      b,
			Handle:    reg.Create(b),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	return segs
}

func TestUploadBatchAllSucceed(t *testing.T) {
	uploader := &fakeUploader{}
	saver := &fakeSaver{}
	coord := NewCoordinator(uploader, saver)

	var mu sync.Mutex
	var progress []float64
	jobs := coord.UploadBatch(context.Background(), makeSegments(3), "user-1",
		func(p float64, completed, total int) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		})

	assert.Len(t, jobs, 3)
	for _, job := range jobs {
		assert.Equal(t, StatusSaved, job.Status)
		assert.NoError(t, job.Err)
		assert.NotEmpty(t, job.RecordID)
	}

	assert.Len(t, saver.saved, 3)
	for _, rec := range saver.saved {
		assert.Equal(t, "user-1", rec.OwnerID)
		assert.Equal(t, "video/webm", rec.MimeType)
		assert.NotEmpty(t, rec.Key)
	}

	assert.Len(t, progress, 3)
	assert.InDelta(t, 100, progress[len(progress)-1], 0.001)
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1], "progress must be monotonic")
	}
}

// One failing upload out of three: the batch still completes, progress
// tops out at 2/3 and two records are persisted.
func TestUploadBatchPartialFailure(t *testing.T) {
	segs := makeSegments(3)
	failing := fmt.Sprintf("clip-%d.webm", segs[1].CreatedAt.UnixMilli())

	uploader := &fakeUploader{failOn: map[string]bool{failing: true}}
	saver := &fakeSaver{}
	coord := NewCoordinator(uploader, saver)

	var mu sync.Mutex
	var last float64
	jobs := coord.UploadBatch(context.Background(), segs, "user-1",
		func(p float64, completed, total int) {
			mu.Lock()
			last = p
			mu.Unlock()
		})

	assert.Equal(t, StatusSaved, jobs[0].Status)
	assert.Equal(t, StatusFailed, jobs[1].Status)
	assert.ErrorIs(t, jobs[1].Err, ErrUploadFailed)
	assert.Equal(t, StatusSaved, jobs[2].Status)

	assert.Len(t, saver.saved, 2)
	assert.InDelta(t, 66.67, last, 0.01)
	assert.Len(t, uploader.uploads, 3, "every segment is attempted")
}

func TestUploadBatchMetadataFailureLeavesOrphan(t *testing.T) {
	segs := makeSegments(2)
	failing := fmt.Sprintf("clip-%d.webm", segs[0].CreatedAt.UnixMilli())

	uploader := &fakeUploader{}
	saver := &fakeSaver{failOn: map[string]bool{failing: true}}
	coord := NewCoordinator(uploader, saver)

	jobs := coord.UploadBatch(context.Background(), segs, "user-1", nil)

	assert.Equal(t, StatusFailed, jobs[0].Status)
	assert.ErrorIs(t, jobs[0].Err, ErrMetadataSaveFailed)
	assert.Equal(t, failing, jobs[0].Remote.Key, "remote reference kept for the orphan")
	assert.Empty(t, uploader.deletes, "no compensating delete")

	assert.Equal(t, StatusSaved, jobs[1].Status)
	assert.Len(t, saver.saved, 1)
}

func TestUploadBatchEmpty(t *testing.T) {
	coord := NewCoordinator(&fakeUploader{}, &fakeSaver{})

	called := 0
	jobs := coord.UploadBatch(context.Background(), nil, "user-1",
		func(p float64, completed, total int) {
			called++
			assert.InDelta(t, 100, p, 0.001)
		})

	assert.Empty(t, jobs)
	assert.Equal(t, 1, called)
}
