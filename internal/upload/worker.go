package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/pkg/errors"

	"github.com/interviewdeck/clip-recorder/internal/config"
)

// WorkerClient talks to the edge upload worker: multipart POST /upload
// to store a clip, DELETE /files/<key> to remove one.
type WorkerClient struct {
	baseURL string
	client  *http.Client
}

var _ Uploader = (*WorkerClient)(nil)

func NewWorkerClient(cfg config.Worker) *WorkerClient {
	return &WorkerClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type workerUploadResponse struct {
	URL string `json:"url"`
	Key string `json:"key,omitempty"`
}

func (w *WorkerClient) Upload(ctx context.Context, filename, mimeType string, data []byte) (UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	hdr.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return UploadResult{}, errors.Wrap(err, "multipart part")
	}
	if _, err := part.Write(data); err != nil {
		return UploadResult{}, errors.Wrap(err, "multipart write")
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, errors.Wrap(err, "multipart close")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/upload", &body)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return UploadResult{}, errors.Wrap(err, "upload request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return UploadResult{}, errors.Errorf("upload failed: %s: %s", resp.Status, msg)
	}

	var out workerUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return UploadResult{}, errors.Wrap(err, "decode upload response")
	}
	if out.URL == "" {
		return UploadResult{}, errors.New("upload response missing url")
	}

	key := out.Key
	if key == "" {
		key = keyFromURL(out.URL)
	}

	return UploadResult{URL: out.URL, Key: key}, nil
}

func (w *WorkerClient) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, w.baseURL+"/files/"+key, nil)
	if err != nil {
		return err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "delete request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errors.Errorf("delete failed: %s", resp.Status)
	}
	return nil
}

// keyFromURL recovers the storage key from a public URL when the worker
// omits it: everything after the "/files/" path segment.
func keyFromURL(url string) string {
	const marker = "/files/"
	if i := strings.Index(url, marker); i >= 0 {
		return url[i+len(marker):]
	}
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}
