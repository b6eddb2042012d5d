package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/interviewdeck/clip-recorder/internal/config"
)

func newTestWorker(t *testing.T, handler http.HandlerFunc) (*WorkerClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWorkerClient(config.Worker{BaseURL: srv.URL, Timeout: 5 * time.Second}), srv
}

func TestWorkerUpload(t *testing.T) {
	var gotPath, gotFilename, gotMime string
	var gotBody []byte

	client, _ := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		gotFilename = header.Filename
		gotMime = header.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(file)

		json.NewEncoder(w).Encode(map[string]string{
			"url": "https://files.example.com/files/abc123.webm",
			"key": "abc123.webm",
		})
	})

	res, err := client.Upload(context.Background(), "clip-1.webm", "video/webm", []byte("webm-bytes"))

	assert.NoError(t, err)
	assert.Equal(t, "/upload", gotPath)
	assert.Equal(t, "clip-1.webm", gotFilename)
	assert.Equal(t, "video/webm", gotMime)
	assert.Equal(t, []byte("webm-bytes"), gotBody)
	assert.Equal(t, "https://files.example.com/files/abc123.webm", res.URL)
	assert.Equal(t, "abc123.webm", res.Key)
}

func TestWorkerUploadDerivesKeyFromURL(t *testing.T) {
	client, _ := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"url": "https://files.example.com/files/xyz789.webm",
		})
	})

	res, err := client.Upload(context.Background(), "clip-1.webm", "video/webm", []byte("x"))

	assert.NoError(t, err)
	assert.Equal(t, "xyz789.webm", res.Key)
}

func TestWorkerUploadServerError(t *testing.T) {
	client, _ := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage unavailable", http.StatusBadGateway)
	})

	_, err := client.Upload(context.Background(), "clip-1.webm", "video/webm", []byte("x"))
	assert.Error(t, err)
}

func TestWorkerDelete(t *testing.T) {
	var gotMethod, gotPath string

	client, _ := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.Delete(context.Background(), "abc123.webm")

	assert.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/files/abc123.webm", gotPath)
}

func TestKeyFromURL(t *testing.T) {
	assert.Equal(t, "abc.webm", keyFromURL("https://x.example.com/files/abc.webm"))
	assert.Equal(t, "nested/abc.webm", keyFromURL("https://x.example.com/files/nested/abc.webm"))
	assert.Equal(t, "abc.webm", keyFromURL("https://x.example.com/abc.webm"))
}
