package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMinio struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeMinio() *fakeMinio {
	return &fakeMinio{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeMinio) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		io.Copy(io.Discard, r.Body)
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		f.types[path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeMinioStore(t *testing.T, backend *fakeMinio) (*MinioStore, string) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store, err := NewMinioStore(context.Background(), MinioConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Region:    "us-east-1",
		Bucket:    "estate-photos",
		AccessKey: "minio-access",
		SecretKey: "minio-secret",
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	return store, srv.URL
}

func TestMinioStoreCreatesBucket(t *testing.T) {
	backend := newFakeMinio()
	newFakeMinioStore(t, backend)
	assert.True(t, backend.buckets["estate-photos"])
}

func TestMinioStorePutAndDelete(t *testing.T) {
	backend := newFakeMinio()
	store, base := newFakeMinioStore(t, backend)

	url, err := store.Put(context.Background(), "listings/abc.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, base+"/estate-photos/listings/abc.png", url)
	assert.Equal(t, []byte("png"), backend.objects["estate-photos/listings/abc.png"])
	assert.Equal(t, "image/png", backend.types["estate-photos/listings/abc.png"])

	require.NoError(t, store.Delete(context.Background(), "listings/abc.png"))
	assert.NotContains(t, backend.objects, "estate-photos/listings/abc.png")
}
