package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"estateBack/internal/models"
)

const (
	remoteKeyPrefix      = "listings"
	defaultUploadTimeout = 5 * time.Second
)

// Logger provides minimal logging required by the storage layer.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// RemoteStore is an object store that hands out public URLs.
type RemoteStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// RemoteResult is the outcome of one remote upload attempt.
type RemoteResult struct {
	URL string
	Key string
	Err error
}

func (r RemoteResult) OK() bool {
	return r.Err == nil
}

// Resolver stores photo bytes remotely when it can and locally when it
// cannot. Each Store call produces exactly one stored copy.
type Resolver struct {
	Remote        RemoteStore
	Local         *LocalStore
	UploadTimeout time.Duration
	Log           Logger
}

func (r *Resolver) Store(ctx context.Context, data []byte, mimeType, filenameHint string) (models.PhotoLocation, error) {
	ext := photoExtension(filenameHint, mimeType)

	res := r.tryRemote(ctx, data, mimeType, ext)
	if res.OK() {
		return models.RemoteLocation(res.URL, res.Key), nil
	}
	if r.Remote != nil {
		r.Log.Warnf("remote upload of %q failed, falling back to local storage: %v", filenameHint, res.Err)
		r.discardRemote(ctx, res.Key)
	}

	name, err := r.Local.Save(data, ext)
	if err != nil {
		r.Log.Errorf("local save of %q failed: %v", filenameHint, err)
		return models.PhotoLocation{}, fmt.Errorf("%w: remote: %v; local: %w", models.ErrStorage, res.Err, err)
	}
	return models.LocalLocation(name), nil
}

func (r *Resolver) tryRemote(ctx context.Context, data []byte, mimeType, ext string) RemoteResult {
	if r.Remote == nil {
		return RemoteResult{Err: fmt.Errorf("no remote store configured")}
	}
	ctx, cancel := context.WithTimeout(ctx, r.uploadTimeout())
	defer cancel()

	key := fmt.Sprintf("%s/%s%s", remoteKeyPrefix, uuid.New().String(), ext)
	url, err := r.Remote.Put(ctx, key, data, mimeType)
	if err != nil {
		return RemoteResult{Key: key, Err: err}
	}
	return RemoteResult{URL: url, Key: key}
}

// discardRemote deletes an object whose upload reported failure. A PUT that
// outlived its deadline may still have landed.
func (r *Resolver) discardRemote(ctx context.Context, key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.uploadTimeout())
	defer cancel()
	if err := r.Remote.Delete(ctx, key); err != nil {
		r.Log.Warnf("cleanup of remote object %s failed: %v", key, err)
	}
}

func (r *Resolver) uploadTimeout() time.Duration {
	if r.UploadTimeout <= 0 {
		return defaultUploadTimeout
	}
	return r.UploadTimeout
}

// Open returns the bytes of a locally stored photo.
func (r *Resolver) Open(ctx context.Context, loc models.PhotoLocation) ([]byte, error) {
	if loc.Kind != models.StorageLocal {
		return nil, fmt.Errorf("photo is not stored locally: %w", models.ErrNotFound)
	}
	return r.Local.Read(loc.LocalName)
}

// Remove deletes the stored copy wherever it lives.
func (r *Resolver) Remove(ctx context.Context, loc models.PhotoLocation) error {
	switch loc.Kind {
	case models.StorageLocal:
		return r.Local.Remove(loc.LocalName)
	case models.StorageRemote:
		if loc.RemoteKey == "" {
			return fmt.Errorf("remote photo %s has no object key", loc.RemoteURL)
		}
		if r.Remote == nil {
			return fmt.Errorf("no remote store configured to delete %s", loc.RemoteKey)
		}
		return r.Remote.Delete(ctx, loc.RemoteKey)
	}
	return fmt.Errorf("unknown photo storage kind %q", loc.Kind)
}

var preferredExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/heic": ".heic",
}

func photoExtension(filename, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 8 && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	base, _, _ := mime.ParseMediaType(mimeType)
	if ext, ok := preferredExtensions[base]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
