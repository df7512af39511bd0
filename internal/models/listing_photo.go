package models

import (
	"errors"
	"time"
)

type StorageKind string

const (
	StorageRemote StorageKind = "remote"
	StorageLocal  StorageKind = "local"
)

// PhotoLocation says where the bytes of a photo live. Exactly one of the
// remote or local references is set, matching Kind.
type PhotoLocation struct {
	Kind      StorageKind `json:"kind"`
	RemoteURL string      `json:"remote_url,omitempty"`
	RemoteKey string      `json:"remote_key,omitempty"`
	LocalName string      `json:"local_name,omitempty"`
}

func RemoteLocation(url, key string) PhotoLocation {
	return PhotoLocation{Kind: StorageRemote, RemoteURL: url, RemoteKey: key}
}

func LocalLocation(name string) PhotoLocation {
	return PhotoLocation{Kind: StorageLocal, LocalName: name}
}

func (l PhotoLocation) Validate() error {
	switch l.Kind {
	case StorageRemote:
		if l.RemoteURL == "" || l.LocalName != "" {
			return errors.New("remote photo must carry a url and no local name")
		}
	case StorageLocal:
		if l.LocalName == "" || l.RemoteURL != "" || l.RemoteKey != "" {
			return errors.New("local photo must carry a local name and no remote reference")
		}
	default:
		return errors.New("unknown photo storage kind: " + string(l.Kind))
	}
	return nil
}

type ListingPhoto struct {
	ID        int64         `json:"id"`
	ListingID int64         `json:"listing_id"`
	Location  PhotoLocation `json:"location"`
	MimeType  string        `json:"mime_type"`
	SizeBytes int64         `json:"size_bytes"`
	CreatedAt time.Time     `json:"created_at"`
}
