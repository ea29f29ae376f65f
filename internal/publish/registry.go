package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loreforge/internal/services"
)

// Registry backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Record is one completed publish.
type Record struct {
	PublishedUTC   string      `json:"published_utc"`
	Day            string      `json:"day"`
	ContentID      string      `json:"content_id"`
	PublishHash    string      `json:"publish_hash"`
	YouTubeVideoID string      `json:"youtube_video_id"`
	YouTubeURL     string      `json:"youtube_url"`
	VideoSHA256    string      `json:"video_sha256"`
	VideoPath      string      `json:"video_path"`
	Fingerprint    Fingerprint `json:"fingerprint"`
}

// NewRecord builds the registry entry for a finished upload.
func NewRecord(fp Fingerprint, hash, videoID string, at time.Time) Record {
	return Record{
		PublishedUTC:   at.UTC().Format(time.RFC3339),
		Day:            fp.Day,
		ContentID:      fp.ContentID,
		PublishHash:    hash,
		YouTubeVideoID: videoID,
		YouTubeURL:     VideoURL(videoID),
		VideoSHA256:    fp.VideoSHA256,
		VideoPath:      fp.VideoPath,
		Fingerprint:    fp,
	}
}

// Registry stores publish records.
type Registry interface {
	// Lookup returns the first record whose publish hash equals hash, or
	// whose content id equals a non-empty contentID. It returns nil when
	// neither matches.
	Lookup(ctx context.Context, hash, contentID string) (*Record, error)
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// OpenRegistry opens the registry backend at path.
func OpenRegistry(backend, path string) (Registry, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendJSON:
		return NewJSONRegistry(path), nil
	case BackendSQLite:
		return OpenSQLiteRegistry(path)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "publish", "open registry",
			fmt.Sprintf("unknown registry backend %q", backend), nil)
	}
}

func matches(rec Record, hash, contentID string) bool {
	if rec.PublishHash == hash {
		return true
	}
	return contentID != "" && rec.ContentID == contentID
}
