package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"loreforge/internal/atom"
	"loreforge/internal/fileutil"
	"loreforge/internal/logging"
	"loreforge/internal/services"
	"loreforge/internal/services/youtube"
)

// Upload failures, each with its own exit code.
var (
	ErrVideoMissing = errors.New("video not found")
	ErrAtomMissing  = errors.New("validated atom unavailable")
	ErrUploadFailed = errors.New("upload failed")
	ErrNoVideoID    = errors.New("upload returned no video id")
)

// ExitCode maps an Upload error onto the upload command exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrVideoMissing):
		return 2
	case errors.Is(err, ErrAtomMissing):
		return 3
	case errors.Is(err, ErrUploadFailed):
		return 4
	case errors.Is(err, ErrNoVideoID):
		return 5
	case errors.Is(err, ErrDuplicatePublish):
		return 6
	default:
		return 1
	}
}

// VideoUploader sends a video to the platform.
type VideoUploader interface {
	Upload(ctx context.Context, videoPath string, meta youtube.Metadata) (youtube.Video, error)
}

// UploaderOptions carries upload defaults.
type UploaderOptions struct {
	Privacy        string
	CategoryID     string
	AllowDuplicate bool
}

// Uploader publishes the validated atom of a day.
type Uploader struct {
	atoms    *atom.Store
	registry Registry
	videos   VideoUploader
	opts     UploaderOptions
	logger   *slog.Logger
	now      func() time.Time
}

// NewUploader builds an uploader. videos may be nil when only dry runs are
// made.
func NewUploader(atoms *atom.Store, registry Registry, videos VideoUploader, opts UploaderOptions, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.CategoryID == "" {
		opts.CategoryID = "20"
	}
	opts.Privacy = youtube.NormalizePrivacy(opts.Privacy)
	return &Uploader{
		atoms:    atoms,
		registry: registry,
		videos:   videos,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "upload"),
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (u *Uploader) WithClock(now func() time.Time) *Uploader {
	if now != nil {
		u.now = now
	}
	return u
}

// UploadRequest selects what to publish.
type UploadRequest struct {
	Day            string
	VideoPath      string
	DryRun         bool
	AllowDuplicate bool
}

// UploadResult reports a publish or a dry run.
type UploadResult struct {
	Day         string           `json:"day"`
	ContentID   string           `json:"content_id"`
	PublishHash string           `json:"publish_hash"`
	Fingerprint Fingerprint      `json:"fingerprint"`
	Metadata    youtube.Metadata `json:"metadata"`
	VideoID     string           `json:"video_id,omitempty"`
	URL         string           `json:"url,omitempty"`
	DryRun      bool             `json:"dry_run"`
	Prior       *Record          `json:"prior,omitempty"`
}

// Upload fingerprints the video, refuses duplicates, uploads, and appends the
// registry record.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	result := UploadResult{Day: req.Day, DryRun: req.DryRun}
	videoPath := req.VideoPath
	if abs, err := filepath.Abs(videoPath); err == nil {
		videoPath = abs
	}
	if !fileutil.Exists(videoPath) {
		return result, fmt.Errorf("%w: %s", ErrVideoMissing, videoPath)
	}
	a, err := u.atoms.Load(atom.Validated, req.Day)
	if err != nil {
		return result, fmt.Errorf("%w for day %s: %w", ErrAtomMissing, req.Day, err)
	}
	videoSHA, _, err := fileutil.SHA256File(videoPath)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "upload", "hash video", videoPath, err)
	}

	fp := BuildFingerprint(a, videoPath, videoSHA)
	hash, err := fp.Hash()
	if err != nil {
		return result, err
	}
	result.ContentID = strings.TrimSpace(fp.ContentID)
	result.PublishHash = hash
	result.Fingerprint = fp
	result.Metadata = youtube.Metadata{
		Title:       Title(a),
		Description: Description(a),
		Tags:        Tags(),
		CategoryID:  u.opts.CategoryID,
		Privacy:     u.opts.Privacy,
	}

	guard := NewGuard(u.registry, u.opts.AllowDuplicate || req.AllowDuplicate, u.logger)
	prior, err := guard.Check(ctx, fp, hash)
	result.Prior = prior
	if err != nil {
		return result, err
	}
	if req.DryRun {
		u.logger.Info("dry run, upload skipped", logging.Args(
			logging.String(logging.FieldDay, req.Day),
			logging.String(logging.FieldContentID, result.ContentID),
			logging.String("publish_hash", hash),
		)...)
		return result, nil
	}
	if u.videos == nil {
		return result, services.Wrap(services.ErrConfiguration, "upload", "upload", "no video uploader configured", nil)
	}

	video, err := u.videos.Upload(ctx, videoPath, result.Metadata)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if strings.TrimSpace(video.ID) == "" {
		return result, ErrNoVideoID
	}
	result.VideoID = video.ID
	result.URL = VideoURL(video.ID)
	u.logger.Info("video uploaded", logging.Args(
		logging.String(logging.FieldDay, req.Day),
		logging.String(logging.FieldContentID, result.ContentID),
		logging.String("video_id", video.ID),
		logging.String("privacy", u.opts.Privacy),
		logging.String("video_path", videoPath),
	)...)

	if err := u.registry.Append(ctx, NewRecord(fp, hash, video.ID, u.now())); err != nil {
		logging.ErrorWithContext(u.logger, "registry append failed after upload", "registry_append_failed",
			logging.String(logging.FieldDay, req.Day),
			logging.String("video_id", video.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next upload of this content will not be blocked"),
			logging.String(logging.FieldErrorHint, "append the record to the registry by hand"),
		)
		return result, err
	}
	return result, nil
}
