package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"loreforge/internal/logging"
)

// ErrDuplicatePublish is returned when an upload matches an earlier publish
// and no override is set.
var ErrDuplicatePublish = errors.New("duplicate publish blocked")

// Guard checks uploads against the registry.
type Guard struct {
	registry       Registry
	allowDuplicate bool
	logger         *slog.Logger
}

// NewGuard builds a guard over registry. allowDuplicate turns a block into a
// logged warning.
func NewGuard(registry Registry, allowDuplicate bool, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Guard{
		registry:       registry,
		allowDuplicate: allowDuplicate,
		logger:         logging.NewComponentLogger(logger, "publish"),
	}
}

// Check returns the earlier matching record, if any. A match without the
// override fails with ErrDuplicatePublish naming the prior video.
func (g *Guard) Check(ctx context.Context, fp Fingerprint, hash string) (*Record, error) {
	prior, err := g.registry.Lookup(ctx, hash, fp.ContentID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}

	priorURL := "(unknown)"
	if prior.YouTubeVideoID != "" {
		priorURL = VideoURL(prior.YouTubeVideoID)
	}
	contentID := fp.ContentID
	if contentID == "" {
		contentID = "(none)"
	}

	if g.allowDuplicate {
		logging.WarnWithContext(g.logger, "duplicate publish allowed by override", "duplicate_publish_override",
			logging.String(logging.FieldDay, fp.Day),
			logging.String(logging.FieldContentID, contentID),
			logging.String("prior_video", priorURL),
			logging.String(logging.FieldImpact, "a second copy of this content will be uploaded"),
		)
		return prior, nil
	}
	return prior, fmt.Errorf("%w: day=%s content_id=%s hash=%s prior_video=%s",
		ErrDuplicatePublish, fp.Day, contentID, shortHash(hash), priorURL)
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
