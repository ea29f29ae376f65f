package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"loreforge/internal/services"
)

const (
	defaultUploadURL      = "https://www.googleapis.com/upload/youtube/v3/videos"
	defaultRequestTimeout = 90 * time.Second
	defaultPrivacy        = "private"
)

// Config captures the upload settings.
type Config struct {
	UploadURL      string
	TimeoutSeconds int
}

// Metadata describes the video being uploaded.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string
}

// Video is the subset of the videos.insert response the pipeline uses.
type Video struct {
	ID     string `json:"id"`
	Status struct {
		UploadStatus  string `json:"uploadStatus"`
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
}

// Client uploads videos.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the authorized HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a client whose requests are authorized by ts.
func New(ctx context.Context, cfg Config, ts oauth2.TokenSource, opts ...Option) *Client {
	cfg.UploadURL = strings.TrimSpace(cfg.UploadURL)
	if cfg.UploadURL == "" {
		cfg.UploadURL = defaultUploadURL
	}
	timeout := defaultRequestTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = timeout
	client := &Client{cfg: cfg, httpClient: httpClient}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// NormalizePrivacy maps privacy onto private, unlisted, or public, defaulting
// to private.
func NormalizePrivacy(privacy string) string {
	switch p := strings.ToLower(strings.TrimSpace(privacy)); p {
	case "private", "unlisted", "public":
		return p
	default:
		return defaultPrivacy
	}
}

type snippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CategoryID  string   `json:"categoryId"`
	Tags        []string `json:"tags,omitempty"`
}

type status struct {
	PrivacyStatus           string `json:"privacyStatus"`
	SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
}

type insertBody struct {
	Snippet snippet `json:"snippet"`
	Status  status  `json:"status"`
}

// Upload sends videoPath with meta and returns the created video. A
// response without an id is returned as is; callers decide how to treat it.
func (c *Client) Upload(ctx context.Context, videoPath string, meta Metadata) (Video, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return Video{}, services.Wrap(services.ErrNotFound, "youtube", "upload", "open "+videoPath, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return Video{}, services.Wrap(services.ErrNotFound, "youtube", "upload", "stat "+videoPath, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(videoPath))
	if !strings.HasPrefix(contentType, "video/") {
		contentType = "video/*"
	}

	session, err := c.startSession(ctx, meta, info.Size(), contentType)
	if err != nil {
		return Video{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, file)
	if err != nil {
		return Video{}, fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", contentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Video{}, services.Wrap(services.ErrExternalTool, "youtube", "upload", "upload request failed", err)
	}
	defer resp.Body.Close()
	body, err := readBody(resp, "upload")
	if err != nil {
		return Video{}, err
	}
	var video Video
	if err := json.Unmarshal(body, &video); err != nil {
		return Video{}, services.Wrap(services.ErrExternalTool, "youtube", "upload", "decode response", err)
	}
	return video, nil
}

func (c *Client) startSession(ctx context.Context, meta Metadata, size int64, contentType string) (string, error) {
	payload, err := json.Marshal(insertBody{
		Snippet: snippet{
			Title:       meta.Title,
			Description: meta.Description,
			CategoryID:  meta.CategoryID,
			Tags:        meta.Tags,
		},
		Status: status{PrivacyStatus: NormalizePrivacy(meta.Privacy)},
	})
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	endpoint, err := url.Parse(c.cfg.UploadURL)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "youtube", "session", "invalid upload url", err)
	}
	query := endpoint.Query()
	query.Set("uploadType", "resumable")
	query.Set("part", "snippet,status")
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", contentType)
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "youtube", "session", "session request failed", err)
	}
	defer resp.Body.Close()
	if _, err := readBody(resp, "session"); err != nil {
		return "", err
	}
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return "", services.Wrap(services.ErrExternalTool, "youtube", "session", "response carried no upload location", nil)
	}
	return location, nil
}

func readBody(resp *http.Response, operation string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "youtube", operation, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > 512 {
			excerpt = excerpt[:512]
		}
		return nil, services.Wrap(services.ErrExternalTool, "youtube", operation,
			fmt.Sprintf("http=%d body=%s", resp.StatusCode, excerpt), nil)
	}
	return body, nil
}
