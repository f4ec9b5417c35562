package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mx-roomstats-go/internal/config"
	"github.com/mx-roomstats-go/internal/matrix"
	"github.com/mx-roomstats-go/internal/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	downloadPath  = "/_matrix/client/v1/media/download"
	thumbnailPath = "/_matrix/client/v1/media/thumbnail"

	// FitCrop and FitScale are the two thumbnail fit modes.
	FitCrop  = "crop"
	FitScale = "scale"
)

// Blob is a locally usable handle to a fetched binary resource.
type Blob struct {
	Data        []byte
	ContentType string
}

// ThumbnailSpec requests a specific rendition of a resource. A nil spec
// requests the full-resolution download.
type ThumbnailSpec struct {
	Width  int
	Height int
	Method string // crop or scale, defaults to crop
}

// Resolver resolves content identifiers to blobs, performing at most one
// network fetch per distinct (identifier, dimensions, fit) combination
// for the life of the process. Concurrent callers for the same key share
// a single in-flight fetch; resolved entries are cached until Clear.
type Resolver struct {
	entries    *cache.Cache
	maxEntries int
	avatarSize int

	mu      sync.Mutex
	pending map[string]*fetchCall

	httpClient *http.Client
	limiter    middleware.FetchLimiter
	metrics    *middleware.Metrics
	logger     *logrus.Logger
}

type fetchCall struct {
	done chan struct{}
	blob *Blob
}

// NewResolver creates a media resolver with a fresh cache
func NewResolver(cfg *config.MediaConfig, limiter middleware.FetchLimiter, metrics *middleware.Metrics, logger *logrus.Logger) *Resolver {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	avatarSize := cfg.AvatarSize
	if avatarSize <= 0 {
		avatarSize = 64
	}

	return &Resolver{
		entries:    cache.New(cache.NoExpiration, 0),
		maxEntries: cfg.MaxEntries,
		avatarSize: avatarSize,
		pending:    make(map[string]*fetchCall),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

// Resolve returns a blob for the given content identifier, or nil when
// the media is unavailable. Media display is best effort: failures are
// logged, never returned.
func (r *Resolver) Resolve(ctx context.Context, client matrix.Client, contentID string, thumb *ThumbnailSpec) *Blob {
	if client == nil || client.AccessToken() == "" {
		r.logger.Warn("Media resolve without authenticated client")
		return nil
	}

	uri, err := matrix.ParseContentURI(contentID)
	if err != nil {
		r.logger.WithField("content_id", contentID).Debug("Rejected malformed content identifier")
		return nil
	}

	if thumb != nil {
		t := *thumb
		if t.Method == "" {
			t.Method = FitCrop
		}
		thumb = &t
	}

	key := cacheKey(contentID, thumb)

	if val, found := r.entries.Get(key); found {
		r.metrics.RecordMediaCacheHit()
		return val.(*Blob)
	}

	r.mu.Lock()
	if call, ok := r.pending[key]; ok {
		r.mu.Unlock()
		r.metrics.RecordMediaCoalesced()
		select {
		case <-call.done:
			return call.blob
		case <-ctx.Done():
			return nil
		}
	}
	call := &fetchCall{done: make(chan struct{})}
	r.pending[key] = call
	r.mu.Unlock()

	r.metrics.RecordMediaCacheMiss()
	call.blob = r.fetch(ctx, client, uri, thumb)

	// Populate the cache before releasing the pending entry so late
	// callers hit one or the other, never a duplicate fetch.
	if call.blob != nil {
		if r.maxEntries > 0 && r.entries.ItemCount() >= r.maxEntries {
			r.logger.WithField("max_entries", r.maxEntries).Warn("Media cache full, flushing")
			r.entries.Flush()
		}
		r.entries.Set(key, call.blob, cache.NoExpiration)
	}

	// The pending entry is cleared on success and failure alike.
	r.mu.Lock()
	delete(r.pending, key)
	r.mu.Unlock()
	close(call.done)

	return call.blob
}

// ResolveAvatar resolves a small square crop suitable for avatars
func (r *Resolver) ResolveAvatar(ctx context.Context, client matrix.Client, contentID string) *Blob {
	return r.Resolve(ctx, client, contentID, &ThumbnailSpec{
		Width:  r.avatarSize,
		Height: r.avatarSize,
		Method: FitCrop,
	})
}

// Clear drops all resolved entries
func (r *Resolver) Clear() {
	r.entries.Flush()
	r.logger.Info("Media cache cleared")
}

// CachedEntries returns the number of resolved entries
func (r *Resolver) CachedEntries() int {
	return r.entries.ItemCount()
}

func (r *Resolver) fetch(ctx context.Context, client matrix.Client, uri matrix.ContentURI, thumb *ThumbnailSpec) *Blob {
	endpoint := buildEndpoint(client.BaseURL(), uri, thumb)

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, client.BaseURL()); err != nil {
			r.logger.WithError(err).WithField("content_id", uri.String()).Warn("Media fetch aborted by limiter")
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		r.logger.WithError(err).WithField("content_id", uri.String()).Warn("Media request build failed")
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+client.AccessToken())

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.metrics.RecordMediaFetch("error", time.Since(start))
		r.logger.WithError(err).WithField("content_id", uri.String()).Warn("Media fetch failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.metrics.RecordMediaFetch("error", time.Since(start))
		r.logger.WithFields(logrus.Fields{
			"content_id": uri.String(),
			"status":     resp.StatusCode,
		}).Warn("Media fetch returned non-success status")
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		r.metrics.RecordMediaFetch("error", time.Since(start))
		r.logger.WithError(err).WithField("content_id", uri.String()).Warn("Media body read failed")
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	r.metrics.RecordMediaFetch("ok", time.Since(start))

	return &Blob{
		Data:        data,
		ContentType: contentType,
	}
}

func buildEndpoint(baseURL string, uri matrix.ContentURI, thumb *ThumbnailSpec) string {
	server := url.PathEscape(uri.Server)
	mediaID := url.PathEscape(uri.MediaID)

	if thumb == nil {
		return fmt.Sprintf("%s%s/%s/%s", baseURL, downloadPath, server, mediaID)
	}

	query := url.Values{}
	query.Set("width", fmt.Sprintf("%d", thumb.Width))
	query.Set("height", fmt.Sprintf("%d", thumb.Height))
	query.Set("method", thumb.Method)
	return fmt.Sprintf("%s%s/%s/%s?%s", baseURL, thumbnailPath, server, mediaID, query.Encode())
}

func cacheKey(contentID string, thumb *ThumbnailSpec) string {
	if thumb == nil {
		return contentID
	}
	return fmt.Sprintf("%s|%dx%d|%s", contentID, thumb.Width, thumb.Height, thumb.Method)
}
