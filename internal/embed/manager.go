package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/cachekey"
	"github.com/JakeFAU/embedctl/internal/metrics"
)

// Cache event types.
const (
	EventCleared   = "oembed.cache.cleared"
	EventTriggered = "oembed.cache.triggered"
)

// CacheEvent is published after cache mutations.
type CacheEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	PostID     int64     `json:"post_id,omitempty"`
	PostMeta   int       `json:"post_meta"`
	CachePosts int       `json:"cache_posts"`
	Transients int       `json:"transients"`
	ExportURI  string    `json:"export_uri,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// IDGenerator produces event identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// ManagerConfig tunes the cache manager.
type ManagerConfig struct {
	// CachePostTypes lists post types whose embeds may be cached.
	CachePostTypes []string
	// Topic receives cache events.
	Topic string
	// ExportPrefix is prepended to export object names.
	ExportPrefix string
}

// ManagerDeps are the cache manager collaborators. Cache, Posts and Resolver are required.
type ManagerDeps struct {
	Cache     CacheStore
	Posts     PostResolver
	Resolver  *Resolver
	Blobs     BlobStore
	Publisher Publisher
	IDs       IDGenerator
	Clock     Clock
}

// Manager implements the cache maintenance operations.
type Manager struct {
	cache     CacheStore
	posts     PostResolver
	resolver  *Resolver
	blobs     BlobStore
	publisher Publisher
	ids       IDGenerator
	clock     Clock
	cfg       ManagerConfig
	logger    *zap.Logger
}

// ErrExportUnavailable is returned when no blob store is configured.
var ErrExportUnavailable = errors.New("cache export is not configured")

// NewManager wires a Manager.
func NewManager(deps ManagerDeps, cfg ManagerConfig, logger *zap.Logger) (*Manager, error) {
	if deps.Cache == nil {
		return nil, errors.New("cache store is required")
	}
	if deps.Posts == nil {
		return nil, errors.New("post resolver is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cache:     deps.Cache,
		posts:     deps.Posts,
		resolver:  deps.Resolver,
		blobs:     deps.Blobs,
		publisher: deps.Publisher,
		ids:       deps.IDs,
		clock:     deps.Clock,
		cfg:       cfg,
		logger:    logger,
	}
	if m.clock == nil {
		m.clock = utcClock{}
	}
	return m, nil
}

// ClearPost removes the cached embeds of one post and returns how many were removed.
func (m *Manager) ClearPost(ctx context.Context, postID int64) (int, error) {
	if _, err := m.requirePost(ctx, postID); err != nil {
		return 0, err
	}
	n, err := m.cache.DeleteForPost(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("delete post %d caches: %w", postID, err)
	}
	metrics.ObserveCleared(ShapePostMeta, n)
	if n > 0 {
		m.publish(ctx, CacheEvent{Type: EventCleared, PostID: postID, PostMeta: n})
	}
	return n, nil
}

// ClearAll sweeps every cache shape. When export is set a backup is written first and
// its URI returned.
func (m *Manager) ClearAll(ctx context.Context, export bool) (SweepReport, string, error) {
	var uri string
	if export {
		var err error
		uri, err = m.Export(ctx)
		if err != nil {
			return SweepReport{}, "", err
		}
	}
	report, err := m.cache.DeleteAll(ctx)
	if err != nil {
		return SweepReport{}, uri, fmt.Errorf("clear caches: %w", err)
	}
	metrics.ObserveCleared(ShapePostMeta, report.PostMeta)
	metrics.ObserveCleared(ShapeCachePost, report.CachePosts)
	metrics.ObserveCleared(ShapeTransient, report.Transients)
	if report.Total() > 0 {
		m.publish(ctx, CacheEvent{
			Type:       EventCleared,
			PostMeta:   report.PostMeta,
			CachePosts: report.CachePosts,
			Transients: report.Transients,
			ExportURI:  uri,
		})
	}
	return report, uri, nil
}

// Find returns the oembed_cache post holding url's cached embed.
func (m *Manager) Find(ctx context.Context, url string, supplied cachekey.Supplied) (int64, error) {
	for _, suffix := range m.resolver.KeyPolicy().Candidates(url, supplied) {
		id, ok, err := m.cache.FindCachePostID(ctx, suffix)
		if err != nil {
			return 0, fmt.Errorf("find cache post: %w", err)
		}
		if ok {
			return id, nil
		}
	}
	return 0, ErrNoCachePost
}

// Trigger re-fetches every embeddable URL in a post's content, bypassing cached results,
// and stores the outcome in the post's cache. It returns the number of URLs that resolved.
func (m *Manager) Trigger(ctx context.Context, postID int64) (int, error) {
	post, err := m.requirePost(ctx, postID)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(m.cfg.CachePostTypes, post.Type) {
		return 0, &PostTypeError{PostType: post.Type}
	}

	resolved := 0
	for _, ref := range FindEmbeds(post.Content) {
		id := post.ID
		req := Request{URL: ref.URL, Width: ref.Width, Height: ref.Height, PostID: &id, Refresh: true}
		if _, err := m.resolver.Resolve(ctx, req); err != nil {
			if ctx.Err() != nil {
				return resolved, fmt.Errorf("trigger post %d: %w", postID, ctx.Err())
			}
			m.logger.Info("Embed did not resolve", zap.Int64("post_id", postID), zap.String("url", ref.URL), zap.Error(err))
			continue
		}
		resolved++
	}
	m.publish(ctx, CacheEvent{Type: EventTriggered, PostID: postID, PostMeta: resolved})
	return resolved, nil
}

// Export writes every cached entry as JSON to the blob store and returns its URI.
func (m *Manager) Export(ctx context.Context) (string, error) {
	if m.blobs == nil {
		return "", ErrExportUnavailable
	}
	records, err := m.cache.Records(ctx)
	if err != nil {
		return "", fmt.Errorf("collect cache records: %w", err)
	}
	if records == nil {
		records = []CacheRecord{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	name := fmt.Sprintf("oembed-cache-%s.json", m.clock.Now().UTC().Format("20060102T150405Z"))
	uri, err := m.blobs.PutObject(ctx, path.Join(m.cfg.ExportPrefix, name), "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	m.logger.Info("Exported oEmbed caches", zap.String("uri", uri), zap.Int("entries", len(records)))
	return uri, nil
}

func (m *Manager) requirePost(ctx context.Context, postID int64) (Post, error) {
	post, ok, err := m.posts.GetPost(ctx, postID)
	if err != nil {
		return Post{}, fmt.Errorf("load post %d: %w", postID, err)
	}
	if !ok {
		return Post{}, &PostError{ID: postID}
	}
	return post, nil
}

func (m *Manager) publish(ctx context.Context, event CacheEvent) {
	if m.publisher == nil || m.cfg.Topic == "" {
		return
	}
	event.OccurredAt = m.clock.Now().UTC()
	if m.ids != nil {
		id, err := m.ids.NewID()
		if err != nil {
			m.logger.Warn("Event id generation failed", zap.Error(err))
		}
		event.ID = id
	}
	msgID, err := m.publisher.Publish(ctx, m.cfg.Topic, event)
	if err != nil {
		m.logger.Warn("Cache event publish failed", zap.String("type", event.Type), zap.Error(err))
		return
	}
	m.logger.Debug("Published cache event", zap.String("type", event.Type), zap.String("message_id", msgID))
}
