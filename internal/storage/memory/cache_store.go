package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/embedctl/internal/embed"
	"github.com/JakeFAU/embedctl/internal/oembed"
)

const (
	metaPrefix     = "_oembed_"
	metaTimePrefix = "_oembed_time_"
	cachePostType  = "oembed_cache"
)

// ErrEmptySuffix is returned when a cache key has no suffix.
var ErrEmptySuffix = errors.New("cache key suffix is required")

type postRow struct {
	embed.Post
	Name string
}

type transientRow struct {
	value     string
	expiresAt time.Time
}

// Store provides an in-memory content store for development and tests. It implements
// embed.PostCache, embed.TransientStore and embed.PostResolver.
type Store struct {
	mu         sync.RWMutex
	clock      embed.Clock
	site       embed.Site
	posts      map[int64]*postRow
	meta       map[int64]map[string]string
	transients map[string]transientRow
	nextID     int64
}

// NewStore constructs an empty Store.
func NewStore(site embed.Site, clock embed.Clock) *Store {
	return &Store{
		clock:      clock,
		site:       site,
		posts:      make(map[int64]*postRow),
		meta:       make(map[int64]map[string]string),
		transients: make(map[string]transientRow),
		nextID:     1,
	}
}

// Site returns the local site identity.
func (s *Store) Site(context.Context) (embed.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.site, nil
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

// AddPost stores a post. A zero ID is assigned the next free ID, which is returned.
func (s *Store) AddPost(post embed.Post, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPostLocked(post, name)
}

func (s *Store) addPostLocked(post embed.Post, name string) int64 {
	if post.ID == 0 {
		post.ID = s.nextID
	}
	if post.ID >= s.nextID {
		s.nextID = post.ID + 1
	}
	s.posts[post.ID] = &postRow{Post: post, Name: name}
	return post.ID
}

// SetMeta stores a post meta value.
func (s *Store) SetMeta(postID int64, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setMetaLocked(postID, key, value)
}

func (s *Store) setMetaLocked(postID int64, key, value string) {
	if s.meta[postID] == nil {
		s.meta[postID] = make(map[string]string)
	}
	s.meta[postID][key] = value
}

// Meta returns a copy of a post's meta.
func (s *Store) Meta(postID int64) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.meta[postID]))
	for k, v := range s.meta[postID] {
		out[k] = v
	}
	return out
}

// Get reads a cached embed from post meta (PostID set) or from an oembed_cache post.
func (s *Store) Get(_ context.Context, key embed.CacheKey) (embed.CacheEntry, bool, error) {
	if key.Suffix == "" {
		return embed.CacheEntry{}, false, ErrEmptySuffix
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key.PostID > 0 {
		html, ok := s.meta[key.PostID][metaPrefix+key.Suffix]
		if !ok {
			return embed.CacheEntry{}, false, nil
		}
		entry := embed.CacheEntry{Key: key, HTML: html}
		if raw, ok := s.meta[key.PostID][metaTimePrefix+key.Suffix]; ok {
			if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
				entry.CreatedAt = time.Unix(ts, 0).UTC()
			}
		}
		return entry, true, nil
	}

	row := s.cachePostLocked(key.Suffix)
	if row == nil {
		return embed.CacheEntry{}, false, nil
	}
	return embed.CacheEntry{
		Key:         key,
		HTML:        row.Content,
		CreatedAt:   row.Modified,
		CachePostID: row.ID,
	}, true, nil
}

// Put writes a cached embed.
func (s *Store) Put(_ context.Context, key embed.CacheKey, html string, _ time.Duration) error {
	if key.Suffix == "" {
		return ErrEmptySuffix
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if key.PostID > 0 {
		if _, ok := s.posts[key.PostID]; !ok {
			return fmt.Errorf("put post meta: %w", &embed.PostError{ID: key.PostID})
		}
		s.setMetaLocked(key.PostID, metaPrefix+key.Suffix, html)
		s.setMetaLocked(key.PostID, metaTimePrefix+key.Suffix, strconv.FormatInt(now.Unix(), 10))
		return nil
	}

	if row := s.cachePostLocked(key.Suffix); row != nil {
		row.Content = html
		row.Modified = now
		return nil
	}
	s.addPostLocked(embed.Post{
		Type:     cachePostType,
		Status:   "publish",
		Content:  html,
		Modified: now,
	}, key.Suffix)
	return nil
}

// FindCachePostID returns the oembed_cache post named suffix.
func (s *Store) FindCachePostID(_ context.Context, suffix string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row := s.cachePostLocked(suffix); row != nil {
		return row.ID, true, nil
	}
	return 0, false, nil
}

func (s *Store) cachePostLocked(suffix string) *postRow {
	var found *postRow
	for _, row := range s.posts {
		if row.Type != cachePostType || row.Name != suffix {
			continue
		}
		if found == nil || row.ID < found.ID {
			found = row
		}
	}
	return found
}

// DeleteForPost removes the post's cached embeds and returns how many were removed.
func (s *Store) DeleteForPost(_ context.Context, postID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteMetaLocked(postID), nil
}

func (s *Store) deleteMetaLocked(postID int64) int {
	removed := 0
	for k := range s.meta[postID] {
		if !strings.HasPrefix(k, metaPrefix) {
			continue
		}
		if !strings.HasPrefix(k, metaTimePrefix) {
			removed++
		}
		delete(s.meta[postID], k)
	}
	return removed
}

// DeletePostCaches removes every cached embed in post meta and every oembed_cache post.
func (s *Store) DeletePostCaches(_ context.Context) (embed.SweepReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report embed.SweepReport
	for postID := range s.meta {
		report.PostMeta += s.deleteMetaLocked(postID)
	}
	for id, row := range s.posts {
		if row.Type == cachePostType {
			delete(s.posts, id)
			delete(s.meta, id)
			report.CachePosts++
		}
	}
	return report, nil
}

// ListPostCaches lists the posts carrying cached embeds and the oembed_cache posts.
func (s *Store) ListPostCaches(_ context.Context) (embed.LegacyEntries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries embed.LegacyEntries
	for postID, meta := range s.meta {
		for k := range meta {
			if strings.HasPrefix(k, metaPrefix) && !strings.HasPrefix(k, metaTimePrefix) {
				entries.PostMetaIDs = append(entries.PostMetaIDs, postID)
				break
			}
		}
	}
	for id, row := range s.posts {
		if row.Type == cachePostType {
			entries.CachePostIDs = append(entries.CachePostIDs, id)
		}
	}
	sortIDs(entries.PostMetaIDs)
	sortIDs(entries.CachePostIDs)
	return entries, nil
}

// PostRecords returns every post-backed cache entry.
func (s *Store) PostRecords(_ context.Context) ([]embed.CacheRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []embed.CacheRecord
	for postID, meta := range s.meta {
		for k, v := range meta {
			if !strings.HasPrefix(k, metaPrefix) || strings.HasPrefix(k, metaTimePrefix) {
				continue
			}
			records = append(records, embed.CacheRecord{
				Shape:  embed.ShapePostMeta,
				ID:     k,
				PostID: postID,
				Key:    strings.TrimPrefix(k, metaPrefix),
				Value:  v,
			})
		}
	}
	for id, row := range s.posts {
		if row.Type != cachePostType {
			continue
		}
		records = append(records, embed.CacheRecord{
			Shape: embed.ShapeCachePost,
			ID:    strconv.FormatInt(id, 10),
			Key:   row.Name,
			Value: row.Content,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Shape != records[j].Shape {
			return records[i].Shape < records[j].Shape
		}
		if records[i].PostID != records[j].PostID {
			return records[i].PostID < records[j].PostID
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// GetTransient returns a live transient.
func (s *Store) GetTransient(_ context.Context, name string) (string, bool, error) {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transients[name]
	if !ok || (!t.expiresAt.IsZero() && !now.Before(t.expiresAt)) {
		return "", false, nil
	}
	return t.value, true, nil
}

// SetTransient stores a transient. A non-positive ttl never expires.
func (s *Store) SetTransient(_ context.Context, name, value string, ttl time.Duration) error {
	row := transientRow{value: value}
	if ttl > 0 {
		row.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transients[name] = row
	return nil
}

// DeleteTransients removes every transient whose name starts with prefix.
func (s *Store) DeleteTransients(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for name := range s.transients {
		if strings.HasPrefix(name, prefix) {
			delete(s.transients, name)
			removed++
		}
	}
	return removed, nil
}

// ListTransients lists transients whose name starts with prefix, sorted by name.
func (s *Store) ListTransients(_ context.Context, prefix string) ([]embed.Transient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []embed.Transient
	for name, t := range s.transients {
		if strings.HasPrefix(name, prefix) {
			out = append(out, embed.Transient{Name: name, Value: t.value, ExpiresAt: t.expiresAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetPost returns a post by ID.
func (s *Store) GetPost(_ context.Context, id int64) (embed.Post, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.posts[id]
	if !ok {
		return embed.Post{}, false, nil
	}
	return row.Post, true, nil
}

// ResolveURLToPostID maps a local permalink or `?p=` URL to a post.
func (s *Store) ResolveURLToPostID(_ context.Context, rawURL string) (int64, bool, error) {
	id, hasID, sameSite := embed.LocalPostID(rawURL, s.site.URL)
	if !sameSite {
		return 0, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if hasID {
		row, ok := s.posts[id]
		if !ok || row.Type == cachePostType {
			return 0, false, nil
		}
		return id, true, nil
	}
	want := normalizePermalink(rawURL)
	for _, row := range s.posts {
		if row.Type != cachePostType && row.URL != "" && normalizePermalink(row.URL) == want {
			return row.ID, true, nil
		}
	}
	return 0, false, nil
}

// GetContextualEmbedData builds the oEmbed payload for a local post.
func (s *Store) GetContextualEmbedData(ctx context.Context, postID int64, width int) (oembed.Data, bool, error) {
	post, ok, err := s.GetPost(ctx, postID)
	if err != nil || !ok {
		return nil, false, err
	}
	data, ok := embed.ContextualData(post, s.site, width)
	return data, ok, nil
}

func normalizePermalink(raw string) string {
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	return strings.ToLower(strings.TrimRight(raw, "/"))
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
