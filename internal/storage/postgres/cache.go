package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/embedctl/internal/embed"
)

// Get reads a cached embed from post meta (PostID set) or from an oembed_cache post.
func (s *Store) Get(ctx context.Context, key embed.CacheKey) (embed.CacheEntry, bool, error) {
	if key.PostID > 0 {
		return s.getMeta(ctx, key)
	}
	query := fmt.Sprintf(`
SELECT id, post_content, post_modified_gmt
FROM %s
WHERE post_type = $1 AND post_name = $2
ORDER BY id
LIMIT 1`, s.t.posts)

	entry := embed.CacheEntry{Key: key}
	err := s.pool.QueryRow(ctx, query, cachePostType, key.Suffix).
		Scan(&entry.CachePostID, &entry.HTML, &entry.CreatedAt)
	if isNoRows(err) {
		return embed.CacheEntry{}, false, nil
	}
	if err != nil {
		return embed.CacheEntry{}, false, fmt.Errorf("select cache post: %w", err)
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, true, nil
}

func (s *Store) getMeta(ctx context.Context, key embed.CacheKey) (embed.CacheEntry, bool, error) {
	query := fmt.Sprintf(`
SELECT meta_key, meta_value
FROM %s
WHERE post_id = $1 AND meta_key IN ($2, $3)`, s.t.postmeta)

	rows, err := s.pool.Query(ctx, query, key.PostID, metaPrefix+key.Suffix, metaTimePrefix+key.Suffix)
	if err != nil {
		return embed.CacheEntry{}, false, fmt.Errorf("select post meta: %w", err)
	}
	defer rows.Close()

	entry := embed.CacheEntry{Key: key}
	found := false
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return embed.CacheEntry{}, false, fmt.Errorf("scan post meta: %w", err)
		}
		if strings.HasPrefix(k, metaTimePrefix) {
			if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
				entry.CreatedAt = time.Unix(ts, 0).UTC()
			}
			continue
		}
		entry.HTML = v
		found = true
	}
	if err := rows.Err(); err != nil {
		return embed.CacheEntry{}, false, fmt.Errorf("iterate post meta: %w", err)
	}
	if !found {
		return embed.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// Put writes a cached embed.
func (s *Store) Put(ctx context.Context, key embed.CacheKey, html string, _ time.Duration) error {
	now := s.now()
	if key.PostID > 0 {
		query := fmt.Sprintf(`
WITH removed AS (
	DELETE FROM %[1]s WHERE post_id = $1 AND meta_key IN ($2, $3)
)
INSERT INTO %[1]s (post_id, meta_key, meta_value) VALUES ($1, $2, $4), ($1, $3, $5)`, s.t.postmeta)
		_, err := s.pool.Exec(ctx, query,
			key.PostID, metaPrefix+key.Suffix, metaTimePrefix+key.Suffix, html, strconv.FormatInt(now.Unix(), 10))
		if err != nil {
			return fmt.Errorf("upsert post meta: %w", err)
		}
		return nil
	}

	update := fmt.Sprintf(`
UPDATE %s SET post_content = $1, post_modified_gmt = $2
WHERE post_type = $3 AND post_name = $4`, s.t.posts)
	tag, err := s.pool.Exec(ctx, update, html, now, cachePostType, key.Suffix)
	if err != nil {
		return fmt.Errorf("update cache post: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	insert := fmt.Sprintf(`
INSERT INTO %s (post_type, post_status, post_name, post_title, post_content, post_modified_gmt)
VALUES ($1, 'publish', $2, $2, $3, $4)`, s.t.posts)
	if _, err := s.pool.Exec(ctx, insert, cachePostType, key.Suffix, html, now); err != nil {
		return fmt.Errorf("insert cache post: %w", err)
	}
	return nil
}

// FindCachePostID returns the oembed_cache post named suffix.
func (s *Store) FindCachePostID(ctx context.Context, suffix string) (int64, bool, error) {
	query := fmt.Sprintf(`
SELECT id FROM %s WHERE post_type = $1 AND post_name = $2 ORDER BY id LIMIT 1`, s.t.posts)
	var id int64
	err := s.pool.QueryRow(ctx, query, cachePostType, suffix).Scan(&id)
	if isNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select cache post id: %w", err)
	}
	return id, true, nil
}

// DeleteForPost removes the post's cached embeds and returns how many were removed.
func (s *Store) DeleteForPost(ctx context.Context, postID int64) (int, error) {
	query := fmt.Sprintf(`
DELETE FROM %s WHERE post_id = $1 AND meta_key LIKE $2 RETURNING meta_key`, s.t.postmeta)
	rows, err := s.pool.Query(ctx, query, postID, likePrefix(metaPrefix))
	if err != nil {
		return 0, fmt.Errorf("delete post meta: %w", err)
	}
	return countCacheKeys(rows)
}

// DeletePostCaches removes every cached embed in post meta and every oembed_cache post.
func (s *Store) DeletePostCaches(ctx context.Context) (embed.SweepReport, error) {
	var report embed.SweepReport
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		metaQuery := fmt.Sprintf(`DELETE FROM %s WHERE meta_key LIKE $1 RETURNING meta_key`, s.t.postmeta)
		rows, err := tx.Query(ctx, metaQuery, likePrefix(metaPrefix))
		if err != nil {
			return fmt.Errorf("delete post meta: %w", err)
		}
		n, err := countCacheKeys(rows)
		if err != nil {
			return err
		}
		report.PostMeta = n

		postQuery := fmt.Sprintf(`DELETE FROM %s WHERE post_type = $1`, s.t.posts)
		tag, err := tx.Exec(ctx, postQuery, cachePostType)
		if err != nil {
			return fmt.Errorf("delete cache posts: %w", err)
		}
		report.CachePosts = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return embed.SweepReport{}, err
	}
	return report, nil
}

// countCacheKeys counts returned meta keys that hold embed HTML, skipping timestamps.
func countCacheKeys(rows pgx.Rows) (int, error) {
	defer rows.Close()
	n := 0
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return 0, fmt.Errorf("scan meta key: %w", err)
		}
		if !strings.HasPrefix(key, metaTimePrefix) {
			n++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate meta keys: %w", err)
	}
	return n, nil
}

// ListPostCaches lists the posts carrying cached embeds and the oembed_cache posts.
func (s *Store) ListPostCaches(ctx context.Context) (embed.LegacyEntries, error) {
	var entries embed.LegacyEntries
	metaQuery := fmt.Sprintf(`
SELECT DISTINCT post_id FROM %s
WHERE meta_key LIKE $1 AND meta_key NOT LIKE $2
ORDER BY post_id`, s.t.postmeta)
	ids, err := s.selectIDs(ctx, metaQuery, likePrefix(metaPrefix), likePrefix(metaTimePrefix))
	if err != nil {
		return embed.LegacyEntries{}, fmt.Errorf("list post meta: %w", err)
	}
	entries.PostMetaIDs = ids

	postQuery := fmt.Sprintf(`SELECT id FROM %s WHERE post_type = $1 ORDER BY id`, s.t.posts)
	ids, err = s.selectIDs(ctx, postQuery, cachePostType)
	if err != nil {
		return embed.LegacyEntries{}, fmt.Errorf("list cache posts: %w", err)
	}
	entries.CachePostIDs = ids
	return entries, nil
}

func (s *Store) selectIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PostRecords returns every post-backed cache entry.
func (s *Store) PostRecords(ctx context.Context) ([]embed.CacheRecord, error) {
	var records []embed.CacheRecord

	metaQuery := fmt.Sprintf(`
SELECT meta_id, post_id, meta_key, meta_value FROM %s
WHERE meta_key LIKE $1 AND meta_key NOT LIKE $2
ORDER BY post_id, meta_id`, s.t.postmeta)
	rows, err := s.pool.Query(ctx, metaQuery, likePrefix(metaPrefix), likePrefix(metaTimePrefix))
	if err != nil {
		return nil, fmt.Errorf("select post meta records: %w", err)
	}
	for rows.Next() {
		var (
			metaID int64
			rec    = embed.CacheRecord{Shape: embed.ShapePostMeta}
		)
		if err := rows.Scan(&metaID, &rec.PostID, &rec.ID, &rec.Value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan post meta record: %w", err)
		}
		rec.Key = strings.TrimPrefix(rec.ID, metaPrefix)
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post meta records: %w", err)
	}

	postQuery := fmt.Sprintf(`SELECT id, post_name, post_content FROM %s WHERE post_type = $1 ORDER BY id`, s.t.posts)
	rows, err = s.pool.Query(ctx, postQuery, cachePostType)
	if err != nil {
		return nil, fmt.Errorf("select cache post records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  int64
			rec = embed.CacheRecord{Shape: embed.ShapeCachePost}
		)
		if err := rows.Scan(&id, &rec.Key, &rec.Value); err != nil {
			return nil, fmt.Errorf("scan cache post record: %w", err)
		}
		rec.ID = strconv.FormatInt(id, 10)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache post records: %w", err)
	}
	return records, nil
}
