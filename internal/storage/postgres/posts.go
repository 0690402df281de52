package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/embedctl/internal/embed"
	"github.com/JakeFAU/embedctl/internal/oembed"
)

// GetPost returns a post by ID.
func (s *Store) GetPost(ctx context.Context, id int64) (embed.Post, bool, error) {
	query := fmt.Sprintf(`
SELECT p.id, p.post_type, p.post_status, p.post_title, p.post_content, p.guid,
	COALESCE(u.display_name, ''), p.post_modified_gmt
FROM %s p
LEFT JOIN %s u ON u.id = p.post_author
WHERE p.id = $1`, s.t.posts, s.t.users)

	var post embed.Post
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&post.ID, &post.Type, &post.Status, &post.Title, &post.Content, &post.URL,
		&post.AuthorName, &post.Modified,
	)
	if isNoRows(err) {
		return embed.Post{}, false, nil
	}
	if err != nil {
		return embed.Post{}, false, fmt.Errorf("select post: %w", err)
	}
	post.Modified = post.Modified.UTC()
	return post, true, nil
}

// Site loads the site name and home URL from the options table. The result is cached.
func (s *Store) Site(ctx context.Context) (embed.Site, error) {
	s.siteMu.Lock()
	defer s.siteMu.Unlock()
	if s.site != nil {
		return *s.site, nil
	}

	query := fmt.Sprintf(`
SELECT option_name, option_value FROM %s WHERE option_name IN ('blogname', 'home')`, s.t.options)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return embed.Site{}, fmt.Errorf("select site options: %w", err)
	}
	defer rows.Close()
	var site embed.Site
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return embed.Site{}, fmt.Errorf("scan site option: %w", err)
		}
		switch k {
		case "blogname":
			site.Name = v
		case "home":
			site.URL = v
		}
	}
	if err := rows.Err(); err != nil {
		return embed.Site{}, fmt.Errorf("iterate site options: %w", err)
	}
	s.site = &site
	return site, nil
}

// ResolveURLToPostID maps a local permalink or `?p=` URL to a post.
func (s *Store) ResolveURLToPostID(ctx context.Context, rawURL string) (int64, bool, error) {
	site, err := s.Site(ctx)
	if err != nil {
		return 0, false, err
	}
	id, hasID, sameSite := embed.LocalPostID(rawURL, site.URL)
	if !sameSite {
		return 0, false, nil
	}

	var query string
	var arg any
	if hasID {
		query = fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 AND post_type <> $2`, s.t.posts)
		arg = id
	} else {
		query = fmt.Sprintf(`
SELECT id FROM %s
WHERE post_type <> $2
	AND rtrim(lower(regexp_replace(guid, '^https?://', '')), '/') = $1
ORDER BY id
LIMIT 1`, s.t.posts)
		arg = normalizePermalink(rawURL)
	}

	var found int64
	err = s.pool.QueryRow(ctx, query, arg, cachePostType).Scan(&found)
	if isNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve url to post: %w", err)
	}
	return found, true, nil
}

// GetContextualEmbedData builds the oEmbed payload for a local post.
func (s *Store) GetContextualEmbedData(ctx context.Context, postID int64, width int) (oembed.Data, bool, error) {
	post, ok, err := s.GetPost(ctx, postID)
	if err != nil || !ok {
		return nil, false, err
	}
	site, err := s.Site(ctx)
	if err != nil {
		return nil, false, err
	}
	data, ok := embed.ContextualData(post, site, width)
	return data, ok, nil
}

func normalizePermalink(raw string) string {
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	return strings.ToLower(strings.TrimRight(raw, "/"))
}
