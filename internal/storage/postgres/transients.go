package postgres

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/embedctl/internal/embed"
)

// GetTransient returns a live transient stored in the options table.
func (s *Store) GetTransient(ctx context.Context, name string) (string, bool, error) {
	query := fmt.Sprintf(`
SELECT option_name, option_value FROM %s WHERE option_name IN ($1, $2)`, s.t.options)
	rows, err := s.pool.Query(ctx, query, transientPrefix+name, timeoutPrefix+name)
	if err != nil {
		return "", false, fmt.Errorf("select transient: %w", err)
	}
	defer rows.Close()

	var (
		value    string
		found    bool
		deadline int64
	)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return "", false, fmt.Errorf("scan transient: %w", err)
		}
		if strings.HasPrefix(k, timeoutPrefix) {
			deadline, _ = strconv.ParseInt(v, 10, 64)
			continue
		}
		value, found = v, true
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("iterate transient: %w", err)
	}
	if !found || (deadline > 0 && s.now().Unix() >= deadline) {
		return "", false, nil
	}
	return value, true, nil
}

// SetTransient stores a transient. A non-positive ttl never expires.
func (s *Store) SetTransient(ctx context.Context, name, value string, ttl time.Duration) error {
	valueName, timeoutName := transientPrefix+name, timeoutPrefix+name
	if ttl <= 0 {
		query := fmt.Sprintf(`
WITH removed AS (
	DELETE FROM %[1]s WHERE option_name IN ($1, $2)
)
INSERT INTO %[1]s (option_name, option_value, autoload) VALUES ($1, $3, 'yes')`, s.t.options)
		if _, err := s.pool.Exec(ctx, query, valueName, timeoutName, value); err != nil {
			return fmt.Errorf("upsert transient: %w", err)
		}
		return nil
	}
	deadline := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	query := fmt.Sprintf(`
WITH removed AS (
	DELETE FROM %[1]s WHERE option_name IN ($1, $2)
)
INSERT INTO %[1]s (option_name, option_value, autoload) VALUES ($1, $3, 'no'), ($2, $4, 'no')`, s.t.options)
	if _, err := s.pool.Exec(ctx, query, valueName, timeoutName, value, deadline); err != nil {
		return fmt.Errorf("upsert transient: %w", err)
	}
	return nil
}

// DeleteTransients removes every transient whose name starts with prefix.
func (s *Store) DeleteTransients(ctx context.Context, prefix string) (int, error) {
	query := fmt.Sprintf(`
DELETE FROM %s WHERE option_name LIKE $1 OR option_name LIKE $2 RETURNING option_name`, s.t.options)
	rows, err := s.pool.Query(ctx, query, likePrefix(transientPrefix+prefix), likePrefix(timeoutPrefix+prefix))
	if err != nil {
		return 0, fmt.Errorf("delete transients: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return 0, fmt.Errorf("scan transient name: %w", err)
		}
		if !strings.HasPrefix(name, timeoutPrefix) {
			n++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate transients: %w", err)
	}
	return n, nil
}

// ListTransients lists transients whose name starts with prefix, sorted by name.
func (s *Store) ListTransients(ctx context.Context, prefix string) ([]embed.Transient, error) {
	query := fmt.Sprintf(`
SELECT option_name, option_value FROM %s WHERE option_name LIKE $1 OR option_name LIKE $2`, s.t.options)
	rows, err := s.pool.Query(ctx, query, likePrefix(transientPrefix+prefix), likePrefix(timeoutPrefix+prefix))
	if err != nil {
		return nil, fmt.Errorf("select transients: %w", err)
	}
	defer rows.Close()

	byName := map[string]*embed.Transient{}
	get := func(name string) *embed.Transient {
		t, ok := byName[name]
		if !ok {
			t = &embed.Transient{Name: name}
			byName[name] = t
		}
		return t
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan transient: %w", err)
		}
		if name, ok := strings.CutPrefix(k, timeoutPrefix); ok {
			if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
				get(name).ExpiresAt = time.Unix(ts, 0).UTC()
			}
			continue
		}
		get(strings.TrimPrefix(k, transientPrefix)).Value = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transients: %w", err)
	}

	out := make([]embed.Transient, 0, len(byName))
	for _, t := range byName {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
