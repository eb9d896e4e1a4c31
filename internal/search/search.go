// Package search implements the case-insensitive title/handle filter and the
// offset-cursor paging used when the upstream has no native search.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"imageupdater/internal/models"
)

// UpstreamPageSize is the page size used while draining the upstream.
const UpstreamPageSize = 50

var ErrInvalidCursor = errors.New("invalid cursor")

type Searchable interface {
	SearchTitle() string
	SearchHandle() string
}

// Match reports whether the trimmed query is a case-insensitive substring of
// the title or the handle. An empty query matches everything.
func Match(item Searchable, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.SearchTitle()), q) ||
		strings.Contains(strings.ToLower(item.SearchHandle()), q)
}

func Filter[T Searchable](items []T, query string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if Match(item, query) {
			out = append(out, item)
		}
	}
	return out
}

// ParseCursor decodes an offset cursor. The empty cursor is offset 0.
func ParseCursor(after string) (int, error) {
	if after == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(after)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, after)
	}
	return n, nil
}

// Page slices items[after:after+limit]. EndCursor is the next offset and is
// only set while more items remain.
func Page[T any](items []T, limit int, after string) ([]T, models.PageInfo, error) {
	start, err := ParseCursor(after)
	if err != nil {
		return nil, models.PageInfo{}, err
	}
	if limit <= 0 {
		limit = len(items)
	}
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	info := models.PageInfo{HasNextPage: end < len(items)}
	if info.HasNextPage {
		info.EndCursor = strconv.Itoa(end)
	}
	return items[start:end], info, nil
}

// FetchFunc returns one upstream page starting after the cursor.
type FetchFunc[T any] func(ctx context.Context, limit int, after string) ([]T, models.PageInfo, error)

// CollectAll drains the upstream by following EndCursor until HasNextPage is
// false.
func CollectAll[T any](ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	var (
		all   []T
		after string
		seen  = map[string]bool{}
	)
	for {
		items, info, err := fetch(ctx, UpstreamPageSize, after)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !info.HasNextPage {
			return all, nil
		}
		if info.EndCursor == "" || seen[info.EndCursor] {
			return nil, fmt.Errorf("upstream pagination did not advance after cursor %q", after)
		}
		seen[info.EndCursor] = true
		after = info.EndCursor
	}
}
