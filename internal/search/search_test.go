package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"imageupdater/internal/models"
)

func collections(titles ...string) []models.Collection {
	out := make([]models.Collection, len(titles))
	for i, title := range titles {
		out[i] = models.Collection{
			ID:     fmt.Sprintf("gid://shopify/Collection/%d", i+1),
			Title:  title,
			Handle: fmt.Sprintf("handle-%d", i+1),
		}
	}
	return out
}

func TestMatch(t *testing.T) {
	c := models.Collection{Title: "Summer Sale", Handle: "hot-deals"}
	tests := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"summer", true},
		{"SALE", true},
		{"  mer s ", true},
		{"hot-", true},
		{"winter", false},
	}
	for _, tt := range tests {
		if got := Match(c, tt.query); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestPage(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}
	tests := []struct {
		name     string
		limit    int
		after    string
		want     []int
		wantNext bool
		cursor   string
	}{
		{"first page", 2, "", []int{0, 1}, true, "2"},
		{"middle", 2, "2", []int{2, 3}, true, "4"},
		{"last", 2, "4", []int{4}, false, ""},
		{"exact end", 5, "", []int{0, 1, 2, 3, 4}, false, ""},
		{"past end", 2, "9", []int{}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, info, err := Page(items, tt.limit, tt.after)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("items = %v, want %v", got, tt.want)
			}
			if info.HasNextPage != tt.wantNext || info.EndCursor != tt.cursor {
				t.Errorf("pageInfo = %+v, want next=%v cursor=%q", info, tt.wantNext, tt.cursor)
			}
		})
	}
}

func TestPageInvalidCursor(t *testing.T) {
	for _, after := range []string{"abc", "-1", "1.5"} {
		if _, _, err := Page([]int{1}, 1, after); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("cursor %q: expected ErrInvalidCursor, got %v", after, err)
		}
	}
}

// pager serves a fixed list in pages of the given size, like a backend would.
func pager(items []models.Collection, size int) FetchFunc[models.Collection] {
	return func(ctx context.Context, limit int, after string) ([]models.Collection, models.PageInfo, error) {
		start := 0
		if after != "" {
			start, _ = strconv.Atoi(after)
		}
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		info := models.PageInfo{HasNextPage: end < len(items)}
		if info.HasNextPage {
			info.EndCursor = strconv.Itoa(end)
		}
		return items[start:end], info, nil
	}
}

func TestCollectAllIndependentOfPageSize(t *testing.T) {
	all := collections("Summer", "Winter", "summer-kids", "Autumn", "Indian Summer", "Spring", "Sale")
	var want string
	for _, size := range []int{1, 2, 3, 50} {
		got, err := CollectAll(context.Background(), pager(all, size))
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		filtered := Filter(got, "summer")
		ids := fmt.Sprint(filtered)
		if want == "" {
			want = ids
		} else if ids != want {
			t.Errorf("size %d: result differs\n got %s\nwant %s", size, ids, want)
		}
		if len(filtered) != 3 {
			t.Errorf("size %d: expected 3 matches, got %d", size, len(filtered))
		}
	}
}

func TestCollectAllStopsOnStuckCursor(t *testing.T) {
	fetch := func(ctx context.Context, limit int, after string) ([]models.Collection, models.PageInfo, error) {
		return nil, models.PageInfo{HasNextPage: true, EndCursor: "same"}, nil
	}
	if _, err := CollectAll[models.Collection](context.Background(), fetch); err == nil {
		t.Fatal("expected error for non-advancing cursor")
	}
}

func TestCollectAllPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(ctx context.Context, limit int, after string) ([]models.Collection, models.PageInfo, error) {
		return nil, models.PageInfo{}, boom
	}
	if _, err := CollectAll[models.Collection](context.Background(), fetch); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
