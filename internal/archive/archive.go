// Package archive derives the read-side projections of the post list: ordering,
// per-day and per-month counts, the month calendar grid and the query filters
// that drive them. Everything here is pure; callers pass the current time.
package archive

import (
	"regexp"
	"sort"
	"time"

	"github.com/ayush/flatblog/internal/models"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

var (
	dayPattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// Count is one bucket of a per-day or per-month histogram.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Counts is an ordered histogram.
type Counts []Count

// Map indexes the histogram by key.
func (c Counts) Map() map[string]int {
	m := make(map[string]int, len(c))
	for _, item := range c {
		m[item.Key] = item.Count
	}
	return m
}

// SortPosts returns a copy of posts stably ordered by published_at. Direction
// "desc" sorts newest first, anything else oldest first. Unparsable dates sort
// as the unix epoch.
func SortPosts(posts []models.Post, direction string, loc *time.Location) []models.Post {
	type keyed struct {
		post  models.Post
		stamp int64
	}
	items := make([]keyed, len(posts))
	for i, p := range posts {
		items[i] = keyed{post: p}
		if t, ok := models.ParseTimestamp(p.PublishedAt, loc); ok {
			items[i].stamp = t.Unix()
		}
	}

	desc := direction == "desc"
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return items[i].stamp > items[j].stamp
		}
		return items[i].stamp < items[j].stamp
	})

	sorted := make([]models.Post, len(items))
	for i, item := range items {
		sorted[i] = item.post
	}
	return sorted
}

// PostsByDay counts posts per calendar day, ascending by day. Posts with an
// unparsable date are counted on now's day.
func PostsByDay(posts []models.Post, now time.Time) Counts {
	counts := bucket(posts, now, dayLayout)
	sort.Slice(counts, func(i, j int) bool { return counts[i].Key < counts[j].Key })
	return counts
}

// PostsByMonth counts posts per calendar month, newest month first. Posts with
// an unparsable date are counted in now's month.
func PostsByMonth(posts []models.Post, now time.Time) Counts {
	counts := bucket(posts, now, monthLayout)
	sort.Slice(counts, func(i, j int) bool { return counts[i].Key > counts[j].Key })
	return counts
}

func bucket(posts []models.Post, now time.Time, layout string) Counts {
	index := make(map[string]int)
	counts := Counts{}
	for _, p := range posts {
		t, ok := models.ParseTimestamp(p.PublishedAt, now.Location())
		if !ok {
			t = now
		}
		key := t.Format(layout)
		if i, seen := index[key]; seen {
			counts[i].Count++
			continue
		}
		index[key] = len(counts)
		counts = append(counts, Count{Key: key, Count: 1})
	}
	return counts
}

// FilterByDate keeps the posts published on date (YYYY-MM-DD). Unparsable
// publication dates are treated as the unix epoch.
func FilterByDate(posts []models.Post, date string, loc *time.Location) []models.Post {
	filtered := []models.Post{}
	for _, p := range posts {
		t, ok := models.ParseTimestamp(p.PublishedAt, loc)
		if !ok {
			t = time.Unix(0, 0).In(loc)
		}
		if t.Format(dayLayout) == date {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// DateFilter validates a YYYY-MM-DD query value. Only real calendar dates
// that format back to the same string are accepted.
func DateFilter(raw string, loc *time.Location) (string, bool) {
	if !dayPattern.MatchString(raw) {
		return "", false
	}
	t, err := time.ParseInLocation(dayLayout, raw, loc)
	if err != nil || t.Format(dayLayout) != raw {
		return "", false
	}
	return raw, true
}

// MonthFilter validates a YYYY-MM query value and falls back to now's month.
func MonthFilter(raw string, now time.Time) string {
	if monthPattern.MatchString(raw) {
		t, err := time.ParseInLocation(monthLayout, raw, now.Location())
		if err == nil && t.Format(monthLayout) == raw {
			return raw
		}
	}
	return now.Format(monthLayout)
}
