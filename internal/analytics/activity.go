package analytics

import (
	"sort"

	"cultivator/internal/model"
)

// KarmaDelta is the change in total karma between the last two snapshots.
// ok is false when fewer than two snapshots exist.
func KarmaDelta(history []model.KarmaSnapshot) (delta int, ok bool) {
	if len(history) < 2 {
		return 0, false
	}
	return history[len(history)-1].Total - history[len(history)-2].Total, true
}

// DailyCounts aggregates comment records per date and status.
func DailyCounts(comments []model.CommentRecord) map[string]map[model.Status]int {
	buckets := make(map[string]map[model.Status]int)
	for _, c := range comments {
		if _, ok := buckets[c.Date]; !ok {
			buckets[c.Date] = make(map[model.Status]int)
		}
		buckets[c.Date][c.Status]++
	}
	return buckets
}

// SortedDates returns the bucket keys, oldest first.
func SortedDates(m map[string]map[model.Status]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SubredditCounts counts comment records per subreddit, for the status report.
func SubredditCounts(comments []model.CommentRecord) map[string]int {
	out := map[string]int{}
	for _, c := range comments {
		if c.Subreddit != "" {
			out[c.Subreddit]++
		}
	}
	return out
}
