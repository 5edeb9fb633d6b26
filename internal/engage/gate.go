package engage

import (
	"time"

	"cultivator/internal/model"
)

// Safe score band, inclusive. Dead threads and front-page threads both draw scrutiny.
const (
	MinScore = 1
	MaxScore = 500
)

// ExcludedAuthors are never replied to.
var ExcludedAuthors = map[string]struct{}{
	"[deleted]":     {},
	"AutoModerator": {},
}

// DropReason says why a candidate is ineligible; empty means eligible.
type DropReason string

const (
	DropNone         DropReason = ""
	DropSeen         DropReason = "already_commented"
	DropTooOld       DropReason = "too_old"
	DropAuthor       DropReason = "excluded_author"
	DropScoreOutside DropReason = "score_outside_band"
)

// Explain returns the first rule that makes c ineligible.
func Explain(c model.Candidate, seen map[string]struct{}, now time.Time, lim Limits) DropReason {
	if _, ok := seen[c.ID]; ok {
		return DropSeen
	}
	if c.AgeHours(now) > lim.MaxPostAgeHours {
		return DropTooOld
	}
	if _, ok := ExcludedAuthors[c.Author]; ok {
		return DropAuthor
	}
	if c.Score < MinScore || c.Score > MaxScore {
		return DropScoreOutside
	}
	return DropNone
}

// Filter returns the candidates that are safe to comment on. Ids already present
// in the ledger, under any status, are never returned. An empty result is normal.
func Filter(candidates []model.Candidate, l model.Ledger, now time.Time, lim Limits) []model.Candidate {
	seen := l.CommentedIDs()
	out := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if Explain(c, seen, now, lim) == DropNone {
			out = append(out, c)
		}
	}
	return out
}

// Tally counts drop reasons across a batch, for itemized reporting.
func Tally(candidates []model.Candidate, l model.Ledger, now time.Time, lim Limits) map[DropReason]int {
	seen := l.CommentedIDs()
	out := map[DropReason]int{}
	for _, c := range candidates {
		out[Explain(c, seen, now, lim)]++
	}
	return out
}
