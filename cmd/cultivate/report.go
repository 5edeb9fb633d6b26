package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"cultivator/internal/analytics"
	"cultivator/internal/engage"
	"cultivator/internal/health"
	"cultivator/internal/jobs"
	"cultivator/internal/model"
)

var rule = strings.Repeat("─", 60)

func printSession(w io.Writer, res jobs.Result, opts jobs.SessionOptions) {
	mode := "LIVE"
	if opts.DryRun {
		mode = "DRY RUN"
	}
	fmt.Fprintf(w, "Session (%s)\n%s\n", mode, rule)
	if res.Identity.Name != "" {
		fmt.Fprintf(w, "Account: u/%s (karma %d)\n", res.Identity.Name, res.Identity.TotalKarma())
	}
	if res.Health != nil {
		fmt.Fprintf(w, "Shadow-ban check: %s (%s)\n", res.Health.ShadowBanned, res.Health.Detail)
	}

	switch res.Outcome {
	case jobs.OutcomeSetupFailed:
		fmt.Fprintf(w, "Aborted: %s\n", res.Reason)
		return
	case jobs.OutcomeBlocked:
		fmt.Fprintf(w, "Blocked: %s\n", res.Reason)
		fmt.Fprintln(w, "No actions taken. Use --skip-health only if you are sure the account is visible.")
		return
	case jobs.OutcomeDenied:
		fmt.Fprintf(w, "Not now: %s\n", res.Reason)
		if !res.Decision.RetryAt.IsZero() {
			fmt.Fprintf(w, "Try again after %s\n", res.Decision.RetryAt.Format(time.RFC1123))
		}
		return
	}

	for _, g := range res.Groups {
		if g.Err != nil {
			fmt.Fprintf(w, "  r/%-20s fetch failed: %v\n", g.Subreddit, g.Err)
			continue
		}
		fmt.Fprintf(w, "  r/%-20s %2d found, %2d eligible%s\n", g.Subreddit, g.Fetched, g.Eligible, dropSummary(g.Dropped))
	}
	if res.Outcome == jobs.OutcomeNoCandidates {
		fmt.Fprintln(w, "No eligible posts right now. Nothing recorded.")
		return
	}

	fmt.Fprintf(w, "\nSelected %d of %d eligible posts\n%s\n", len(res.Actions), res.PoolSize, rule)
	for i, a := range res.Actions {
		c := a.Candidate
		fmt.Fprintf(w, "[%d] r/%s  %s\n", i+1, c.Subreddit, c.Title)
		fmt.Fprintf(w, "    id=%s score=%d comments=%d\n", c.ID, c.Score, c.NumComments)
		if c.Permalink != "" {
			fmt.Fprintf(w, "    https://www.reddit.com%s\n", c.Permalink)
		}
		switch {
		case a.Status == model.StatusPosted:
			fmt.Fprintf(w, "    posted: %s\n", a.Permalink)
		case a.Status == model.StatusPending:
			if a.Brief.Body != "" {
				fmt.Fprintf(w, "    context: %s\n", a.Brief.Body)
			}
			fmt.Fprintf(w, "    pending: write a reply, then `cultivate post %s --text \"...\"`\n", c.ID)
		case a.Status == model.StatusDryRun:
			fmt.Fprintln(w, "    dry run: recorded, not posted")
		case a.Failure != "":
			fmt.Fprintf(w, "    failed (%s): %s\n", a.Failure, strings.Join(a.Errors, "; "))
			fmt.Fprintf(w, "    %s\n", a.Failure.Advice())
		}
		if i < len(res.Delays) {
			fmt.Fprintf(w, "    paused %s\n", res.Delays[i].Round(time.Second))
		}
	}
	if res.Session != nil {
		fmt.Fprintf(w, "%s\nRecorded session %s: %d attempted in %s\n", rule,
			res.Session.ID, res.Session.CommentsAttempted, strings.Join(res.Session.Subreddits, ", "))
	}
	if res.Interrupted {
		fmt.Fprintln(w, "Interrupted: partial session saved.")
	}
}

func dropSummary(m map[engage.DropReason]int) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[engage.DropReason(k)]))
	}
	return " (dropped: " + strings.Join(parts, ", ") + ")"
}

func printStatus(w io.Writer, rep jobs.StatusReport, lim engage.Limits, now time.Time) {
	id := rep.Identity
	fmt.Fprintf(w, "Account: u/%s\n%s\n", id.Name, rule)
	fmt.Fprintf(w, "Karma: %d (comment %d, link %d)", id.TotalKarma(), id.CommentKarma, id.LinkKarma)
	if rep.HasKarmaDelta {
		fmt.Fprintf(w, "  %+d since last check", rep.KarmaDelta)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Today: %d/%d sessions, %d/%d comments\n", rep.SessionsToday, lim.MaxSessionsPerDay, rep.CommentsToday, lim.DailyCommentCap())
	fmt.Fprintf(w, "All time: %d sessions, %d comment records\n", rep.TotalSessions, rep.TotalComments)
	if rep.Decision.Allowed {
		fmt.Fprintln(w, "Can run a session now.")
	} else {
		fmt.Fprintf(w, "Cannot run now: %s\n", rep.Decision.Reason)
		fmt.Fprintf(w, "Next allowed: %s (in %s)\n", rep.NextAllowed.Format(time.RFC1123), until(now, rep.NextAllowed))
	}

	if len(rep.BySubreddit) > 0 {
		fmt.Fprintln(w, "\nBy subreddit:")
		subs := make([]string, 0, len(rep.BySubreddit))
		for s := range rep.BySubreddit {
			subs = append(subs, s)
		}
		sort.Strings(subs)
		for _, s := range subs {
			fmt.Fprintf(w, "  r/%-20s %d\n", s, rep.BySubreddit[s])
		}
	}
	dates := analytics.SortedDates(rep.Daily)
	if n := len(dates); n > 7 {
		dates = dates[n-7:]
	}
	if len(dates) > 0 {
		fmt.Fprintln(w, "\nLast days:")
		for _, d := range dates {
			b := rep.Daily[d]
			fmt.Fprintf(w, "  %s  posted=%d pending=%d dry_run=%d\n", d, b[model.StatusPosted], b[model.StatusPending], b[model.StatusDryRun])
		}
	}
}

func printShadowBan(w io.Writer, name string, st health.Status) {
	switch st.ShadowBanned {
	case health.No:
		fmt.Fprintf(w, "OK: u/%s looks visible. %s\n", name, st.Detail)
	case health.Yes:
		fmt.Fprintf(w, "WARNING: u/%s appears shadow-banned. %s\n", name, st.Detail)
		fmt.Fprintln(w, "Stop automated activity and check the account manually.")
	default:
		fmt.Fprintf(w, "UNKNOWN: could not confirm visibility of u/%s. %s\n", name, st.Detail)
	}
}

func printPost(w io.Writer, res jobs.PostResult) {
	if res.Posted {
		fmt.Fprintf(w, "Posted on %s: %s\n", res.PostID, res.Permalink)
		if !res.Voted {
			fmt.Fprintln(w, "  (upvote failed; comment was still posted)")
		}
		return
	}
	fmt.Fprintf(w, "Not posted on %s (%s): %s\n", res.PostID, res.Failure, strings.Join(res.Errors, "; "))
	fmt.Fprintf(w, "  %s\n", res.Advice())
}

func printNext(w io.Writer, at time.Time, d engage.Decision, now time.Time) {
	if !d.Allowed {
		fmt.Fprintf(w, "No allowed start found: %s\n", d.Reason)
		return
	}
	if !at.After(now) {
		fmt.Fprintln(w, "A session can start now.")
		return
	}
	fmt.Fprintf(w, "Next session allowed at %s (in %s)\n", at.Format(time.RFC1123), until(now, at))
}

func until(now, t time.Time) string {
	d := t.Sub(now)
	if d < 0 {
		d = 0
	}
	return d.Round(time.Minute).String()
}
