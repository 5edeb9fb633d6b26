package engage

import (
	"fmt"
	"time"

	"cultivator/internal/config"
	"cultivator/internal/model"
	"cultivator/internal/schedule"
)

// Limits are the fixed safety limits for one run.
type Limits struct {
	MaxCommentsPerSession   int
	MaxSessionsPerDay       int
	MinHoursBetweenSessions float64
	MaxPostAgeHours         float64
	PostsPerSubreddit       int
	QuietHours              []int
}

// DefaultLimits matches config.Default().
func DefaultLimits() Limits { return LimitsFrom(config.Default().Policy) }

// LimitsFrom copies the policy section of the config.
func LimitsFrom(p config.PolicyConfig) Limits {
	return Limits{
		MaxCommentsPerSession:   p.MaxCommentsPerSession,
		MaxSessionsPerDay:       p.MaxSessionsPerDay,
		MinHoursBetweenSessions: p.MinHoursBetweenSessions,
		MaxPostAgeHours:         p.MaxPostAgeHours,
		PostsPerSubreddit:       p.PostsPerSubreddit,
		QuietHours:              append([]int(nil), p.QuietHours...),
	}
}

// DailyCommentCap is the most comments allowed on one calendar date.
func (l Limits) DailyCommentCap() int { return l.MaxCommentsPerSession * l.MaxSessionsPerDay }

// Rule names the check that produced a Decision.
type Rule string

const (
	RuleOK              Rule = "ok"
	RuleSessionCap      Rule = "session_cap"
	RuleCooldown        Rule = "cooldown"
	RuleDailyCommentCap Rule = "daily_comment_cap"
	RuleQuietHours      Rule = "quiet_hours"
)

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed bool
	Rule    Rule
	Reason  string
	// RetryAt is the earliest time the failing rule could pass, zero if unknown.
	RetryAt time.Time
}

func deny(rule Rule, retry time.Time, format string, args ...any) Decision {
	return Decision{Rule: rule, Reason: fmt.Sprintf(format, args...), RetryAt: retry}
}

// Evaluate decides whether a new session may start at now. It is pure: the same
// ledger, time and limits always give the same decision. Rules are checked in order
// and the first failure wins.
func Evaluate(l model.Ledger, now time.Time, lim Limits) Decision {
	today := model.DateOf(now)
	tomorrow := startOfDay(now).AddDate(0, 0, 1)

	sessions := l.SessionsOn(today)
	if len(sessions) >= lim.MaxSessionsPerDay {
		return deny(RuleSessionCap, tomorrow, "session cap reached: already had %d sessions today (max %d)", len(sessions), lim.MaxSessionsPerDay)
	}

	if len(sessions) > 0 {
		last := sessions[0]
		for _, s := range sessions[1:] {
			if s.Timestamp.After(last.Timestamp) {
				last = s
			}
		}
		since := now.Sub(last.Timestamp)
		minGap := time.Duration(lim.MinHoursBetweenSessions * float64(time.Hour))
		if since < minGap {
			return deny(RuleCooldown, last.Timestamp.Add(minGap), "cooldown active: only %.1fh since last session (need %gh)", since.Hours(), lim.MinHoursBetweenSessions)
		}
	}

	comments := len(l.CommentsOn(today))
	if comments >= lim.DailyCommentCap() {
		return deny(RuleDailyCommentCap, tomorrow, "daily comment cap reached: already %d comments today (daily max %d)", comments, lim.DailyCommentCap())
	}

	if schedule.IsQuiet(now, lim.QuietHours) {
		return deny(RuleQuietHours, schedule.NextWindow(now, lim.QuietHours), "quiet hours: no sessions start at %02d:00", now.Hour())
	}

	return Decision{Allowed: true, Rule: RuleOK, Reason: "OK"}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextAllowed returns the earliest time from now at which Evaluate allows a
// session, assuming nothing is added to the ledger meanwhile.
func NextAllowed(l model.Ledger, now time.Time, lim Limits) (time.Time, Decision) {
	t := now
	for i := 0; i < 16; i++ {
		d := Evaluate(l, t, lim)
		if d.Allowed || d.RetryAt.IsZero() || !d.RetryAt.After(t) {
			return t, d
		}
		t = d.RetryAt
	}
	return t, Evaluate(l, t, lim)
}
