package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cultivator/internal/engage"
	"cultivator/internal/health"
	"cultivator/internal/logging"
	"cultivator/internal/metrics"
	"cultivator/internal/model"
	"cultivator/internal/redditclient"
	"cultivator/internal/suggest"
	"cultivator/internal/util"
)

// titleSnapshotLen bounds the title copied into a comment record.
const titleSnapshotLen = 100

// State is a step of the session state machine.
type State string

const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateHealthCheck    State = "health_check"
	StatePolicyCheck    State = "policy_check"
	StateFetching       State = "fetching"
	StateFiltering      State = "filtering"
	StateSelecting      State = "selecting"
	StateActing         State = "acting"
	StateLogging        State = "logging"
	StateDone           State = "done"
	StateAborted        State = "aborted"
)

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeDone         Outcome = "done"
	OutcomeDenied       Outcome = "denied"
	OutcomeBlocked      Outcome = "health_blocked"
	OutcomeNoCandidates Outcome = "no_candidates"
	OutcomeInterrupted  Outcome = "interrupted"
	OutcomeSetupFailed  Outcome = "setup_failed"
)

// SessionOptions are the caller's per-run choices. Limits still cap them.
type SessionOptions struct {
	Subreddits  []string
	MaxComments int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	DryRun      bool
	SkipHealth  bool
}

// GroupReport is the fetch/filter result for one subreddit.
type GroupReport struct {
	Subreddit string
	Fetched   int
	Eligible  int
	Dropped   map[engage.DropReason]int
	Err       error
}

// Action is what happened to one selected candidate.
type Action struct {
	Candidate model.Candidate
	Brief     model.CommentBrief
	// Status is empty when nothing was recorded for the candidate.
	Status    model.Status
	Permalink string
	Failure   redditclient.FailureKind
	Errors    []string
}

// Result is the full, itemized account of a session for the operator.
type Result struct {
	Identity    model.Identity
	Outcome     Outcome
	Reason      string
	Decision    engage.Decision
	Health      *health.Status
	Groups      []GroupReport
	PoolSize    int
	Actions     []Action
	Delays      []time.Duration
	Session     *model.SessionRecord
	Trace       []State
	Interrupted bool
}

// Acted reports whether the run reached the acting state.
func (res *Result) Acted() bool {
	for _, s := range res.Trace {
		if s == StateActing {
			return true
		}
	}
	return false
}

func (res *Result) enter(s State) {
	res.Trace = append(res.Trace, s)
	logging.Debug("session_state", map[string]any{"state": string(s)})
}

func (res *Result) abort(o Outcome, reason string) {
	res.Outcome = o
	res.Reason = reason
	res.enter(StateAborted)
}

// RunSession runs one batch session: login, health gate, policy, fetch, filter,
// select, act with randomized pacing, then record the session. Only setup
// failures come back as errors; denials and empty pools are normal outcomes.
func (r *Runner) RunSession(ctx context.Context, opts SessionOptions) (res Result, err error) {
	start := time.Now()
	metrics.SessionRuns.Inc()
	defer func() {
		metrics.SessionOutcomes.WithLabelValues(string(res.Outcome)).Inc()
		metrics.ObserveSessionDuration(start)
	}()

	res.enter(StateIdle)

	res.enter(StateAuthenticating)
	id, err := r.login(ctx)
	res.Identity = id
	if err != nil {
		res.abort(OutcomeSetupFailed, err.Error())
		return res, err
	}

	if !opts.SkipHealth {
		res.enter(StateHealthCheck)
		st := health.Check(ctx, r.Client, id.Name)
		res.Health = &st
		if !st.Proceed() {
			logging.Warn("health_check_failed", map[string]any{"verdict": string(st.ShadowBanned), "detail": st.Detail})
			if r.RequireHealthy {
				res.abort(OutcomeBlocked, fmt.Sprintf("shadow-ban check %s: %s", st.ShadowBanned, st.Detail))
				return res, nil
			}
		}
	} else {
		logging.Warn("health_check_skipped", map[string]any{"identity": id.Name})
	}

	res.enter(StatePolicyCheck)
	ledger, err := r.load(ctx)
	if err != nil {
		res.abort(OutcomeSetupFailed, err.Error())
		return res, err
	}
	now := r.Now()
	res.Decision = engage.Evaluate(ledger, now, r.Limits)
	if !res.Decision.Allowed {
		metrics.PolicyDenials.WithLabelValues(string(res.Decision.Rule)).Inc()
		logging.Info("policy_denied", map[string]any{"rule": string(res.Decision.Rule), "reason": res.Decision.Reason})
		res.abort(OutcomeDenied, res.Decision.Reason)
		return res, nil
	}

	var token string
	if !opts.DryRun {
		token, err = r.Client.Token(ctx)
		if err != nil || token == "" {
			err = errors.Join(ErrNoToken, err)
			res.abort(OutcomeSetupFailed, err.Error())
			return res, err
		}
	}

	pool, interrupted := r.gather(ctx, &res, ledger, opts)
	res.PoolSize = len(pool)
	// A cancel during the last fetch has no pause after it to surface.
	if interrupted || ctx.Err() != nil {
		res.Interrupted = true
		res.abort(OutcomeInterrupted, "interrupted while fetching")
		return res, nil
	}
	if len(pool) == 0 {
		res.abort(OutcomeNoCandidates, "no eligible posts found")
		return res, nil
	}

	res.enter(StateSelecting)
	selected := r.selectFrom(pool, opts.MaxComments)
	sessionStart := r.Now()

	attempted := r.act(ctx, &res, &ledger, selected, token, opts)
	if attempted == 0 && res.Interrupted {
		res.abort(OutcomeInterrupted, "interrupted before acting")
		return res, nil
	}

	res.enter(StateLogging)
	subs := map[string]struct{}{}
	for _, c := range selected[:attempted] {
		subs[c.Subreddit] = struct{}{}
	}
	rec := model.SessionRecord{
		ID:                r.NewID(),
		Date:              model.DateOf(sessionStart),
		Timestamp:         sessionStart,
		CommentsAttempted: attempted,
		Subreddits:        sortedKeys(subs),
		DryRun:            opts.DryRun,
	}
	ledger.AppendSession(rec)
	res.Session = &rec
	// Write what we have even if the operator interrupted.
	if err := r.Store.Save(context.WithoutCancel(ctx), ledger); err != nil {
		err = fmt.Errorf("save ledger: %w", err)
		res.abort(OutcomeSetupFailed, err.Error())
		return res, err
	}
	logging.Info("session_recorded", map[string]any{"id": rec.ID, "attempted": attempted, "dry_run": opts.DryRun})

	res.Outcome = OutcomeDone
	if res.Interrupted {
		res.Outcome = OutcomeInterrupted
	}
	res.enter(StateDone)
	return res, nil
}

// gather fetches each subreddit in shuffled order and filters each batch.
func (r *Runner) gather(ctx context.Context, res *Result, ledger model.Ledger, opts SessionOptions) ([]model.Candidate, bool) {
	res.enter(StateFetching)
	subs := append([]string(nil), opts.Subreddits...)
	r.Rand.Shuffle(len(subs), func(i, j int) { subs[i], subs[j] = subs[j], subs[i] })

	now := r.Now()
	seen := map[string]struct{}{}
	var pool []model.Candidate
	filtering := false
	for i, sub := range subs {
		posts, err := r.Client.Fetch(ctx, sub, r.Limits.PostsPerSubreddit)
		g := GroupReport{Subreddit: sub, Fetched: len(posts)}
		if err != nil {
			metrics.FetchErrors.WithLabelValues(sub).Inc()
			logging.Warn("fetch_failed", map[string]any{"subreddit": sub, "error": err.Error()})
			g.Err = err
			g.Fetched = 0
			posts = nil
		}
		if !filtering {
			res.enter(StateFiltering)
			filtering = true
		}
		if len(posts) > 0 {
			g.Dropped = engage.Tally(posts, ledger, now, r.Limits)
			delete(g.Dropped, engage.DropNone)
		}
		for _, c := range engage.Filter(posts, ledger, now, r.Limits) {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			pool = append(pool, c)
			g.Eligible++
		}
		res.Groups = append(res.Groups, g)
		logging.Info("subreddit_scanned", map[string]any{"subreddit": sub, "found": g.Fetched, "eligible": g.Eligible})

		if i < len(subs)-1 {
			if err := r.Sleeper.Sleep(ctx, r.uniform(r.FetchPause[0], r.FetchPause[1])); err != nil {
				return pool, true
			}
		}
	}
	return pool, false
}

// selectFrom shuffles the pool and applies the per-session hard cap regardless of
// what the caller asked for.
func (r *Runner) selectFrom(pool []model.Candidate, requested int) []model.Candidate {
	p := append([]model.Candidate(nil), pool...)
	r.Rand.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
	k := r.Limits.MaxCommentsPerSession
	if requested > 0 && requested < k {
		k = requested
	}
	if k > len(p) {
		k = len(p)
	}
	return p[:k]
}

// act handles each selected candidate and returns how many were attempted.
func (r *Runner) act(ctx context.Context, res *Result, ledger *model.Ledger, selected []model.Candidate, token string, opts SessionOptions) int {
	attempted := 0
	for i, c := range selected {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		res.enter(StateActing)
		a := Action{Candidate: c, Brief: suggest.Brief(c)}
		stop := false

		switch {
		case opts.DryRun:
			a.Status = model.StatusDryRun
		case r.Composer == nil:
			a.Status = model.StatusPending
		default:
			stop = r.composeAndPost(ctx, &a, token)
		}

		if a.Status != "" {
			rec := model.CommentRecord{
				PostID:    c.ID,
				Subreddit: c.Subreddit,
				Title:     util.Truncate(c.Title, titleSnapshotLen),
				Timestamp: r.Now(),
				Status:    a.Status,
				Permalink: c.Permalink,
			}
			rec.Date = model.DateOf(rec.Timestamp)
			if a.Status == model.StatusPosted {
				rec.CommentURL = a.Permalink
			}
			ledger.AppendComment(rec)
			metrics.Comments.WithLabelValues(string(a.Status)).Inc()
		}
		res.Actions = append(res.Actions, a)
		attempted++

		if stop {
			logging.Warn("session_stopped", map[string]any{"kind": string(a.Failure), "advice": a.Failure.Advice()})
			break
		}
		if i < len(selected)-1 {
			d := r.uniform(opts.MinDelay, opts.MaxDelay)
			res.Delays = append(res.Delays, d)
			if err := r.Sleeper.Sleep(ctx, d); err != nil {
				res.Interrupted = true
				break
			}
		}
	}
	return attempted
}

// composeAndPost asks the Composer for text and posts it. It reports whether the
// failure kind forbids further automated actions this session.
func (r *Runner) composeAndPost(ctx context.Context, a *Action, token string) bool {
	text, err := r.Composer.Compose(ctx, a.Brief)
	if err != nil || text == "" {
		logging.Warn("compose_failed", map[string]any{"post_id": a.Candidate.ID, "error": fmt.Sprint(err)})
		a.Status = model.StatusPending
		return false
	}
	out := r.postOne(ctx, a.Candidate.ID, text, token)
	a.Errors = out.Errors
	a.Failure = out.Failure
	if out.Posted {
		a.Status = model.StatusPosted
		a.Permalink = out.Permalink
		return false
	}
	return out.Failure.StopsSession()
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
