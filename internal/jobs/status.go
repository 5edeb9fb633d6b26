package jobs

import (
	"context"
	"fmt"
	"time"

	"cultivator/internal/analytics"
	"cultivator/internal/engage"
	"cultivator/internal/health"
	"cultivator/internal/model"
)

// StatusReport is what the status command prints.
type StatusReport struct {
	Identity      model.Identity
	Decision      engage.Decision
	NextAllowed   time.Time
	CommentsToday int
	SessionsToday int
	TotalComments int
	TotalSessions int
	KarmaDelta    int
	HasKarmaDelta bool
	BySubreddit   map[string]int
	Daily         map[string]map[model.Status]int
}

// Login checks the platform session and returns the identity.
func (r *Runner) Login(ctx context.Context) (model.Identity, error) {
	return r.login(ctx)
}

// Status reports limits and activity, and appends a karma snapshot. Comments and
// sessions are never modified.
func (r *Runner) Status(ctx context.Context) (StatusReport, error) {
	var rep StatusReport
	id, err := r.login(ctx)
	rep.Identity = id
	if err != nil {
		return rep, err
	}
	ledger, err := r.load(ctx)
	if err != nil {
		return rep, err
	}

	now := r.Now()
	today := model.DateOf(now)
	rep.Decision = engage.Evaluate(ledger, now, r.Limits)
	rep.NextAllowed, _ = engage.NextAllowed(ledger, now, r.Limits)
	rep.CommentsToday = len(ledger.CommentsOn(today))
	rep.SessionsToday = len(ledger.SessionsOn(today))
	rep.TotalComments = len(ledger.Comments)
	rep.TotalSessions = len(ledger.Sessions)
	rep.BySubreddit = analytics.SubredditCounts(ledger.Comments)
	rep.Daily = analytics.DailyCounts(ledger.Comments)

	ledger.AppendKarma(model.KarmaSnapshot{
		Timestamp: now,
		Total:     id.TotalKarma(),
		Comment:   id.CommentKarma,
		Link:      id.LinkKarma,
	})
	rep.KarmaDelta, rep.HasKarmaDelta = analytics.KarmaDelta(ledger.KarmaHistory)

	if err := r.Store.Save(context.WithoutCancel(ctx), ledger); err != nil {
		return rep, fmt.Errorf("save ledger: %w", err)
	}
	return rep, nil
}

// ShadowBan logs in and compares the identity against its public profile.
func (r *Runner) ShadowBan(ctx context.Context) (model.Identity, health.Status, error) {
	id, err := r.login(ctx)
	if err != nil {
		return id, health.Status{ShadowBanned: health.Unknown, Detail: err.Error()}, err
	}
	return id, health.Check(ctx, r.Client, id.Name), nil
}

// Next returns when the next session may start. It needs no platform session.
func (r *Runner) Next(ctx context.Context) (time.Time, engage.Decision, error) {
	ledger, err := r.load(ctx)
	if err != nil {
		return time.Time{}, engage.Decision{}, err
	}
	at, d := engage.NextAllowed(ledger, r.Now(), r.Limits)
	return at, d, nil
}
