package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cultivator/internal/logging"
	"cultivator/internal/metrics"
	"cultivator/internal/model"
	"cultivator/internal/redditclient"
	"cultivator/internal/util"
)

// textPreviewLen bounds the comment text kept in the ledger.
const textPreviewLen = 100

// PostResult reports a single-target post attempt.
type PostResult struct {
	Identity  model.Identity
	PostID    string
	Posted    bool
	Voted     bool
	Permalink string
	Failure   redditclient.FailureKind
	Errors    []string
}

// Advice is the operator recommendation for a failed post. Empty on success.
func (p PostResult) Advice() string {
	if p.Posted {
		return ""
	}
	return p.Failure.Advice()
}

// PostComment upvotes the target, pauses briefly, then posts text under it. A
// success is recorded as posted; a rejected post leaves the ledger unchanged.
func (r *Runner) PostComment(ctx context.Context, postID, text string) (PostResult, error) {
	res := PostResult{PostID: postID}
	id, err := r.login(ctx)
	res.Identity = id
	if err != nil {
		return res, err
	}
	token, err := r.Client.Token(ctx)
	if err != nil || token == "" {
		return res, errors.Join(ErrNoToken, err)
	}
	if strings.TrimSpace(text) == "" {
		return res, ErrEmptyText
	}
	ledger, err := r.load(ctx)
	if err != nil {
		return res, err
	}
	for _, c := range ledger.Comments {
		if c.PostID == postID && c.Status == model.StatusPosted {
			return res, fmt.Errorf("%w: %s", ErrDuplicate, postID)
		}
	}

	out := r.postOne(ctx, postID, text, token)
	res.Voted = out.Voted
	res.Failure = out.Failure
	res.Errors = out.Errors
	if !out.Posted {
		return res, nil
	}
	res.Posted = true
	res.Permalink = out.Permalink

	// Reload so a session that finished meanwhile is not overwritten.
	ledger, err = r.load(ctx)
	if err != nil {
		return res, err
	}
	now := r.Now()
	rec := model.CommentRecord{
		PostID:      postID,
		Date:        model.DateOf(now),
		Timestamp:   now,
		Status:      model.StatusPosted,
		CommentURL:  out.Permalink,
		TextPreview: util.Truncate(text, textPreviewLen),
	}
	// Carry the target's details over from an earlier pending record.
	for i := len(ledger.Comments) - 1; i >= 0; i-- {
		if c := ledger.Comments[i]; c.PostID == postID {
			rec.Subreddit, rec.Title, rec.Permalink = c.Subreddit, c.Title, c.Permalink
			break
		}
	}
	ledger.AppendComment(rec)
	if err := r.Store.Save(context.WithoutCancel(ctx), ledger); err != nil {
		return res, fmt.Errorf("save ledger: %w", err)
	}
	metrics.Comments.WithLabelValues(string(model.StatusPosted)).Inc()
	return res, nil
}

type postOutcome struct {
	Posted    bool
	Voted     bool
	Permalink string
	Failure   redditclient.FailureKind
	Errors    []string
}

// postOne is shared by the single-target command and composed session posts.
func (r *Runner) postOne(ctx context.Context, postID, text, token string) postOutcome {
	var out postOutcome
	ok, err := r.Client.Vote(ctx, postID, 1, token)
	if err != nil || !ok {
		metrics.ActionFailures.WithLabelValues("vote").Inc()
		logging.Warn("upvote_failed", map[string]any{"post_id": postID, "error": fmt.Sprint(err)})
	}
	out.Voted = ok && err == nil

	if err := r.Sleeper.Sleep(ctx, r.uniform(r.VotePause[0], r.VotePause[1])); err != nil {
		out.Failure = redditclient.FailureUnknown
		out.Errors = []string{err.Error()}
		return out
	}

	cr, err := r.Client.Comment(ctx, postID, text, token)
	if err != nil {
		cr = redditclient.CommentResult{Errors: []string{err.Error()}}
	}
	if cr.Success {
		out.Posted = true
		out.Permalink = cr.Permalink
		logging.Info("comment_posted", map[string]any{"post_id": postID, "permalink": cr.Permalink})
		return out
	}
	out.Errors = cr.Errors
	out.Failure = redditclient.Classify(cr.Errors)
	metrics.ActionFailures.WithLabelValues(string(out.Failure)).Inc()
	logging.Warn("comment_failed", map[string]any{"post_id": postID, "kind": string(out.Failure), "errors": strings.Join(cr.Errors, "; ")})
	return out
}
