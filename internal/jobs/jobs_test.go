package jobs

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cultivator/internal/engage"
	"cultivator/internal/health"
	"cultivator/internal/model"
	"cultivator/internal/redditclient"
	"cultivator/internal/store/storetest"
)

var testNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

type fakeClient struct {
	identity  model.Identity
	meErr     error
	token     string
	posts     map[string][]model.Candidate
	fetchErr  map[string]error
	hidden    bool
	probeErr  error
	results   []redditclient.CommentResult
	voteErr   error
	fetched   []string
	comments  []string
	votes     []string
	commentCt int
	onFetch   func(n int)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		identity: model.Identity{Name: "gopher", LinkKarma: 10, CommentKarma: 90},
		token:    "mh",
		posts:    map[string][]model.Candidate{},
		fetchErr: map[string]error{},
	}
}

func (f *fakeClient) Me(ctx context.Context) (model.Identity, error) { return f.identity, f.meErr }

func (f *fakeClient) Fetch(ctx context.Context, sub string, limit int) ([]model.Candidate, error) {
	f.fetched = append(f.fetched, sub)
	if f.onFetch != nil {
		f.onFetch(len(f.fetched))
	}
	if err := f.fetchErr[sub]; err != nil {
		return nil, err
	}
	return f.posts[sub], nil
}

func (f *fakeClient) Token(ctx context.Context) (string, error) { return f.token, nil }

func (f *fakeClient) Comment(ctx context.Context, parentID, text, token string) (redditclient.CommentResult, error) {
	f.comments = append(f.comments, parentID)
	if f.commentCt < len(f.results) {
		r := f.results[f.commentCt]
		f.commentCt++
		return r, nil
	}
	return redditclient.CommentResult{Success: true, Permalink: "/c/" + parentID}, nil
}

func (f *fakeClient) Vote(ctx context.Context, id string, dir int, token string) (bool, error) {
	f.votes = append(f.votes, id)
	return f.voteErr == nil, f.voteErr
}

func (f *fakeClient) ProbePublicProfile(ctx context.Context, name string) (redditclient.Probe, error) {
	if f.probeErr != nil {
		return redditclient.Probe{}, f.probeErr
	}
	if f.hidden {
		return redditclient.Probe{Status: 404, NotFound: true}, nil
	}
	return redditclient.Probe{Status: 200, Name: name}, nil
}

// fakeSleeper records pauses; a positive cancelOn cancels the run on that call.
type fakeSleeper struct {
	slept    []time.Duration
	cancelOn int
	cancel   context.CancelFunc
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	if s.cancelOn > 0 && len(s.slept) == s.cancelOn {
		s.cancel()
		return context.Canceled
	}
	return ctx.Err()
}

type fakeComposer struct{ calls int }

func (c *fakeComposer) Compose(ctx context.Context, b model.CommentBrief) (string, error) {
	c.calls++
	return "thoughtful reply to " + b.PostID, nil
}

func post(id, sub string) model.Candidate {
	return model.Candidate{
		ID: id, Title: "Title " + id, Body: "body", Author: "someone", Subreddit: sub,
		Score: 20, NumComments: 3, CreatedAt: testNow.Add(-time.Hour), Permalink: "/r/" + sub + "/comments/" + id,
	}
}

func newTestRunner(c *fakeClient, st *storetest.Memory) (*Runner, *fakeSleeper) {
	r := NewRunner(c, st, engage.DefaultLimits())
	sl := &fakeSleeper{}
	r.Sleeper = sl
	r.Now = func() time.Time { return testNow }
	r.Rand = rand.New(rand.NewSource(7))
	r.NewID = func() string { return "sess-1" }
	return r, sl
}

func dryOpts(subs ...string) SessionOptions {
	return SessionOptions{Subreddits: subs, MaxComments: 5, MinDelay: 45 * time.Second, MaxDelay: 90 * time.Second, DryRun: true}
}

func TestRunSessionDryRunEndToEnd(t *testing.T) {
	c := newFakeClient()
	c.posts["golang"] = []model.Candidate{post("t3_a", "golang"), post("t3_b", "golang"), post("t3_c", "golang")}
	st := &storetest.Memory{Ledger: model.NewLedger()}
	r, sl := newTestRunner(c, st)

	opts := dryOpts("golang")
	opts.MaxComments = 2
	res, err := r.RunSession(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)

	require.Len(t, st.Ledger.Comments, 2)
	for _, cm := range st.Ledger.Comments {
		assert.Equal(t, model.StatusDryRun, cm.Status)
		assert.Equal(t, "2025-03-03", cm.Date)
	}
	require.Len(t, st.Ledger.Sessions, 1)
	s := st.Ledger.Sessions[0]
	assert.Equal(t, 2, s.CommentsAttempted)
	assert.True(t, s.DryRun)
	assert.Equal(t, "sess-1", s.ID)
	assert.Equal(t, []string{"golang"}, s.Subreddits)
	assert.Equal(t, 1, st.Saves)

	// one pacing delay between the two actions, none after the last
	require.Len(t, sl.slept, 1)
	assert.GreaterOrEqual(t, sl.slept[0], 45*time.Second)
	assert.LessOrEqual(t, sl.slept[0], 90*time.Second)
	assert.Equal(t, sl.slept, res.Delays)
	assert.Empty(t, c.comments, "dry run never posts")

	assert.Equal(t, []State{StateIdle, StateAuthenticating, StateHealthCheck, StatePolicyCheck,
		StateFetching, StateFiltering, StateSelecting, StateActing, StateActing, StateLogging, StateDone}, res.Trace)
}

func TestRunSessionHardCapOverridesRequest(t *testing.T) {
	c := newFakeClient()
	for i := 0; i < 8; i++ {
		c.posts["golang"] = append(c.posts["golang"], post(fmt.Sprintf("t3_%d", i), "golang"))
	}
	st := &storetest.Memory{Ledger: model.NewLedger()}
	r, _ := newTestRunner(c, st)

	opts := dryOpts("golang")
	opts.MaxComments = 50
	res, err := r.RunSession(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, res.Actions, 5)
	assert.Len(t, st.Ledger.Comments, 5)
}

func TestRunSessionSkipsAlreadyCommented(t *testing.T) {
	c := newFakeClient()
	c.posts["golang"] = []model.Candidate{post("t3_a", "golang"), post("t3_b", "golang")}
	st := &storetest.Memory{Ledger: model.NewLedger()}
	st.Ledger.AppendComment(model.CommentRecord{PostID: "t3_a", Date: "2025-02-01", Status: model.StatusPosted})
	r, _ := newTestRunner(c, st)

	res, err := r.RunSession(context.Background(), dryOpts("golang"))
	require.NoError(t, err)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "t3_b", res.Actions[0].Candidate.ID)
}

func TestRunSessionShadowBanGate(t *testing.T) {
	for name, mutate := range map[string]func(*fakeClient){
		"hidden":        func(c *fakeClient) { c.hidden = true },
		"probe failure": func(c *fakeClient) { c.probeErr = errors.New("timeout") },
	} {
		t.Run(name, func(t *testing.T) {
			c := newFakeClient()
			c.posts["golang"] = []model.Candidate{post("t3_a", "golang")}
			mutate(c)
			st := &storetest.Memory{Ledger: model.NewLedger()}
			r, _ := newTestRunner(c, st)

			res, err := r.RunSession(context.Background(), dryOpts("golang"))
			require.NoError(t, err)
			assert.Equal(t, OutcomeBlocked, res.Outcome)
			assert.False(t, res.Acted())
			require.NotNil(t, res.Health)
			assert.NotEqual(t, health.No, res.Health.ShadowBanned)
			assert.Empty(t, c.fetched)
			assert.Equal(t, 0, st.Saves)
		})
	}
}

func TestRunSessionSkipHealth(t *testing.T) {
	c := newFakeClient()
	c.hidden = true
	c.posts["golang"] = []model.Candidate{post("t3_a", "golang")}
	st := &storetest.Memory{Ledger: model.NewLedger()}
	r, _ := newTestRunner(c, st)

	opts := dryOpts("golang")
	opts.SkipHealth = true
	res, err := r.RunSession(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Nil(t, res.Health)
	assert.NotContains(t, res.Trace, StateHealthCheck)
}

func TestRunSessionPolicyDenied(t *testing.T) {
	c := newFakeClient()
	c.posts["golang"] = []model.Candidate{post("t3_a", "golang")}
	st := &storetest.Memory{Ledger: model.NewLedger()}
	st.Ledger.AppendSession(model.SessionRecord{Date: "2025-03-03", Timestamp: testNow.Add(-2 * time.Hour)})
	r, _ := newTestRunner(c, st)

	res, err := r.RunSession(context.Background(), dryOpts("golang"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Equal(t, engage.RuleCooldown, res.Decision.Rule)
	assert.True(t, strings.HasPrefix(res.Reason, "cooldown"))
	assert.Empty(t, c.fetched)
	assert.Equal(t, 0, st.Saves)
}

func TestRunSessionFetchFailureTolerated(t *testing.T) {
	c := newFakeClient()
	c.posts["golang"] = []model.Candidate{post("t3_a", "golang")}
	c.fetchErr["rust"] = errors.New("502 bad gateway")
	st := &storetest.Memory{Ledger: model.NewLedger()}
	r, sl := newTestRunner(c, st)

	res, err := r.RunSession(context.Background(), dryOpts("golang", "rust"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.ElementsMatch(t, []string{"golang", "rust"}, c.fetched)
	require.Len(t, res.Groups, 2)
	for _, g := range res.Groups {
		if g.Subreddit == "rust" {
			assert.Error(t, g.Err)
			assert.Zero(t, g.Eligible)
		} else {
			assert.NoError(t, g.Err)
			assert.Equal(t, 1, g.Eligible)
		}
	}
	// a single fetch pause between the two subreddits
	require.Len(t, sl.slept, 1)
	assert.GreaterOrEqual(t, sl.slept[0], time.Second)
	assert.LessOrEqual(t, sl.slept[0], 3*time.Second)
}

func TestRunSessionNoCandidatesRecordsNothing(t *testing.T) {
	c := newFakeClient()
	old := post("t3_old", "golang")
	old.CreatedAt = testNow.Add(-12 * time.Hour)
	c.posts["golang"] = []model.Candidate{old}
	st := &storetest.Memory{Ledger: model.NewLedger()}
	r, _ := newTestRunner(c, st)

	res, err := r.RunSession(context.Background(), dryOpts("golang"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoCandidates, res.Outcome)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, map[engage.DropReason]int{engage.DropTooOld: 1}, res.Groups[0].Dropped)
	assert.Equal(t, 0, st.Saves)
	assert.Empty(t, st.Ledger.Sessions)
}

func TestRunSessionSetupFailures(t *testing.T) {
	t.Run("not logged in", func(t *testing.T) {
		c := newFakeClient()
		c.identity = model.Identity{}
		st := &storetest.Memory{Ledger: model.NewLedger()}
		r, _ := newTestRunner(c, st)
		_, err := r.RunSession(context.Background(), dryOpts("golang"))
		assert.ErrorIs(t, err, ErrNotLoggedIn)
		assert.Equal(t, 0, st.Saves)
	})
	t.Run("me error", func(t *testing.T) {
		c := newFakeClient()
		c.meErr = errors.New("401")
		r, _ := newTestRunner(c, &storetest.Memory{})
		_, err := r.RunSession(context.Background(), dryOpts("golang"))
		assert.ErrorIs(t, err, ErrNotLoggedIn)
	})
	t.Run("suspended", func(t *testing.T) {
		c := newFakeClient()
		c.identity.Suspended = true
		r, _ := newTestRunner(c, &storetest.Memory{})
		_, err := r.RunSession(context.Background(), dryOpts("golang"))
		assert.ErrorIs(t, err, ErrSuspended)
	})
	t.Run("missing token in live mode", func(t *testing.T) {
		c := newFakeClient()
		c.token = ""
		c.posts["golang"] = []model.Candidate{post("t3_a", "golang")}
		st := &storetest.Memory{Ledger: model.NewLedger()}
		r, _ := newTestRunner(c, st)
		opts := dryOpts("golang")
		opts.DryRun = false
		res, err := r.RunSession(context.Background(), opts)
		assert.ErrorIs(t, err, ErrNoToken)
		assert.Equal(t, OutcomeSetupFailed, res.Outcome)
		assert.Empty(t, c.fetched)
		assert.Equal(t, 0, st.Saves)
	})
}

func TestRunSessionLiveWithoutComposerRecordsPending(t *testing.T) {
	c := newFakeClient()
	c.posts["golang"] = []model.Candidate{post("t3_a", "golang")}
	st := &storetest.Memory{Ledger: model.NewLedger()}
	r, _ := newTestRunner(c, st)

	opts := dryOpts("golang")
	opts.DryRun = false
	res, err := r.RunSession(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, model.StatusPending, res.Actions[0].Status)
	assert.Equal(t, "t3_a", res.Actions[0].Brief.PostID)
	assert.Equal(t, model.StatusPending, st.Ledger.Comments[0].Status)
	assert.False(t, st.Ledger.Sessions[0].DryRun)
	assert.Empty(t, c.comments)
}

func TestRunSessionComposerStopsOnCaptcha(t *testing.T) {
	c := newFakeClient()
	c.posts["golang"] = []model.Candidate{post("t3_a", "golang"), post("t3_b", "golang"), post("t3_c", "golang")}
	c.results = []redditclient.CommentResult{
		{Success: true, Permalink: "/c/1"},
		{Errors: []string{"BAD_CAPTCHA: care to try these again?"}},
	}
	st := &storetest.Memory{Ledger: model.NewLedger()}
	r, _ := newTestRunner(c, st)
	comp := &fakeComposer{}
	r.Composer = comp

	opts := dryOpts("golang")
	opts.DryRun = false
	res, err := r.RunSession(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, comp.calls)
	require.Len(t, res.Actions, 2)
	assert.Equal(t, model.StatusPosted, res.Actions[0].Status)
	assert.Equal(t, redditclient.FailureCaptcha, res.Actions[1].Failure)
	assert.Empty(t, res.Actions[1].Status)

	require.Len(t, st.Ledger.Comments, 1, "failed post leaves no record")
	assert.Equal(t, "/c/1", st.Ledger.Comments[0].CommentURL)
	assert.Equal(t, 2, st.Ledger.Sessions[0].CommentsAttempted)
	assert.Len(t, c.votes, 2)
}

func TestRunSessionInterruptedDuringActingSavesPartial(t *testing.T) {
	c := newFakeClient()
	c.posts["golang"] = []model.Candidate{post("t3_a", "golang"), post("t3_b", "golang"), post("t3_c", "golang")}
	st := &storetest.Memory{Ledger: model.NewLedger()}
	r, sl := newTestRunner(c, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sl.cancel = cancel
	sl.cancelOn = 1

	res, err := r.RunSession(ctx, dryOpts("golang"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInterrupted, res.Outcome)
	assert.True(t, res.Interrupted)
	assert.Len(t, st.Ledger.Comments, 1)
	require.Len(t, st.Ledger.Sessions, 1)
	assert.Equal(t, 1, st.Ledger.Sessions[0].CommentsAttempted)
}

func TestRunSessionInterruptedDuringLastFetchWritesNothing(t *testing.T) {
	c := newFakeClient()
	c.posts["golang"] = []model.Candidate{post("t3_a", "golang")}
	c.posts["rust"] = []model.Candidate{post("t3_b", "rust")}
	st := &storetest.Memory{Ledger: model.NewLedger()}
	r, _ := newTestRunner(c, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.onFetch = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	res, err := r.RunSession(ctx, dryOpts("golang", "rust"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInterrupted, res.Outcome)
	assert.True(t, res.Interrupted)
	assert.False(t, res.Acted())
	assert.NotContains(t, res.Trace, StateLogging)
	assert.Nil(t, res.Session)
	assert.Equal(t, 0, st.Saves)
	assert.Empty(t, st.Ledger.Comments)
	assert.Empty(t, st.Ledger.Sessions)
}

func TestPostComment(t *testing.T) {
	c := newFakeClient()
	st := &storetest.Memory{Ledger: model.NewLedger()}
	st.Ledger.AppendComment(model.CommentRecord{PostID: "t3_a", Subreddit: "golang", Title: "Generics", Date: "2025-03-03", Status: model.StatusPending})
	r, sl := newTestRunner(c, st)

	text := strings.Repeat("a", 150)
	res, err := r.PostComment(context.Background(), "t3_a", text)
	require.NoError(t, err)
	assert.True(t, res.Posted)
	assert.True(t, res.Voted)
	assert.Equal(t, []string{"t3_a"}, c.votes)

	require.Len(t, sl.slept, 1)
	assert.GreaterOrEqual(t, sl.slept[0], 2*time.Second)
	assert.LessOrEqual(t, sl.slept[0], 5*time.Second)

	require.Len(t, st.Ledger.Comments, 2)
	rec := st.Ledger.Comments[1]
	assert.Equal(t, model.StatusPosted, rec.Status)
	assert.Equal(t, "/c/t3_a", rec.CommentURL)
	assert.Len(t, rec.TextPreview, 100)
	assert.Equal(t, "golang", rec.Subreddit)
	assert.Equal(t, "Generics", rec.Title)

	_, err = r.PostComment(context.Background(), "t3_a", "again")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestPostCommentFailures(t *testing.T) {
	cases := []struct {
		errs []string
		want redditclient.FailureKind
	}{
		{[]string{"RATELIMIT: you are doing that too much"}, redditclient.FailureRateLimited},
		{[]string{"THREAD_LOCKED: locked"}, redditclient.FailurePolicyRejected},
		{[]string{"BAD_CAPTCHA: try again"}, redditclient.FailureCaptcha},
		{[]string{"who knows"}, redditclient.FailureUnknown},
	}
	for _, tc := range cases {
		t.Run(string(tc.want), func(t *testing.T) {
			c := newFakeClient()
			c.results = []redditclient.CommentResult{{Errors: tc.errs}}
			st := &storetest.Memory{Ledger: model.NewLedger()}
			r, _ := newTestRunner(c, st)

			res, err := r.PostComment(context.Background(), "t3_x", "hello")
			require.NoError(t, err)
			assert.False(t, res.Posted)
			assert.Equal(t, tc.want, res.Failure)
			assert.NotEmpty(t, res.Advice())
			assert.Equal(t, 0, st.Saves)
		})
	}
}

func TestPostCommentVoteIsBestEffort(t *testing.T) {
	c := newFakeClient()
	c.voteErr = errors.New("vote rejected")
	st := &storetest.Memory{Ledger: model.NewLedger()}
	r, _ := newTestRunner(c, st)

	res, err := r.PostComment(context.Background(), "t3_x", "hello")
	require.NoError(t, err)
	assert.True(t, res.Posted)
	assert.False(t, res.Voted)
}

func TestPostCommentPreconditions(t *testing.T) {
	c := newFakeClient()
	r, _ := newTestRunner(c, &storetest.Memory{})
	_, err := r.PostComment(context.Background(), "t3_x", "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	c.token = ""
	_, err = r.PostComment(context.Background(), "t3_x", "hello")
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Empty(t, c.comments)
}

func TestStatusTwiceOnlyAppendsKarma(t *testing.T) {
	c := newFakeClient()
	st := &storetest.Memory{Ledger: model.NewLedger()}
	st.Ledger.AppendComment(model.CommentRecord{PostID: "t3_a", Subreddit: "golang", Date: "2025-03-03", Status: model.StatusDryRun})
	st.Ledger.AppendSession(model.SessionRecord{Date: "2025-03-03", Timestamp: testNow.Add(-8 * time.Hour), CommentsAttempted: 1})
	r, _ := newTestRunner(c, st)

	first, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, first.HasKarmaDelta)
	assert.True(t, first.Decision.Allowed)
	assert.Equal(t, 1, first.CommentsToday)
	assert.Equal(t, map[string]int{"golang": 1}, first.BySubreddit)

	c.identity.CommentKarma += 5
	second, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, second.HasKarmaDelta)
	assert.Equal(t, 5, second.KarmaDelta)

	assert.Len(t, st.Ledger.KarmaHistory, 2)
	assert.Len(t, st.Ledger.Comments, 1)
	assert.Len(t, st.Ledger.Sessions, 1)
}

func TestShadowBan(t *testing.T) {
	c := newFakeClient()
	c.hidden = true
	r, _ := newTestRunner(c, &storetest.Memory{})
	id, st, err := r.ShadowBan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gopher", id.Name)
	assert.Equal(t, health.Yes, st.ShadowBanned)

	c.identity = model.Identity{}
	_, st, err = r.ShadowBan(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Equal(t, health.Unknown, st.ShadowBanned)
}

func TestNext(t *testing.T) {
	st := &storetest.Memory{Ledger: model.NewLedger()}
	st.Ledger.AppendSession(model.SessionRecord{Date: "2025-03-03", Timestamp: testNow.Add(-2 * time.Hour)})
	r, _ := newTestRunner(newFakeClient(), st)

	at, d, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, testNow.Add(4*time.Hour), at)
}
