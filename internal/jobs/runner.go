package jobs

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"cultivator/internal/engage"
	"cultivator/internal/model"
	"cultivator/internal/redditclient"
	"cultivator/internal/store"
)

// Setup failures. The run aborts before touching the ledger.
var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrSuspended   = errors.New("account suspended")
	ErrNoToken     = errors.New("could not get action token (modhash)")
	ErrLedger      = errors.New("ledger unavailable")
	ErrEmptyText   = errors.New("comment text is empty")
	ErrDuplicate   = errors.New("already posted a comment on this target")
)

// Sleeper performs pacing pauses. Tests replace it to run without wall-clock waits.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper blocks for d or until ctx is done.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Composer writes comment text for a brief. When a Runner has none, live sessions
// hand briefs off and record the targets as pending.
type Composer interface {
	Compose(ctx context.Context, brief model.CommentBrief) (string, error)
}

// Runner ties the platform client, ledger store and safety limits together.
type Runner struct {
	Client   redditclient.Client
	Store    store.Store
	Limits   engage.Limits
	Composer Composer

	// RequireHealthy aborts sessions unless the shadow-ban probe says visible.
	RequireHealthy bool

	Now     func() time.Time
	Sleeper Sleeper
	Rand    *rand.Rand
	NewID   func() string

	// FetchPause and VotePause bound the short randomized pauses between fetches
	// and between the courtesy vote and the comment.
	FetchPause [2]time.Duration
	VotePause  [2]time.Duration
}

func NewRunner(client redditclient.Client, st store.Store, lim engage.Limits) *Runner {
	return &Runner{
		Client:         client,
		Store:          st,
		Limits:         lim,
		RequireHealthy: true,
		Now:            time.Now,
		Sleeper:        RealSleeper{},
		Rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
		NewID:          uuid.NewString,
		FetchPause:     [2]time.Duration{time.Second, 3 * time.Second},
		VotePause:      [2]time.Duration{2 * time.Second, 5 * time.Second},
	}
}

// uniform draws a duration in [min, max].
func (r *Runner) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(r.Rand.Int63n(int64(max-min)+1))
}

func (r *Runner) login(ctx context.Context) (model.Identity, error) {
	id, err := r.Client.Me(ctx)
	if err != nil {
		return id, errors.Join(ErrNotLoggedIn, err)
	}
	if id.Name == "" {
		return id, ErrNotLoggedIn
	}
	if id.Suspended {
		return id, ErrSuspended
	}
	return id, nil
}

func (r *Runner) load(ctx context.Context) (model.Ledger, error) {
	l, err := r.Store.Load(ctx)
	if err != nil {
		return l, errors.Join(ErrLedger, err)
	}
	return l, nil
}
