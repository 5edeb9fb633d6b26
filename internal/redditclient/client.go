package redditclient

import (
	"context"

	"cultivator/internal/model"
)

// Client is everything the session engine needs from the platform. Every call
// blocks with a bounded timeout; a timeout is a failed call, not a retry trigger.
type Client interface {
	// Me returns the logged-in identity. An empty Name means no session.
	Me(ctx context.Context) (model.Identity, error)
	// Fetch returns up to limit rising posts from a subreddit. Empty is valid.
	Fetch(ctx context.Context, subreddit string, limit int) ([]model.Candidate, error)
	// Token returns the per-session action token (modhash) required to post or vote.
	Token(ctx context.Context) (string, error)
	Comment(ctx context.Context, parentID, text, token string) (CommentResult, error)
	Vote(ctx context.Context, id string, dir int, token string) (bool, error)
	// ProbePublicProfile looks the identity up without credentials.
	ProbePublicProfile(ctx context.Context, name string) (Probe, error)
}

// CommentResult is the platform's answer to a comment submission.
type CommentResult struct {
	Success   bool
	Errors    []string
	Permalink string
}

// Probe is the unauthenticated view of a profile.
type Probe struct {
	Status   int
	NotFound bool
	Name     string
}
