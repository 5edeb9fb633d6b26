package redditclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/time/rate"

	"cultivator/internal/model"
	"cultivator/internal/util"
)

// oauthToken stands in for the modhash: bearer auth already carries CSRF protection.
const oauthToken = "oauth"

// APIClient uses an OAuth script app instead of a browser cookie.
type APIClient struct {
	client    *reddit.Client
	limiter   *rate.Limiter
	probe     *http.Client
	userAgent string
}

func NewAPIClient(id, secret, user, pass, userAgent string, timeout time.Duration, rps float64) (*APIClient, error) {
	creds := reddit.Credentials{ID: id, Secret: secret, Username: user, Password: pass}
	client, err := reddit.NewClient(creds, reddit.WithUserAgent(userAgent))
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &APIClient{
		client:    client,
		limiter:   newLimiter(rps),
		probe:     newHTTPClient(timeout, 10*time.Second),
		userAgent: userAgent,
	}, nil
}

func (ac *APIClient) Me(ctx context.Context) (model.Identity, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return model.Identity{}, err
	}
	u, _, err := ac.client.Account.Info(ctx)
	if err != nil {
		return model.Identity{}, fmt.Errorf("authenticated api error: %w", err)
	}
	id := model.Identity{
		Name:         u.Name,
		LinkKarma:    u.PostKarma,
		CommentKarma: u.CommentKarma,
		Suspended:    u.IsSuspended,
	}
	if u.Created != nil {
		id.CreatedAt = u.Created.Time
	}
	return id, nil
}

func (ac *APIClient) Fetch(ctx context.Context, subreddit string, limit int) ([]model.Candidate, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	posts, _, err := ac.client.Subreddit.RisingPosts(ctx, subreddit, &reddit.ListOptions{Limit: clamp(limit, 1, 100)})
	if err != nil {
		return nil, fmt.Errorf("authenticated api error: %w", err)
	}
	out := make([]model.Candidate, 0, len(posts))
	for _, p := range posts {
		c := model.Candidate{
			ID:          p.FullID,
			Title:       p.Title,
			Body:        util.Truncate(p.Body, bodyExcerptLen),
			Author:      p.Author,
			Subreddit:   p.SubredditName,
			Score:       p.Score,
			NumComments: p.NumberOfComments,
			Permalink:   p.Permalink,
			URL:         p.URL,
		}
		if p.Created != nil {
			c.CreatedAt = p.Created.Time
		}
		out = append(out, c)
	}
	return out, nil
}

func (ac *APIClient) Token(ctx context.Context) (string, error) { return oauthToken, nil }

func (ac *APIClient) Comment(ctx context.Context, parentID, text, token string) (CommentResult, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return CommentResult{}, err
	}
	cm, resp, err := ac.client.Comment.Submit(ctx, parentID, text)
	if err != nil {
		msg := err.Error()
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			msg = "RATELIMIT: " + msg
		}
		return CommentResult{Errors: []string{msg}}, nil
	}
	return CommentResult{Success: true, Permalink: cm.Permalink}, nil
}

func (ac *APIClient) Vote(ctx context.Context, id string, dir int, token string) (bool, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return false, err
	}
	var err error
	switch {
	case dir > 0:
		_, err = ac.client.Post.Upvote(ctx, id)
	case dir < 0:
		_, err = ac.client.Post.Downvote(ctx, id)
	default:
		_, err = ac.client.Post.RemoveVote(ctx, id)
	}
	return err == nil, err
}

func (ac *APIClient) ProbePublicProfile(ctx context.Context, name string) (Probe, error) {
	return probeProfile(ctx, ac.probe, ac.limiter, "https://www.reddit.com", ac.userAgent, name)
}
