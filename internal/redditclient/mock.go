package redditclient

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"cultivator/internal/model"
)

// MockClient implements Client with synthetic data. Nothing leaves the process.
type MockClient struct {
	Name         string
	ShadowBanned bool
	rng          *rand.Rand
	now          func() time.Time
}

func NewMockClient() *MockClient {
	return &MockClient{Name: "mock_user", rng: rand.New(rand.NewSource(time.Now().UnixNano())), now: time.Now}
}

func (mc *MockClient) Me(ctx context.Context) (model.Identity, error) {
	return model.Identity{Name: mc.Name, LinkKarma: 12, CommentKarma: 140, CreatedAt: mc.now().AddDate(-1, 0, 0)}, nil
}

func (mc *MockClient) Fetch(ctx context.Context, sub string, limit int) ([]model.Candidate, error) {
	var posts []model.Candidate
	now := mc.now()
	for i := 0; i < limit; i++ {
		id := fmt.Sprintf("t3_mock%s%d%04d", sub, i, mc.rng.Intn(10000))
		posts = append(posts, model.Candidate{
			ID:          id,
			Title:       fmt.Sprintf("[%s] Simulated discussion thread #%d", sub, i),
			Body:        "Simulated body text.",
			Author:      "simulated_user",
			Subreddit:   sub,
			Score:       mc.rng.Intn(600),
			NumComments: mc.rng.Intn(50),
			CreatedAt:   now.Add(-time.Duration(mc.rng.Intn(10*60)) * time.Minute),
			Permalink:   fmt.Sprintf("/r/%s/comments/%s/", sub, id[3:]),
		})
	}
	return posts, nil
}

func (mc *MockClient) Token(ctx context.Context) (string, error) { return "mock-modhash", nil }

func (mc *MockClient) Comment(ctx context.Context, parentID, text, token string) (CommentResult, error) {
	return CommentResult{Success: true, Permalink: "/r/mock/comments/" + parentID + "/_/mock/"}, nil
}

func (mc *MockClient) Vote(ctx context.Context, id string, dir int, token string) (bool, error) {
	return true, nil
}

func (mc *MockClient) ProbePublicProfile(ctx context.Context, name string) (Probe, error) {
	if mc.ShadowBanned {
		return Probe{Status: 404, NotFound: true}, nil
	}
	return Probe{Status: 200, Name: name}, nil
}
