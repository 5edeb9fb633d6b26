package model

import "time"

// Status is the terminal state recorded for a comment attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusPosted  Status = "posted"
	StatusDryRun  Status = "dry_run"
)

// Identity is the logged-in account as reported by the platform.
type Identity struct {
	Name         string
	LinkKarma    int
	CommentKarma int
	CreatedAt    time.Time
	Suspended    bool
}

// TotalKarma is link plus comment karma.
func (i Identity) TotalKarma() int { return i.LinkKarma + i.CommentKarma }

// Candidate is a fetched post considered for a comment. Never persisted.
type Candidate struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"selftext,omitempty"`
	Author      string    `json:"author"`
	Subreddit   string    `json:"subreddit"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	CreatedAt   time.Time `json:"created_at"`
	Permalink   string    `json:"permalink"`
	URL         string    `json:"url,omitempty"`
}

// AgeHours is how long ago the candidate was created, relative to now.
func (c Candidate) AgeHours(now time.Time) float64 {
	return now.Sub(c.CreatedAt).Hours()
}

// CommentRecord is one comment attempt in the ledger.
type CommentRecord struct {
	PostID      string    `json:"post_id"`
	Subreddit   string    `json:"subreddit,omitempty"`
	Title       string    `json:"title,omitempty"`
	Date        string    `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
	Status      Status    `json:"status"`
	Permalink   string    `json:"permalink,omitempty"`
	CommentURL  string    `json:"comment_url,omitempty"`
	TextPreview string    `json:"text_preview,omitempty"`
}

// SessionRecord summarizes one orchestrator run.
type SessionRecord struct {
	ID                string    `json:"id,omitempty"`
	Date              string    `json:"date"`
	Timestamp         time.Time `json:"timestamp"`
	CommentsAttempted int       `json:"comments_attempted"`
	Subreddits        []string  `json:"subreddits"`
	DryRun            bool      `json:"dry_run"`
}

// KarmaSnapshot is a periodic reading of the identity's karma.
type KarmaSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Total     int       `json:"total"`
	Comment   int       `json:"comment"`
	Link      int       `json:"link"`
}

// CommentBrief is the context handed to whatever writes comment text.
type CommentBrief struct {
	PostID      string `json:"post_id"`
	Subreddit   string `json:"subreddit"`
	Title       string `json:"title"`
	Body        string `json:"body,omitempty"`
	Score       int    `json:"score"`
	NumComments int    `json:"num_comments"`
	Permalink   string `json:"permalink"`
}
