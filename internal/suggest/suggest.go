package suggest

import (
	"cultivator/internal/model"
	"cultivator/internal/util"
)

const (
	briefTitleLen = 300
	briefBodyLen  = 500
)

// Brief builds the context handed to the out-of-band comment writer.
func Brief(c model.Candidate) model.CommentBrief {
	return model.CommentBrief{
		PostID:      c.ID,
		Subreddit:   c.Subreddit,
		Title:       util.Truncate(util.NormalizeWhitespace(c.Title), briefTitleLen),
		Body:        util.Truncate(util.NormalizeWhitespace(c.Body), briefBodyLen),
		Score:       c.Score,
		NumComments: c.NumComments,
		Permalink:   c.Permalink,
	}
}
