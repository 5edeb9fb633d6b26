package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cultivator/internal/model"
)

func TestLoadMissingFileReturnsEmptyLedger(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "none", "ledger.json"))
	l, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, l.Comments)
	assert.Empty(t, l.Comments)
	assert.Empty(t, l.Sessions)
	assert.Empty(t, l.KarmaHistory)
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(filepath.Join(dir, "ledger.json"))
	now := time.Date(2025, 5, 2, 10, 30, 0, 0, time.UTC)

	l := model.NewLedger()
	l.AppendComment(model.CommentRecord{PostID: "t3_x", Subreddit: "golang", Date: model.DateOf(now), Timestamp: now, Status: model.StatusDryRun})
	l.AppendSession(model.SessionRecord{ID: "s1", Date: model.DateOf(now), Timestamp: now, CommentsAttempted: 1, Subreddits: []string{"golang"}, DryRun: true})
	l.AppendKarma(model.KarmaSnapshot{Timestamp: now, Total: 12, Comment: 10, Link: 2})
	require.NoError(t, s.Save(ctx, l))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "t3_x", got.Comments[0].PostID)
	assert.True(t, got.Comments[0].Timestamp.Equal(now))
	assert.Equal(t, []string{"golang"}, got.Sessions[0].Subreddits)
	assert.Equal(t, 12, got.KarmaHistory[0].Total)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := New(path).Load(context.Background())
	assert.Error(t, err)
}

func TestSaveTruncatesKarmaHistory(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "ledger.json"))
	l := model.NewLedger()
	for i := 0; i < 130; i++ {
		l.KarmaHistory = append(l.KarmaHistory, model.KarmaSnapshot{Total: i})
	}
	require.NoError(t, s.Save(ctx, l))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.KarmaHistory, model.KarmaHistoryCap)
	assert.Equal(t, 30, got.KarmaHistory[0].Total)
}
