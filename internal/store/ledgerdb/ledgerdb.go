package ledgerdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"cultivator/internal/model"
)

// DB keeps the ledger in SQLite. Save replaces every row in one transaction,
// so readers always see a whole ledger.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: ":memory:" databases are per-connection.
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS comments (
	  seq INTEGER PRIMARY KEY AUTOINCREMENT,
	  post_id TEXT NOT NULL,
	  subreddit TEXT,
	  title TEXT,
	  date TEXT NOT NULL,
	  ts TEXT NOT NULL,
	  status TEXT NOT NULL,
	  permalink TEXT,
	  comment_url TEXT,
	  text_preview TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);
	CREATE INDEX IF NOT EXISTS idx_comments_date ON comments(date);
	CREATE TABLE IF NOT EXISTS sessions (
	  seq INTEGER PRIMARY KEY AUTOINCREMENT,
	  id TEXT,
	  date TEXT NOT NULL,
	  ts TEXT NOT NULL,
	  comments_attempted INTEGER NOT NULL,
	  subreddits TEXT,
	  dry_run INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date);
	CREATE TABLE IF NOT EXISTS karma_history (
	  seq INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts TEXT NOT NULL,
	  total INTEGER NOT NULL,
	  comment INTEGER NOT NULL,
	  link INTEGER NOT NULL
	);
	`)
	return err
}

// Load reads all three sequences in insertion order.
func (d *DB) Load(ctx context.Context) (model.Ledger, error) {
	l := model.NewLedger()
	var err error
	if l.Comments, err = d.loadComments(ctx); err != nil {
		return model.NewLedger(), err
	}
	if l.Sessions, err = d.loadSessions(ctx); err != nil {
		return model.NewLedger(), err
	}
	if l.KarmaHistory, err = d.loadKarma(ctx); err != nil {
		return model.NewLedger(), err
	}
	l.Normalize()
	return l, nil
}

func (d *DB) loadComments(ctx context.Context) ([]model.CommentRecord, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT post_id, COALESCE(subreddit,''), COALESCE(title,''), date, ts, status,
	  COALESCE(permalink,''), COALESCE(comment_url,''), COALESCE(text_preview,'') FROM comments ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CommentRecord{}
	for rows.Next() {
		var c model.CommentRecord
		var ts, status string
		if err := rows.Scan(&c.PostID, &c.Subreddit, &c.Title, &c.Date, &ts, &status, &c.Permalink, &c.CommentURL, &c.TextPreview); err != nil {
			return nil, err
		}
		if c.Timestamp, err = parseTS(ts); err != nil {
			return nil, err
		}
		c.Status = model.Status(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) loadSessions(ctx context.Context) ([]model.SessionRecord, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT COALESCE(id,''), date, ts, comments_attempted, COALESCE(subreddits,'[]'), dry_run FROM sessions ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.SessionRecord{}
	for rows.Next() {
		var s model.SessionRecord
		var ts, subs string
		var dry int
		if err := rows.Scan(&s.ID, &s.Date, &ts, &s.CommentsAttempted, &subs, &dry); err != nil {
			return nil, err
		}
		if s.Timestamp, err = parseTS(ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(subs), &s.Subreddits); err != nil {
			return nil, fmt.Errorf("decode session subreddits: %w", err)
		}
		s.DryRun = dry != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) loadKarma(ctx context.Context) ([]model.KarmaSnapshot, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT ts, total, comment, link FROM karma_history ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.KarmaSnapshot{}
	for rows.Next() {
		var k model.KarmaSnapshot
		var ts string
		if err := rows.Scan(&ts, &k.Total, &k.Comment, &k.Link); err != nil {
			return nil, err
		}
		if k.Timestamp, err = parseTS(ts); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Save replaces the stored ledger with l.
func (d *DB) Save(ctx context.Context, l model.Ledger) error {
	l.Normalize()
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []string{`DELETE FROM comments`, `DELETE FROM sessions`, `DELETE FROM karma_history`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	for _, c := range l.Comments {
		if _, err := tx.ExecContext(ctx, `INSERT INTO comments(post_id, subreddit, title, date, ts, status, permalink, comment_url, text_preview) VALUES(?,?,?,?,?,?,?,?,?)`,
			c.PostID, c.Subreddit, c.Title, c.Date, formatTS(c.Timestamp), string(c.Status), c.Permalink, c.CommentURL, c.TextPreview); err != nil {
			return err
		}
	}
	for _, s := range l.Sessions {
		subs := append([]string(nil), s.Subreddits...)
		sort.Strings(subs)
		sb, _ := json.Marshal(subs)
		dry := 0
		if s.DryRun {
			dry = 1
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sessions(id, date, ts, comments_attempted, subreddits, dry_run) VALUES(?,?,?,?,?,?)`,
			s.ID, s.Date, formatTS(s.Timestamp), s.CommentsAttempted, string(sb), dry); err != nil {
			return err
		}
	}
	for _, k := range l.KarmaHistory {
		if _, err := tx.ExecContext(ctx, `INSERT INTO karma_history(ts, total, comment, link) VALUES(?,?,?,?)`,
			formatTS(k.Timestamp), k.Total, k.Comment, k.Link); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func formatTS(t time.Time) string { return t.Format(time.RFC3339Nano) }

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}
