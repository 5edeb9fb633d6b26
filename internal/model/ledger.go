package model

import "time"

// KarmaHistoryCap bounds karma_history; older snapshots are dropped first.
const KarmaHistoryCap = 100

// DateLayout is the calendar-date format used for ledger bucketing.
const DateLayout = "2006-01-02"

// Ledger is the durable record of comments, sessions and karma readings.
type Ledger struct {
	Comments     []CommentRecord `json:"comments"`
	Sessions     []SessionRecord `json:"sessions"`
	KarmaHistory []KarmaSnapshot `json:"karma_history"`
}

// NewLedger returns an empty ledger with non-nil sequences.
func NewLedger() Ledger {
	return Ledger{
		Comments:     []CommentRecord{},
		Sessions:     []SessionRecord{},
		KarmaHistory: []KarmaSnapshot{},
	}
}

// Normalize fills nil sequences and enforces the karma cap.
func (l *Ledger) Normalize() {
	if l.Comments == nil {
		l.Comments = []CommentRecord{}
	}
	if l.Sessions == nil {
		l.Sessions = []SessionRecord{}
	}
	if l.KarmaHistory == nil {
		l.KarmaHistory = []KarmaSnapshot{}
	}
	if n := len(l.KarmaHistory); n > KarmaHistoryCap {
		l.KarmaHistory = append([]KarmaSnapshot(nil), l.KarmaHistory[n-KarmaHistoryCap:]...)
	}
}

// DateOf formats t as a ledger calendar date in t's location.
func DateOf(t time.Time) string { return t.Format(DateLayout) }

// HasCommented reports whether any comment record targets postID.
func (l Ledger) HasCommented(postID string) bool {
	for _, c := range l.Comments {
		if c.PostID == postID {
			return true
		}
	}
	return false
}

// CommentedIDs returns the set of every post id in the ledger.
func (l Ledger) CommentedIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(l.Comments))
	for _, c := range l.Comments {
		out[c.PostID] = struct{}{}
	}
	return out
}

// SessionsOn returns sessions recorded on the given date.
func (l Ledger) SessionsOn(date string) []SessionRecord {
	var out []SessionRecord
	for _, s := range l.Sessions {
		if s.Date == date {
			out = append(out, s)
		}
	}
	return out
}

// CommentsOn returns comment records dated on the given date.
func (l Ledger) CommentsOn(date string) []CommentRecord {
	var out []CommentRecord
	for _, c := range l.Comments {
		if c.Date == date {
			out = append(out, c)
		}
	}
	return out
}

// AppendComment adds a comment record.
func (l *Ledger) AppendComment(c CommentRecord) { l.Comments = append(l.Comments, c) }

// AppendSession adds a session record.
func (l *Ledger) AppendSession(s SessionRecord) { l.Sessions = append(l.Sessions, s) }

// AppendKarma adds a snapshot and truncates history to the newest KarmaHistoryCap.
func (l *Ledger) AppendKarma(k KarmaSnapshot) {
	l.KarmaHistory = append(l.KarmaHistory, k)
	if n := len(l.KarmaHistory); n > KarmaHistoryCap {
		l.KarmaHistory = append([]KarmaSnapshot(nil), l.KarmaHistory[n-KarmaHistoryCap:]...)
	}
}
