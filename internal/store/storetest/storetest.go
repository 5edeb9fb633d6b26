// Package storetest provides an in-memory ledger store for tests.
package storetest

import (
	"context"

	"cultivator/internal/model"
)

// Memory keeps the ledger in process and counts saves.
type Memory struct {
	Ledger model.Ledger
	Saves  int
}

func (m *Memory) Load(ctx context.Context) (model.Ledger, error) {
	l := clone(m.Ledger)
	l.Normalize()
	return l, nil
}

func (m *Memory) Save(ctx context.Context, l model.Ledger) error {
	m.Ledger = clone(l)
	m.Ledger.Normalize()
	m.Saves++
	return nil
}

func clone(l model.Ledger) model.Ledger {
	out := model.Ledger{
		Comments:     append([]model.CommentRecord(nil), l.Comments...),
		Sessions:     make([]model.SessionRecord, 0, len(l.Sessions)),
		KarmaHistory: append([]model.KarmaSnapshot(nil), l.KarmaHistory...),
	}
	for _, s := range l.Sessions {
		s.Subreddits = append([]string(nil), s.Subreddits...)
		out.Sessions = append(out.Sessions, s)
	}
	return out
}
