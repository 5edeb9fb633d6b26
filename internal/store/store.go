package store

import (
	"context"
	"fmt"

	"cultivator/internal/model"
	"cultivator/internal/store/jsonfile"
	"cultivator/internal/store/ledgerdb"
)

// Store persists the whole ledger. Load on an empty store returns an empty ledger.
type Store interface {
	Load(ctx context.Context) (model.Ledger, error)
	Save(ctx context.Context, l model.Ledger) error
}

// Open returns the store for backend ("json" or "sqlite") at path.
// The returned close func is always non-nil.
func Open(backend, path string) (Store, func() error, error) {
	switch backend {
	case "", "json":
		return jsonfile.New(path), func() error { return nil }, nil
	case "sqlite":
		db, err := ledgerdb.Open(path)
		if err != nil {
			return nil, func() error { return nil }, fmt.Errorf("open ledger db: %w", err)
		}
		return db, db.Close, nil
	default:
		return nil, func() error { return nil }, fmt.Errorf("unknown storage backend %q", backend)
	}
}
