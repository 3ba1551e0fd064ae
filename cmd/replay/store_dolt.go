//go:build cgo

package main

import (
	"context"

	"github.com/posm-tools/replay-core/internal/store"
	"github.com/posm-tools/replay-core/internal/store/sqlstore"
)

// openDurableStore opens the embedded Dolt-backed element store at dir.
func openDurableStore(ctx context.Context, dir string) (store.Store, func() error, error) {
	s, err := sqlstore.Open(ctx, sqlstore.Config{Path: dir, Database: "replay"})
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}
