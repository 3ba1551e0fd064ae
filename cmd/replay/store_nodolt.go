//go:build !cgo

package main

import (
	"context"
	"fmt"

	"github.com/posm-tools/replay-core/internal/store"
)

// openDurableStore is unavailable without cgo; the embedded Dolt engine
// requires it. Builds without cgo are limited to the in-memory store.
func openDurableStore(_ context.Context, dir string) (store.Store, func() error, error) {
	return nil, nil, fmt.Errorf("--store-dir %s: durable store requires a cgo-enabled build", dir)
}
