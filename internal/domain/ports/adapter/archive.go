package adapter

import (
	"context"
	"time"
)

// BundleInfo describes a written archive bundle.
type BundleInfo struct {
	Path      string
	Files     int
	Bytes     int64
	CreatedAt time.Time
}

// Archiver bundles aged documents into compressed archives and prunes
// bundles past their own retention window.
type Archiver interface {
	// Bundle writes the given files into one compressed bundle and
	// returns only after the bundle is durably on disk.
	Bundle(ctx context.Context, name string, files []string) (*BundleInfo, error)
	// PruneOlderThan removes bundles created before the cutoff,
	// returning how many were deleted.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
