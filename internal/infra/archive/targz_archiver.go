package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dealflow-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Archiver = (*TarGzArchiver)(nil)

// TarGzArchiver bundles documents into tar.gz files under a single
// archive directory. Bundles are written to a temp file and renamed, so
// a partially written bundle is never visible under its final name.
type TarGzArchiver struct {
	dir string
	log *zerolog.Logger
}

func NewTarGzArchiver(dir string, logger *zerolog.Logger) (*TarGzArchiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	l := logger.With().Str("component", "TarGzArchiver").Logger()
	return &TarGzArchiver{dir: dir, log: &l}, nil
}

func (a *TarGzArchiver) Bundle(ctx context.Context, name string, files []string) (*adapter.BundleInfo, error) {
	final := filepath.Join(a.dir, name+".tar.gz")
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer os.Remove(tmp)

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	added := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			f.Close()
			return nil, err
		}
		if err := a.addFile(tw, path); err != nil {
			if os.IsNotExist(err) {
				// already archived or manually removed; record and move on
				a.log.Warn().Str("path", path).Msg("document missing; skipped")
				continue
			}
			f.Close()
			return nil, fmt.Errorf("add %s: %w", path, err)
		}
		added++
	}

	if err := tw.Close(); err != nil {
		f.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("sync bundle: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, final); err != nil {
		return nil, fmt.Errorf("publish bundle: %w", err)
	}

	st, err := os.Stat(final)
	if err != nil {
		return nil, err
	}
	info := &adapter.BundleInfo{Path: final, Files: added, Bytes: st.Size(), CreatedAt: time.Now()}
	a.log.Info().Str("bundle", final).Int("files", added).Int64("bytes", info.Bytes).Msg("bundle written")
	return info, nil
}

func (a *TarGzArchiver) addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(st, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// PruneOlderThan removes bundles whose modification time predates the
// cutoff. Bundle mtime is the write time, which is what the retention
// window is measured against.
func (a *TarGzArchiver) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tar.gz") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(a.dir, e.Name())
		if err := os.Remove(path); err != nil {
			a.log.Warn().Err(err).Str("bundle", path).Msg("could not prune bundle")
			continue
		}
		removed++
	}
	if removed > 0 {
		a.log.Info().Int("removed", removed).Msg("aged bundles pruned")
	}
	return removed, nil
}
