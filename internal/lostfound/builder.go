package lostfound

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/dbsmedya/blobrescue/internal/digest"
	"github.com/dbsmedya/blobrescue/internal/logger"
)

// Builder scans a recovery directory and hashes its files.
type Builder struct {
	fs     afero.Fs
	logger *logger.Logger
}

// NewBuilder creates a Builder reading from fs. A nil fs uses the OS filesystem.
func NewBuilder(fs afero.Fs, log *logger.Logger) *Builder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Builder{fs: fs, logger: log}
}

// Build indexes the direct regular files of dir. Symlinks to regular files are
// indexed under the link path.
//
// A directory that cannot be listed yields an empty index. A file that cannot
// be read fails the build.
func (b *Builder) Build(dir string) (*Index, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve lost+found directory %q: %w", dir, err)
	}

	b.logger.Infof("Scanning: '%s' lost+found directory.", dir)
	ix := NewIndex(absDir)

	// ReadDir returns entries sorted by name, which fixes the duplicate winner.
	infos, err := afero.ReadDir(b.fs, absDir)
	if err != nil {
		b.logger.Warnw("Cannot list lost+found directory, continuing with no recovery candidates",
			"dir", absDir,
			"error", err,
		)
		return ix, nil
	}

	for _, info := range infos {
		path := filepath.Join(absDir, info.Name())
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := b.fs.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				b.logger.Warnw("Skipping symlink without a regular file target", "path", path, "error", err)
				continue
			}
			info = target
		}
		if !info.Mode().IsRegular() {
			b.logger.Debugw("Skipping non-regular entry", "path", path, "mode", info.Mode().String())
			continue
		}

		sum, size, err := b.hashFile(path)
		if err != nil {
			return nil, err
		}

		if replaced := ix.add(Entry{Digest: sum, Path: path, Size: size}); replaced {
			b.logger.Debugw("Duplicate recovery content, keeping later file", "digest", sum, "path", path)
		}
	}

	b.logger.Infow("Lost+found index built",
		"dir", absDir,
		"files", ix.ScannedFiles(),
		"distinct_digests", ix.Len(),
		"size", humanize.IBytes(uint64(ix.ScannedBytes())),
	)
	return ix, nil
}

func (b *Builder) hashFile(path string) (string, int64, error) {
	f, err := b.fs.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open recovery file %q: %w", path, err)
	}
	defer f.Close()

	sum, size, err := digest.Sum(f)
	if err != nil {
		return "", 0, fmt.Errorf("read recovery file %q: %w", path, err)
	}
	return sum, size, nil
}
