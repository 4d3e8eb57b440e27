package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"dhis2dupes/internal/fileutil"
	"dhis2dupes/internal/users"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	lockName      = ".dhis2dupes.lock"
	lockRetryWait = 100 * time.Millisecond
)

// Paths returns the files WriteFiles produces for the given formats.
func Paths(dir, basename string, formats []string) []string {
	var out []string
	for _, format := range formats {
		switch strings.ToLower(format) {
		case FormatCSV:
			out = append(out,
				filepath.Join(dir, basename+".csv"),
				filepath.Join(dir, basename+"_duplicates.csv"),
			)
		case FormatXLSX:
			out = append(out, filepath.Join(dir, basename+".xlsx"))
		}
	}
	return out
}

// WriteFiles writes the roster in every requested format under dir while
// holding an exclusive lock on the directory. CSV output is split into the
// full roster and a duplicates-only file; XLSX carries both as sheets.
func WriteFiles(ctx context.Context, dir, basename string, formats []string, classified []users.Classified, opts Options) ([]string, error) {
	if strings.TrimSpace(basename) == "" {
		return nil, fmt.Errorf("export basename required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure export directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockName))
	locked, err := lock.TryLockContext(ctx, lockRetryWait)
	if err != nil {
		return nil, fmt.Errorf("lock export directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock export directory: %s is busy", dir)
	}
	defer func() { _ = lock.Unlock() }()

	var written []string
	for _, format := range formats {
		switch strings.ToLower(format) {
		case FormatCSV:
			all := filepath.Join(dir, basename+".csv")
			if err := fileutil.WriteAtomic(all, 0o644, func(f io.Writer) error { return WriteCSV(f, classified, opts) }); err != nil {
				return written, err
			}
			written = append(written, all)
			dups := filepath.Join(dir, basename+"_duplicates.csv")
			if err := fileutil.WriteAtomic(dups, 0o644, func(f io.Writer) error { return WriteCSV(f, users.FilterDuplicates(classified), opts) }); err != nil {
				return written, err
			}
			written = append(written, dups)
		case FormatXLSX:
			path := filepath.Join(dir, basename+".xlsx")
			if err := fileutil.WriteAtomic(path, 0o644, func(f io.Writer) error { return WriteXLSX(f, Sheets(classified, opts), opts) }); err != nil {
				return written, err
			}
			written = append(written, path)
		default:
			return written, fmt.Errorf("unsupported export format %q", format)
		}
	}
	return written, nil
}
