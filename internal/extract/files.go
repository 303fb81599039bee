/**
 * @description
 * Filesystem-backed stores for partner file exchange: extracts arrive in a
 * drop directory, reports leave through one. Both directories are mounted
 * transfer points (SFTP-synced in deployment), so plain file IO is the whole
 * contract.
 */

package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirSource reads extract files from a drop directory.
type DirSource struct {
	Dir string
}

// Fetch returns the named extract file's content.
func (s DirSource) Fetch(_ context.Context, name string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(s.Dir, filepath.Base(name)))
	if err != nil {
		return "", fmt.Errorf("failed to read extract %s: %w", name, err)
	}
	return string(raw), nil
}

// DirSink writes report files into an outbound directory.
type DirSink struct {
	Dir string
}

// Store writes a finished report file.
func (s DirSink) Store(_ context.Context, filename, content string) error {
	path := filepath.Join(s.Dir, filepath.Base(filename))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", filename, err)
	}
	return nil
}
