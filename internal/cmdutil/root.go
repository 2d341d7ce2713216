// Package cmdutil holds the small pieces of CLI plumbing shared by every
// anubis subcommand: project-root discovery via the ".anubis_root" marker
// and the startup environment scrub.
package cmdutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RootMarkerFile is the zero-byte file whose parent directory is the
// project root, per spec.md §6.
const RootMarkerFile = ".anubis_root"

// FindProjectRoot walks up from startDir looking for RootMarkerFile,
// returning the directory that contains it.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", startDir, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, RootMarkerFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found above %q", RootMarkerFile, startDir)
		}
		dir = parent
	}
}

// ScrubEnvironment removes every environment variable except those
// prefixed RUST_*, per spec.md §5. Called by the build and
// install-toolchains commands before they run any job.
func ScrubEnvironment() {
	for _, kv := range os.Environ() {
		name := kv[:strings.IndexByte(kv, '=')]
		if strings.HasPrefix(name, "RUST_") {
			continue
		}
		os.Unsetenv(name)
	}
}
