package cmd

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forrestthewoods/anubis/internal/cmdutil"
	"github.com/forrestthewoods/anubis/internal/registry"
)

func buildToolchainArchive(t *testing.T) ([]byte, string) {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	content := []byte("#!/bin/sh\necho cc\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "cc", Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(content))}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, err = gw.Write(tarBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	sum := sha256.Sum256(gzBuf.Bytes())
	return gzBuf.Bytes(), hex.EncodeToString(sum[:])
}

func TestRunInstallToolchainsFetchesDeclaredToolchain(t *testing.T) {
	archive, sum := buildToolchainArchive(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, cmdutil.RootMarkerFile), nil, 0o644))

	anubis := fmt.Sprintf(`
toolchain(name = "default", cc = CcToolchain(compiler = "bin/cc"), install = ToolchainInstall(url = "%s", sha256 = "%s", version = "9.1"))
`, srv.URL, sum)
	require.NoError(t, os.WriteFile(filepath.Join(dir, registry.ConfigFileName), []byte(anubis), 0o644))

	chdirToFixture(t, dir)

	cmd := NewInstallToolchainsCmd()
	cmd.SetArgs(nil)
	err := cmd.Execute()
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, ".anubis-toolchains", "db.yaml"))
}

func TestRunInstallToolchainsSkipsHostProvidedToolchain(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, cmdutil.RootMarkerFile), nil, 0o644))

	anubis := `
toolchain(name = "default", cc = CcToolchain(compiler = "cc"))
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, registry.ConfigFileName), []byte(anubis), 0o644))

	chdirToFixture(t, dir)

	cmd := NewInstallToolchainsCmd()
	cmd.SetArgs(nil)
	err := cmd.Execute()
	require.NoError(t, err)
}
