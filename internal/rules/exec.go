package rules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/forrestthewoods/anubis/internal/diagnostic"
)

// runExternalTool invokes argv[0] with argv[1:] in dir, capturing stdout
// and stderr separately. A nonzero exit produces a ToolInvocation
// diagnostic carrying the quoted argv, the exit code, and the trailing
// slice of stderr, per spec.md §4.8's "actionable tool failures" wording.
func runExternalTool(ctx context.Context, dir string, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", diagnostic.New(diagnostic.ToolInvocation, "empty command line")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout.String(), diagnostic.Wrap(diagnostic.ToolInvocation,
			fmt.Sprintf("%s (exit %d): %s", quoteArgv(argv), exitCode, strings.TrimSpace(tail(stderr.Bytes(), 4096))),
			err)
	}
	return stdout.String(), nil
}

// tail returns the last n bytes of b, or all of b if shorter.
func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}

// quoteArgv joins argv using the host platform's shell-quoting convention,
// for display in diagnostics only.
func quoteArgv(argv []string) string {
	quote := "'"
	if runtime.GOOS == "windows" {
		quote = "\""
	}
	parts := make([]string, len(argv))
	for i, a := range argv {
		if strings.ContainsAny(a, " \t\"'") {
			parts[i] = quote + a + quote
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}
