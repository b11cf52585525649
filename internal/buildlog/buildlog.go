// Package buildlog provides plain-text progress reporting for the offline
// build CLIs (ingest/embed/cluster/build). It deliberately has no TUI: a
// single carriage-return-rewritten line on an interactive terminal, and
// one log line per Progress call everywhere else (CI, redirected
// output, log files), so piped build output stays readable.
package buildlog

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Reporter reports stage and batch progress for one build command.
type Reporter struct {
	out         io.Writer
	interactive bool
	lastStage   string
}

// New returns a Reporter writing to out, auto-detecting whether out is an
// interactive terminal (and not a CI environment, which always gets plain
// line-per-update output regardless of the underlying file descriptor).
func New(out io.Writer) *Reporter {
	return &Reporter{out: out, interactive: isTTY(out) && !detectCI()}
}

// Stage announces the start of a named build stage.
func (r *Reporter) Stage(name string) {
	if r.interactive && r.lastStage != "" {
		fmt.Fprintln(r.out)
	}
	r.lastStage = name
	fmt.Fprintf(r.out, "==> %s\n", name)
}

// Progress reports done/total units of work completed within the current
// stage. On an interactive terminal this rewrites a single line; otherwise
// it emits one line per call, so callers should throttle how often they
// invoke it (e.g. once per batch, not once per passage).
func (r *Reporter) Progress(done, total int, label string) {
	if total <= 0 {
		return
	}
	pct := 100 * done / total
	if r.interactive {
		fmt.Fprintf(r.out, "\r    %s: %d/%d (%d%%)", label, done, total, pct)
		if done >= total {
			fmt.Fprintln(r.out)
		}
		return
	}
	fmt.Fprintf(r.out, "    %s: %d/%d (%d%%)\n", label, done, total, pct)
}

// isTTY reports whether w is a terminal file descriptor, mirroring the
// real-file check every ambient stack member that shells out to a
// terminal needs before deciding whether to use escape sequences.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func detectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}
